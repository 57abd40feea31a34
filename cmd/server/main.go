package main

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"hls-stream-monitor/internal/alert"
	"hls-stream-monitor/internal/catalog"
	"hls-stream-monitor/internal/config"
	"hls-stream-monitor/internal/export"
	"hls-stream-monitor/internal/handlers"
	"hls-stream-monitor/internal/log"
	"hls-stream-monitor/internal/monitor"
	"hls-stream-monitor/internal/store"
	"hls-stream-monitor/internal/sysmon"
)

const configPath = "./configs/config.yaml"

func main() {
	godotenv.Load(".env")

	log.Configure(log.Config{Level: os.Getenv("LOG_LEVEL")})
	logger := log.Base()

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	ctx := context.Background()

	dbpool := connectDB(ctx, logger)
	if dbpool != nil {
		defer dbpool.Close()
	}
	st := store.New(dbpool, log.WithComponent("store"))

	notifier := buildNotifier(cfg, logger)

	client := monitor.NewClient(monitor.ClientConfig{
		Timeout:         cfg.Monitoring.HTTPTimeoutDur,
		UserAgent:       cfg.Monitoring.UserAgent,
		MaxRetries:      cfg.Monitoring.MaxRetries,
		RetryBackoff:    cfg.Monitoring.RetryBackoffDur,
		MaxIdleConns:    100,
		IdleConnTimeout: 90 * time.Second,
	})

	payload := os.Getenv("CATALOG_PAYLOAD")
	if payload == "" {
		payload = cfg.Catalog.Payload
	}
	cat := &catalog.Service{
		URL:         cfg.Catalog.URL,
		Payload:     payload,
		AgentHeader: cfg.Catalog.AgentHeader,
		CacheFile:   cfg.Catalog.CacheFile,
		Client:      client,
		Log:         log.WithComponent("catalog"),
	}

	runFunc := func(runCtx context.Context, sel catalog.Selector, duration, sampleInterval time.Duration) {
		runLog := log.WithComponent("run")

		all, err := cat.Channels(runCtx)
		if err != nil {
			runLog.Error().Err(err).Msg("no channel catalog available, run aborted")
			return
		}
		channels := sel.Pick(all)
		if len(channels) == 0 {
			runLog.Warn().Msg("channel selection matched nothing, run aborted")
			return
		}

		tracker := monitor.NewTracker(len(channels))
		runner := &monitor.Runner{
			Client:  client,
			Tracker: tracker,
			Sampler: sysmon.New(sampleInterval, log.WithComponent("sysmon")),
			Poller: monitor.PollerConfig{
				SegmentPacing:      cfg.Monitoring.SegmentPacingDur,
				ManifestRetryDelay: cfg.Monitoring.ManifestRetryDelayDur,
				StatsLogInterval:   cfg.Monitoring.StatsLogIntervalDur,
			},
			Parallel: cfg.Monitoring.ParallelChannels,
			Log:      runLog,
			OnOutcome: func(channelName string, out monitor.SegmentOutcome) {
				st.InsertSegment(runCtx, channelName, out)
			},
			OnChannelDone: func(cs *monitor.ChannelStats) {
				// Persistence and alerting must survive run cancellation.
				st.InsertChannelSummary(context.Background(), cs)
				if cfg.Alerts.Enabled {
					notifier.ChannelDegraded(context.Background(), cs)
				}
			},
		}

		global, resources := runner.Run(runCtx, toMonitorChannels(channels), duration)

		if *cfg.Export.Enabled {
			rep := export.BuildReport(global, resources)
			if path, err := export.WriteJSON(cfg.Export.DataDir, rep); err != nil {
				runLog.Error().Err(err).Msg("json export failed")
			} else {
				runLog.Info().Str("path", path).Msg("json report written")
			}
			if path, err := export.WriteCSV(cfg.Export.DataDir, rep); err != nil {
				runLog.Error().Err(err).Msg("csv export failed")
			} else {
				runLog.Info().Str("path", path).Msg("csv report written")
			}
		}

		if cfg.Alerts.Enabled {
			notifier.RunCompleted(context.Background(), global)
		}
	}

	h := handlers.New(
		runFunc,
		st,
		log.WithComponent("api"),
		time.Duration(cfg.Monitoring.DurationMinutes)*time.Minute,
		time.Duration(cfg.Sampler.IntervalSeconds)*time.Second,
		cfg.Monitoring.Channels,
	)

	r := chi.NewRouter()
	r.Use(middleware.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	})
	r.Post("/api/check", h.StartCheck)
	r.Post("/api/check/stop", h.StopCheck)
	r.Get("/api/check/status", h.CheckStatus)
	r.Get("/api/uptime", h.GetUptime)

	logger.Info().Str("addr", cfg.Server.Addr).Msg("server listening")
	if err := http.ListenAndServe(cfg.Server.Addr, r); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

// connectDB opens the Postgres pool when DATABASE_URL is set. The service
// runs without one, it just skips persistence.
func connectDB(ctx context.Context, logger zerolog.Logger) *pgxpool.Pool {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Warn().Msg("DATABASE_URL not set, persistence disabled")
		return nil
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Warn().Err(err).Msg("invalid DATABASE_URL, persistence disabled")
		return nil
	}
	poolCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		logger.Warn().Err(err).Msg("database connect failed, persistence disabled")
		return nil
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Warn().Err(err).Msg("database ping failed, persistence disabled")
		pool.Close()
		return nil
	}
	logger.Info().Msg("database connected")
	return pool
}

// buildNotifier wires the Telegram bot when the token and chat id are set.
func buildNotifier(cfg *config.Config, logger zerolog.Logger) *alert.Notifier {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	chatRaw := os.Getenv("TELEGRAM_CHAT_ID")
	if token == "" || chatRaw == "" {
		if cfg.Alerts.Enabled {
			logger.Warn().Msg("alerts enabled but telegram env not set, alerts disabled")
		}
		return nil
	}

	chatID, err := strconv.ParseInt(chatRaw, 10, 64)
	if err != nil {
		logger.Warn().Err(err).Msg("invalid TELEGRAM_CHAT_ID, alerts disabled")
		return nil
	}

	tbot, err := bot.New(token)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram bot init failed, alerts disabled")
		return nil
	}

	return &alert.Notifier{
		Bot:            tbot,
		ChatID:         chatID,
		MinSuccessRate: cfg.Alerts.MinSuccessRate,
		Log:            log.WithComponent("alert"),
	}
}

func toMonitorChannels(channels []catalog.Channel) []monitor.Channel {
	out := make([]monitor.Channel, 0, len(channels))
	for _, ch := range channels {
		out = append(out, monitor.Channel{ID: ch.ID, Name: ch.Name, MasterURL: ch.MasterURL})
	}
	return out
}
