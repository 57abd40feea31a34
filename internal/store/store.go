// Package store persists segment outcomes and channel run summaries in
// Postgres. Every method tolerates a nil pool so the service can run without
// a database configured.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"hls-stream-monitor/internal/monitor"
)

// querier is the slice of the pgx pool API the store needs.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	db  querier
	log zerolog.Logger
}

func New(db *pgxpool.Pool, log zerolog.Logger) *Store {
	s := &Store{log: log}
	if db != nil {
		s.db = db
	}
	return s
}

// Enabled reports whether a database connection is configured.
func (s *Store) Enabled() bool {
	return s != nil && s.db != nil
}

// InsertSegment records one segment outcome. Failures are logged, not
// returned; persistence is best-effort and must never stall the poller.
func (s *Store) InsertSegment(ctx context.Context, channelName string, out monitor.SegmentOutcome) {
	if !s.Enabled() {
		return
	}

	var errClass, errLabel string
	if out.Failure != nil {
		errClass = string(out.Failure.Class)
		errLabel = out.Failure.Label()
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO segment_results
			(channel_name, segment_name, segment_url, success, size_bytes,
			 download_ms, http_status, error_class, error_label, error_message, checked_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		channelName, out.Name, out.URL, out.Success, out.SizeBytes,
		out.DownloadTime.Milliseconds(), out.HTTPStatus,
		errClass, errLabel, out.ErrorMessage, out.Timestamp,
	)
	if err != nil {
		s.log.Warn().Err(err).Str("channel", channelName).Msg("failed to persist segment result")
	}
}

// InsertChannelSummary records the final per-channel counters of one run.
func (s *Store) InsertChannelSummary(ctx context.Context, cs *monitor.ChannelStats) {
	if !s.Enabled() {
		return
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO channel_runs
			(channel_id, channel_name, variant_url, total_segments,
			 successful_downloads, failed_downloads, total_bytes,
			 success_rate, avg_speed_mbps, started_at, finished_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		cs.ChannelID, cs.ChannelName, cs.VariantURL, cs.TotalSegments,
		cs.SuccessfulDownloads, cs.FailedDownloads, cs.TotalBytes,
		cs.SuccessRate(), cs.AvgDownloadSpeed(), cs.StartTime, cs.EndTime,
	)
	if err != nil {
		s.log.Warn().Err(err).Str("channel", cs.ChannelName).Msg("failed to persist channel summary")
	}
}

// UptimeStats is the segment-level success ratio of one channel over a window.
type UptimeStats struct {
	Channel       string  `json:"channel"`
	WindowHours   int     `json:"window_hours"`
	TotalSegments int64   `json:"total_segments"`
	Successful    int64   `json:"successful"`
	Failed        int64   `json:"failed"`
	UptimePercent float64 `json:"uptime_percent"`
}

// ChannelUptime computes the success ratio of stored segment results for one
// channel over the trailing window.
func (s *Store) ChannelUptime(ctx context.Context, channel string, window time.Duration) (UptimeStats, error) {
	stats := UptimeStats{
		Channel:     channel,
		WindowHours: int(window.Hours()),
	}
	if !s.Enabled() {
		return stats, nil
	}

	err := s.db.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE success),
			COUNT(*) FILTER (WHERE NOT success)
		FROM segment_results
		WHERE channel_name = $1 AND checked_at >= now() - make_interval(secs => $2)`,
		channel, window.Seconds(),
	).Scan(&stats.TotalSegments, &stats.Successful, &stats.Failed)
	if err != nil {
		return stats, err
	}

	if stats.TotalSegments > 0 {
		stats.UptimePercent = float64(stats.Successful) / float64(stats.TotalSegments) * 100
	}
	return stats, nil
}
