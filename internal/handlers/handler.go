// Package handlers exposes the HTTP API for starting, stopping and observing
// monitoring runs.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"hls-stream-monitor/internal/catalog"
	"hls-stream-monitor/internal/snapshot"
	"hls-stream-monitor/internal/store"
)

// RunFunc executes one full monitoring run; it blocks until the run finishes
// or ctx is cancelled.
type RunFunc func(ctx context.Context, sel catalog.Selector, duration, sampleInterval time.Duration)

// Handler serves the check API. It allows at most one run at a time.
type Handler struct {
	run   RunFunc
	store *store.Store
	log   zerolog.Logger

	defaultDuration time.Duration
	defaultSample   time.Duration
	defaultChannels catalog.Selector

	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	startedAt time.Time
}

func New(run RunFunc, st *store.Store, log zerolog.Logger,
	defaultDuration, defaultSample time.Duration, defaultChannels catalog.Selector) *Handler {
	return &Handler{
		run:             run,
		store:           st,
		log:             log,
		defaultDuration: defaultDuration,
		defaultSample:   defaultSample,
		defaultChannels: defaultChannels,
	}
}

type startRequest struct {
	Channels        catalog.Selector `json:"channels"`
	DurationMinutes int              `json:"duration_minutes"`
	MonitorInterval int              `json:"monitor_interval"` // sampler seconds
}

// StartCheck launches a run in the background. A second start while a run is
// active returns 409.
func (h *Handler) StartCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req startRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	sel := req.Channels
	if sel.IsZero() {
		sel = h.defaultChannels
	}
	duration := h.defaultDuration
	if req.DurationMinutes > 0 {
		duration = time.Duration(req.DurationMinutes) * time.Minute
	}
	sample := h.defaultSample
	if req.MonitorInterval > 0 {
		sample = time.Duration(req.MonitorInterval) * time.Second
	}

	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		http.Error(w, "a check is already running", http.StatusConflict)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	h.running = true
	h.cancel = cancel
	h.startedAt = time.Now()
	startedAt := h.startedAt
	h.mu.Unlock()

	go func() {
		defer func() {
			cancel()
			h.mu.Lock()
			h.running = false
			h.cancel = nil
			h.mu.Unlock()
		}()
		h.run(ctx, sel, duration, sample)
	}()

	h.log.Info().
		Float64("duration_minutes", duration.Minutes()).
		Msg("check started via api")

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"status":           "started",
		"duration_minutes": duration.Minutes(),
		"started_at":       startedAt.UTC().Format(time.RFC3339),
	})
}

// StopCheck cancels the active run, if any.
func (h *Handler) StopCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	h.mu.Lock()
	cancel := h.cancel
	running := h.running
	h.mu.Unlock()

	if !running {
		json.NewEncoder(w).Encode(map[string]any{"status": "idle"})
		return
	}
	cancel()
	h.log.Info().Msg("check stop requested via api")
	json.NewEncoder(w).Encode(map[string]any{"status": "stopping"})
}

// CheckStatus reports the run lifecycle plus the latest published stats
// snapshot.
func (h *Handler) CheckStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	h.mu.Lock()
	running := h.running
	startedAt := h.startedAt
	h.mu.Unlock()

	resp := map[string]any{
		"running": running,
		"stats":   snapshot.Get(),
	}
	if running {
		resp["started_at"] = startedAt.UTC().Format(time.RFC3339)
	}
	json.NewEncoder(w).Encode(resp)
}

// GetUptime returns stored uptime stats for one channel over a sliding
// window (default 24h).
func (h *Handler) GetUptime(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	channel := strings.TrimSpace(r.URL.Query().Get("channel"))
	if channel == "" {
		http.Error(w, "missing channel", http.StatusBadRequest)
		return
	}

	window := 24 * time.Hour
	if raw := strings.TrimSpace(r.URL.Query().Get("window")); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			http.Error(w, "invalid window duration", http.StatusBadRequest)
			return
		}
		window = d
	}

	if !h.store.Enabled() {
		http.Error(w, "no database configured", http.StatusServiceUnavailable)
		return
	}

	stats, err := h.store.ChannelUptime(r.Context(), channel, window)
	if err != nil {
		h.log.Error().Err(err).Msg("uptime query failed")
		http.Error(w, "uptime query failed", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(stats)
}
