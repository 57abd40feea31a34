package monitor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"hls-stream-monitor/internal/hls"
)

// PollerConfig tunes one channel's segment-polling loop.
type PollerConfig struct {
	// SegmentPacing is the fixed delay between segment downloads so the
	// origin is not hammered.
	SegmentPacing time.Duration
	// ManifestRetryDelay is the fixed delay before re-fetching a media
	// playlist that could not be retrieved.
	ManifestRetryDelay time.Duration
	// StatsLogInterval is how often the intermediate stats tick is logged.
	StatsLogInterval time.Duration
}

// Poller drives one channel: it repeatedly fetches the media playlist at the
// variant URL, discovers segments not yet in the dedup ledger, downloads them
// in playlist order and records every outcome through the Tracker.
type Poller struct {
	client  *http.Client
	tracker *Tracker
	cfg     PollerConfig
	log     zerolog.Logger

	// OnOutcome, when set, is invoked after each recorded outcome
	// (best-effort persistence hooks; must not block for long).
	OnOutcome func(channelName string, out SegmentOutcome)
}

// NewPoller returns a poller bound to one tracker and HTTP client.
func NewPoller(client *http.Client, tracker *Tracker, cfg PollerConfig, log zerolog.Logger) *Poller {
	if cfg.SegmentPacing <= 0 {
		cfg.SegmentPacing = time.Second
	}
	if cfg.ManifestRetryDelay <= 0 {
		cfg.ManifestRetryDelay = time.Second
	}
	if cfg.StatsLogInterval <= 0 {
		cfg.StatsLogInterval = 10 * time.Second
	}
	return &Poller{client: client, tracker: tracker, cfg: cfg, log: log}
}

// Run polls variantURL until ctx is cancelled (the per-channel deadline or an
// operator stop). The deadline is checked before every segment download; no
// segment is started after cancellation is observed.
func (p *Poller) Run(ctx context.Context, variantURL string, cs *ChannelStats) {
	lastStatsLog := time.Now()

	for {
		if ctx.Err() != nil {
			return
		}

		manifest, err := fetchText(ctx, p.client, variantURL)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// A failed manifest fetch is not a segment attempt.
			p.log.Warn().Err(err).Msg("media playlist fetch failed, retrying")
			if !sleepCtx(ctx, p.cfg.ManifestRetryDelay) {
				return
			}
			continue
		}

		downloaded := false
		for _, rawURI := range hls.ParseMedia(manifest) {
			if ctx.Err() != nil {
				return
			}
			// Mark before downloading so a crash mid-download never
			// retries the same stale segment on the next poll.
			if !p.tracker.MarkProcessed(cs, rawURI) {
				continue
			}
			downloaded = true

			segURL := hls.ResolveURL(variantURL, rawURI)
			out := p.downloadSegment(ctx, segURL)

			// An attempt aborted by cancellation is abandoned, not a
			// verdict about the stream.
			if !out.Success && ctx.Err() != nil {
				return
			}

			p.tracker.RecordOutcome(cs, out)
			if p.OnOutcome != nil {
				p.OnOutcome(cs.ChannelName, out)
			}
			p.logOutcome(out)

			if time.Since(lastStatsLog) >= p.cfg.StatsLogInterval {
				p.logIntermediate(cs)
				lastStatsLog = time.Now()
			}

			if !sleepCtx(ctx, p.cfg.SegmentPacing) {
				return
			}
		}

		// A window with nothing new: wait one pacing interval instead of
		// hammering the manifest.
		if !downloaded {
			if !sleepCtx(ctx, p.cfg.SegmentPacing) {
				return
			}
		}
	}
}

// downloadSegment streams one segment to measure its size and elapsed time.
// The body is counted, never persisted.
func (p *Poller) downloadSegment(ctx context.Context, segURL string) SegmentOutcome {
	name, ts := hls.SegmentIdentity(segURL)
	if ts.IsZero() {
		ts = time.Now()
	}
	out := SegmentOutcome{Name: name, URL: segURL, Timestamp: ts}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, segURL, nil)
	if err != nil {
		out.DownloadTime = time.Since(start)
		out.ErrorMessage = err.Error()
		out.Failure = &FailureKey{Class: ErrorCritical, Kind: "bad_request"}
		return out
	}

	resp, err := p.client.Do(req)
	if err != nil {
		out.DownloadTime = time.Since(start)
		out.ErrorMessage = err.Error()
		key := classifyTransportError(err)
		out.Failure = &key
		return out
	}
	defer resp.Body.Close()

	out.HTTPStatus = resp.StatusCode
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		out.DownloadTime = time.Since(start)
		out.ErrorMessage = fmt.Sprintf("unexpected status: %d", resp.StatusCode)
		out.Failure = &FailureKey{Class: ErrorHTTP, Code: resp.StatusCode}
		return out
	}

	n, err := io.Copy(io.Discard, resp.Body)
	out.DownloadTime = time.Since(start)
	out.SizeBytes = n
	if err != nil {
		out.ErrorMessage = fmt.Sprintf("read body: %v", err)
		key := classifyReadError(err)
		out.Failure = &key
		return out
	}

	out.Success = true
	return out
}

func (p *Poller) logOutcome(out SegmentOutcome) {
	if out.Success {
		p.log.Info().
			Str("segment", out.Name).
			Int64("bytes", out.SizeBytes).
			Float64("seconds", out.DownloadTime.Seconds()).
			Float64("mbps", out.SpeedMBps()).
			Msg("segment downloaded")
		return
	}
	p.log.Error().
		Str("segment", out.Name).
		Str("class", string(out.Failure.Class)).
		Str("reason", out.ErrorMessage).
		Msg("segment download failed")
}

func (p *Poller) logIntermediate(cs *ChannelStats) {
	prog := p.tracker.Progress(cs)
	if prog.TotalSegments == 0 {
		return
	}
	p.log.Info().
		Int("segments", prog.TotalSegments).
		Int("ok", prog.SuccessfulDownloads).
		Int("failed", prog.FailedDownloads).
		Float64("success_rate", prog.SuccessRate).
		Float64("mb", float64(prog.TotalBytes)/(1024*1024)).
		Float64("avg_mbps", prog.AvgSpeedMBps).
		Float64("elapsed_seconds", prog.Elapsed.Seconds()).
		Msg("intermediate stats")
}

// sleepCtx sleeps for d unless ctx is cancelled first; it reports whether the
// full delay elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
