package monitor

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"hls-stream-monitor/internal/sysmon"
)

// Runner sequences a whole monitoring run: the resource sampler in the
// background, and for each selected channel a variant resolution followed by
// a segment-polling window of fixed duration. Channels are visited one at a
// time unless Parallel raises the limit; the Tracker serialises all stats
// mutation either way.
type Runner struct {
	Client   *http.Client
	Tracker  *Tracker
	Sampler  *sysmon.Sampler
	Poller   PollerConfig
	Parallel int // concurrent channel checks; <=1 means sequential
	Log      zerolog.Logger

	// OnOutcome and OnChannelDone are best-effort hooks (persistence,
	// alerting); either may be nil.
	OnOutcome     func(channelName string, out SegmentOutcome)
	OnChannelDone func(cs *ChannelStats)
}

// Run checks every channel for duration each and returns the finalised
// global stats together with the resource summary. It always returns a
// stats object, zero-valued rather than absent when everything failed, and
// always stops the sampler before returning.
func (r *Runner) Run(ctx context.Context, channels []Channel, duration time.Duration) (*GlobalStats, sysmon.Summary) {
	r.Sampler.Start()
	defer r.Sampler.Stop()

	r.Log.Info().
		Int("channels", len(channels)).
		Dur("duration_each", duration).
		Msg("monitoring run started")

	g, gctx := errgroup.WithContext(ctx)
	limit := r.Parallel
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)

	for _, ch := range channels {
		ch := ch
		g.Go(func() error {
			r.checkChannel(gctx, ch, duration)
			return nil
		})
	}
	g.Wait()

	global := r.Tracker.Finalize()
	r.Sampler.Stop()

	r.Log.Info().
		Int("completed", global.CompletedChannels).
		Int("segments", global.TotalSegments).
		Float64("success_rate", global.SuccessRate()).
		Float64("duration_seconds", global.Duration().Seconds()).
		Msg("monitoring run finished")

	return global, r.Sampler.Summary()
}

func (r *Runner) checkChannel(ctx context.Context, ch Channel, duration time.Duration) {
	if ctx.Err() != nil {
		return
	}

	cs := r.Tracker.StartChannel(ch)
	log := r.Log.With().Str("channel", ch.Name).Logger()

	variant, err := ResolveVariant(ctx, r.Client, ch.MasterURL)
	if err != nil {
		log.Warn().Err(err).Msg("skipping channel, master playlist unavailable")
		r.Tracker.FinishChannel(cs, false)
		if r.OnChannelDone != nil {
			r.OnChannelDone(cs)
		}
		return
	}
	r.Tracker.SetVariant(cs, variant)
	log.Info().Str("variant", variant).Msg("variant selected")

	poller := NewPoller(r.Client, r.Tracker, r.Poller, log)
	poller.OnOutcome = r.OnOutcome

	chCtx, cancel := context.WithTimeout(ctx, duration)
	poller.Run(chCtx, variant, cs)
	cancel()

	// Only a channel whose window ran its full course counts as completed;
	// a run-level cancellation mid-window does not.
	r.Tracker.FinishChannel(cs, ctx.Err() == nil)
	if r.OnChannelDone != nil {
		r.OnChannelDone(cs)
	}

	log.Info().
		Int("segments", cs.TotalSegments).
		Int("ok", cs.SuccessfulDownloads).
		Int("failed", cs.FailedDownloads).
		Float64("success_rate", cs.SuccessRate()).
		Msg("channel check finished")
}
