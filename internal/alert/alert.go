// Package alert sends Telegram notifications for degraded channels and run
// completion summaries.
package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"github.com/rs/zerolog"

	"hls-stream-monitor/internal/monitor"
)

// Notifier posts alerts to a Telegram chat. A nil *Notifier or a Notifier
// without a bot is inert, so callers never need to guard their calls.
type Notifier struct {
	Bot            *bot.Bot
	ChatID         int64
	MinSuccessRate float64
	Log            zerolog.Logger
}

func (n *Notifier) enabled() bool {
	return n != nil && n.Bot != nil
}

// ChannelDegraded alerts when a finished channel ends below the configured
// success-rate floor. Channels with no segment attempts count as degraded
// only when their window produced at least one attempt or failed to resolve.
func (n *Notifier) ChannelDegraded(ctx context.Context, cs *monitor.ChannelStats) {
	if !n.enabled() {
		return
	}
	if cs.TotalSegments > 0 && cs.SuccessRate() >= n.MinSuccessRate {
		return
	}

	var statusLine string
	if cs.TotalSegments == 0 {
		statusLine = "Status: no segments downloaded (stream unreachable?)"
	} else {
		statusLine = fmt.Sprintf("Status: %.1f%% success (%d of %d segments)",
			cs.SuccessRate(), cs.SuccessfulDownloads, cs.TotalSegments)
	}

	msg := fmt.Sprintf("🚨 DEGRADED: %s\n%s\nAt: %s",
		cs.ChannelName,
		statusLine,
		time.Now().UTC().Format("2006-01-02 15:04 MST"),
	)
	n.send(ctx, msg)
}

// RunCompleted posts the fleet-wide summary of a finished run.
func (n *Notifier) RunCompleted(ctx context.Context, gs *monitor.GlobalStats) {
	if !n.enabled() {
		return
	}

	msg := fmt.Sprintf("✅ HLS check finished\nChannels: %d/%d completed\nSegments: %d (%.1f%% ok)\nData: %.1f MB\nTook: %s",
		gs.CompletedChannels, gs.TotalChannels,
		gs.TotalSegments, gs.SuccessRate(),
		float64(gs.TotalBytes)/(1024*1024),
		gs.Duration().Round(time.Second),
	)
	n.send(ctx, msg)
}

func (n *Notifier) send(ctx context.Context, text string) {
	if _, err := n.Bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: n.ChatID,
		Text:   text,
	}); err != nil {
		n.Log.Warn().Err(err).Msg("telegram send failed")
	}
}
