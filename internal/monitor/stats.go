package monitor

import (
	"sync"
	"time"

	"hls-stream-monitor/internal/snapshot"
)

// Tracker owns the GlobalStats of one run and every ChannelStats hanging off
// it. All mutation goes through its methods so that one segment outcome
// updates channel and global counters together, never partially, and so a
// concurrent status read can never observe a torn update. Pollers may run
// concurrently against one Tracker.
type Tracker struct {
	mu      sync.Mutex
	global  *GlobalStats
	current string
	running bool
}

// NewTracker starts a run over totalChannels channels.
func NewTracker(totalChannels int) *Tracker {
	t := &Tracker{
		global: &GlobalStats{
			TotalChannels: totalChannels,
			StartTime:     time.Now(),
			ErrorCounts:   make(map[FailureKey]int64),
		},
		running: true,
	}
	t.mu.Lock()
	t.publishLocked()
	t.mu.Unlock()
	return t
}

// StartChannel registers a channel as being checked and returns its stats
// record. The record is appended to the run immediately so that channels that
// later fail to resolve still appear in the final report.
func (t *Tracker) StartChannel(ch Channel) *ChannelStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	cs := &ChannelStats{
		ChannelName: ch.Name,
		ChannelID:   ch.ID,
		MasterURL:   ch.MasterURL,
		StartTime:   time.Now(),
		ErrorCounts: make(map[FailureKey]int64),
		processed:   make(map[string]struct{}),
	}
	t.global.Channels = append(t.global.Channels, cs)
	t.current = ch.Name
	t.publishLocked()
	return cs
}

// SetVariant records the media variant chosen for the channel.
func (t *Tracker) SetVariant(cs *ChannelStats, variantURL string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cs.VariantURL = variantURL
}

// MarkProcessed adds rawURI to the channel's dedup ledger and reports whether
// it was new. The ledger is keyed by the raw playlist URI, not the resolved
// absolute URL, matching how sliding-window playlists repeat their entries.
func (t *Tracker) MarkProcessed(cs *ChannelStats, rawURI string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, seen := cs.processed[rawURI]; seen {
		return false
	}
	cs.processed[rawURI] = struct{}{}
	return true
}

// ProcessedCount returns the size of the channel's dedup ledger.
func (t *Tracker) ProcessedCount(cs *ChannelStats) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(cs.processed)
}

// RecordOutcome applies one segment outcome to the channel and the global
// counters in a single step.
func (t *Tracker) RecordOutcome(cs *ChannelStats, out SegmentOutcome) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cs.Segments = append(cs.Segments, out)
	cs.TotalSegments++
	t.global.TotalSegments++

	if out.Success {
		cs.SuccessfulDownloads++
		cs.TotalBytes += out.SizeBytes
		cs.TotalTime += out.DownloadTime
		t.global.SuccessfulDownloads++
		t.global.TotalBytes += out.SizeBytes
	} else {
		cs.FailedDownloads++
		t.global.FailedDownloads++
		if out.Failure != nil {
			cs.ErrorCounts[*out.Failure]++
			t.global.ErrorCounts[*out.Failure]++
		}
	}
	t.publishLocked()
}

// ChannelProgress is a consistent view of a channel's running counters.
type ChannelProgress struct {
	TotalSegments       int
	SuccessfulDownloads int
	FailedDownloads     int
	TotalBytes          int64
	SuccessRate         float64
	AvgSpeedMBps        float64
	Elapsed             time.Duration
}

// Progress returns a snapshot of the channel's counters for progress logging.
func (t *Tracker) Progress(cs *ChannelStats) ChannelProgress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return ChannelProgress{
		TotalSegments:       cs.TotalSegments,
		SuccessfulDownloads: cs.SuccessfulDownloads,
		FailedDownloads:     cs.FailedDownloads,
		TotalBytes:          cs.TotalBytes,
		SuccessRate:         cs.SuccessRate(),
		AvgSpeedMBps:        cs.AvgDownloadSpeed(),
		Elapsed:             cs.Duration(),
	}
}

// FinishChannel finalises a channel's stats. completed reports whether the
// check ran its full course rather than being skipped or cancelled.
func (t *Tracker) FinishChannel(cs *ChannelStats, completed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cs.EndTime = time.Now()
	if completed {
		t.global.CompletedChannels++
	}
	if t.current == cs.ChannelName {
		t.current = ""
	}
	t.publishLocked()
}

// Finalize closes the run and returns the accumulated global stats. The
// returned value must not be mutated afterwards.
func (t *Tracker) Finalize() *GlobalStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.global.EndTime = time.Now()
	t.running = false
	t.publishLocked()
	return t.global
}

func (t *Tracker) publishLocked() {
	g := t.global
	status := snapshot.RunStatus{
		Running:             t.running,
		CurrentChannel:      t.current,
		StartedAt:           g.StartTime.UTC().Format(time.RFC3339),
		ElapsedSeconds:      g.Duration().Seconds(),
		TotalChannels:       g.TotalChannels,
		CompletedChannels:   g.CompletedChannels,
		TotalSegments:       g.TotalSegments,
		SuccessfulDownloads: g.SuccessfulDownloads,
		FailedDownloads:     g.FailedDownloads,
		TotalBytes:          g.TotalBytes,
		SuccessRate:         g.SuccessRate(),
	}
	status.Channels = make([]snapshot.ChannelStatus, 0, len(g.Channels))
	for _, cs := range g.Channels {
		status.Channels = append(status.Channels, snapshot.ChannelStatus{
			Name:                cs.ChannelName,
			VariantURL:          cs.VariantURL,
			TotalSegments:       cs.TotalSegments,
			SuccessfulDownloads: cs.SuccessfulDownloads,
			FailedDownloads:     cs.FailedDownloads,
			TotalBytes:          cs.TotalBytes,
			SuccessRate:         cs.SuccessRate(),
			AvgSpeedMBps:        cs.AvgDownloadSpeed(),
			Done:                !cs.EndTime.IsZero(),
		})
	}
	snapshot.Publish(status)
}
