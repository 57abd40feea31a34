package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okOutcome(name string, bytes int64, dur time.Duration) SegmentOutcome {
	return SegmentOutcome{
		Name:         name,
		Success:      true,
		SizeBytes:    bytes,
		DownloadTime: dur,
		Timestamp:    time.Now(),
	}
}

func failedOutcome(name string, key FailureKey) SegmentOutcome {
	return SegmentOutcome{
		Name:      name,
		Timestamp: time.Now(),
		Failure:   &key,
	}
}

func TestTrackerCountersStayConsistent(t *testing.T) {
	tr := NewTracker(2)
	a := tr.StartChannel(Channel{ID: 1, Name: "One", MasterURL: "http://a/m.m3u8"})
	b := tr.StartChannel(Channel{ID: 2, Name: "Two", MasterURL: "http://b/m.m3u8"})

	tr.RecordOutcome(a, okOutcome("s1", 1000, time.Second))
	tr.RecordOutcome(a, failedOutcome("s2", FailureKey{Class: ErrorHTTP, Code: 503}))
	tr.RecordOutcome(b, okOutcome("s3", 2000, time.Second))

	g := tr.Finalize()

	assert.Equal(t, 3, g.TotalSegments)
	assert.Equal(t, 2, g.SuccessfulDownloads)
	assert.Equal(t, 1, g.FailedDownloads)
	assert.Equal(t, g.TotalSegments, g.SuccessfulDownloads+g.FailedDownloads)

	for _, cs := range g.Channels {
		assert.Equal(t, cs.TotalSegments, cs.SuccessfulDownloads+cs.FailedDownloads)
	}
}

func TestTrackerAggregationIsLossless(t *testing.T) {
	tr := NewTracker(3)
	channels := []*ChannelStats{
		tr.StartChannel(Channel{ID: 1, Name: "One"}),
		tr.StartChannel(Channel{ID: 2, Name: "Two"}),
		tr.StartChannel(Channel{ID: 3, Name: "Three"}),
	}

	tr.RecordOutcome(channels[0], okOutcome("a", 100, time.Second))
	tr.RecordOutcome(channels[0], okOutcome("b", 200, time.Second))
	tr.RecordOutcome(channels[1], failedOutcome("c", FailureKey{Class: ErrorNetwork, Kind: "timeout"}))
	tr.RecordOutcome(channels[2], okOutcome("d", 300, time.Second))
	tr.RecordOutcome(channels[2], failedOutcome("e", FailureKey{Class: ErrorHTTP, Code: 404}))

	g := tr.Finalize()

	var segs, ok, failed int
	var bytes int64
	for _, cs := range g.Channels {
		segs += cs.TotalSegments
		ok += cs.SuccessfulDownloads
		failed += cs.FailedDownloads
		bytes += cs.TotalBytes
	}
	assert.Equal(t, segs, g.TotalSegments)
	assert.Equal(t, ok, g.SuccessfulDownloads)
	assert.Equal(t, failed, g.FailedDownloads)
	assert.Equal(t, bytes, g.TotalBytes)
}

func TestTrackerDedupLedger(t *testing.T) {
	tr := NewTracker(1)
	cs := tr.StartChannel(Channel{ID: 1, Name: "One"})

	assert.True(t, tr.MarkProcessed(cs, "seg1.ts"))
	assert.False(t, tr.MarkProcessed(cs, "seg1.ts"))
	assert.True(t, tr.MarkProcessed(cs, "seg2.ts"))
	assert.Equal(t, 2, tr.ProcessedCount(cs))
}

func TestTrackerErrorCounts(t *testing.T) {
	tr := NewTracker(1)
	cs := tr.StartChannel(Channel{ID: 1, Name: "One"})

	tr.RecordOutcome(cs, failedOutcome("a", FailureKey{Class: ErrorHTTP, Code: 503}))
	tr.RecordOutcome(cs, failedOutcome("b", FailureKey{Class: ErrorHTTP, Code: 503}))
	tr.RecordOutcome(cs, failedOutcome("c", FailureKey{Class: ErrorNetwork, Kind: "timeout"}))

	g := tr.Finalize()
	breakdown := ErrorBreakdown(g.ErrorCounts)

	require.Contains(t, breakdown, "http")
	require.Contains(t, breakdown, "network")
	assert.Equal(t, int64(2), breakdown["http"]["503"])
	assert.Equal(t, int64(1), breakdown["network"]["timeout"])
}

func TestTrackerBytesAndTimeOnlyOnSuccess(t *testing.T) {
	tr := NewTracker(1)
	cs := tr.StartChannel(Channel{ID: 1, Name: "One"})

	out := failedOutcome("a", FailureKey{Class: ErrorHTTP, Code: 500})
	out.SizeBytes = 4096 // partial body read before the failure
	out.DownloadTime = time.Second
	tr.RecordOutcome(cs, out)
	tr.RecordOutcome(cs, okOutcome("b", 1024, 2*time.Second))

	assert.Equal(t, int64(1024), cs.TotalBytes)
	assert.Equal(t, 2*time.Second, cs.TotalTime)
}

func TestDerivedMetricsZeroWhenEmpty(t *testing.T) {
	cs := &ChannelStats{}
	assert.Zero(t, cs.SuccessRate())
	assert.Zero(t, cs.AvgDownloadSpeed())

	g := &GlobalStats{}
	assert.Zero(t, g.SuccessRate())
}

func TestSuccessRate(t *testing.T) {
	tr := NewTracker(1)
	cs := tr.StartChannel(Channel{ID: 1, Name: "One"})

	tr.RecordOutcome(cs, okOutcome("a", 100, time.Second))
	tr.RecordOutcome(cs, okOutcome("b", 100, time.Second))
	tr.RecordOutcome(cs, okOutcome("c", 100, time.Second))
	tr.RecordOutcome(cs, failedOutcome("d", FailureKey{Class: ErrorHTTP, Code: 404}))

	assert.InDelta(t, 75.0, cs.SuccessRate(), 0.001)
}

func TestSpeedMBps(t *testing.T) {
	out := okOutcome("a", 2*1024*1024, 2*time.Second)
	assert.InDelta(t, 1.0, out.SpeedMBps(), 0.001)

	var zero SegmentOutcome
	assert.Zero(t, zero.SpeedMBps())
}

func TestFinishChannelCompletion(t *testing.T) {
	tr := NewTracker(2)
	a := tr.StartChannel(Channel{ID: 1, Name: "One"})
	b := tr.StartChannel(Channel{ID: 2, Name: "Two"})

	tr.FinishChannel(a, true)
	tr.FinishChannel(b, false)

	g := tr.Finalize()
	assert.Equal(t, 1, g.CompletedChannels)
	assert.False(t, a.EndTime.IsZero())
	assert.False(t, b.EndTime.IsZero())
	assert.False(t, g.EndTime.IsZero())
}
