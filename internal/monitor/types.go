package monitor

import (
	"strconv"
	"time"
)

// Channel describes one stream to check.
type Channel struct {
	ID        int
	Name      string
	MasterURL string
}

// ErrorClass buckets a failed segment download.
type ErrorClass string

const (
	// ErrorHTTP is a request that completed with a non-2xx response.
	ErrorHTTP ErrorClass = "http"
	// ErrorNetwork is a transport-level failure with no HTTP response
	// (DNS, connection refused, timeout).
	ErrorNetwork ErrorClass = "network"
	// ErrorCritical is any other unexpected failure during download.
	ErrorCritical ErrorClass = "critical"
)

// FailureKey identifies one kind of download failure: HTTP failures carry the
// status code, network/critical failures carry an error-kind name.
type FailureKey struct {
	Class ErrorClass
	Code  int    // set for ErrorHTTP only
	Kind  string // set for ErrorNetwork and ErrorCritical
}

// Label returns the tally key within the class: the status code for http,
// the error-kind name otherwise.
func (k FailureKey) Label() string {
	if k.Class == ErrorHTTP {
		return strconv.Itoa(k.Code)
	}
	return k.Kind
}

// SegmentOutcome records one downloaded (or failed) media segment. Once
// recorded it is never mutated.
type SegmentOutcome struct {
	Name         string
	URL          string
	Success      bool
	SizeBytes    int64
	DownloadTime time.Duration
	Timestamp    time.Time
	ErrorMessage string
	HTTPStatus   int // 0 if no response was received
	Failure      *FailureKey
}

// SpeedMBps is the measured download speed of this segment in MB/s.
func (s SegmentOutcome) SpeedMBps() float64 {
	if s.DownloadTime <= 0 {
		return 0
	}
	return float64(s.SizeBytes) / (1024 * 1024) / s.DownloadTime.Seconds()
}

// ChannelStats accumulates per-channel results over one run. It is mutated
// exclusively through the Tracker owning it.
type ChannelStats struct {
	ChannelName string
	ChannelID   int
	MasterURL   string
	VariantURL  string

	TotalSegments       int
	SuccessfulDownloads int
	FailedDownloads     int
	TotalBytes          int64
	TotalTime           time.Duration // sum of successful download durations only

	StartTime time.Time
	EndTime   time.Time // zero while the channel is still being checked

	Segments    []SegmentOutcome
	ErrorCounts map[FailureKey]int64

	processed map[string]struct{} // dedup ledger, keyed by raw playlist URI
}

// SuccessRate returns the percentage of successful downloads (0 if none).
func (c *ChannelStats) SuccessRate() float64 {
	if c.TotalSegments == 0 {
		return 0
	}
	return float64(c.SuccessfulDownloads) / float64(c.TotalSegments) * 100
}

// AvgDownloadSpeed returns the mean download speed in MB/s (0 if no
// successful downloads).
func (c *ChannelStats) AvgDownloadSpeed() float64 {
	if c.TotalTime <= 0 {
		return 0
	}
	return float64(c.TotalBytes) / (1024 * 1024) / c.TotalTime.Seconds()
}

// Duration is the elapsed check time; it keeps growing until EndTime is set.
func (c *ChannelStats) Duration() time.Duration {
	end := c.EndTime
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(c.StartTime)
}

// GlobalStats is the fleet-wide accumulation across all channels in a run.
type GlobalStats struct {
	TotalChannels       int
	CompletedChannels   int
	TotalSegments       int
	SuccessfulDownloads int
	FailedDownloads     int
	TotalBytes          int64

	StartTime time.Time
	EndTime   time.Time // zero while the run is active

	Channels    []*ChannelStats
	ErrorCounts map[FailureKey]int64
}

// SuccessRate returns the overall percentage of successful downloads.
func (g *GlobalStats) SuccessRate() float64 {
	if g.TotalSegments == 0 {
		return 0
	}
	return float64(g.SuccessfulDownloads) / float64(g.TotalSegments) * 100
}

// Duration is the elapsed run time; it keeps growing until EndTime is set.
func (g *GlobalStats) Duration() time.Duration {
	end := g.EndTime
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(g.StartTime)
}

// ErrorBreakdown converts a failure tally into the nested
// class -> label -> count shape used by reports.
func ErrorBreakdown(counts map[FailureKey]int64) map[string]map[string]int64 {
	out := make(map[string]map[string]int64)
	for key, n := range counts {
		class := string(key.Class)
		if out[class] == nil {
			out[class] = make(map[string]int64)
		}
		out[class][key.Label()] += n
	}
	return out
}
