package snapshot

import "sync/atomic"

// RunStatus is the read-only view of the current monitoring run used by the API.
type RunStatus struct {
	Running        bool    `json:"running"`
	CurrentChannel string  `json:"current_channel,omitempty"`
	StartedAt      string  `json:"started_at,omitempty"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`

	TotalChannels       int     `json:"total_channels"`
	CompletedChannels   int     `json:"completed_channels"`
	TotalSegments       int     `json:"total_segments"`
	SuccessfulDownloads int     `json:"successful_downloads"`
	FailedDownloads     int     `json:"failed_downloads"`
	TotalBytes          int64   `json:"total_bytes"`
	SuccessRate         float64 `json:"success_rate"`

	Channels []ChannelStatus `json:"channels"`
}

// ChannelStatus is what the API exposes per monitored channel.
type ChannelStatus struct {
	Name                string  `json:"name"`
	VariantURL          string  `json:"variant_url,omitempty"`
	TotalSegments       int     `json:"total_segments"`
	SuccessfulDownloads int     `json:"successful_downloads"`
	FailedDownloads     int     `json:"failed_downloads"`
	TotalBytes          int64   `json:"total_bytes"`
	SuccessRate         float64 `json:"success_rate"`
	AvgSpeedMBps        float64 `json:"avg_speed_mbps"`
	Done                bool    `json:"done"`
}

var current atomic.Value // stores RunStatus

// Publish replaces the current run status.
func Publish(s RunStatus) {
	current.Store(s)
}

// Get returns the latest run status.
// If nothing was published yet, returns a zero-value status.
func Get() RunStatus {
	if v := current.Load(); v != nil {
		return v.(RunStatus)
	}
	return RunStatus{}
}
