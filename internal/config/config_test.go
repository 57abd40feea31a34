package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  addr: \"\"\n"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.True(t, cfg.Monitoring.Channels.All)
	assert.Equal(t, 5, cfg.Monitoring.DurationMinutes)
	assert.Equal(t, 1, cfg.Monitoring.ParallelChannels)
	assert.Equal(t, 3, cfg.Monitoring.MaxRetries)
	assert.Equal(t, time.Second, cfg.Monitoring.SegmentPacingDur)
	assert.Equal(t, time.Second, cfg.Monitoring.ManifestRetryDelayDur)
	assert.Equal(t, 10*time.Second, cfg.Monitoring.StatsLogIntervalDur)
	assert.Equal(t, 10*time.Second, cfg.Monitoring.HTTPTimeoutDur)
	assert.Equal(t, 500*time.Millisecond, cfg.Monitoring.RetryBackoffDur)
	assert.Equal(t, 60, cfg.Sampler.IntervalSeconds)
	assert.NotNil(t, cfg.Export.Enabled)
	assert.True(t, *cfg.Export.Enabled)
	assert.InDelta(t, 80.0, cfg.Alerts.MinSuccessRate, 0.001)
}

func TestLoadFullConfig(t *testing.T) {
	body := `
server:
  addr: ":9090"
monitoring:
  channels: [101, 105]
  duration_minutes: 10
  parallel_channels: 3
  segment_pacing: 2s
  http_timeout: 15s
  max_retries: 5
  user_agent: "Custom/2.0"
sampler:
  interval_seconds: 30
catalog:
  url: "https://vendor.example.com/api/playlist"
  cache_file: streams.json
export:
  enabled: false
  data_dir: /tmp/reports
alerts:
  enabled: true
  min_success_rate: 95
`
	cfg, err := Load(writeConfig(t, body))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.False(t, cfg.Monitoring.Channels.All)
	assert.Equal(t, []int{101, 105}, cfg.Monitoring.Channels.IDs)
	assert.Equal(t, 10, cfg.Monitoring.DurationMinutes)
	assert.Equal(t, 3, cfg.Monitoring.ParallelChannels)
	assert.Equal(t, 2*time.Second, cfg.Monitoring.SegmentPacingDur)
	assert.Equal(t, 15*time.Second, cfg.Monitoring.HTTPTimeoutDur)
	assert.Equal(t, 5, cfg.Monitoring.MaxRetries)
	assert.Equal(t, "Custom/2.0", cfg.Monitoring.UserAgent)
	assert.Equal(t, 30, cfg.Sampler.IntervalSeconds)
	assert.False(t, *cfg.Export.Enabled)
	assert.Equal(t, "/tmp/reports", cfg.Export.DataDir)
	assert.True(t, cfg.Alerts.Enabled)
	assert.InDelta(t, 95.0, cfg.Alerts.MinSuccessRate, 0.001)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	_, err := Load(writeConfig(t, "monitoring:\n  segment_pacing: nonsense\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "segment_pacing")
}

func TestLoadRejectsBadCatalogURL(t *testing.T) {
	_, err := Load(writeConfig(t, "catalog:\n  url: ftp://example.com\n"))
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
