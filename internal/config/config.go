package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"hls-stream-monitor/internal/catalog"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Sampler    SamplerConfig    `yaml:"sampler"`
	Catalog    CatalogConfig    `yaml:"catalog"`
	Export     ExportConfig     `yaml:"export"`
	Alerts     AlertsConfig     `yaml:"alerts"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type MonitoringConfig struct {
	Channels         catalog.Selector `yaml:"channels"`          // "all" or a list of ids
	DurationMinutes  int              `yaml:"duration_minutes"`  // per-channel check window
	ParallelChannels int              `yaml:"parallel_channels"` // 1 = sequential

	SegmentPacing      string `yaml:"segment_pacing"`       // e.g. "1s"
	ManifestRetryDelay string `yaml:"manifest_retry_delay"` // e.g. "1s"
	StatsLogInterval   string `yaml:"stats_log_interval"`   // e.g. "10s"
	HTTPTimeout        string `yaml:"http_timeout"`         // e.g. "10s"

	MaxRetries   int    `yaml:"max_retries"`   // 5xx retries in the transport
	RetryBackoff string `yaml:"retry_backoff"` // e.g. "500ms"
	UserAgent    string `yaml:"user_agent"`

	// Parsed durations (filled after load)
	SegmentPacingDur      time.Duration `yaml:"-"`
	ManifestRetryDelayDur time.Duration `yaml:"-"`
	StatsLogIntervalDur   time.Duration `yaml:"-"`
	HTTPTimeoutDur        time.Duration `yaml:"-"`
	RetryBackoffDur       time.Duration `yaml:"-"`
}

type SamplerConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
}

type CatalogConfig struct {
	URL         string `yaml:"url"`
	Payload     string `yaml:"payload"`
	AgentHeader string `yaml:"agent_header"`
	CacheFile   string `yaml:"cache_file"`
}

type ExportConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	DataDir string `yaml:"data_dir"`
}

type AlertsConfig struct {
	Enabled        bool    `yaml:"enabled"`
	MinSuccessRate float64 `yaml:"min_success_rate"` // alert when a channel finishes below this
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateAndNormalize(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Server.Addr) == "" {
		cfg.Server.Addr = ":8080"
	}

	m := &cfg.Monitoring
	if m.Channels.IsZero() {
		m.Channels = catalog.Selector{All: true}
	}
	if m.DurationMinutes <= 0 {
		m.DurationMinutes = 5
	}
	if m.ParallelChannels <= 0 {
		m.ParallelChannels = 1
	}
	if strings.TrimSpace(m.SegmentPacing) == "" {
		m.SegmentPacing = "1s"
	}
	if strings.TrimSpace(m.ManifestRetryDelay) == "" {
		m.ManifestRetryDelay = "1s"
	}
	if strings.TrimSpace(m.StatsLogInterval) == "" {
		m.StatsLogInterval = "10s"
	}
	if strings.TrimSpace(m.HTTPTimeout) == "" {
		m.HTTPTimeout = "10s"
	}
	if m.MaxRetries <= 0 {
		m.MaxRetries = 3
	}
	if strings.TrimSpace(m.RetryBackoff) == "" {
		m.RetryBackoff = "500ms"
	}
	if strings.TrimSpace(m.UserAgent) == "" {
		m.UserAgent = "HLSStreamMonitor/1.0"
	}

	if cfg.Sampler.IntervalSeconds <= 0 {
		cfg.Sampler.IntervalSeconds = 60
	}

	if strings.TrimSpace(cfg.Catalog.CacheFile) == "" {
		cfg.Catalog.CacheFile = "playlist_streams.json"
	}

	if cfg.Export.Enabled == nil {
		v := true
		cfg.Export.Enabled = &v
	}
	if strings.TrimSpace(cfg.Export.DataDir) == "" {
		cfg.Export.DataDir = "./data"
	}

	if cfg.Alerts.MinSuccessRate <= 0 {
		cfg.Alerts.MinSuccessRate = 80
	}
}

func validateAndNormalize(cfg *Config) error {
	m := &cfg.Monitoring

	durations := []struct {
		name string
		raw  string
		out  *time.Duration
	}{
		{"segment_pacing", m.SegmentPacing, &m.SegmentPacingDur},
		{"manifest_retry_delay", m.ManifestRetryDelay, &m.ManifestRetryDelayDur},
		{"stats_log_interval", m.StatsLogInterval, &m.StatsLogIntervalDur},
		{"http_timeout", m.HTTPTimeout, &m.HTTPTimeoutDur},
		{"retry_backoff", m.RetryBackoff, &m.RetryBackoffDur},
	}
	for _, d := range durations {
		dur, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("config: invalid %s %q: %w", d.name, d.raw, err)
		}
		if dur <= 0 {
			return fmt.Errorf("config: %s must be > 0", d.name)
		}
		*d.out = dur
	}

	if cfg.Catalog.URL != "" &&
		!strings.HasPrefix(cfg.Catalog.URL, "http://") &&
		!strings.HasPrefix(cfg.Catalog.URL, "https://") {
		return fmt.Errorf("config: catalog url must start with http:// or https://")
	}

	if cfg.Alerts.MinSuccessRate > 100 {
		return fmt.Errorf("config: alerts min_success_rate must be <= 100")
	}

	return nil
}
