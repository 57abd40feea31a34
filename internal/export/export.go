// Package export writes the final run report to disk as JSON and CSV.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"hls-stream-monitor/internal/monitor"
	"hls-stream-monitor/internal/sysmon"
)

// Report is the serialisable form of one finished run.
type Report struct {
	GeneratedAt string          `json:"generated_at"`
	Summary     RunSummary      `json:"summary"`
	Channels    []ChannelReport `json:"channels"`
	Resources   sysmon.Summary  `json:"resources"`
}

type RunSummary struct {
	TotalChannels       int                         `json:"total_channels"`
	CompletedChannels   int                         `json:"completed_channels"`
	TotalSegments       int                         `json:"total_segments"`
	SuccessfulDownloads int                         `json:"successful_downloads"`
	FailedDownloads     int                         `json:"failed_downloads"`
	SuccessRate         float64                     `json:"success_rate"`
	TotalBytes          int64                       `json:"total_bytes"`
	DurationSeconds     float64                     `json:"duration_seconds"`
	ErrorBreakdown      map[string]map[string]int64 `json:"error_breakdown"`
}

type ChannelReport struct {
	ChannelID           int                         `json:"channel_id"`
	Name                string                      `json:"name"`
	MasterURL           string                      `json:"master_url"`
	VariantURL          string                      `json:"variant_url"`
	TotalSegments       int                         `json:"total_segments"`
	SuccessfulDownloads int                         `json:"successful_downloads"`
	FailedDownloads     int                         `json:"failed_downloads"`
	SuccessRate         float64                     `json:"success_rate"`
	TotalBytes          int64                       `json:"total_bytes"`
	AvgSpeedMBps        float64                     `json:"avg_speed_mbps"`
	DurationSeconds     float64                     `json:"duration_seconds"`
	ErrorBreakdown      map[string]map[string]int64 `json:"error_breakdown"`
}

// BuildReport flattens the run's stats and resource summary into a Report.
func BuildReport(gs *monitor.GlobalStats, res sysmon.Summary) Report {
	rep := Report{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Summary: RunSummary{
			TotalChannels:       gs.TotalChannels,
			CompletedChannels:   gs.CompletedChannels,
			TotalSegments:       gs.TotalSegments,
			SuccessfulDownloads: gs.SuccessfulDownloads,
			FailedDownloads:     gs.FailedDownloads,
			SuccessRate:         gs.SuccessRate(),
			TotalBytes:          gs.TotalBytes,
			DurationSeconds:     gs.Duration().Seconds(),
			ErrorBreakdown:      monitor.ErrorBreakdown(gs.ErrorCounts),
		},
		Resources: res,
	}

	rep.Channels = make([]ChannelReport, 0, len(gs.Channels))
	for _, cs := range gs.Channels {
		rep.Channels = append(rep.Channels, ChannelReport{
			ChannelID:           cs.ChannelID,
			Name:                cs.ChannelName,
			MasterURL:           cs.MasterURL,
			VariantURL:          cs.VariantURL,
			TotalSegments:       cs.TotalSegments,
			SuccessfulDownloads: cs.SuccessfulDownloads,
			FailedDownloads:     cs.FailedDownloads,
			SuccessRate:         cs.SuccessRate(),
			TotalBytes:          cs.TotalBytes,
			AvgSpeedMBps:        cs.AvgDownloadSpeed(),
			DurationSeconds:     cs.Duration().Seconds(),
			ErrorBreakdown:      monitor.ErrorBreakdown(cs.ErrorCounts),
		})
	}
	return rep
}

// WriteJSON writes the report under dataDir/json with a timestamped name and
// returns the file path.
func WriteJSON(dataDir string, rep Report) (string, error) {
	dir := filepath.Join(dataDir, "json")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("export: create %s: %w", dir, err)
	}

	path := filepath.Join(dir, "hls_check_"+timestamp()+".json")
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "", fmt.Errorf("export: marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("export: write %s: %w", path, err)
	}
	return path, nil
}

// WriteCSV writes one row per channel under dataDir/csv and returns the file
// path.
func WriteCSV(dataDir string, rep Report) (string, error) {
	dir := filepath.Join(dataDir, "csv")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("export: create %s: %w", dir, err)
	}

	path := filepath.Join(dir, "hls_check_"+timestamp()+".csv")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("export: create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{
		"channel_id", "name", "variant_url",
		"total_segments", "successful", "failed",
		"success_rate", "total_bytes", "avg_speed_mbps", "duration_seconds",
	}
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("export: write csv header: %w", err)
	}
	for _, ch := range rep.Channels {
		row := []string{
			strconv.Itoa(ch.ChannelID),
			ch.Name,
			ch.VariantURL,
			strconv.Itoa(ch.TotalSegments),
			strconv.Itoa(ch.SuccessfulDownloads),
			strconv.Itoa(ch.FailedDownloads),
			strconv.FormatFloat(ch.SuccessRate, 'f', 2, 64),
			strconv.FormatInt(ch.TotalBytes, 10),
			strconv.FormatFloat(ch.AvgSpeedMBps, 'f', 3, 64),
			strconv.FormatFloat(ch.DurationSeconds, 'f', 1, 64),
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("export: write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("export: flush csv: %w", err)
	}
	return path, nil
}

func timestamp() string {
	return time.Now().Format("20060102_150405")
}
