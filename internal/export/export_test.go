package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hls-stream-monitor/internal/monitor"
	"hls-stream-monitor/internal/sysmon"
)

func sampleStats() *monitor.GlobalStats {
	tr := monitor.NewTracker(1)
	cs := tr.StartChannel(monitor.Channel{ID: 101, Name: "One", MasterURL: "http://cdn/101/master.m3u8"})
	tr.SetVariant(cs, "http://cdn/101/480p.m3u8")

	tr.RecordOutcome(cs, monitor.SegmentOutcome{
		Name: "seg1.ts", Success: true, SizeBytes: 1 << 20,
		DownloadTime: time.Second, Timestamp: time.Now(),
	})
	tr.RecordOutcome(cs, monitor.SegmentOutcome{
		Name: "seg2.ts", Timestamp: time.Now(),
		Failure: &monitor.FailureKey{Class: monitor.ErrorHTTP, Code: 503},
	})
	tr.FinishChannel(cs, true)
	return tr.Finalize()
}

func TestBuildReport(t *testing.T) {
	rep := BuildReport(sampleStats(), sysmon.Summary{Samples: 3, CPUAverage: 12.5})

	assert.Equal(t, 1, rep.Summary.TotalChannels)
	assert.Equal(t, 2, rep.Summary.TotalSegments)
	assert.Equal(t, 1, rep.Summary.SuccessfulDownloads)
	assert.InDelta(t, 50.0, rep.Summary.SuccessRate, 0.001)
	assert.Equal(t, int64(1), rep.Summary.ErrorBreakdown["http"]["503"])
	assert.Equal(t, 3, rep.Resources.Samples)

	require.Len(t, rep.Channels, 1)
	ch := rep.Channels[0]
	assert.Equal(t, 101, ch.ChannelID)
	assert.Equal(t, "http://cdn/101/480p.m3u8", ch.VariantURL)
	assert.Equal(t, int64(1), ch.ErrorBreakdown["http"]["503"])
}

func TestWriteJSON(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteJSON(dir, BuildReport(sampleStats(), sysmon.Summary{}))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded Report
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 2, decoded.Summary.TotalSegments)
	require.Len(t, decoded.Channels, 1)
	assert.Equal(t, "One", decoded.Channels[0].Name)
}

func TestWriteCSV(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteCSV(dir, BuildReport(sampleStats(), sysmon.Summary{}))
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2) // header + one channel

	assert.Equal(t, "channel_id", rows[0][0])
	assert.Equal(t, "101", rows[1][0])
	assert.Equal(t, "One", rows[1][1])
}
