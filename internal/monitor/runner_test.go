package monitor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hls-stream-monitor/internal/sysmon"
)

func TestRunnerChecksEveryChannel(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/master.m3u8", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("#EXTM3U\n" +
			"#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=842x480\n" +
			"media.m3u8\n"))
	})
	mux.HandleFunc("/media.m3u8", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("#EXTM3U\nseg1.ts\nseg2.ts\n"))
	})
	mux.HandleFunc("/seg1.ts", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("aaaa")) })
	mux.HandleFunc("/seg2.ts", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("bbbb")) })
	srv := httptest.NewServer(mux)
	defer srv.Close()

	var doneChannels []string
	r := &Runner{
		Client:  testClient(),
		Tracker: NewTracker(2),
		Sampler: sysmon.New(time.Hour, zerolog.Nop()),
		Poller: PollerConfig{
			SegmentPacing:      time.Millisecond,
			ManifestRetryDelay: time.Millisecond,
			StatsLogInterval:   time.Hour,
		},
		Log: zerolog.Nop(),
		OnChannelDone: func(cs *ChannelStats) {
			doneChannels = append(doneChannels, cs.ChannelName)
		},
	}

	channels := []Channel{
		{ID: 1, Name: "One", MasterURL: srv.URL + "/master.m3u8"},
		{ID: 2, Name: "Two", MasterURL: srv.URL + "/master.m3u8"},
	}
	global, _ := r.Run(context.Background(), channels, 100*time.Millisecond)

	require.Len(t, global.Channels, 2)
	assert.Equal(t, 2, global.CompletedChannels)
	assert.Equal(t, 4, global.TotalSegments) // two segments per channel
	assert.Equal(t, 4, global.SuccessfulDownloads)
	assert.ElementsMatch(t, []string{"One", "Two"}, doneChannels)
	assert.False(t, global.EndTime.IsZero())

	for _, cs := range global.Channels {
		assert.Equal(t, srv.URL+"/media.m3u8", cs.VariantURL)
	}
}

func TestRunnerSkipsUnresolvableChannel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := &Runner{
		Client:  testClient(),
		Tracker: NewTracker(1),
		Sampler: sysmon.New(time.Hour, zerolog.Nop()),
		Log:     zerolog.Nop(),
	}

	channels := []Channel{{ID: 1, Name: "Broken", MasterURL: srv.URL + "/master.m3u8"}}
	global, _ := r.Run(context.Background(), channels, 50*time.Millisecond)

	require.Len(t, global.Channels, 1)
	assert.Zero(t, global.CompletedChannels)
	assert.Zero(t, global.TotalSegments)
	assert.False(t, global.Channels[0].EndTime.IsZero())
}
