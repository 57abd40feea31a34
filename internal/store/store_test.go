package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hls-stream-monitor/internal/monitor"
)

func mockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &Store{db: mock, log: zerolog.Nop()}, mock
}

func TestNilPoolIsInert(t *testing.T) {
	s := New(nil, zerolog.Nop())
	assert.False(t, s.Enabled())

	// None of these may panic or touch a database.
	s.InsertSegment(context.Background(), "One", monitor.SegmentOutcome{})
	s.InsertChannelSummary(context.Background(), &monitor.ChannelStats{})

	stats, err := s.ChannelUptime(context.Background(), "One", 24*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalSegments)
}

func TestInsertSegment(t *testing.T) {
	s, mock := mockStore(t)

	failure := monitor.FailureKey{Class: monitor.ErrorHTTP, Code: 503}
	out := monitor.SegmentOutcome{
		Name:         "seg1.ts",
		URL:          "http://cdn/seg1.ts",
		SizeBytes:    2048,
		DownloadTime: 1500 * time.Millisecond,
		Timestamp:    time.Now(),
		HTTPStatus:   503,
		ErrorMessage: "unexpected status: 503",
		Failure:      &failure,
	}

	mock.ExpectExec("INSERT INTO segment_results").
		WithArgs("One", "seg1.ts", "http://cdn/seg1.ts", false, int64(2048),
			int64(1500), 503, "http", "503", "unexpected status: 503", out.Timestamp).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	s.InsertSegment(context.Background(), "One", out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertChannelSummary(t *testing.T) {
	s, mock := mockStore(t)

	cs := &monitor.ChannelStats{
		ChannelID:           101,
		ChannelName:         "One",
		VariantURL:          "http://cdn/480p.m3u8",
		TotalSegments:       10,
		SuccessfulDownloads: 9,
		FailedDownloads:     1,
		TotalBytes:          9 << 20,
		TotalTime:           9 * time.Second,
		StartTime:           time.Now().Add(-time.Minute),
		EndTime:             time.Now(),
	}

	mock.ExpectExec("INSERT INTO channel_runs").
		WithArgs(101, "One", "http://cdn/480p.m3u8", 10, 9, 1, int64(9<<20),
			cs.SuccessRate(), cs.AvgDownloadSpeed(), cs.StartTime, cs.EndTime).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	s.InsertChannelSummary(context.Background(), cs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChannelUptime(t *testing.T) {
	s, mock := mockStore(t)

	mock.ExpectQuery("SELECT").
		WithArgs("One", float64(86400)).
		WillReturnRows(pgxmock.NewRows([]string{"total", "ok", "failed"}).
			AddRow(int64(200), int64(190), int64(10)))

	stats, err := s.ChannelUptime(context.Background(), "One", 24*time.Hour)
	require.NoError(t, err)

	assert.Equal(t, int64(200), stats.TotalSegments)
	assert.Equal(t, int64(190), stats.Successful)
	assert.InDelta(t, 95.0, stats.UptimePercent, 0.001)
	assert.Equal(t, 24, stats.WindowHours)
	assert.NoError(t, mock.ExpectationsWereMet())
}
