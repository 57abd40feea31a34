package monitor

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"hls-stream-monitor/internal/hls"
)

// Playlists are small; anything past this is not a playlist.
const maxPlaylistBytes = 4 << 20

// PlaylistFetchError reports a master or media playlist that could not be
// retrieved or answered with a non-2xx status. A channel hitting it is
// skipped for the cycle, never fatal to the run.
type PlaylistFetchError struct {
	URL        string
	StatusCode int // 0 when the request never produced a response
	Err        error
}

func (e *PlaylistFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch playlist %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch playlist %s: %v", e.URL, e.Err)
}

func (e *PlaylistFetchError) Unwrap() error { return e.Err }

// fetchText retrieves a playlist body as text.
func fetchText(ctx context.Context, client *http.Client, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &PlaylistFetchError{URL: url, Err: err}
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", &PlaylistFetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", &PlaylistFetchError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPlaylistBytes))
	if err != nil {
		return "", &PlaylistFetchError{URL: url, Err: err}
	}
	return string(body), nil
}

// ResolveVariant fetches the master playlist at masterURL and returns the URL
// of its best media variant (highest bandwidth, resolution as tie-break).
// A playlist with no #EXT-X-STREAM-INF entries is already a media playlist,
// so masterURL is returned unchanged.
func ResolveVariant(ctx context.Context, client *http.Client, masterURL string) (string, error) {
	text, err := fetchText(ctx, client, masterURL)
	if err != nil {
		return "", err
	}

	variants := hls.ParseMaster(text, masterURL)
	if len(variants) == 0 {
		return masterURL, nil
	}
	return hls.BestVariant(variants), nil
}
