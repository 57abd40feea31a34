// Package catalog retrieves the channel list from the vendor playlist API
// and caches it on disk so runs can start without a reachable vendor.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Channel is one entry of the playlist catalog.
type Channel struct {
	ID        int
	Name      string
	MasterURL string
}

// Service fetches and caches the channel catalog.
type Service struct {
	URL         string // full vendor endpoint including query parameters
	Payload     string // opaque form body; empty disables fetching
	AgentHeader string // value for the x-lhd-agent header
	CacheFile   string
	Client      *http.Client
	Log         zerolog.Logger
}

// vendor response shape
type apiResponse struct {
	Channels []apiChannel `json:"channels"`
}

type apiChannel struct {
	OurID  int    `json:"our_id"`
	NameRU string `json:"name_ru"`
	Title  string `json:"title"`
	URL    string `json:"url"`
	Stream struct {
		Common string `json:"common"`
	} `json:"stream"`
}

// cacheEntry keeps the on-disk format the vendor-facing tools already use.
type cacheEntry struct {
	OurID        int    `json:"our_id"`
	NameRU       string `json:"name_ru"`
	StreamCommon string `json:"stream_common"`
	URL          string `json:"url"`
}

// Channels returns the catalog, fetching from the vendor when configured and
// falling back to the on-disk cache when the fetch fails or is disabled.
func (s *Service) Channels(ctx context.Context) ([]Channel, error) {
	if s.URL != "" && s.Payload != "" {
		channels, err := s.fetch(ctx)
		if err == nil {
			if err := s.save(channels); err != nil {
				s.Log.Warn().Err(err).Msg("failed to cache channel catalog")
			}
			return channels, nil
		}
		s.Log.Warn().Err(err).Msg("catalog fetch failed, falling back to cache")
	}
	return s.load()
}

func (s *Service) fetch(ctx context.Context) ([]Channel, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, strings.NewReader(s.Payload))
	if err != nil {
		return nil, fmt.Errorf("catalog: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if s.AgentHeader != "" {
		req.Header.Set("x-lhd-agent", s.AgentHeader)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("catalog: unexpected status %d", resp.StatusCode)
	}

	var decoded apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("catalog: decode response: %w", err)
	}
	if len(decoded.Channels) == 0 {
		return nil, errors.New("catalog: response contains no channels")
	}

	channels := make([]Channel, 0, len(decoded.Channels))
	for _, item := range decoded.Channels {
		name := item.NameRU
		if name == "" {
			name = item.Title
		}
		master := strings.TrimSpace(item.Stream.Common)
		if master == "" {
			master = strings.TrimSpace(item.URL)
		}
		if master == "" {
			continue
		}
		channels = append(channels, Channel{ID: item.OurID, Name: name, MasterURL: master})
	}
	if len(channels) == 0 {
		return nil, errors.New("catalog: no channels with a stream url")
	}

	s.Log.Info().Int("channels", len(channels)).Msg("channel catalog fetched")
	return channels, nil
}

func (s *Service) save(channels []Channel) error {
	entries := make([]cacheEntry, 0, len(channels))
	for _, ch := range channels {
		entries = append(entries, cacheEntry{
			OurID:        ch.ID,
			NameRU:       ch.Name,
			StreamCommon: ch.MasterURL,
		})
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.CacheFile, data, 0o644)
}

func (s *Service) load() ([]Channel, error) {
	data, err := os.ReadFile(s.CacheFile)
	if err != nil {
		return nil, fmt.Errorf("catalog: read cache %s: %w", s.CacheFile, err)
	}
	var entries []cacheEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("catalog: parse cache %s: %w", s.CacheFile, err)
	}

	channels := make([]Channel, 0, len(entries))
	for _, e := range entries {
		master := e.StreamCommon
		if master == "" {
			master = e.URL
		}
		if master == "" {
			continue
		}
		channels = append(channels, Channel{ID: e.OurID, Name: e.NameRU, MasterURL: master})
	}
	return channels, nil
}
