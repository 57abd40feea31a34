package monitor

import (
	"io"
	"net"
	"net/http"
	"time"
)

// ClientConfig configures the shared HTTP client used for playlist and
// segment fetches.
type ClientConfig struct {
	Timeout         time.Duration
	UserAgent       string
	MaxRetries      int           // retries on 500/502/503/504, GET only
	RetryBackoff    time.Duration // fixed delay between retries
	MaxIdleConns    int
	IdleConnTimeout time.Duration
}

// NewClient returns a reusable HTTP client for all fetches. Responses with
// status 500/502/503/504 are retried up to MaxRetries times with a fixed
// backoff; retrying lives in the transport so callers see only the final
// response.
func NewClient(cfg ClientConfig) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,

		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,

		ForceAttemptHTTP2:     true,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Transport: retryRoundTripper{
			rt:         transport,
			userAgent:  cfg.UserAgent,
			maxRetries: cfg.MaxRetries,
			backoff:    cfg.RetryBackoff,
		},
		Timeout: cfg.Timeout, // hard safety net (per request ctx should still be used)
	}
}

// retryRoundTripper injects a User-Agent into every request and retries GETs
// that come back with a retryable 5xx status.
type retryRoundTripper struct {
	rt         http.RoundTripper
	userAgent  string
	maxRetries int
	backoff    time.Duration
}

func (r retryRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" && r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	resp, err := r.rt.RoundTrip(req)
	if req.Method != http.MethodGet {
		return resp, err
	}

	for attempt := 0; attempt < r.maxRetries; attempt++ {
		if err != nil || !retryableStatus(resp.StatusCode) {
			return resp, err
		}

		// Drain so the connection can be reused.
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()

		if r.backoff > 0 {
			timer := time.NewTimer(r.backoff)
			select {
			case <-req.Context().Done():
				timer.Stop()
				return nil, req.Context().Err()
			case <-timer.C:
			}
		}
		resp, err = r.rt.RoundTrip(req)
	}
	return resp, err
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
