package monitor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"
)

// classifyTransportError buckets a client.Do failure, which by definition
// produced no HTTP response, into the network class with a stable kind name.
func classifyTransportError(err error) FailureKey {
	return FailureKey{Class: ErrorNetwork, Kind: errorKind(err)}
}

// classifyReadError buckets a failure while streaming the response body:
// network-ish faults stay in the network class, anything else is critical.
func classifyReadError(err error) FailureKey {
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return FailureKey{Class: ErrorNetwork, Kind: errorKind(err)}
	}
	return FailureKey{Class: ErrorCritical, Kind: errorKind(err)}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, syscall.ECONNREFUSED):
		return "connection_refused"
	case errors.Is(err, syscall.ECONNRESET):
		return "connection_reset"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "dns"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}

	// Fall back to the innermost error's type name.
	inner := err
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		inner = urlErr.Err
	}
	for {
		next := errors.Unwrap(inner)
		if next == nil {
			break
		}
		inner = next
	}
	kind := fmt.Sprintf("%T", inner)
	kind = strings.TrimPrefix(kind, "*")
	if kind == "errors.errorString" || kind == "fmt.wrapError" {
		return "error"
	}
	return kind
}
