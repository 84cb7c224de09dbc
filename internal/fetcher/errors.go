package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// Kind classifies fetch failures.
type Kind string

const (
	// KindTimeout covers deadline and read timeouts. Retryable.
	KindTimeout Kind = "TIMEOUT"

	// KindConnection covers dial, DNS and TLS failures. Retryable.
	KindConnection Kind = "CONNECTION"

	// KindHTTP4xx covers definitive client-error statuses. Not retried
	// (429 is retried before being reported under this kind).
	KindHTTP4xx Kind = "HTTP_4XX"

	// KindTooManyRedirects means the redirect hop bound was exceeded.
	KindTooManyRedirects Kind = "TOO_MANY_REDIRECTS"
)

// Error is a task-level fetch failure. It never aborts the crawl; the
// coordinator records it against the task and continues.
type Error struct {
	Kind Kind
	URL  string

	// StatusCode is set for KindHTTP4xx.
	StatusCode int

	// Proxied is set when the request was routed through a proxy, so
	// proxy-connection failures can be told apart from target failures.
	Proxied bool

	Err error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: %s (status %d)", e.URL, e.Kind, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is transient.
func (e *Error) Retryable() bool {
	return e.Kind == KindTimeout || e.Kind == KindConnection
}

// classify maps a transport error to a fetch error kind.
func classify(rawURL string, err error, proxied bool) *Error {
	kind := KindConnection

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		kind = KindTimeout
	}

	return &Error{Kind: kind, URL: rawURL, Proxied: proxied, Err: err}
}
