// Package fetcher performs single HTTP(S) requests with timeout, retry
// and redirect tracking, consulting the fetch cache before network I/O.
package fetcher

import (
	"net/http"
	"time"
)

// Result represents the outcome of fetching a URL.
type Result struct {
	// Original requested URL
	RequestURL string

	// Final URL after redirects
	FinalURL string

	// HTTP status code
	StatusCode int

	// Response headers
	Headers http.Header

	// Content-Type without parameters
	ContentType string

	// Response body
	Body []byte

	// Redirect chain (one hop per followed redirect)
	RedirectChain []RedirectHop

	// Total time fetching, including retries
	ResponseTime time.Duration

	// Number of attempts made (1 = no retries)
	Attempts int

	// Whether the response was served from the cache
	FromCache bool
}

// RedirectHop records a single followed redirect.
type RedirectHop struct {
	URL        string
	StatusCode int
	Location   string
}

// IsSuccess returns true for 2xx responses.
func (r *Result) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// IsClientError returns true for 4xx responses.
func (r *Result) IsClientError() bool {
	return r.StatusCode >= 400 && r.StatusCode < 500
}

// IsServerError returns true for 5xx responses.
func (r *Result) IsServerError() bool {
	return r.StatusCode >= 500 && r.StatusCode < 600
}
