package fetcher

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/scout-crawler/scout/internal/cache"
	"github.com/scout-crawler/scout/internal/config"
	"github.com/scout-crawler/scout/internal/session"
	"github.com/scout-crawler/scout/internal/urlutil"
)

// backoffCap bounds the exponential retry backoff.
const backoffCap = 30 * time.Second

// Fetcher performs HTTP requests with redirect tracking, bounded retries
// and cache consultation.
type Fetcher struct {
	client    *http.Client
	transport *http.Transport
	cfg       *config.Config
	cache     *cache.Cache
	sess      *session.Store
	logger    *slog.Logger
}

// New creates a fetcher. cache may be nil to disable caching; sess may be
// nil for a fresh anonymous session.
func New(cfg *config.Config, fetchCache *cache.Cache, sess *session.Store, logger *slog.Logger) *Fetcher {
	if sess == nil {
		sess = session.New()
	}
	if logger == nil {
		logger = slog.Default()
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if sess.HasProxies() {
		transport.Proxy = func(*http.Request) (*url.URL, error) {
			return sess.NextProxy(), nil
		}
	}

	f := &Fetcher{
		transport: transport,
		cfg:       cfg,
		cache:     fetchCache,
		sess:      sess,
		logger:    logger,
	}
	f.client = &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
		Jar:       sess.CookieJar(),
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			// Redirects are followed manually to record the chain.
			return http.ErrUseLastResponse
		},
	}
	return f
}

// RobotsClient returns a client for robots.txt requests that shares the
// fetcher's transport, cookie jar and session headers. With proxies
// configured, robots fetches route through the same rotation as page
// fetches. Redirects are followed automatically.
func (f *Fetcher) RobotsClient() *http.Client {
	return &http.Client{
		Transport: &sessionTransport{base: f.transport, sess: f.sess},
		Timeout:   f.cfg.Timeout,
		Jar:       f.sess.CookieJar(),
	}
}

// sessionTransport applies the session headers before delegating to the
// shared transport. The request is cloned; RoundTrip must not mutate its
// argument.
type sessionTransport struct {
	base http.RoundTripper
	sess *session.Store
}

func (t *sessionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	t.sess.Apply(clone)
	return t.base.RoundTrip(clone)
}

// Fetch performs one request for rawURL. A Result is returned whenever a
// final HTTP response was read, including 4xx/5xx statuses; err is non-nil
// for transport failures, redirect overflow and client-error statuses.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	start := time.Now()

	key, err := f.fingerprint(rawURL)
	if err != nil {
		return nil, &Error{Kind: KindConnection, URL: rawURL, Err: fmt.Errorf("malformed URL: %w", err)}
	}

	if f.cache != nil {
		if entry, ok := f.cache.Get(key); ok {
			f.logger.Debug("cache hit", "url", rawURL)
			return &Result{
				RequestURL:  rawURL,
				FinalURL:    rawURL,
				StatusCode:  entry.StatusCode,
				Headers:     entry.Headers,
				ContentType: contentType(entry.Headers.Get("Content-Type")),
				Body:        entry.Body,
				Attempts:    0,
				FromCache:   true,
			}, nil
		}
	}

	var (
		result   *Result
		fetchErr *Error
		attempts int
	)
	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		attempts = attempt + 1
		if attempt > 0 {
			if err := f.waitBackoff(ctx, attempt); err != nil {
				break
			}
			f.logger.Debug("retrying fetch", "url", rawURL, "attempt", attempt+1)
		}

		result, fetchErr = f.fetchOnce(ctx, rawURL)
		if fetchErr != nil && fetchErr.Retryable() {
			continue
		}
		// 5xx and 429 are transient: retry while budget remains.
		if result != nil && (result.IsServerError() || result.StatusCode == http.StatusTooManyRequests) {
			continue
		}
		break
	}

	if result != nil {
		result.ResponseTime = time.Since(start)
		result.Attempts = attempts

		if fetchErr == nil && result.IsClientError() {
			fetchErr = &Error{
				Kind:       KindHTTP4xx,
				URL:        rawURL,
				StatusCode: result.StatusCode,
				Proxied:    f.sess.HasProxies(),
			}
		}

		// Only successful responses are cached; transient failures are
		// retried on the next visit rather than pinned.
		if f.cache != nil && fetchErr == nil && result.IsSuccess() {
			f.cache.Put(&cache.Entry{
				Key:        key,
				StatusCode: result.StatusCode,
				Headers:    result.Headers,
				Body:       result.Body,
				FetchedAt:  time.Now(),
				TTL:        f.cfg.CacheTTL,
			})
		}
	}

	if fetchErr != nil {
		return result, fetchErr
	}
	return result, nil
}

// fetchOnce performs a single attempt, following redirects manually.
func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string) (*Result, *Error) {
	result := &Result{RequestURL: rawURL, Attempts: 1}
	proxied := f.sess.HasProxies()

	currentURL := rawURL
	for hop := 0; hop <= f.cfg.MaxRedirects; hop++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, currentURL, nil)
		if err != nil {
			return nil, &Error{Kind: KindConnection, URL: currentURL, Err: fmt.Errorf("malformed URL: %w", err)}
		}
		f.setRequestHeaders(req)

		resp, err := f.client.Do(req)
		if err != nil {
			return nil, classify(currentURL, err, proxied)
		}

		if resp.StatusCode >= 300 && resp.StatusCode < 400 {
			location := resp.Header.Get("Location")
			resp.Body.Close()

			result.RedirectChain = append(result.RedirectChain, RedirectHop{
				URL:        currentURL,
				StatusCode: resp.StatusCode,
				Location:   location,
			})

			if location == "" {
				// A redirect without Location is terminal.
				result.FinalURL = currentURL
				result.StatusCode = resp.StatusCode
				result.Headers = resp.Header
				return result, nil
			}

			next, err := urlutil.Resolve(currentURL, location)
			if err != nil {
				return nil, &Error{Kind: KindConnection, URL: currentURL, Err: fmt.Errorf("invalid redirect location: %w", err)}
			}
			currentURL = next
			continue
		}

		result.FinalURL = currentURL
		result.StatusCode = resp.StatusCode
		result.Headers = resp.Header
		result.ContentType = contentType(resp.Header.Get("Content-Type"))

		body, err := f.readBody(resp)
		resp.Body.Close()
		if err != nil {
			return nil, classify(currentURL, err, proxied)
		}
		result.Body = body
		return result, nil
	}

	return nil, &Error{Kind: KindTooManyRedirects, URL: rawURL, Proxied: proxied}
}

// waitBackoff sleeps for the exponential backoff with full jitter:
// base*2^(attempt-1) capped at 30s, then a uniform draw from the upper
// half of that window. A non-positive base is treated as 1ms so that a
// zero-backoff config retries promptly instead of hitting the cap.
func (f *Fetcher) waitBackoff(ctx context.Context, attempt int) error {
	base := f.cfg.RetryBackoff
	if base <= 0 {
		base = time.Millisecond
	}
	d := base * time.Duration(1<<uint(attempt-1))
	if d > backoffCap || d <= 0 {
		d = backoffCap
	}
	d = d/2 + time.Duration(rand.Int63n(int64(d/2)+1))

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Fetcher) setRequestHeaders(req *http.Request) {
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Accept-Encoding", "gzip")
	for k, v := range f.cfg.CustomHeaders {
		req.Header.Set(k, v)
	}
	f.sess.Apply(req)
}

// readBody reads the response body with gzip decoding and a size limit.
func (f *Fetcher) readBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body

	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip decode error: %w", err)
		}
		defer gzReader.Close()
		reader = gzReader
	}

	maxSize := f.cfg.MaxBodySize
	if maxSize <= 0 {
		maxSize = 10 * 1024 * 1024
	}
	return io.ReadAll(io.LimitReader(reader, maxSize))
}

// fingerprint derives the cache key for a GET of rawURL.
func (f *Fetcher) fingerprint(rawURL string) (string, error) {
	normalized, err := urlutil.Normalize(rawURL)
	if err != nil {
		return "", err
	}
	headers := http.Header{}
	for k, v := range f.cfg.CustomHeaders {
		headers.Set(k, v)
	}
	return cache.Fingerprint(http.MethodGet, normalized, headers, "Accept", "Authorization", "Cookie"), nil
}

// Close releases idle connections.
func (f *Fetcher) Close() {
	f.transport.CloseIdleConnections()
}

func contentType(value string) string {
	if idx := strings.Index(value, ";"); idx != -1 {
		return strings.TrimSpace(value[:idx])
	}
	return strings.TrimSpace(value)
}
