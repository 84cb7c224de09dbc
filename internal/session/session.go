// Package session holds per-crawl request state: cookies, extra headers
// and proxy rotation. A Store is scoped to one crawl session and passed
// explicitly to the fetcher; there is no package-level mutable state.
package session

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"

	"github.com/google/uuid"
)

// Store carries the opaque request state supplied by external session and
// proxy collaborators.
type Store struct {
	// ID identifies the session in logs and events.
	ID string

	jar *cookiejar.Jar

	mu      sync.Mutex
	headers map[string]string
	proxies []*url.URL
	next    int
}

// New creates an empty session store.
func New() *Store {
	jar, _ := cookiejar.New(nil)
	return &Store{
		ID:      uuid.NewString(),
		jar:     jar,
		headers: make(map[string]string),
	}
}

// CookieJar returns the session cookie jar for use by an http.Client.
func (s *Store) CookieJar() http.CookieJar {
	return s.jar
}

// SetHeader records a header applied to every outbound request.
func (s *Store) SetHeader(name, value string) {
	s.mu.Lock()
	s.headers[name] = value
	s.mu.Unlock()
}

// SetHeaders records a batch of headers.
func (s *Store) SetHeaders(headers map[string]string) {
	s.mu.Lock()
	for k, v := range headers {
		s.headers[k] = v
	}
	s.mu.Unlock()
}

// Apply injects the session headers into a request.
func (s *Store) Apply(req *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}
}

// AddProxy appends a proxy endpoint to the rotation. Invalid URLs are
// rejected with the parse error.
func (s *Store) AddProxy(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.proxies = append(s.proxies, u)
	s.mu.Unlock()
	return nil
}

// NextProxy returns the next proxy in round-robin order, or nil when no
// proxies are configured.
func (s *Store) NextProxy() *url.URL {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.proxies) == 0 {
		return nil
	}
	p := s.proxies[s.next%len(s.proxies)]
	s.next++
	return p
}

// HasProxies reports whether any proxy endpoints are configured.
func (s *Store) HasProxies() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.proxies) > 0
}
