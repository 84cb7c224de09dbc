// Package testutil provides a configurable HTTP server for crawler tests.
package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// Page is a canned response served for one path.
type Page struct {
	Content     string
	ContentType string
	StatusCode  int
	Headers     map[string]string
}

// Server wraps httptest.Server with per-path pages, delays, errors,
// redirects and hit counting. Safe for concurrent use.
type Server struct {
	HTTP *httptest.Server

	mu        sync.RWMutex
	pages     map[string]*Page
	delays    map[string]time.Duration
	errors    map[string]int
	hits      map[string]int
	redirects map[string]string
}

// NewServer starts a test server with no pages; unknown paths return 404.
func NewServer() *Server {
	s := &Server{
		pages:     make(map[string]*Page),
		delays:    make(map[string]time.Duration),
		errors:    make(map[string]int),
		hits:      make(map[string]int),
		redirects: make(map[string]string),
	}
	s.HTTP = httptest.NewServer(http.HandlerFunc(s.handler))
	return s
}

func (s *Server) handler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	s.mu.Lock()
	s.hits[path]++
	s.mu.Unlock()

	s.mu.RLock()
	delay := s.delays[path]
	errCode := s.errors[path]
	redirect := s.redirects[path]
	page := s.pages[path]
	s.mu.RUnlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if redirect != "" {
		http.Redirect(w, r, redirect, http.StatusMovedPermanently)
		return
	}
	if errCode > 0 {
		w.WriteHeader(errCode)
		return
	}
	if page != nil {
		for k, v := range page.Headers {
			w.Header().Set(k, v)
		}
		ct := page.ContentType
		if ct == "" {
			ct = "text/html; charset=utf-8"
		}
		w.Header().Set("Content-Type", ct)
		if page.StatusCode > 0 {
			w.WriteHeader(page.StatusCode)
		}
		io.WriteString(w, page.Content)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

// AddPage registers an HTML page with status 200.
func (s *Server) AddPage(path, content string) {
	s.AddPageWithType(path, content, "text/html; charset=utf-8")
}

// AddPageWithType registers a page with an explicit content type.
func (s *Server) AddPageWithType(path, content, contentType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[path] = &Page{Content: content, ContentType: contentType, StatusCode: 200}
}

// AddPageWithStatus registers an HTML page with an explicit status code.
func (s *Server) AddPageWithStatus(path, content string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[path] = &Page{Content: content, ContentType: "text/html; charset=utf-8", StatusCode: status}
}

// SetRobots serves body as /robots.txt.
func (s *Server) SetRobots(body string) {
	s.AddPageWithType("/robots.txt", body, "text/plain")
}

// SetDelay delays responses for a path.
func (s *Server) SetDelay(path string, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[path] = delay
}

// SetError makes a path return a bare status code.
func (s *Server) SetError(path string, statusCode int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors[path] = statusCode
}

// SetRedirect makes a path redirect with 301.
func (s *Server) SetRedirect(from, to string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.redirects[from] = to
}

// Hits returns the number of requests served for a path.
func (s *Server) Hits(path string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hits[path]
}

// AllHits returns a copy of the per-path hit counts.
func (s *Server) AllHits() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int, len(s.hits))
	for k, v := range s.hits {
		out[k] = v
	}
	return out
}

// URL returns the base URL of the server.
func (s *Server) URL() string {
	return s.HTTP.URL
}

// Close shuts the server down.
func (s *Server) Close() {
	s.HTTP.Close()
}

// BuildSite installs a small site: a home page linking to /a and /b,
// where /a links further to /a/deep. Useful for depth and dedup tests.
func (s *Server) BuildSite() {
	s.AddPage("/", `<!DOCTYPE html>
<html>
<head><title>Home</title></head>
<body>
	<a href="/a">A</a>
	<a href="/b">B</a>
	<a href="/a">A again</a>
</body>
</html>`)
	s.AddPage("/a", `<html><body><a href="/a/deep">Deep</a><a href="/">Home</a></body></html>`)
	s.AddPage("/b", `<html><body><a href="/b?x=1&a=2">Query</a></body></html>`)
	s.AddPage("/a/deep", `<html><body>deep page</body></html>`)
}
