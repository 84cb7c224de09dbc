// Package robots evaluates robots.txt policy with per-host caching.
//
// Rulesets are fetched once per host on first need and cached for the
// session. When robots.txt cannot be obtained the evaluator fails closed:
// the host is denied until a valid ruleset arrives, and the fetch is
// retried at most once per session per host.
package robots

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// maxFetchAttempts bounds robots.txt fetches per host per session.
const maxFetchAttempts = 2

// Evaluator checks URLs against per-host robots.txt rulesets.
type Evaluator struct {
	client    *http.Client
	userAgent string
	respect   bool

	mu    sync.Mutex
	hosts map[string]*hostEntry
}

type hostEntry struct {
	data     *robotstxt.RobotsData
	sitemaps []string
	attempts int
}

// NewEvaluator constructs an evaluator. When respect is false every URL is
// allowed and no robots.txt is ever fetched. client may be nil.
func NewEvaluator(client *http.Client, userAgent string, respect bool) *Evaluator {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Evaluator{
		client:    client,
		userAgent: userAgent,
		respect:   respect,
		hosts:     make(map[string]*hostEntry),
	}
}

// IsAllowed reports whether the target URL may be fetched. A host whose
// robots.txt is unreachable is denied until a valid ruleset is obtained.
func (e *Evaluator) IsAllowed(target *url.URL) bool {
	if !e.respect {
		return true
	}
	if target == nil || !target.IsAbs() {
		return false
	}

	data := e.rules(target.Scheme, target.Host)
	if data == nil {
		return false
	}

	group := data.FindGroup(e.userAgent)
	if group == nil {
		return true
	}
	path := target.Path
	if path == "" {
		path = "/"
	}
	if target.RawQuery != "" {
		path += "?" + target.RawQuery
	}
	return group.Test(path)
}

// CrawlDelay returns the crawl-delay declared for our user agent on the
// given host, or zero. Callers use it to raise (never lower) the
// configured per-host delay floor.
func (e *Evaluator) CrawlDelay(scheme, host string) time.Duration {
	if !e.respect {
		return 0
	}
	data := e.rules(scheme, host)
	if data == nil {
		return 0
	}
	group := data.FindGroup(e.userAgent)
	if group == nil {
		return 0
	}
	return group.CrawlDelay
}

// Sitemaps returns sitemap URLs declared in the host's robots.txt.
func (e *Evaluator) Sitemaps(scheme, host string) []string {
	if !e.respect {
		return nil
	}
	e.rules(scheme, host)

	e.mu.Lock()
	defer e.mu.Unlock()
	entry := e.hosts[strings.ToLower(host)]
	if entry == nil {
		return nil
	}
	return entry.sitemaps
}

// rules returns the cached ruleset for a host, fetching it if this is the
// first need or the single permitted retry. nil means unavailable.
func (e *Evaluator) rules(scheme, host string) *robotstxt.RobotsData {
	host = strings.ToLower(host)

	e.mu.Lock()
	entry, ok := e.hosts[host]
	if !ok {
		entry = &hostEntry{}
		e.hosts[host] = entry
	}
	if entry.data != nil || entry.attempts >= maxFetchAttempts {
		data := entry.data
		e.mu.Unlock()
		return data
	}
	entry.attempts++
	e.mu.Unlock()

	// No lock is held across the network fetch; a concurrent caller for
	// the same host burns the retry attempt, which is acceptable.
	data, sitemaps, err := e.fetch(scheme, host)
	if err != nil {
		return nil
	}

	e.mu.Lock()
	entry.data = data
	entry.sitemaps = sitemaps
	e.mu.Unlock()
	return data
}

func (e *Evaluator) fetch(scheme, host string) (*robotstxt.RobotsData, []string, error) {
	robotsURL := scheme + "://" + host + "/robots.txt"
	req, err := http.NewRequest(http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("build robots request: %w", err)
	}
	if e.userAgent != "" {
		req.Header.Set("User-Agent", e.userAgent)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, nil, fmt.Errorf("parse robots.txt: %w", err)
	}
	return data, data.Sitemaps, nil
}
