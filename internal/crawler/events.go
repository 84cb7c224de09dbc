package crawler

import (
	"time"

	"github.com/scout-crawler/scout/internal/frontier"
)

// Event describes one processed URL. Events are emitted while the crawl
// is running, in completion order.
type Event struct {
	URL       string          `json:"url"`
	Depth     int             `json:"depth"`
	Origin    frontier.Origin `json:"origin"`
	Status    int             `json:"status"`
	FromCache bool            `json:"from_cache,omitempty"`
	Denied    bool            `json:"denied,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Summary aggregates counters for a finished crawl.
type Summary struct {
	Seed       string        `json:"seed"`
	State      State         `json:"state"`
	Fetched    int64         `json:"fetched"`
	Succeeded  int64         `json:"succeeded"`
	Failed     int64         `json:"failed"`
	Denied     int64         `json:"denied"`
	Discovered int64         `json:"discovered"`
	Confirmed  int64         `json:"confirmed"`
	Skipped    int64         `json:"skipped"`
	CacheHits  int64         `json:"cache_hits"`
	Elapsed    time.Duration `json:"elapsed"`
}
