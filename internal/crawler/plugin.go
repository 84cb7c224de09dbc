package crawler

import "github.com/scout-crawler/scout/internal/fetcher"

// PagePlugin observes or rewrites fetched pages before link extraction.
// Plugins run in registration order; a plugin error is logged and skipped,
// it never aborts the crawl or suppresses later plugins.
type PagePlugin interface {
	Name() string
	ProcessPage(res *fetcher.Result) (*fetcher.Result, error)
}
