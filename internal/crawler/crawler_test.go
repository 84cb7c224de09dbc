package crawler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scout-crawler/scout/internal/config"
	"github.com/scout-crawler/scout/internal/fetcher"
	"github.com/scout-crawler/scout/internal/frontier"
	"github.com/scout-crawler/scout/internal/testutil"
	"github.com/scout-crawler/scout/internal/urlutil"
)

func testConfig(seed string) *config.Config {
	cfg := config.Default()
	cfg.Seed = seed
	cfg.Delay = 0
	cfg.RequestsPerSecond = 0
	cfg.Timeout = 2 * time.Second
	cfg.MaxRetries = 0
	cfg.RetryBackoff = time.Millisecond
	cfg.RespectRobots = false
	cfg.GracePeriod = 100 * time.Millisecond
	return cfg
}

func drainEvents(c *Crawler) <-chan []Event {
	out := make(chan []Event, 1)
	go func() {
		var evs []Event
		for ev := range c.Events() {
			evs = append(evs, ev)
		}
		out <- evs
	}()
	return out
}

func TestCrawlDepthLimit(t *testing.T) {
	srv := testutil.NewServer()
	defer srv.Close()
	srv.BuildSite()

	cfg := testConfig(srv.URL())
	cfg.MaxDepth = 1
	c, err := New(cfg, nil)
	require.NoError(t, err)
	evsCh := drainEvents(c)

	summary, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, summary.State)
	assert.Equal(t, int64(3), summary.Fetched, "seed plus two depth-1 links")
	assert.Equal(t, 1, srv.Hits("/"))
	assert.Equal(t, 1, srv.Hits("/a"))
	assert.Equal(t, 1, srv.Hits("/b"))
	assert.Equal(t, 0, srv.Hits("/a/deep"), "depth 2 is beyond the limit")

	evs := <-evsCh
	assert.Len(t, evs, 3)
	assert.Equal(t, frontier.OriginSeed, evs[0].Origin)
	assert.Equal(t, 0, evs[0].Depth)
	assert.Equal(t, 200, evs[0].Status)
}

func TestCrawlDeduplicatesURLs(t *testing.T) {
	srv := testutil.NewServer()
	defer srv.Close()
	srv.BuildSite()

	cfg := testConfig(srv.URL())
	cfg.MaxDepth = 3
	c, err := New(cfg, nil)
	require.NoError(t, err)
	go func() {
		for range c.Events() {
		}
	}()

	summary, err := c.Run(context.Background())
	require.NoError(t, err)

	// "/" is linked from /a and "/a" appears twice on the home page; each
	// is still fetched exactly once.
	assert.Equal(t, 1, srv.Hits("/"))
	assert.Equal(t, 1, srv.Hits("/a"))
	assert.Greater(t, summary.Skipped, int64(0))
}

func TestCrawlMaxURLs(t *testing.T) {
	srv := testutil.NewServer()
	defer srv.Close()
	srv.BuildSite()

	cfg := testConfig(srv.URL())
	cfg.MaxDepth = 3
	cfg.MaxURLs = 2
	c, err := New(cfg, nil)
	require.NoError(t, err)
	go func() {
		for range c.Events() {
		}
	}()

	summary, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, summary.State)
	assert.Equal(t, int64(2), summary.Fetched, "the URL limit caps accepted tasks")
	assert.Equal(t, int64(2), summary.Discovered)
}

func TestCrawlSeedOnly(t *testing.T) {
	srv := testutil.NewServer()
	defer srv.Close()
	srv.BuildSite()

	cfg := testConfig(srv.URL())
	cfg.MaxDepth = 0
	c, err := New(cfg, nil)
	require.NoError(t, err)
	go func() {
		for range c.Events() {
		}
	}()

	summary, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), summary.Fetched)
	assert.Equal(t, 0, srv.Hits("/a"))
}

func TestCrawlRespectsRobots(t *testing.T) {
	srv := testutil.NewServer()
	defer srv.Close()
	srv.SetRobots("User-agent: *\nDisallow: /private\n")
	srv.AddPage("/", `<html><body><a href="/private">secret</a><a href="/public">open</a></body></html>`)
	srv.AddPage("/private", `<html><body>hidden</body></html>`)
	srv.AddPage("/public", `<html><body>fine</body></html>`)

	cfg := testConfig(srv.URL())
	cfg.MaxDepth = 1
	cfg.RespectRobots = true
	c, err := New(cfg, nil)
	require.NoError(t, err)
	evsCh := drainEvents(c)

	summary, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, srv.Hits("/private"), "disallowed path is never fetched")
	assert.Equal(t, 1, srv.Hits("/public"))
	assert.Equal(t, int64(1), summary.Denied)

	var denied []string
	for _, ev := range <-evsCh {
		if ev.Denied {
			denied = append(denied, ev.URL)
		}
	}
	assert.Equal(t, []string{srv.URL() + "/private"}, denied)
}

func TestCrawlFailedSeed(t *testing.T) {
	cfg := testConfig("http://example.com")
	cfg.MaxDepth = -1 // invalid
	_, err := New(cfg, nil)
	require.Error(t, err)

	var cerr *config.ConfigError
	assert.ErrorAs(t, err, &cerr)
}

func TestCrawlErrorsAreNotFatal(t *testing.T) {
	srv := testutil.NewServer()
	defer srv.Close()
	srv.AddPage("/", `<html><body><a href="/broken">x</a><a href="/ok">y</a></body></html>`)
	srv.SetError("/broken", 500)
	srv.AddPage("/ok", `<html><body>ok</body></html>`)

	cfg := testConfig(srv.URL())
	cfg.MaxDepth = 1
	c, err := New(cfg, nil)
	require.NoError(t, err)
	go func() {
		for range c.Events() {
		}
	}()

	summary, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, summary.State)
	assert.Equal(t, int64(2), summary.Succeeded)
	assert.Equal(t, int64(1), summary.Failed)
	assert.Equal(t, 1, srv.Hits("/ok"), "a failing sibling does not stop the crawl")
}

func TestCrawlFuzzing(t *testing.T) {
	srv := testutil.NewServer()
	defer srv.Close()
	srv.AddPage("/", `<html><body>bare page, no links</body></html>`)
	srv.AddPage("/admin", `<html><body>admin panel</body></html>`)
	// /backup is not registered: 404, unconfirmed.

	wordlist := filepath.Join(t.TempDir(), "words.txt")
	require.NoError(t, os.WriteFile(wordlist, []byte("admin\nbackup\n"), 0o600))

	cfg := testConfig(srv.URL())
	cfg.MaxDepth = 1
	cfg.Fuzzing.Enabled = true
	cfg.Fuzzing.WordlistPath = wordlist
	cfg.Fuzzing.Extensions = nil
	c, err := New(cfg, nil)
	require.NoError(t, err)
	evsCh := drainEvents(c)

	summary, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, srv.Hits("/admin"))
	assert.Equal(t, 1, srv.Hits("/backup"))
	assert.Equal(t, int64(1), summary.Confirmed, "only /admin responds with a confirming status")

	var fuzzStatuses []int
	for _, ev := range <-evsCh {
		if ev.Origin == frontier.OriginFuzz {
			fuzzStatuses = append(fuzzStatuses, ev.Status)
		}
	}
	assert.ElementsMatch(t, []int{200, 404}, fuzzStatuses)
}

func TestCrawlScriptScanning(t *testing.T) {
	srv := testutil.NewServer()
	defer srv.Close()
	srv.AddPage("/", `<html><body><script src="/app.js"></script></body></html>`)
	srv.AddPageWithType("/app.js", `fetch("/api/users");`, "application/javascript")
	srv.AddPageWithType("/api/users", `[]`, "application/json")

	cfg := testConfig(srv.URL())
	cfg.MaxDepth = 2
	c, err := New(cfg, nil)
	require.NoError(t, err)
	go func() {
		for range c.Events() {
		}
	}()

	_, err = c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, srv.Hits("/app.js"))
	assert.Equal(t, 1, srv.Hits("/api/users"), "endpoints found in scripts are crawled")
}

func TestCrawlCancellation(t *testing.T) {
	srv := testutil.NewServer()
	defer srv.Close()
	srv.BuildSite()
	srv.SetDelay("/a", 300*time.Millisecond)
	srv.SetDelay("/b", 300*time.Millisecond)

	cfg := testConfig(srv.URL())
	cfg.MaxDepth = 3
	cfg.GracePeriod = 50 * time.Millisecond
	c, err := New(cfg, nil)
	require.NoError(t, err)
	go func() {
		for range c.Events() {
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	summary, err := c.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, StateCancelled, summary.State)
	assert.Less(t, time.Since(start), 2*time.Second, "cancellation does not wait for the full crawl")

	seed, err := urlutil.Normalize(srv.URL())
	require.NoError(t, err)
	aborted, err := urlutil.Normalize(srv.URL() + "/a")
	require.NoError(t, err)
	assert.True(t, c.front.HasVisited(seed), "seed fetch completed before cancellation")
	assert.False(t, c.front.HasVisited(aborted), "aborted fetch must not count as visited")
}

func TestCrawlPauseResume(t *testing.T) {
	srv := testutil.NewServer()
	defer srv.Close()
	srv.BuildSite()
	srv.SetDelay("/", 100*time.Millisecond)

	cfg := testConfig(srv.URL())
	cfg.MaxDepth = 1
	c, err := New(cfg, nil)
	require.NoError(t, err)
	go func() {
		for range c.Events() {
		}
	}()

	type runResult struct {
		summary *Summary
		err     error
	}
	done := make(chan runResult, 1)
	go func() {
		s, err := c.Run(context.Background())
		done <- runResult{s, err}
	}()

	// Pause while the delayed seed fetch is in flight.
	time.Sleep(30 * time.Millisecond)
	c.Pause()
	assert.Equal(t, StatePaused, c.State())

	c.Resume()
	assert.Equal(t, StateRunning, c.State())

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Equal(t, StateCompleted, r.summary.State)
		assert.Equal(t, int64(3), r.summary.Fetched)
	case <-time.After(5 * time.Second):
		t.Fatal("crawl did not finish after resume")
	}
}

func TestCrawlRunsOnlyOnce(t *testing.T) {
	srv := testutil.NewServer()
	defer srv.Close()
	srv.AddPage("/", `<html></html>`)

	cfg := testConfig(srv.URL())
	cfg.MaxDepth = 0
	c, err := New(cfg, nil)
	require.NoError(t, err)
	go func() {
		for range c.Events() {
		}
	}()

	_, err = c.Run(context.Background())
	require.NoError(t, err)

	_, err = c.Run(context.Background())
	assert.Error(t, err)
}

// rewritingPlugin swaps the fetched body so link extraction sees the
// plugin's output rather than the wire bytes.
type rewritingPlugin struct{ body string }

func (p *rewritingPlugin) Name() string { return "rewriter" }

func (p *rewritingPlugin) ProcessPage(res *fetcher.Result) (*fetcher.Result, error) {
	out := *res
	out.Body = []byte(p.body)
	return &out, nil
}

// failingPlugin always errors.
type failingPlugin struct{}

func (failingPlugin) Name() string { return "failing" }

func (failingPlugin) ProcessPage(*fetcher.Result) (*fetcher.Result, error) {
	return nil, errors.New("plugin exploded")
}

func TestCrawlPlugins(t *testing.T) {
	srv := testutil.NewServer()
	defer srv.Close()
	srv.AddPage("/", `<html><body><a href="/ignored">x</a></body></html>`)
	srv.AddPage("/injected", `<html><body>planted</body></html>`)
	srv.AddPage("/ignored", `<html><body>normal</body></html>`)

	cfg := testConfig(srv.URL())
	cfg.MaxDepth = 1
	c, err := New(cfg, nil)
	require.NoError(t, err)
	c.RegisterPlugin(failingPlugin{})
	c.RegisterPlugin(&rewritingPlugin{body: `<html><body><a href="/injected">y</a></body></html>`})
	go func() {
		for range c.Events() {
		}
	}()

	summary, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, summary.State)
	assert.Equal(t, 1, srv.Hits("/injected"), "links come from the plugin-rewritten body")
	assert.Equal(t, 0, srv.Hits("/ignored"), "original body is replaced")
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "IDLE", StateIdle.String())
	assert.Equal(t, "RUNNING", StateRunning.String())
	assert.Equal(t, "PAUSED", StatePaused.String())
	assert.Equal(t, "COMPLETED", StateCompleted.String())
	assert.Equal(t, "CANCELLED", StateCancelled.String())
	assert.Equal(t, "FAILED", StateFailed.String())
}
