package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/scout-crawler/scout/internal/analyzer"
	"github.com/scout-crawler/scout/internal/cache"
	"github.com/scout-crawler/scout/internal/config"
	"github.com/scout-crawler/scout/internal/fetcher"
	"github.com/scout-crawler/scout/internal/frontier"
	"github.com/scout-crawler/scout/internal/fuzzer"
	"github.com/scout-crawler/scout/internal/robots"
	"github.com/scout-crawler/scout/internal/session"
	"github.com/scout-crawler/scout/internal/urlutil"
)

// State is the lifecycle phase of a crawl.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StatePaused
	StateCompleted
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StatePaused:
		return "PAUSED"
	case StateCompleted:
		return "COMPLETED"
	case StateCancelled:
		return "CANCELLED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// MarshalText implements encoding.TextMarshaler so State renders as its
// name in JSON summaries.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

const eventBuffer = 512

// Crawler coordinates frontier, fetcher, robots policy, link analysis and
// fuzzing for a single crawl. A Crawler runs at most once.
type Crawler struct {
	cfg   *config.Config
	log   *slog.Logger
	sess  *session.Store
	front *frontier.Frontier
	fetch *fetcher.Fetcher
	eval  *robots.Evaluator
	fuzz  *fuzzer.Fuzzer
	limit *hostLimiter
	cache *cache.Cache

	plugins []PagePlugin

	events   chan Event
	pending  atomic.Int64
	state    atomic.Int32
	paused   atomic.Bool
	resumeMu sync.Mutex
	resume   chan struct{}

	fetched   atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	denied    atomic.Int64
	confirmed atomic.Int64
	cacheHits atomic.Int64
}

// New assembles a crawler from cfg. The configuration is validated and the
// cache store, session and fetcher are wired up; no network activity
// happens until Run.
func New(cfg *config.Config, logger *slog.Logger) (*Crawler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	sess := session.New()
	sess.SetHeaders(cfg.CustomHeaders)
	for _, p := range cfg.Proxies {
		if err := sess.AddProxy(p); err != nil {
			return nil, fmt.Errorf("proxy %q: %w", p, err)
		}
	}

	var store cache.Store
	if cfg.CachePath != "" {
		var err error
		store, err = cache.NewSQLiteStore(cfg.CachePath)
		if err != nil {
			return nil, fmt.Errorf("open cache: %w", err)
		}
	} else {
		store = cache.NewMemoryStore()
	}
	fetchCache := cache.New(store, cfg.CacheCapacity)

	var fz *fuzzer.Fuzzer
	if cfg.Fuzzing.Enabled {
		words, err := fuzzer.LoadWordlist(cfg.Fuzzing.WordlistPath)
		if err != nil {
			fetchCache.Close()
			return nil, fmt.Errorf("load wordlist: %w", err)
		}
		fz = fuzzer.New(words, cfg.Fuzzing.Extensions)
	}

	// The robots client shares the fetcher's transport so that robots.txt
	// requests go through the same proxy rotation as page fetches.
	fetch := fetcher.New(cfg, fetchCache, sess, logger)
	cr := &Crawler{
		cfg:    cfg,
		log:    logger,
		sess:   sess,
		front:  frontier.New(cfg.MaxDepth, cfg.MaxURLs),
		fetch:  fetch,
		eval:   robots.NewEvaluator(fetch.RobotsClient(), cfg.UserAgent, cfg.RespectRobots),
		fuzz:   fz,
		limit:  newHostLimiter(cfg.Delay, cfg.RequestsPerSecond),
		cache:  fetchCache,
		events: make(chan Event, eventBuffer),
		resume: make(chan struct{}),
	}
	cr.state.Store(int32(StateIdle))
	return cr, nil
}

// RegisterPlugin appends a page plugin. Must be called before Run.
func (c *Crawler) RegisterPlugin(p PagePlugin) {
	c.plugins = append(c.plugins, p)
}

// Events returns the discovery event stream. The channel is closed when
// the crawl finishes. Slow consumers may miss events; the crawl never
// blocks on emission.
func (c *Crawler) Events() <-chan Event {
	return c.events
}

// State returns the current lifecycle state.
func (c *Crawler) State() State {
	return State(c.state.Load())
}

// Pause suspends dequeueing. In-flight fetches finish normally.
func (c *Crawler) Pause() {
	if c.State() == StateRunning && c.paused.CompareAndSwap(false, true) {
		c.state.Store(int32(StatePaused))
		c.log.Info("crawl paused")
	}
}

// Resume continues a paused crawl.
func (c *Crawler) Resume() {
	if c.paused.CompareAndSwap(true, false) {
		c.state.Store(int32(StateRunning))
		c.resumeMu.Lock()
		close(c.resume)
		c.resume = make(chan struct{})
		c.resumeMu.Unlock()
		c.log.Info("crawl resumed")
	}
}

func (c *Crawler) resumeCh() <-chan struct{} {
	c.resumeMu.Lock()
	defer c.resumeMu.Unlock()
	return c.resume
}

// Run executes the crawl until the frontier is exhausted, the URL limit is
// reached or ctx is cancelled. On cancellation, queued tasks are discarded
// and in-flight fetches get a grace period to finish. Run always returns a
// summary; the error reports startup failures only.
func (c *Crawler) Run(ctx context.Context) (*Summary, error) {
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return nil, errors.New("crawler already started")
	}
	start := time.Now()
	defer c.fetch.Close()
	defer c.cache.Close()
	defer close(c.events)

	seed, err := makeTask(c.cfg.Seed, 0, frontier.OriginSeed, "")
	if err != nil {
		c.state.Store(int32(StateFailed))
		return c.summary(start), fmt.Errorf("seed: %w", err)
	}
	if out := c.front.Enqueue(seed); !out.Accepted {
		c.state.Store(int32(StateFailed))
		return c.summary(start), fmt.Errorf("seed rejected: %s", out.Reason)
	}
	c.pending.Store(1)

	// Fetches run on their own context so that cancelling the crawl can
	// grant in-flight requests a grace period before cutting them off.
	fetchCtx, fetchCancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			c.front.Drain()
			t := time.NewTimer(c.cfg.GracePeriod)
			defer t.Stop()
			select {
			case <-t.C:
			case <-done:
			}
		case <-done:
		}
		fetchCancel()
	}()

	c.log.Info("crawl started",
		"seed", c.cfg.Seed,
		"max_depth", c.cfg.MaxDepth,
		"max_urls", c.cfg.MaxURLs,
		"concurrency", c.cfg.Concurrency,
		"fuzzing", c.cfg.Fuzzing.Enabled)

	var g errgroup.Group
	for i := 0; i < c.cfg.Concurrency; i++ {
		g.Go(func() error {
			c.worker(ctx, fetchCtx)
			return nil
		})
	}
	g.Wait()
	close(done)

	if ctx.Err() != nil {
		c.state.Store(int32(StateCancelled))
	} else {
		c.state.Store(int32(StateCompleted))
	}
	s := c.summary(start)
	c.log.Info("crawl finished",
		"state", s.State.String(),
		"fetched", s.Fetched,
		"succeeded", s.Succeeded,
		"failed", s.Failed,
		"discovered", s.Discovered,
		"elapsed", s.Elapsed)
	return s, nil
}

func (c *Crawler) worker(ctx, fetchCtx context.Context) {
	for {
		task, err := c.front.Dequeue(ctx)
		if err != nil {
			return
		}
		for c.paused.Load() {
			select {
			case <-c.resumeCh():
			case <-ctx.Done():
				c.taskDone()
				return
			}
		}
		c.process(fetchCtx, task)
		c.taskDone()
	}
}

// taskDone retires one unit of work. When the last pending task finishes
// the frontier is closed, which unblocks the remaining workers.
func (c *Crawler) taskDone() {
	if c.pending.Add(-1) == 0 {
		c.front.Close()
	}
}

func (c *Crawler) process(ctx context.Context, task *frontier.Task) {
	u, err := url.Parse(task.URL)
	if err != nil {
		c.failed.Add(1)
		return
	}

	if !c.eval.IsAllowed(u) {
		c.denied.Add(1)
		c.emit(Event{URL: task.URL, Depth: task.Depth, Origin: task.Origin, Denied: true, Timestamp: time.Now()})
		c.log.Debug("robots disallowed", "url", task.URL)
		return
	}
	if d := c.eval.CrawlDelay(u.Scheme, u.Host); d > 0 {
		c.limit.RaiseFloor(u.Host, d)
	}

	if err := c.limit.Wait(ctx, u.Host); err != nil {
		return
	}

	res, err := c.fetch.Fetch(ctx, task.URL)
	if res != nil {
		// Only fetches that read a final response count as visited.
		// An aborted fetch leaves the URL eligible for a later run.
		c.front.MarkVisited(task.NormalizedURL)
	}
	c.fetched.Add(1)

	ev := Event{URL: task.URL, Depth: task.Depth, Origin: task.Origin, Timestamp: time.Now()}
	if res != nil {
		ev.Status = res.StatusCode
		ev.FromCache = res.FromCache
		if res.FromCache {
			c.cacheHits.Add(1)
		}
	}
	if err != nil {
		ev.Error = err.Error()
	}

	switch {
	case res == nil:
		c.failed.Add(1)
		c.emit(ev)
		c.log.Debug("fetch failed", "url", task.URL, "error", err)
		return
	case res.StatusCode >= 400:
		c.failed.Add(1)
	default:
		c.succeeded.Add(1)
	}
	c.emit(ev)

	if task.Origin == frontier.OriginFuzz {
		if c.fuzz != nil && fuzzer.Confirmed(res.StatusCode) {
			c.confirmed.Add(1)
			c.log.Info("fuzzed path confirmed", "url", task.URL, "status", res.StatusCode)
			c.expandFuzz(task, res.FinalURL)
		}
		return
	}

	if !res.IsSuccess() {
		return
	}

	for _, p := range c.plugins {
		out, err := p.ProcessPage(res)
		if err != nil {
			c.log.Warn("plugin error", "plugin", p.Name(), "url", task.URL, "error", err)
			continue
		}
		if out != nil {
			res = out
		}
	}

	c.discover(task, res)
	c.expandFuzz(task, res.FinalURL)
}

// discover extracts follow-up URLs from the response body. HTML pages
// yield links, script bodies yield endpoint candidates.
func (c *Crawler) discover(task *frontier.Task, res *fetcher.Result) {
	base := res.FinalURL
	if base == "" {
		base = task.URL
	}

	if analyzer.IsScriptURL(task.URL) || strings.Contains(res.ContentType, "javascript") {
		for _, ep := range analyzer.ScanScript(base, res.Body) {
			c.enqueue(ep, task, frontier.OriginLink)
		}
		return
	}
	if !strings.Contains(res.ContentType, "html") {
		return
	}
	for _, l := range analyzer.ExtractLinks(base, res.Body) {
		if !urlutil.IsSameHost(c.cfg.Seed, l.URL) {
			continue
		}
		c.enqueue(l.URL, task, frontier.OriginLink)
	}
}

// expandFuzz queues wordlist candidates for the directory containing the
// fetched URL and, for extensionless URLs, for the URL itself treated as a
// directory. The fuzzer guarantees each directory is expanded at most once.
func (c *Crawler) expandFuzz(task *frontier.Task, finalURL string) {
	if c.fuzz == nil {
		return
	}
	target := finalURL
	if target == "" {
		target = task.URL
	}
	var dirs []string
	if dir, err := urlutil.DirectoryOf(target); err == nil {
		dirs = append(dirs, dir)
	}
	if u, err := url.Parse(target); err == nil && path.Ext(u.Path) == "" {
		dirs = append(dirs, strings.TrimRight(target, "/"))
	}
	for _, dir := range dirs {
		if dir == "" || !urlutil.IsSameHost(c.cfg.Seed, dir) {
			continue
		}
		for _, cand := range c.fuzz.Candidates(dir) {
			c.enqueue(cand, task, frontier.OriginFuzz)
		}
	}
}

func (c *Crawler) enqueue(rawURL string, parent *frontier.Task, origin frontier.Origin) {
	t, err := makeTask(rawURL, parent.Depth+1, origin, parent.URL)
	if err != nil {
		return
	}
	c.pending.Add(1)
	if out := c.front.Enqueue(t); !out.Accepted {
		c.pending.Add(-1)
		return
	}
}

func (c *Crawler) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
	}
}

// makeTask normalizes rawURL and wraps it as a frontier task.
func makeTask(rawURL string, depth int, origin frontier.Origin, from string) (*frontier.Task, error) {
	norm, err := urlutil.Normalize(rawURL)
	if err != nil {
		return nil, err
	}
	host, err := urlutil.ExtractHost(rawURL)
	if err != nil {
		return nil, err
	}
	return frontier.NewTask(rawURL, norm, host, depth, origin, from), nil
}

func (c *Crawler) summary(start time.Time) *Summary {
	fs := c.front.Stats()
	return &Summary{
		Seed:       c.cfg.Seed,
		State:      c.State(),
		Fetched:    c.fetched.Load(),
		Succeeded:  c.succeeded.Load(),
		Failed:     c.failed.Load(),
		Denied:     c.denied.Load(),
		Discovered: int64(fs.Accepted),
		Confirmed:  c.confirmed.Load(),
		Skipped:    int64(fs.Duplicates + fs.DepthSkips + fs.LimitSkips),
		CacheHits:  c.cacheHits.Load(),
		Elapsed:    time.Since(start),
	}
}
