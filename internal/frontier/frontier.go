package frontier

import (
	"container/list"
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Dequeue once the frontier is closed and drained.
var ErrClosed = errors.New("frontier closed")

// SkipReason explains why an enqueue was a no-op.
type SkipReason string

const (
	SkipDuplicate     SkipReason = "duplicate"
	SkipDepthExceeded SkipReason = "depth_exceeded"
	SkipLimitReached  SkipReason = "limit_reached"
	SkipClosed        SkipReason = "closed"
)

// Outcome reports the result of an enqueue attempt.
type Outcome struct {
	Accepted bool
	Reason   SkipReason // set when not accepted
}

// Stats holds frontier statistics. Sizes are approximate under concurrency
// and are for progress reporting only.
type Stats struct {
	Queued     int
	Seen       int
	Visited    int
	Accepted   int
	Duplicates int
	DepthSkips int
	LimitSkips int
}

// Frontier is a thread-safe FIFO queue of discovery tasks with dedup and
// depth bookkeeping. Ties within a depth level are broken by insertion
// order, so the crawl is breadth-first.
type Frontier struct {
	mu   sync.Mutex
	cond *sync.Cond

	queue   *list.List
	seen    map[string]struct{} // normalized URLs ever accepted, append-only
	visited map[string]struct{} // normalized URLs whose fetch fully completed

	maxDepth int
	maxURLs  int
	closed   bool

	accepted   int
	duplicates int
	depthSkips int
	limitSkips int
}

// New creates a frontier bounded by maxDepth and maxURLs.
func New(maxDepth, maxURLs int) *Frontier {
	f := &Frontier{
		queue:   list.New(),
		seen:    make(map[string]struct{}),
		visited: make(map[string]struct{}),

		maxDepth: maxDepth,
		maxURLs:  maxURLs,
	}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Enqueue inserts a task unless its key was already seen, its depth exceeds
// the maximum, or the discovery limit is reached. The check-and-insert on
// the dedup key is atomic with respect to concurrent Enqueue calls.
func (f *Frontier) Enqueue(task *Task) Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return Outcome{Reason: SkipClosed}
	}
	if task.Depth > f.maxDepth {
		f.depthSkips++
		return Outcome{Reason: SkipDepthExceeded}
	}
	if f.maxURLs > 0 && f.accepted >= f.maxURLs {
		f.limitSkips++
		return Outcome{Reason: SkipLimitReached}
	}
	if _, dup := f.seen[task.NormalizedURL]; dup {
		f.duplicates++
		return Outcome{Reason: SkipDuplicate}
	}

	f.seen[task.NormalizedURL] = struct{}{}
	f.queue.PushBack(task)
	f.accepted++
	f.cond.Signal()
	return Outcome{Accepted: true}
}

// Dequeue blocks until a task is available, the frontier is closed and
// drained (ErrClosed), or ctx is done.
func (f *Frontier) Dequeue(ctx context.Context) (*Task, error) {
	stop := context.AfterFunc(ctx, func() {
		f.mu.Lock()
		f.cond.Broadcast()
		f.mu.Unlock()
	})
	defer stop()

	f.mu.Lock()
	defer f.mu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if elem := f.queue.Front(); elem != nil {
			return f.queue.Remove(elem).(*Task), nil
		}
		if f.closed {
			return nil, ErrClosed
		}
		f.cond.Wait()
	}
}

// Close signals that no more tasks will be produced. Queued tasks continue
// to drain; Dequeue returns ErrClosed once the queue is empty.
func (f *Frontier) Close() {
	f.mu.Lock()
	f.closed = true
	f.cond.Broadcast()
	f.mu.Unlock()
}

// Drain closes the frontier and discards all queued tasks.
func (f *Frontier) Drain() {
	f.mu.Lock()
	f.closed = true
	f.queue.Init()
	f.cond.Broadcast()
	f.mu.Unlock()
}

// MarkVisited records that the fetch for a normalized URL fully completed.
func (f *Frontier) MarkVisited(normalizedURL string) {
	f.mu.Lock()
	f.visited[normalizedURL] = struct{}{}
	f.mu.Unlock()
}

// HasVisited reports whether a normalized URL completed its fetch.
func (f *Frontier) HasVisited(normalizedURL string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.visited[normalizedURL]
	return ok
}

// Seen reports whether a normalized URL was ever accepted.
func (f *Frontier) Seen(normalizedURL string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.seen[normalizedURL]
	return ok
}

// Len returns the approximate number of queued tasks.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queue.Len()
}

// Accepted returns the number of tasks accepted so far.
func (f *Frontier) Accepted() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accepted
}

// LimitReached reports whether the discovery limit has been hit.
func (f *Frontier) LimitReached() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxURLs > 0 && f.accepted >= f.maxURLs
}

// Stats returns frontier statistics.
func (f *Frontier) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Stats{
		Queued:     f.queue.Len(),
		Seen:       len(f.seen),
		Visited:    len(f.visited),
		Accepted:   f.accepted,
		Duplicates: f.duplicates,
		DepthSkips: f.depthSkips,
		LimitSkips: f.limitSkips,
	}
}
