package crawler

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// hostLimiter enforces politeness: a global requests-per-second budget
// plus a minimum inter-request interval per host. The per-host floor can
// be raised (never lowered) by a robots crawl-delay.
type hostLimiter struct {
	global *rate.Limiter

	mu     sync.Mutex
	delay  time.Duration
	floors map[string]time.Duration
	last   map[string]time.Time
}

func newHostLimiter(delay time.Duration, globalRPS float64) *hostLimiter {
	limit := rate.Inf
	if globalRPS > 0 {
		limit = rate.Limit(globalRPS)
	}
	return &hostLimiter{
		global: rate.NewLimiter(limit, 1),
		delay:  delay,
		floors: make(map[string]time.Duration),
		last:   make(map[string]time.Time),
	}
}

// RaiseFloor raises the per-host delay floor to d if it exceeds the
// current floor. Lower values are ignored.
func (l *hostLimiter) RaiseFloor(host string, d time.Duration) {
	host = strings.ToLower(host)
	l.mu.Lock()
	if d > l.floors[host] {
		l.floors[host] = d
	}
	l.mu.Unlock()
}

// floor returns the effective minimum inter-request interval for host.
func (l *hostLimiter) floor(host string) time.Duration {
	d := l.delay
	if f, ok := l.floors[host]; ok && f > d {
		d = f
	}
	return d
}

// Wait blocks until a request to host satisfies both the global rate and
// the per-host interval, then reserves the slot. The reservation happens
// before the request is issued so that two workers targeting the same
// host cannot violate the interval.
func (l *hostLimiter) Wait(ctx context.Context, host string) error {
	if err := l.global.Wait(ctx); err != nil {
		return err
	}

	host = strings.ToLower(host)
	for {
		l.mu.Lock()
		now := time.Now()
		next := l.last[host].Add(l.floor(host))
		if !now.Before(next) {
			l.last[host] = now
			l.mu.Unlock()
			return nil
		}
		wait := next.Sub(now)
		l.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
		timer.Stop()
	}
}
