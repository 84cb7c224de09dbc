package crawler

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostLimiterEnforcesInterval(t *testing.T) {
	l := newHostLimiter(50*time.Millisecond, 0)
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "example.com"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "example.com"))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestHostLimiterHostsAreIndependent(t *testing.T) {
	l := newHostLimiter(time.Second, 0)
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "a.com"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "b.com"))
	assert.Less(t, time.Since(start), 200*time.Millisecond, "different hosts do not share the interval")
}

func TestHostLimiterHostCaseInsensitive(t *testing.T) {
	l := newHostLimiter(50*time.Millisecond, 0)
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "Example.COM"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "example.com"))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestHostLimiterRaiseFloor(t *testing.T) {
	l := newHostLimiter(10*time.Millisecond, 0)

	l.RaiseFloor("example.com", 80*time.Millisecond)
	assert.Equal(t, 80*time.Millisecond, l.floor("example.com"))

	// A lower value never lowers the floor.
	l.RaiseFloor("example.com", 20*time.Millisecond)
	assert.Equal(t, 80*time.Millisecond, l.floor("example.com"))

	// Hosts without a raised floor use the configured delay.
	assert.Equal(t, 10*time.Millisecond, l.floor("other.com"))
}

func TestHostLimiterContextCancel(t *testing.T) {
	l := newHostLimiter(time.Hour, 0)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, l.Wait(ctx, "example.com"))

	done := make(chan error, 1)
	go func() { done <- l.Wait(ctx, "example.com") }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Wait did not observe cancellation")
	}
}

func TestHostLimiterConcurrentSameHost(t *testing.T) {
	const interval = 30 * time.Millisecond
	l := newHostLimiter(interval, 0)
	ctx := context.Background()

	var mu sync.Mutex
	var stamps []time.Time
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, l.Wait(ctx, "example.com"))
			mu.Lock()
			stamps = append(stamps, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, stamps, 4)
	sort.Slice(stamps, func(i, j int) bool { return stamps[i].Before(stamps[j]) })
	for i := 1; i < len(stamps); i++ {
		gap := stamps[i].Sub(stamps[i-1])
		// Allow scheduling slack between slot reservation and stamp.
		assert.GreaterOrEqual(t, gap, interval/2, "requests %d and %d too close", i-1, i)
	}
}
