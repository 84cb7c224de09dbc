// Package frontier implements the pending-work queue for discovery tasks.
package frontier

import "time"

// Origin records how a task's URL was discovered.
type Origin string

const (
	// OriginSeed marks the configured starting URL.
	OriginSeed Origin = "SEED"

	// OriginLink marks URLs extracted from fetched content.
	OriginLink Origin = "LINK"

	// OriginFuzz marks wordlist-generated candidate paths.
	OriginFuzz Origin = "FUZZ"
)

// Task is a unit of discovery work. Immutable once created; owned by the
// frontier until dequeued, then by the processing worker.
type Task struct {
	// The raw URL string
	URL string

	// Normalized form used as the dedup key
	NormalizedURL string

	// Host extracted from the URL
	Host string

	// Crawl depth (0 for the seed)
	Depth int

	// How the URL was discovered
	Origin Origin

	// The URL this was discovered from (empty for the seed)
	DiscoveredFrom string

	// When this task was added to the queue
	AddedAt time.Time
}

// NewTask creates a task for the given URL.
func NewTask(url, normalizedURL, host string, depth int, origin Origin, discoveredFrom string) *Task {
	return &Task{
		URL:            url,
		NormalizedURL:  normalizedURL,
		Host:           host,
		Depth:          depth,
		Origin:         origin,
		DiscoveredFrom: discoveredFrom,
		AddedAt:        time.Now(),
	}
}
