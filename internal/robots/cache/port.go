package cache

import "time"

// Entry is a cached per-host robots ruleset with its expiry deadline.
// Rules is opaque to the cache; the robots package stores its parsed
// group there. FailOpen marks a negative entry cached after a fetch
// failure: the host is crawlable with default politeness until the entry
// expires.
type Entry struct {
	Rules      any
	CrawlDelay time.Duration
	FetchedAt  time.Time
	ExpiresAt  time.Time
	FailOpen   bool
}

// Expired reports whether the entry is past its TTL at the given instant.
func (e Entry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Cache defines the port interface for robots.txt result caching.
// This interface follows the port-adapter pattern, allowing different
// cache implementations to be swapped without changing the robots logic.
//
// The cache lives only for the duration of the process (no persistence).
type Cache interface {
	// Get retrieves an entry from the cache by key.
	Get(key string) (Entry, bool)

	// Put stores an entry in the cache. If the key already exists, the
	// entry is overwritten.
	Put(key string, entry Entry)

	// Delete removes an entry.
	Delete(key string)
}
