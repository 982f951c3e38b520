// Package staging holds the most recent not-yet-committed duplicate candidate
// per user. Entries are short-lived: overwritten by each new duplicate
// detection, consumed when the user confirms "save as new", and expired by a
// janitor otherwise.
package staging

import (
	"sync"
	"time"
)

// DefaultTTL bounds how long a staged candidate stays confirmable.
const DefaultTTL = 10 * time.Minute

// Entry is a staged capture waiting for a duplicate-confirmation decision.
type Entry struct {
	Kind     string // text, voice, photo
	Content  string
	FileID   string
	FilePath string // local voice file kept only while staged
	Weather  string
}

type item struct {
	entry     Entry
	expiresAt time.Time
}

// Cache is an in-process TTL cache keyed by user id. One slot per user:
// a new staged candidate replaces whatever was there.
type Cache struct {
	mu     sync.Mutex
	items  map[int64]item
	ttl    time.Duration
	stopCh chan struct{}

	// OnEvict runs for entries dropped without being consumed (overwrite,
	// expiry, remove). Used to clean up staged voice files.
	OnEvict func(Entry)
}

// New creates a cache with the given TTL (DefaultTTL if zero or negative).
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		items:  make(map[int64]item),
		ttl:    ttl,
		stopCh: make(chan struct{}),
	}
}

// Put stages an entry for the user, replacing any previous one.
func (c *Cache) Put(userID int64, e Entry) {
	c.mu.Lock()
	prev, had := c.items[userID]
	c.items[userID] = item{entry: e, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()

	if had && c.OnEvict != nil {
		c.OnEvict(prev.entry)
	}
}

// Get returns the user's staged entry without consuming it.
// An expired entry counts as a miss and is evicted.
func (c *Cache) Get(userID int64) (Entry, bool) {
	c.mu.Lock()
	it, ok := c.items[userID]
	if ok && time.Now().After(it.expiresAt) {
		delete(c.items, userID)
		c.mu.Unlock()
		if c.OnEvict != nil {
			c.OnEvict(it.entry)
		}
		return Entry{}, false
	}
	c.mu.Unlock()
	if !ok {
		return Entry{}, false
	}
	return it.entry, true
}

// Consume returns and removes the user's staged entry. OnEvict does not run:
// the caller takes ownership of any staged resources.
func (c *Cache) Consume(userID int64) (Entry, bool) {
	c.mu.Lock()
	it, ok := c.items[userID]
	if ok {
		delete(c.items, userID)
	}
	c.mu.Unlock()
	if !ok || time.Now().After(it.expiresAt) {
		if ok && c.OnEvict != nil {
			c.OnEvict(it.entry)
		}
		return Entry{}, false
	}
	return it.entry, true
}

// Remove drops the user's staged entry, if any, running OnEvict.
func (c *Cache) Remove(userID int64) {
	c.mu.Lock()
	it, ok := c.items[userID]
	if ok {
		delete(c.items, userID)
	}
	c.mu.Unlock()
	if ok && c.OnEvict != nil {
		c.OnEvict(it.entry)
	}
}

// StartJanitor sweeps expired entries periodically until Stop is called.
func (c *Cache) StartJanitor(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.sweep()
			case <-c.stopCh:
				return
			}
		}
	}()
}

// Stop shuts down the janitor goroutine.
func (c *Cache) Stop() {
	close(c.stopCh)
}

func (c *Cache) sweep() {
	now := time.Now()
	var evicted []Entry
	c.mu.Lock()
	for id, it := range c.items {
		if now.After(it.expiresAt) {
			delete(c.items, id)
			evicted = append(evicted, it.entry)
		}
	}
	c.mu.Unlock()
	if c.OnEvict != nil {
		for _, e := range evicted {
			c.OnEvict(e)
		}
	}
}
