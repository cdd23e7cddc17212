// Package viewcache keeps page views of site content documents in memory
// until an invalidation event marks them stale.
package viewcache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tendant/site-content/pkg/sitecontent"
)

// Stats reports cache activity
type Stats struct {
	Hits          uint64 `json:"hits"`
	Misses        uint64 `json:"misses"`
	Invalidations uint64 `json:"invalidations"`
	Entries       int    `json:"entries"`
}

type entryKey struct {
	document string
	page     string
}

type entry struct {
	view    sitecontent.Document
	expires time.Time
}

// Cache is an in-memory sitecontent.PageCache. Entries expire after the TTL
// even if no invalidation arrives; a zero TTL keeps them until invalidated.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[entryKey]entry
	// gens counts invalidations per document; epoch counts purges
	gens  map[string]uint64
	epoch uint64

	hits          atomic.Uint64
	misses        atomic.Uint64
	invalidations atomic.Uint64
}

var _ sitecontent.PageCache = (*Cache)(nil)

// New creates a cache whose entries live at most ttl
func New(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[entryKey]entry),
		gens:    make(map[string]uint64),
	}
}

// Get returns a copy of the cached view of page
func (c *Cache) Get(key, page string) (sitecontent.Document, bool) {
	c.mu.RLock()
	e, ok := c.entries[entryKey{key, page}]
	c.mu.RUnlock()

	if !ok || (!e.expires.IsZero() && c.now().After(e.expires)) {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return e.view.Clone(), true
}

// Generation returns a value that changes whenever views of key are
// invalidated or the cache is purged.
func (c *Cache) Generation(key string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gens[key] + c.epoch
}

// Set caches a copy of view
func (c *Cache) Set(key, page string, view sitecontent.Document) {
	e := c.newEntry(view)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entryKey{key, page}] = e
}

// SetIfCurrent caches a copy of view only if the generation of key is still
// gen, and reports whether it did. A view computed from a document loaded
// before an invalidation is dropped.
func (c *Cache) SetIfCurrent(key, page string, view sitecontent.Document, gen uint64) bool {
	e := c.newEntry(view)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[key]+c.epoch != gen {
		return false
	}
	c.entries[entryKey{key, page}] = e
	return true
}

func (c *Cache) newEntry(view sitecontent.Document) entry {
	e := entry{view: view.Clone()}
	if c.ttl > 0 {
		e.expires = c.now().Add(c.ttl)
	}
	return e
}

// Invalidate drops the cached pages of the event's document that are named
// in its views or render any of its sections.
func (c *Cache) Invalidate(ctx context.Context, event sitecontent.InvalidationEvent) error {
	stale := make(map[string]struct{}, len(event.Views))
	for _, v := range event.Views {
		stale[v] = struct{}{}
	}
	for page, sections := range sitecontent.PageSections {
		for _, s := range sections {
			if contains(event.Sections, s) {
				stale[page] = struct{}{}
				break
			}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[event.DocumentKey]++
	for k := range c.entries {
		if k.document != event.DocumentKey {
			continue
		}
		if _, ok := stale[k.page]; ok {
			delete(c.entries, k)
			c.invalidations.Add(1)
		}
	}
	return nil
}

// Purge drops every entry
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[entryKey]entry)
	c.epoch++
}

// Stats returns a snapshot of the counters
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	n := len(c.entries)
	c.mu.RUnlock()

	return Stats{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Invalidations: c.invalidations.Load(),
		Entries:       n,
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
