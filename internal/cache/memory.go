package cache

import (
	"context"
	"sync"
	"time"
)

// CleanupInterval is how often the background sweep drops expired entries
const CleanupInterval = time.Minute

// MemoryTagCache implements TagCache with in-process storage
type MemoryTagCache struct {
	mu      sync.RWMutex
	entries map[string]*Entry          // key -> entry
	tags    map[string]map[string]bool // tag -> keys
	now     func() time.Time

	stopCleanup chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

// NewMemoryTagCache creates the cache and starts its expiry sweep
func NewMemoryTagCache() *MemoryTagCache {
	c := &MemoryTagCache{
		entries:     make(map[string]*Entry),
		tags:        make(map[string]map[string]bool),
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}

	c.wg.Add(1)
	go c.cleanupLoop()

	return c
}

func (c *MemoryTagCache) cleanupLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.expireEntries()
		case <-c.stopCleanup:
			return
		}
	}
}

func (c *MemoryTagCache) expireEntries() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, entry := range c.entries {
		if entry.IsExpired(now) {
			c.removeLocked(key)
		}
	}
}

func (c *MemoryTagCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || entry.IsExpired(c.now()) {
		return nil, ErrCacheMiss
	}
	return entry.Value, nil
}

func (c *MemoryTagCache) Set(_ context.Context, key string, value []byte, tags []string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Tags from a previous write of the same key no longer apply.
	c.removeLocked(key)

	now := c.now()
	entry := &Entry{
		Key:       key,
		Value:     append([]byte(nil), value...),
		Tags:      append([]string(nil), tags...),
		LastWrite: now,
	}
	if ttl > 0 {
		entry.Expiry = now.Add(ttl)
	}
	c.entries[key] = entry

	for _, tag := range tags {
		keys, ok := c.tags[tag]
		if !ok {
			keys = make(map[string]bool)
			c.tags[tag] = keys
		}
		keys[key] = true
	}
	return nil
}

func (c *MemoryTagCache) InvalidateTag(_ context.Context, tag string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := c.tags[tag]
	n := 0
	for key := range keys {
		if _, ok := c.entries[key]; ok {
			c.removeLocked(key)
			n++
		}
	}
	delete(c.tags, tag)
	return n, nil
}

// Len reports the number of stored entries, expired or not.
func (c *MemoryTagCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *MemoryTagCache) removeLocked(key string) {
	entry, ok := c.entries[key]
	if !ok {
		return
	}
	for _, tag := range entry.Tags {
		if keys, ok := c.tags[tag]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(c.tags, tag)
			}
		}
	}
	delete(c.entries, key)
}

// Close stops the background sweep and waits for it to finish
func (c *MemoryTagCache) Close() error {
	c.stopOnce.Do(func() { close(c.stopCleanup) })
	c.wg.Wait()
	return nil
}
