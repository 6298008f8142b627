package payment_job

import (
	"sync"
	"time"

	core "tabpool-backend/core/payment_job"
)

// JobCache keeps recently read jobs in memory for status lookups.
//
// Fills are tagged with the epoch observed before the store read. Every
// Invalidate advances the epoch, so a read that overlapped a write can
// never put its copy back.
type JobCache struct {
	mu      sync.RWMutex
	cache   map[core.Identity]*JobCacheEntry
	epoch   uint64
	ttl     time.Duration
	maxSize int
	stop    chan struct{}
	once    sync.Once
}

// JobCacheEntry represents a cached job
type JobCacheEntry struct {
	Job      core.Job
	CachedAt time.Time
}

// NewJobCache creates a new job cache with specified TTL and max size
func NewJobCache(ttl time.Duration, maxSize int) *JobCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if maxSize <= 0 {
		maxSize = 1024
	}
	cache := &JobCache{
		cache:   make(map[core.Identity]*JobCacheEntry),
		ttl:     ttl,
		maxSize: maxSize,
		stop:    make(chan struct{}),
	}

	go cache.startCleanup()

	return cache
}

// Get retrieves a cached job if still fresh
func (c *JobCache) Get(id core.Identity) (core.Job, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.cache[id]
	if !exists || time.Since(entry.CachedAt) > c.ttl {
		return core.Job{}, false
	}
	return entry.Job.Clone(), true
}

// Epoch returns the current invalidation epoch. Read it before loading the
// job that will be passed to Set.
func (c *JobCache) Epoch() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.epoch
}

// Set stores a job loaded at epoch. It reports false and stores nothing when
// an invalidation happened since then.
func (c *JobCache) Set(job core.Job, epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if epoch != c.epoch {
		return false
	}
	c.cache[job.ID] = &JobCacheEntry{Job: job.Clone(), CachedAt: time.Now()}

	if len(c.cache) > c.maxSize {
		c.evictOldest()
	}
	return true
}

// Invalidate removes a specific cache entry and advances the epoch.
func (c *JobCache) Invalidate(id core.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++
	delete(c.cache, id)
}

// Len returns the number of cached entries, fresh or not.
func (c *JobCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// Stop ends the cleanup goroutine.
func (c *JobCache) Stop() {
	c.once.Do(func() { close(c.stop) })
}

// startCleanup runs periodic cleanup of expired entries
func (c *JobCache) startCleanup() {
	ticker := time.NewTicker(c.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanupExpired()
		case <-c.stop:
			return
		}
	}
}

// cleanupExpired removes expired entries
func (c *JobCache) cleanupExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for id, entry := range c.cache {
		if now.Sub(entry.CachedAt) > c.ttl {
			delete(c.cache, id)
		}
	}
}

// evictOldest removes the oldest entry when max size is exceeded
func (c *JobCache) evictOldest() {
	var oldestID core.Identity
	oldestTime := time.Now()

	for id, entry := range c.cache {
		if entry.CachedAt.Before(oldestTime) {
			oldestTime = entry.CachedAt
			oldestID = id
		}
	}

	if oldestID != "" {
		delete(c.cache, oldestID)
	}
}
