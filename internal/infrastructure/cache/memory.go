package cache

import (
	"context"
	"sync"
	"time"

	"DomainScore/internal/domain"
	"DomainScore/internal/ports"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLCache is a bounded map whose entries expire after a fixed TTL.
// Expired entries are rejected on read and removed by a periodic sweep.
type TTLCache[V any] struct {
	mu      sync.RWMutex
	items   map[string]entry[V]
	maxSize int
	ttl     time.Duration
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

// NewTTLCache starts the sweep goroutine; call Close to stop it.
func NewTTLCache[V any](maxSize int, ttl time.Duration) *TTLCache[V] {
	c := newTTLCache[V](maxSize, ttl, time.Now)
	go c.sweepLoop()
	return c
}

func newTTLCache[V any](maxSize int, ttl time.Duration, now func() time.Time) *TTLCache[V] {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &TTLCache[V]{
		items:   make(map[string]entry[V]),
		maxSize: maxSize,
		ttl:     ttl,
		now:     now,
		stop:    make(chan struct{}),
	}
}

// Get returns the value if present and fresh.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if !c.now().Before(e.expiresAt) {
		c.mu.Lock()
		if cur, still := c.items[key]; still && cur.expiresAt.Equal(e.expiresAt) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return zero, false
	}
	return e.value, true
}

// Set stores value, evicting the entry closest to expiry when full.
func (c *TTLCache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; !exists && len(c.items) >= c.maxSize {
		c.evictOldest()
	}
	c.items[key] = entry[V]{value: value, expiresAt: c.now().Add(c.ttl)}
}

// Len counts stored entries, fresh or not.
func (c *TTLCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Close stops the sweep goroutine.
func (c *TTLCache[V]) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *TTLCache[V]) evictOldest() {
	var (
		oldestKey  string
		oldestTime time.Time
		first      = true
	)
	for key, e := range c.items {
		if first || e.expiresAt.Before(oldestTime) {
			oldestKey, oldestTime, first = key, e.expiresAt, false
		}
	}
	if !first {
		delete(c.items, oldestKey)
	}
}

func (c *TTLCache[V]) sweep() {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.items {
		if !now.Before(e.expiresAt) {
			delete(c.items, key)
		}
	}
}

func (c *TTLCache[V]) sweepLoop() {
	interval := max(c.ttl/2, time.Second)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stop:
			return
		}
	}
}

// MemoryCache adapts TTLCache to the analysis result cache port.
type MemoryCache struct {
	*TTLCache[domain.DomainAnalysis]
}

var _ ports.ResultCache = (*MemoryCache)(nil)

// NewMemoryCache builds an in-process result cache.
func NewMemoryCache(maxSize int, ttl time.Duration) *MemoryCache {
	return &MemoryCache{TTLCache: NewTTLCache[domain.DomainAnalysis](maxSize, ttl)}
}

func (m *MemoryCache) Get(_ context.Context, name string) (domain.DomainAnalysis, bool) {
	return m.TTLCache.Get(name)
}

func (m *MemoryCache) Set(_ context.Context, a domain.DomainAnalysis) {
	m.TTLCache.Set(a.Domain, a)
}
