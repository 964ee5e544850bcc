package route

import (
	"context"
	"sync"
	"time"

	"github.com/devrev/tsdb-client-go/pkg/model"
	"go.uber.org/zap"
)

// MemoryCache implements Cache using an in-memory map
type MemoryCache struct {
	data            map[string]*cacheItem
	mu              sync.RWMutex
	maxSize         int
	cleanupInterval time.Duration
	stopCh          chan struct{}
	stopOnce        sync.Once
	logger          *zap.Logger
}

type cacheItem struct {
	route     model.Route
	expiresAt time.Time
}

// NewMemoryCache creates an in-memory cache that holds at most maxSize routes
// and drops expired entries every cleanupInterval.
func NewMemoryCache(maxSize int, cleanupInterval time.Duration, logger *zap.Logger) *MemoryCache {
	if maxSize <= 0 {
		maxSize = 10000
	}
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cache := &MemoryCache{
		data:            make(map[string]*cacheItem),
		maxSize:         maxSize,
		cleanupInterval: cleanupInterval,
		stopCh:          make(chan struct{}),
		logger:          logger,
	}

	go cache.cleanup(cleanupInterval)

	return cache
}

// Get retrieves a route from cache
func (c *MemoryCache) Get(ctx context.Context, metric string) (*model.Route, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, exists := c.data[metric]
	if !exists || time.Now().After(item.expiresAt) {
		return nil, ErrNotFound
	}

	route := item.route
	return &route, nil
}

// Set stores a route with TTL
func (c *MemoryCache) Set(ctx context.Context, route *model.Route, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.data[route.Metric]; !exists && len(c.data) >= c.maxSize {
		c.evictLocked()
	}

	c.data[route.Metric] = &cacheItem{
		route:     *route,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// evictLocked removes an expired entry, or any entry if none has expired
func (c *MemoryCache) evictLocked() {
	now := time.Now()
	for k, v := range c.data {
		if now.After(v.expiresAt) {
			delete(c.data, k)
			return
		}
	}
	for k := range c.data {
		delete(c.data, k)
		return
	}
}

// Delete removes a route from cache
func (c *MemoryCache) Delete(ctx context.Context, metric string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.data, metric)
	return nil
}

// Ping always succeeds for the in-memory cache
func (c *MemoryCache) Ping(ctx context.Context) error {
	return nil
}

// Size returns the number of entries in cache
func (c *MemoryCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// CleanupInterval returns how often expired routes are dropped
func (c *MemoryCache) CleanupInterval() time.Duration {
	return c.cleanupInterval
}

// Close stops the cleanup goroutine
func (c *MemoryCache) Close() error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	return nil
}

// cleanup periodically removes expired entries
func (c *MemoryCache) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			removed := 0
			for metric, item := range c.data {
				if now.After(item.expiresAt) {
					delete(c.data, metric)
					removed++
				}
			}
			c.mu.Unlock()
			if removed > 0 {
				c.logger.Debug("Expired routes removed", zap.Int("count", removed))
			}
		case <-c.stopCh:
			return
		}
	}
}
