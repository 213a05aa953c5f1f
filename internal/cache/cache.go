// Package cache provides the geocode result cache. Redis backs it in
// production; an in-memory store covers local runs and tests. Callers pick
// via FromEnv, which falls back to memory when Redis is unreachable.
package cache

import (
	"context"
	"log"
	"os"
	"strconv"
	"sync"
	"time"
)

var logger = log.New(log.Writer(), "[CACHE] ", log.LstdFlags)

// Cache is the stored-value surface shared by both backends.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
	Close() error
}

// FromEnv selects the cache backend. REDIS_ADDR unset or unreachable
// means the in-memory cache.
func FromEnv() Cache {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		logger.Println("REDIS_ADDR not set, using in-memory geocode cache")
		return NewMemoryCache()
	}

	db := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			db = n
		}
	}

	rc, err := NewRedisCache(addr, os.Getenv("REDIS_PASSWORD"), db)
	if err != nil {
		logger.Printf("⚠️ %v, falling back to in-memory cache", err)
		return NewMemoryCache()
	}
	return rc
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryCache is a TTL map guarded by a RWMutex. Expired entries are
// dropped lazily on read.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get returns the cached value for key, if present and not expired.
func (m *MemoryCache) Get(_ context.Context, key string) (string, bool) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return "", false
	}
	if !entry.expiresAt.IsZero() && m.now().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return "", false
	}
	return entry.value, true
}

// Set stores value under key. A non-positive ttl means no expiry.
func (m *MemoryCache) Set(_ context.Context, key, value string, ttl time.Duration) {
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.entries[key] = entry
	m.mu.Unlock()
}

// Close is a no-op for the in-memory backend.
func (m *MemoryCache) Close() error {
	return nil
}
