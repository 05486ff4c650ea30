package api

import (
	"os"
	"strconv"
	"sync"
)

// ReportCache is a thread-safe LRU cache for stored report artifacts. Run
// reports never change once written, so entries need no expiry.
type ReportCache struct {
	mu      sync.Mutex
	maxSize int
	entries map[string][]byte
	order   []string // oldest first
}

// NewReportCache creates a cache with the given maximum number of entries.
// If maxSize <= 0, it defaults to 50.
func NewReportCache(maxSize int) *ReportCache {
	if maxSize <= 0 {
		maxSize = 50
	}
	return &ReportCache{
		maxSize: maxSize,
		entries: make(map[string][]byte),
	}
}

// NewReportCacheFromEnv creates a cache sized by ORGAUDIT_REPORT_CACHE_SIZE.
func NewReportCacheFromEnv() *ReportCache {
	size := 50
	if v := os.Getenv("ORGAUDIT_REPORT_CACHE_SIZE"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			size = parsed
		}
	}
	return NewReportCache(size)
}

// Get returns a cached report, or nil if absent.
func (c *ReportCache) Get(key string) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.entries[key]
	if !ok {
		return nil
	}
	c.moveToEnd(key)
	return data
}

// Put adds a report, evicting the least recently used one when full.
func (c *ReportCache) Put(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.entries[key] = data
		c.moveToEnd(key)
		return
	}

	for len(c.entries) >= c.maxSize && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[key] = data
	c.order = append(c.order, key)
}

// Len returns the number of cached reports.
func (c *ReportCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *ReportCache) moveToEnd(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			c.order = append(c.order, key)
			return
		}
	}
}
