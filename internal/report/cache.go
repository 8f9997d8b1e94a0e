package report

import (
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"fundscope/internal/filter"
	"fundscope/pkg/contracts/domain"
)

// CacheKey identifies a report by dataset, layout and selection.
func CacheKey(fingerprint uint64, layout string, sel filter.Selection) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(strconv.FormatUint(fingerprint, 16))
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(layout)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(sel.Key())
	return d.Sum64()
}

// CacheEntry is a cached report.
type CacheEntry struct {
	Report    *domain.Report `json:"report"`
	CachedAt  time.Time      `json:"cached_at"`
	ExpiresAt time.Time      `json:"expires_at"`
	HitCount  int            `json:"hit_count"`
}

// CacheStats summarises cache activity.
type CacheStats struct {
	Entries    int     `json:"entries"`
	MaxSize    int     `json:"max_size"`
	HitCount   int64   `json:"hit_count"`
	MissCount  int64   `json:"miss_count"`
	HitRatio   float64 `json:"hit_ratio"`
	TTLSeconds float64 `json:"ttl_seconds"`
}

// Cache keeps built reports for a bounded time. When full, the oldest entry
// is evicted.
type Cache struct {
	entries   map[uint64]CacheEntry
	mutex     sync.RWMutex
	ttl       time.Duration
	maxSize   int
	hitCount  int64
	missCount int64
	stopChan  chan struct{}
	stopOnce  sync.Once
	now       func() time.Time
}

// NewCache creates a cache and starts its expiry sweeper. Call Stop to end it.
func NewCache(ttl time.Duration, maxSize int) *Cache {
	c := &Cache{
		entries:  make(map[uint64]CacheEntry),
		ttl:      ttl,
		maxSize:  maxSize,
		stopChan: make(chan struct{}),
		now:      time.Now,
	}

	go c.cleanup()

	return c
}

// Get returns a cached report.
func (c *Cache) Get(key uint64) (*domain.Report, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, exists := c.entries[key]
	if !exists || c.now().After(entry.ExpiresAt) {
		c.missCount++
		return nil, false
	}

	entry.HitCount++
	c.entries[key] = entry
	c.hitCount++

	return entry.Report, true
}

// Set stores a report.
func (c *Cache) Set(key uint64, report *domain.Report) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.maxSize <= 0 || c.ttl <= 0 {
		return
	}

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	now := c.now()
	c.entries[key] = CacheEntry{
		Report:    report,
		CachedAt:  now,
		ExpiresAt: now.Add(c.ttl),
	}
}

// Invalidate drops every entry. It is called when the dataset changes.
func (c *Cache) Invalidate() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.entries = make(map[uint64]CacheEntry)
}

// Stats returns cache statistics.
func (c *Cache) Stats() CacheStats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	total := c.hitCount + c.missCount
	ratio := float64(0)
	if total > 0 {
		ratio = float64(c.hitCount) / float64(total)
	}

	return CacheStats{
		Entries:    len(c.entries),
		MaxSize:    c.maxSize,
		HitCount:   c.hitCount,
		MissCount:  c.missCount,
		HitRatio:   ratio,
		TTLSeconds: c.ttl.Seconds(),
	}
}

func (c *Cache) evictOldest() {
	var (
		oldestKey  uint64
		oldestTime time.Time
		found      bool
	)
	for key, entry := range c.entries {
		if !found || entry.CachedAt.Before(oldestTime) {
			oldestKey, oldestTime, found = key, entry.CachedAt, true
		}
	}
	if found {
		delete(c.entries, oldestKey)
	}
}

// Stop ends the expiry sweeper. It is safe to call more than once.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
}

func (c *Cache) cleanup() {
	interval := c.ttl
	if interval <= 0 || interval > 5*time.Minute {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mutex.Lock()
			now := c.now()
			for key, entry := range c.entries {
				if now.After(entry.ExpiresAt) {
					delete(c.entries, key)
				}
			}
			c.mutex.Unlock()
		case <-c.stopChan:
			return
		}
	}
}
