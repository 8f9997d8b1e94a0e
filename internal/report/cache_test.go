package report

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundscope/internal/filter"
	"fundscope/pkg/contracts/domain"
)

func TestCacheKey(t *testing.T) {
	a := CacheKey(1, LayoutClassic, filter.Selection{Years: []int{2019, 2020}})
	b := CacheKey(1, LayoutClassic, filter.Selection{Years: []int{2020, 2019}})
	c := CacheKey(2, LayoutClassic, filter.Selection{Years: []int{2019, 2020}})
	d := CacheKey(1, LayoutExtended, filter.Selection{Years: []int{2019, 2020}})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
}

func TestCacheLifecycle(t *testing.T) {
	cache := NewCache(time.Hour, 10)
	defer cache.Stop()

	_, ok := cache.Get(1)
	assert.False(t, ok)

	rep := &domain.Report{Layout: LayoutClassic}
	cache.Set(1, rep)

	got, ok := cache.Get(1)
	require.True(t, ok)
	assert.Same(t, rep, got)

	stats := cache.Stats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, int64(1), stats.HitCount)
	assert.Equal(t, int64(1), stats.MissCount)
	assert.Equal(t, 0.5, stats.HitRatio)

	cache.Invalidate()
	_, ok = cache.Get(1)
	assert.False(t, ok)
}

func TestCacheExpiry(t *testing.T) {
	cache := NewCache(time.Minute, 10)
	defer cache.Stop()

	now := time.Now()
	cache.now = func() time.Time { return now }
	cache.Set(1, &domain.Report{})

	cache.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, ok := cache.Get(1)
	assert.False(t, ok)
}

func TestCacheEvictsOldest(t *testing.T) {
	cache := NewCache(time.Hour, 2)
	defer cache.Stop()

	base := time.Now()
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Second)
		cache.now = func() time.Time { return at }
		cache.Set(uint64(i), &domain.Report{Layout: fmt.Sprint(i)})
	}

	_, ok := cache.Get(0)
	assert.False(t, ok)
	_, ok = cache.Get(2)
	assert.True(t, ok)
	assert.Equal(t, 2, cache.Stats().Entries)
}

func TestCacheDisabled(t *testing.T) {
	cache := NewCache(time.Hour, 0)
	defer cache.Stop()
	cache.Set(1, &domain.Report{})
	_, ok := cache.Get(1)
	assert.False(t, ok)
}

func TestCacheConcurrentAccess(t *testing.T) {
	cache := NewCache(time.Hour, 50)
	defer cache.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := uint64(i % 5)
			cache.Set(key, &domain.Report{})
			cache.Get(key)
			cache.Stats()
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, cache.Stats().Entries, 5)
}
