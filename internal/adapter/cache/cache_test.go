package cache

import (
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/couchcryptid/purple-haze-etl/internal/domain"
	"github.com/couchcryptid/purple-haze-etl/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes for cache tests ---

type memFile struct{ name string }

func (m memFile) Name() string { return m.name }
func (m memFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("created_at,PM2.5_ATM_ug/m3\n2020-05-01 00:00:00,1.0\n")), nil
}

type countingLoader struct {
	mu    sync.Mutex
	calls map[string]int
	err   error
}

func (c *countingLoader) Load(ref domain.FileRef) (*domain.Series, error) {
	c.mu.Lock()
	if c.calls == nil {
		c.calls = make(map[string]int)
	}
	c.calls[ref.Name()]++
	c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return domain.LoadSeries(ref)
}

const testName = "Loc (outside) (47.6 -122.3) Primary.csv"

// --- CachedLoader tests ---

func TestCachedLoader_Hit(t *testing.T) {
	inner := &countingLoader{}
	metrics := observability.NewMetricsForTesting()
	cached := NewCachedLoader(inner, 10, metrics)

	s1, err := cached.Load(memFile{testName})
	require.NoError(t, err)
	s2, err := cached.Load(memFile{testName})
	require.NoError(t, err)

	assert.Same(t, s1, s2)
	assert.Equal(t, 1, inner.calls[testName], "should only call inner once")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SeriesCache.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SeriesCache.WithLabelValues("miss")))
}

func TestCachedLoader_ErrorsNotCached(t *testing.T) {
	inner := &countingLoader{err: errors.New("disk on fire")}
	cached := NewCachedLoader(inner, 10, nil)

	_, err := cached.Load(memFile{testName})
	require.Error(t, err)
	_, err = cached.Load(memFile{testName})
	require.Error(t, err)

	assert.Equal(t, 2, inner.calls[testName])
	assert.Equal(t, 0, cached.Len())
}

func TestCachedLoader_LoaderFunc(t *testing.T) {
	cached := NewCachedLoader(LoaderFunc(domain.LoadSeries), 2, nil)
	s, err := cached.Load(memFile{testName})
	require.NoError(t, err)
	assert.Equal(t, "loc", s.Identity().SensorName)
	assert.Equal(t, 1, cached.Len())
}

func TestCachedLoader_Concurrent(t *testing.T) {
	inner := &countingLoader{}
	cached := NewCachedLoader(inner, 10, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cached.Load(memFile{testName})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, cached.Len())
}

// --- LRU cache unit tests ---

func series(t *testing.T, name string) *domain.Series {
	t.Helper()
	s, err := domain.NewSeries(domain.Identity{File: name}, nil, nil)
	require.NoError(t, err)
	return s
}

func TestLRUCache_BasicGetPut(t *testing.T) {
	c := newLRUCache(3)
	a := series(t, "a")

	c.put("a", a)
	c.put("b", series(t, "b"))

	got, ok := c.get("a")
	assert.True(t, ok)
	assert.Same(t, a, got)

	_, ok = c.get("missing")
	assert.False(t, ok)
}

func TestLRUCache_Eviction(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", series(t, "a"))
	c.put("b", series(t, "b"))
	c.put("c", series(t, "c")) // evicts "a"

	_, ok := c.get("a")
	assert.False(t, ok, "a should have been evicted")

	got, ok := c.get("b")
	assert.True(t, ok)
	assert.Equal(t, "b", got.Identity().File)

	got, ok = c.get("c")
	assert.True(t, ok)
	assert.Equal(t, "c", got.Identity().File)
}

func TestLRUCache_AccessPromotesEntry(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", series(t, "a"))
	c.put("b", series(t, "b"))

	c.get("a")

	// "b" is now least recently used.
	c.put("c", series(t, "c"))

	_, ok := c.get("a")
	assert.True(t, ok, "a was accessed recently, should not be evicted")

	_, ok = c.get("b")
	assert.False(t, ok, "b should have been evicted")
}

func TestLRUCache_UpdateExisting(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", series(t, "a1"))
	c.put("a", series(t, "a2"))

	got, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, "a2", got.Identity().File)
	assert.Len(t, c.entries, 1)
}

func TestLRUCache_MinimumSize(t *testing.T) {
	c := newLRUCache(0)
	c.put("a", series(t, "a"))
	_, ok := c.get("a")
	assert.True(t, ok)
}
