package cache

import (
	"context"
	"errors"
	"path"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/snapshot/registry"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/termindex"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory Store that answers misses the way Redis does.
type memStore struct {
	mu   sync.Mutex
	data map[string]string
	err  error
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]string)}
}

func (m *memStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	v, ok := m.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (m *memStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	return nil
}

func (m *memStore) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

type snapshotOf struct {
	snap *registry.Snapshot
}

func (p snapshotOf) Current() (*registry.Snapshot, error) {
	return p.snap, nil
}

func sampleResult(query string) *executor.SearchResult {
	return &executor.SearchResult{
		Query:           query,
		SnapshotVersion: 1,
		TotalHits:       1,
		Results:         []termindex.DocumentMatch{{Index: 0, Filename: "gettingStarted", Title: "Getting started"}},
	}
}

func TestGetSet(t *testing.T) {
	c := New(newMemStore(), time.Minute)
	ctx := context.Background()

	_, ok := c.Get(ctx, 1, "build", 10)
	assert.False(t, ok)

	c.Set(ctx, 1, "build", 10, sampleResult("build"))
	got, ok := c.Get(ctx, 1, "build", 10)
	require.True(t, ok)
	assert.Equal(t, sampleResult("build"), got)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestKeysAreVersioned(t *testing.T) {
	c := New(newMemStore(), time.Minute)
	ctx := context.Background()

	c.Set(ctx, 1, "build", 10, sampleResult("build"))
	_, ok := c.Get(ctx, 2, "build", 10)
	assert.False(t, ok, "a new snapshot version must not see old entries")
	assert.NotEqual(t, BuildKey(1, "build", 10), BuildKey(2, "build", 10))
}

func TestBuildKeyNormalizesQuery(t *testing.T) {
	assert.Equal(t, BuildKey(1, "build cmake", 10), BuildKey(1, "Build  CMake", 10))
	assert.Equal(t, BuildKey(1, "build -windows", 10), BuildKey(1, "build NOT Windows", 10))
	assert.Equal(t, BuildKey(1, "build -a -b", 10), BuildKey(1, "build -b -a", 10))
	assert.NotEqual(t, BuildKey(1, "build cmake", 10), BuildKey(1, "build OR cmake", 10))
	assert.NotEqual(t, BuildKey(1, "build cmake", 10), BuildKey(1, "cmake build", 10), "term order decides result order")
	assert.NotEqual(t, BuildKey(1, "build", 10), BuildKey(1, "build", 20))
}

func TestCachedSearchMatchesUncached(t *testing.T) {
	idx, err := termindex.Load([]byte(`{
		"documentNames": ["a", "b"],
		"documentTitles": ["A", "B"],
		"terms": {"running": [0], "run": [1]}
	}`))
	require.NoError(t, err)
	exec := executor.New(snapshotOf{&registry.Snapshot{Index: idx, Version: 1}})
	c := New(newMemStore(), time.Minute)
	ctx := context.Background()

	search := func(query string) []string {
		plan := parser.Parse(query)
		res, _, err := c.GetOrCompute(ctx, 1, query, 10, func() (*executor.SearchResult, error) {
			return exec.Execute(ctx, plan, 10)
		})
		require.NoError(t, err)
		names := make([]string, len(res.Results))
		for i, m := range res.Results {
			names[i] = m.Filename
		}
		return names
	}

	for _, query := range []string{"running", "runs", "running", "runs"} {
		plan := parser.Parse(query)
		uncached, err := exec.Execute(ctx, plan, 10)
		require.NoError(t, err)
		want := make([]string, len(uncached.Results))
		for i, m := range uncached.Results {
			want[i] = m.Filename
		}
		assert.Equal(t, want, search(query), "query %q", query)
	}
	assert.NotEqual(t, BuildKey(1, "running", 10), BuildKey(1, "runs", 10))
}

func TestGetOrComputeDeduplicates(t *testing.T) {
	c := New(newMemStore(), time.Minute)
	ctx := context.Background()

	var calls atomic.Int32
	release := make(chan struct{})
	compute := func() (*executor.SearchResult, error) {
		calls.Add(1)
		<-release
		return sampleResult("build"), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, _, err := c.GetOrCompute(ctx, 1, "build", 10, compute)
			assert.NoError(t, err)
			assert.Equal(t, "build", res.Query)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.LessOrEqual(t, calls.Load(), int32(10))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))

	res, hit, err := c.GetOrCompute(ctx, 1, "build", 10, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "build", res.Query)
}

func TestGetOrComputeError(t *testing.T) {
	c := New(newMemStore(), time.Minute)
	boom := errors.New("boom")
	_, _, err := c.GetOrCompute(context.Background(), 1, "build", 10, func() (*executor.SearchResult, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestStoreFailureIsAMiss(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("connection refused")
	c := New(store, time.Minute)

	res, hit, err := c.GetOrCompute(context.Background(), 1, "build", 10, func() (*executor.SearchResult, error) {
		return sampleResult("build"), nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "build", res.Query)
}

func TestInvalidate(t *testing.T) {
	store := newMemStore()
	c := New(store, time.Minute)
	ctx := context.Background()
	c.Set(ctx, 1, "build", 10, sampleResult("build"))
	c.Set(ctx, 2, "cmake", 10, sampleResult("cmake"))
	store.data["other:key"] = "x"

	n, err := c.Invalidate(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Len(t, store.data, 1)
}
