// Package cache stores search results in Redis. Keys carry the snapshot
// version, so a reload makes every earlier entry unreachable without a flush.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/redis"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "search:"

// Store is the subset of pkg/redis.Client the cache needs.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type QueryCache struct {
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func New(store Store, ttl time.Duration) *QueryCache {
	return &QueryCache{
		store:  store,
		ttl:    ttl,
		logger: slog.Default().With("component", "query-cache"),
	}
}

// WithMetrics mirrors hit and miss counts into Prometheus.
func (c *QueryCache) WithMetrics(m *metrics.Metrics) *QueryCache {
	c.metrics = m
	return c
}

func (c *QueryCache) Get(ctx context.Context, version uint64, query string, limit int) (*executor.SearchResult, bool) {
	key := BuildKey(version, query, limit)
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	var result executor.SearchResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hit()
	c.logger.Debug("cache hit", "query", query, "key", key)
	return &result, true
}

func (c *QueryCache) Set(ctx context.Context, version uint64, query string, limit int, result *executor.SearchResult) {
	key := BuildKey(version, query, limit)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result or runs computeFn once per key,
// however many callers ask concurrently. The bool reports a cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	version uint64,
	query string,
	limit int,
	computeFn func() (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	if result, ok := c.Get(ctx, version, query, limit); ok {
		return result, true, nil
	}
	key := BuildKey(version, query, limit)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, version, query, limit, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*executor.SearchResult), false, nil
}

// Invalidate deletes every cached result and returns the number removed.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return deleted, nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) hit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// BuildKey derives the cache key from the words the executor resolves: the
// lower-cased surface forms, included terms in query order since that order
// decides result order. Two queries share a key only if they run the same
// plan against the same snapshot.
func BuildKey(version uint64, query string, limit int) string {
	raw := fmt.Sprintf("%s:limit=%d", normalizeQuery(query), limit)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%sv%d:%x", keyPrefix, version, hash[:16])
}

func normalizeQuery(query string) string {
	plan := parser.Parse(query)
	terms := make([]string, len(plan.Terms))
	for i, t := range plan.Terms {
		terms[i] = t.Surface
	}
	excludes := make([]string, len(plan.ExcludeTerms))
	for i, t := range plan.ExcludeTerms {
		excludes[i] = t.Surface
	}
	sort.Strings(excludes)
	parts := []string{plan.Type.String(), strings.Join(terms, ",")}
	if len(excludes) > 0 {
		parts = append(parts, "NOT:"+strings.Join(excludes, ","))
	}
	return strings.Join(parts, "|")
}
