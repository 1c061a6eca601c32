package analytics

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
)

// latencyWindow bounds how many recent latencies feed the percentiles.
const latencyWindow = 10000

type AggregatedStats struct {
	TotalSearches     int64        `json:"totalSearches"`
	TotalTermLookups  int64        `json:"totalTermLookups"`
	CacheHits         int64        `json:"cacheHits"`
	CacheMisses       int64        `json:"cacheMisses"`
	ZeroResultCount   int64        `json:"zeroResultCount"`
	AvgLatencyMicros  float64      `json:"avgLatencyMicros"`
	P50LatencyMicros  int64        `json:"p50LatencyMicros"`
	P95LatencyMicros  int64        `json:"p95LatencyMicros"`
	P99LatencyMicros  int64        `json:"p99LatencyMicros"`
	TopQueries        []QueryCount `json:"topQueries"`
	TopTerms          []QueryCount `json:"topTerms"`
	ZeroResultQueries []QueryCount `json:"zeroResultQueries"`
	QueriesPerMinute  float64      `json:"queriesPerMinute"`
	SnapshotVersion   uint64       `json:"snapshotVersion"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

type Aggregator struct {
	mu                sync.RWMutex
	totalSearches     atomic.Int64
	totalTermLookups  atomic.Int64
	cacheHits         atomic.Int64
	cacheMisses       atomic.Int64
	zeroResults       atomic.Int64
	snapshotVersion   atomic.Uint64
	latencies         []int64
	next              int
	queryCounts       map[string]int64
	termCounts        map[string]int64
	zeroResultQueries map[string]int64
	startTime         time.Time

	consumer *kafka.Consumer
	logger   *slog.Logger
}

// NewAggregator creates an Aggregator. consumer may be nil when events are
// delivered in-process through Send.
func NewAggregator(consumer *kafka.Consumer) *Aggregator {
	return &Aggregator{
		latencies:         make([]int64, 0, latencyWindow),
		queryCounts:       make(map[string]int64),
		termCounts:        make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		startTime:         time.Now(),
		consumer:          consumer,
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// NewKafkaAggregator creates an Aggregator fed by the consumer that
// newConsumer builds around the aggregator's message handler.
func NewKafkaAggregator(newConsumer func(kafka.MessageHandler) *kafka.Consumer) *Aggregator {
	agg := NewAggregator(nil)
	agg.consumer = newConsumer(HandleEvent(agg))
	return agg
}

// Start consumes events from Kafka until ctx is cancelled.
func (a *Aggregator) Start(ctx context.Context) error {
	if a.consumer == nil {
		return errors.New("analytics aggregator has no kafka consumer")
	}
	a.logger.Info("analytics aggregator starting")
	return a.consumer.Start(ctx)
}

// HealthCheck reports on the Kafka consumer. An aggregator fed in-process
// is always up.
func (a *Aggregator) HealthCheck(ctx context.Context) health.ComponentHealth {
	if a.consumer == nil {
		return health.ComponentHealth{Status: health.StatusUp, Message: "in-process"}
	}
	return a.consumer.HealthCheck(ctx)
}

// Send records event directly, making the Aggregator a Sink.
func (a *Aggregator) Send(ctx context.Context, event LookupEvent) error {
	a.Record(event)
	return nil
}

// HandleEvent adapts the Aggregator to a kafka.MessageHandler.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[LookupEvent](value)
		if err != nil {
			agg.logger.Error("failed to decode analytics event", "error", err)
			return nil
		}
		agg.Record(event)
		return nil
	}
}

func (a *Aggregator) Record(event LookupEvent) {
	switch event.Type {
	case EventTermLookup:
		a.totalTermLookups.Add(1)
	default:
		a.totalSearches.Add(1)
	}
	if event.CacheHit {
		a.cacheHits.Add(1)
	} else {
		a.cacheMisses.Add(1)
	}
	if event.ZeroResult() {
		a.zeroResults.Add(1)
	}
	for {
		cur := a.snapshotVersion.Load()
		if event.SnapshotVersion <= cur || a.snapshotVersion.CompareAndSwap(cur, event.SnapshotVersion) {
			break
		}
	}

	a.mu.Lock()
	if len(a.latencies) < latencyWindow {
		a.latencies = append(a.latencies, event.LatencyMicros)
	} else {
		a.latencies[a.next] = event.LatencyMicros
		a.next = (a.next + 1) % latencyWindow
	}
	a.queryCounts[event.Query]++
	for _, term := range event.Terms {
		a.termCounts[term]++
	}
	if event.ZeroResult() {
		a.zeroResultQueries[event.Query]++
	}
	a.mu.Unlock()
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalSearches:    a.totalSearches.Load(),
		TotalTermLookups: a.totalTermLookups.Load(),
		CacheHits:        a.cacheHits.Load(),
		CacheMisses:      a.cacheMisses.Load(),
		ZeroResultCount:  a.zeroResults.Load(),
		SnapshotVersion:  a.snapshotVersion.Load(),
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMicros = float64(sum) / float64(len(sorted))
		stats.P50LatencyMicros = percentile(sorted, 50)
		stats.P95LatencyMicros = percentile(sorted, 95)
		stats.P99LatencyMicros = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, 10)
	stats.TopTerms = topN(a.termCounts, 10)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, 10)
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches+stats.TotalTermLookups) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN orders by count, then query, so ties are stable.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
