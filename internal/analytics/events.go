// Package analytics records what readers look up: every search and term
// lookup becomes a LookupEvent, is shipped through a Sink (Kafka, or the
// in-process Aggregator when Kafka is off) and folded into AggregatedStats.
package analytics

import (
	"context"
	"time"
)

type EventType string

const (
	EventSearch     EventType = "search"
	EventTermLookup EventType = "term_lookup"
)

type LookupEvent struct {
	Type            EventType `json:"type"`
	Query           string    `json:"query"`
	Terms           []string  `json:"terms"`
	TotalHits       int       `json:"totalHits"`
	Returned        int       `json:"returned"`
	LatencyMicros   int64     `json:"latencyMicros"`
	CacheHit        bool      `json:"cacheHit"`
	SnapshotVersion uint64    `json:"snapshotVersion"`
	Timestamp       time.Time `json:"timestamp"`
	RequestID       string    `json:"requestId,omitempty"`
}

// ZeroResult reports whether the lookup found nothing.
func (e LookupEvent) ZeroResult() bool {
	return e.TotalHits == 0
}

// Sink delivers events to wherever they are aggregated.
type Sink interface {
	Send(ctx context.Context, event LookupEvent) error
}
