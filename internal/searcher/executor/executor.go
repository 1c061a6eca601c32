// Package executor evaluates a parsed query against the snapshot currently
// being served. Document sets are combined with roaring bitmaps; results keep
// the order in which the snapshot lists documents for each term.
package executor

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/snapshot/registry"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/termindex"
	"github.com/RoaringBitmap/roaring/v2"
)

type SearchResult struct {
	Query           string                    `json:"query"`
	SnapshotVersion uint64                    `json:"snapshotVersion"`
	TotalHits       int                       `json:"totalHits"`
	Results         []termindex.DocumentMatch `json:"results"`
	TermStats       map[string]int            `json:"termStats,omitempty"`
}

// SnapshotProvider yields the snapshot to search.
type SnapshotProvider interface {
	Current() (*registry.Snapshot, error)
}

type Executor struct {
	snapshots SnapshotProvider
	logger    *slog.Logger
}

func New(snapshots SnapshotProvider) *Executor {
	return &Executor{
		snapshots: snapshots,
		logger:    slog.Default().With("component", "query-executor"),
	}
}

// Execute runs plan against the current snapshot. With AND every term must
// match; a term missing from the vocabulary therefore empties the result.
func (e *Executor) Execute(ctx context.Context, plan *parser.QueryPlan, limit int) (*SearchResult, error) {
	snap, err := e.snapshots.Current()
	if err != nil {
		return nil, err
	}
	result := &SearchResult{
		Query:           plan.RawQuery,
		SnapshotVersion: snap.Version,
		Results:         []termindex.DocumentMatch{},
	}
	if len(plan.Terms) == 0 {
		return result, nil
	}
	idx := snap.Index

	keys := make([]string, 0, len(plan.Terms))
	postings := make([][]int, 0, len(plan.Terms))
	sets := make([]*roaring.Bitmap, 0, len(plan.Terms))
	result.TermStats = make(map[string]int, len(plan.Terms))
	for _, term := range plan.Terms {
		key, ok := idx.Resolve(term.Surface)
		var docs []int
		if ok {
			docs = idx.Postings(key)
			keys = append(keys, key)
		}
		result.TermStats[term.Surface] = len(docs)
		postings = append(postings, docs)
		sets = append(sets, bitmapOf(docs))
	}

	var candidates *roaring.Bitmap
	switch plan.Type {
	case parser.QueryOR:
		candidates = roaring.FastOr(sets...)
	default:
		candidates = roaring.FastAnd(sets...)
	}

	for _, term := range plan.ExcludeTerms {
		if key, ok := idx.Resolve(term.Surface); ok {
			candidates.AndNot(bitmapOf(idx.Postings(key)))
		}
	}

	result.TotalHits = int(candidates.GetCardinality())
	for _, doc := range firstAppearance(postings, candidates) {
		if limit > 0 && len(result.Results) >= limit {
			break
		}
		result.Results = append(result.Results, idx.Match(doc, keys...))
	}

	e.logger.Debug("query executed",
		"query", plan.RawQuery,
		"type", plan.Type.String(),
		"terms", keys,
		"candidates", result.TotalHits,
		"results", len(result.Results),
		"snapshot_version", snap.Version,
	)
	return result, nil
}

// Lookup resolves a single term, exactly as termindex.Index.Lookup does, and
// reports the snapshot version it was answered from.
func (e *Executor) Lookup(ctx context.Context, term string) (key string, matches []termindex.DocumentMatch, version uint64, err error) {
	snap, err := e.snapshots.Current()
	if err != nil {
		return "", nil, 0, err
	}
	key, _ = snap.Index.Resolve(term)
	return key, snap.Index.Lookup(term), snap.Version, nil
}

func bitmapOf(docs []int) *roaring.Bitmap {
	bm := roaring.New()
	for _, d := range docs {
		bm.Add(uint32(d))
	}
	return bm
}

// firstAppearance lists the documents in keep, walking each term's postings
// in query order and stored order.
func firstAppearance(postings [][]int, keep *roaring.Bitmap) []int {
	out := make([]int, 0, keep.GetCardinality())
	seen := roaring.New()
	for _, docs := range postings {
		for _, d := range docs {
			id := uint32(d)
			if !keep.Contains(id) || seen.Contains(id) {
				continue
			}
			seen.Add(id)
			out = append(out, d)
		}
	}
	return out
}
