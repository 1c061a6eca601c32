package executor

import (
	"context"
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/snapshot/registry"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/termindex"
)

// benchExecutor serves a synthetic snapshot where termN appears on every
// (N%7+2)-th page.
func benchExecutor(b *testing.B, docs, terms int) *Executor {
	b.Helper()
	snap := &termindex.Snapshot{
		DocumentNames:  make([]string, docs),
		DocumentTitles: make([]string, docs),
		Terms:          make(map[string]termindex.DocRefs, terms),
	}
	for d := 0; d < docs; d++ {
		snap.DocumentNames[d] = fmt.Sprintf("page-%d", d)
		snap.DocumentTitles[d] = fmt.Sprintf("Page %d", d)
	}
	for t := 0; t < terms; t++ {
		var refs termindex.DocRefs
		for d := t % docs; d < docs; d += t%7 + 2 {
			refs = append(refs, d)
		}
		snap.Terms[fmt.Sprintf("term%d", t)] = refs
	}
	idx, err := termindex.FromSnapshot(snap)
	if err != nil {
		b.Fatal(err)
	}
	return New(staticProvider{snap: &registry.Snapshot{Index: idx, Version: 1}})
}

func BenchmarkQueryParse(b *testing.B) {
	queries := []struct {
		name  string
		query string
	}{
		{"simple", "cmake presets"},
		{"boolean_and", "build AND cmake AND presets"},
		{"boolean_or", "kokkos OR cuda OR openmp"},
		{"with_not", "build NOT windows"},
		{"long", "getting started building with cmake presets prerequisites running test cases"},
	}
	for _, q := range queries {
		b.Run(q.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = parser.Parse(q.query)
			}
		})
	}
}

func BenchmarkExecute(b *testing.B) {
	exec := benchExecutor(b, 2000, 500)
	ctx := context.Background()
	queries := map[string]string{
		"single": "term3",
		"and":    "term2 term5",
		"or":     "term2 OR term5 OR term11",
		"not":    "term2 -term5",
	}
	for name, q := range queries {
		plan := parser.Parse(q)
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := exec.Execute(ctx, plan, 20); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkExecuteParallel(b *testing.B) {
	exec := benchExecutor(b, 2000, 500)
	plan := parser.Parse("term2 OR term9")
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		ctx := context.Background()
		for pb.Next() {
			if _, err := exec.Execute(ctx, plan, 20); err != nil {
				b.Error(err)
				return
			}
		}
	})
}
