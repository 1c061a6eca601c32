package termindex

import (
	"fmt"
	"testing"
)

func syntheticSnapshot(docs, terms int) *Snapshot {
	snap := &Snapshot{
		DocumentNames:  make([]string, docs),
		DocumentTitles: make([]string, docs),
		Terms:          make(map[string]DocRefs, terms),
		TitleTermsMap:  make(map[int][]Heading, docs),
	}
	for d := 0; d < docs; d++ {
		snap.DocumentNames[d] = fmt.Sprintf("page-%d", d)
		snap.DocumentTitles[d] = fmt.Sprintf("Page %d", d)
		snap.TitleTermsMap[d] = []Heading{{Heading: fmt.Sprintf("Section term%d", d%terms), Anchor: fmt.Sprintf("s-%d", d)}}
	}
	for t := 0; t < terms; t++ {
		refs := make(DocRefs, 0, 8)
		for d := t % docs; d < docs; d += terms/docs + 7 {
			refs = append(refs, d)
		}
		snap.Terms[fmt.Sprintf("term%d", t)] = refs
	}
	return snap
}

// BenchmarkLookup measures single-term lookup latency over a 1 000 page
// snapshot.
func BenchmarkLookup(b *testing.B) {
	idx, err := FromSnapshot(syntheticSnapshot(1000, 5000))
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = idx.Lookup("term42")
	}
}

// BenchmarkLookupParallel measures concurrent read throughput.
func BenchmarkLookupParallel(b *testing.B) {
	idx, err := FromSnapshot(syntheticSnapshot(1000, 5000))
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_ = idx.Lookup(fmt.Sprintf("term%d", i%5000))
			i++
		}
	})
}

// BenchmarkLoad measures parse plus validation of canonical JSON.
func BenchmarkLoad(b *testing.B) {
	idx, err := FromSnapshot(syntheticSnapshot(1000, 5000))
	if err != nil {
		b.Fatal(err)
	}
	data, err := Marshal(idx)
	if err != nil {
		b.Fatal(err)
	}
	b.SetBytes(int64(len(data)))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Load(data); err != nil {
			b.Fatal(err)
		}
	}
}
