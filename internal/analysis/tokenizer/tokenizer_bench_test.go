package tokenizer

import (
	"fmt"
	"strings"
	"testing"
)

var sampleTexts = map[string]string{
	"heading": "Building with CMake Presets",
	"paragraph": `FoamAdapter couples the NeoFOAM core to OpenFOAM applications. To build it,
        clone the repository including its submodules, configure with one of the provided
        CMake presets and compile with Ninja. Kokkos flags select the backend used to run
        the test cases on CPUs or GPUs.`,
	"page": strings.Repeat(`The documentation build writes a search index next to the rendered
        pages. Every word of every page is stemmed, stop words are kept, and each stem maps
        to the pages containing it. Section headings carry anchors so a hit can link
        straight to the section instead of the top of the page. `, 20),
}

func BenchmarkTokenize(b *testing.B) {
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = Tokenize(text)
			}
		})
	}
}

func BenchmarkTokenizeParallel(b *testing.B) {
	text := sampleTexts["paragraph"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = Tokenize(text)
		}
	})
}

func BenchmarkStem(b *testing.B) {
	words := []string{
		"building", "presets", "prerequisites", "configuration",
		"compiling", "repositories", "submodules", "running",
		"advection", "documentation",
	}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		for _, w := range words {
			_ = Stem(w)
		}
	}
}

func BenchmarkTokenizeVaryingSize(b *testing.B) {
	baseWord := "building documentation search index anchors "
	for _, size := range []int{10, 100, 500, 1000, 5000} {
		text := strings.Repeat(baseWord, size/len(baseWord)+1)[:size]
		b.Run(fmt.Sprintf("bytes_%d", size), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = Tokenize(text)
			}
		})
	}
}
