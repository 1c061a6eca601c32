package termindex

import (
	"errors"
	"os"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/termindex/segment"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const smallSnapshot = `{
	"documentNames": ["gettingStarted", "index"],
	"documentTitles": ["Getting started", "Welcome"],
	"terms": {"build": [0], "cmake": [0, 1], "welcom": 1}
}`

func loadSphinxFixture(t testing.TB) *Index {
	t.Helper()
	raw, err := os.ReadFile("testdata/searchindex.js")
	require.NoError(t, err)
	idx, err := Load(raw)
	require.NoError(t, err)
	return idx
}

func TestLookupExample(t *testing.T) {
	idx, err := Load([]byte(smallSnapshot))
	require.NoError(t, err)

	got := idx.Lookup("build")
	require.Len(t, got, 1)
	assert.Equal(t, "gettingStarted", got[0].Filename)
	assert.Equal(t, "Getting started", got[0].Title)
	assert.Equal(t, 0, got[0].Index)

	none := idx.Lookup("nonexistent")
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestLookupNormalizesAndKeepsStoredOrder(t *testing.T) {
	idx, err := Load([]byte(`{
		"documentNames": ["a", "b", "c"],
		"documentTitles": ["A", "B", "C"],
		"terms": {"build": [2, 0, 1]}
	}`))
	require.NoError(t, err)

	var order []int
	for _, m := range idx.Lookup("  BUILDING ") {
		order = append(order, m.Index)
	}
	assert.Equal(t, []int{2, 0, 1}, order)
}

func TestLookupEmptyTerm(t *testing.T) {
	idx, err := Load([]byte(smallSnapshot))
	require.NoError(t, err)
	assert.Empty(t, idx.Lookup(""))
	assert.Empty(t, idx.Lookup("   "))
	assert.Empty(t, idx.Lookup("!!"))
}

func TestLoadSphinxFile(t *testing.T) {
	idx := loadSphinxFixture(t)

	stats := idx.Stats()
	assert.Equal(t, 3, stats.Documents)
	assert.Equal(t, 153, stats.Terms)
	assert.Equal(t, 19, stats.TitleTerms)
	assert.Equal(t, 10, stats.Headings)

	doc, ok := idx.Document(0)
	require.True(t, ok)
	assert.Equal(t, "gettingStarted", doc.Name)
	assert.Equal(t, "gettingStarted.rst", doc.File)
	assert.Equal(t, []Heading{
		{Heading: "Getting started", Anchor: "getting-started"},
		{Heading: "Building with CMake Presets", Anchor: "building-with-cmake-presets"},
		{Heading: "Prerequisites", Anchor: "prerequisites"},
		{Heading: "Run test case", Anchor: "run-test-case"},
	}, doc.Headings)
}

func TestLookupSphinxAnchors(t *testing.T) {
	idx := loadSphinxFixture(t)

	got := idx.Lookup("Building")
	require.Len(t, got, 2)
	assert.Equal(t, "index", got[0].Filename)
	assert.Empty(t, got[0].Anchor)
	assert.False(t, got[0].TitleMatch)
	assert.Equal(t, "gettingStarted", got[1].Filename)
	assert.Equal(t, "building-with-cmake-presets", got[1].Anchor)
	assert.Equal(t, "Building with CMake Presets", got[1].Heading)
	assert.True(t, got[1].TitleMatch)

	tests := idx.Lookup("test")
	require.Len(t, tests, 3)
	assert.Equal(t, []int{1, 0, 2}, []int{tests[0].Index, tests[1].Index, tests[2].Index})
	assert.Equal(t, "run-test-case", tests[1].Anchor)
	assert.Equal(t, "test-cases", tests[2].Anchor)
}

func TestLookupFallsBackToExactKey(t *testing.T) {
	idx := loadSphinxFixture(t)
	got := idx.Lookup("The")
	require.Len(t, got, 2)
	key, ok := idx.Resolve("The")
	assert.True(t, ok)
	assert.Equal(t, "The", key)
}

func TestEveryVocabularyTermResolves(t *testing.T) {
	idx := loadSphinxFixture(t)
	for _, term := range idx.Terms() {
		matches := idx.Lookup(term)
		require.NotEmpty(t, matches, "term %q", term)
		for _, m := range matches {
			_, ok := idx.Document(m.Index)
			assert.True(t, ok, "term %q returned invalid document %d", term, m.Index)
		}
	}
}

func TestLookupMatchesPostingsForEveryTerm(t *testing.T) {
	canonical, err := Load([]byte(`{
		"documentNames": ["a", "b", "c"],
		"documentTitles": ["A", "B", "C"],
		"terms": {"foam": [0], "foam::mesh": [1], "run": [2], "running": [1], "Case": [0, 2]},
		"titleTerms": {"mesh": [2]}
	}`))
	require.NoError(t, err)

	for name, idx := range map[string]*Index{"canonical": canonical, "sphinx": loadSphinxFixture(t)} {
		t.Run(name, func(t *testing.T) {
			for _, term := range idx.Terms() {
				key, ok := idx.Resolve(term)
				require.True(t, ok, "term %q", term)
				assert.Equal(t, term, key)

				var got []int
				for _, m := range idx.Lookup(term) {
					got = append(got, m.Index)
				}
				assert.Equal(t, idx.Postings(term), got, "term %q", term)
			}
		})
	}
}

func TestResolvePrefersExactTerm(t *testing.T) {
	idx, err := Load([]byte(`{
		"documentNames": ["a", "b"],
		"documentTitles": ["A", "B"],
		"terms": {"run": [0], "running": [1]}
	}`))
	require.NoError(t, err)

	key, ok := idx.Resolve("Running")
	assert.True(t, ok)
	assert.Equal(t, "running", key)

	key, ok = idx.Resolve("runs")
	assert.True(t, ok)
	assert.Equal(t, "run", key, "falls back to the stem")
}

func TestTermsWithoutDocumentsAreDropped(t *testing.T) {
	idx, err := Load([]byte(`{
		"documentNames": ["a"],
		"documentTitles": ["A"],
		"terms": {"x": [], "y": [0]},
		"titleTerms": {"z": []}
	}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"y"}, idx.Terms())
	_, ok := idx.Resolve("x")
	assert.False(t, ok)
	assert.Empty(t, idx.Lookup("x"))
}

func TestRoundTrip(t *testing.T) {
	idx := loadSphinxFixture(t)

	data, err := Marshal(idx)
	require.NoError(t, err)
	reloaded, err := Load(data)
	require.NoError(t, err)

	seg := segment.Encode(data, idx.Len(), len(idx.Terms()))
	fromSegment, err := Load(seg)
	require.NoError(t, err)

	assert.Equal(t, idx.Terms(), reloaded.Terms())
	assert.Equal(t, idx.Documents(), reloaded.Documents())
	for _, term := range idx.Terms() {
		assert.Equal(t, idx.Lookup(term), reloaded.Lookup(term), "term %q", term)
		assert.Equal(t, idx.Lookup(term), fromSegment.Lookup(term), "term %q", term)
	}
}

func TestEmptySnapshot(t *testing.T) {
	idx, err := Load([]byte(`{"documentNames": [], "documentTitles": [], "terms": {}}`))
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Len())
	assert.Empty(t, idx.Terms())
	assert.Empty(t, idx.Lookup("build"))
}

func TestLoadMalformed(t *testing.T) {
	tests := map[string]string{
		"out of range":        `{"documentNames": ["gettingStarted", "index"], "documentTitles": ["a", "b"], "terms": {"build": [2]}}`,
		"negative":            `{"documentNames": ["a"], "documentTitles": ["a"], "terms": {"x": -1}}`,
		"missing terms":       `{"documentNames": ["a"], "documentTitles": ["a"]}`,
		"missing names":       `{"documentTitles": [], "terms": {}}`,
		"missing titles":      `{"documentNames": [], "terms": {}}`,
		"title count":         `{"documentNames": ["a", "b"], "documentTitles": ["a"], "terms": {}}`,
		"title term range":    `{"documentNames": ["a"], "documentTitles": ["a"], "terms": {}, "titleTerms": {"a": [1]}}`,
		"heading range":       `{"documentNames": ["a"], "documentTitles": ["a"], "terms": {}, "titleTermsMap": {"3": []}}`,
		"not json":            `Search.setIndex(nope)`,
		"not an object":       `[1, 2]`,
		"bad refs":            `{"documentNames": ["a"], "documentTitles": ["a"], "terms": {"x": "zero"}}`,
		"sphinx out of range": `Search.setIndex({"docnames": ["a"], "titles": ["A"], "terms": {"x": [0, 1]}})`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			idx, err := Load([]byte(raw))
			assert.Nil(t, idx)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrMalformedIndex), "got %v", err)
		})
	}
}

func TestMalformedMessageNamesTerm(t *testing.T) {
	_, err := Load([]byte(`{"documentNames": ["a"], "documentTitles": ["a"], "terms": {"zeta": [0], "alpha": [5]}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `term "alpha" references document 5`)
}

func TestSnapshotIsACopy(t *testing.T) {
	idx, err := Load([]byte(smallSnapshot))
	require.NoError(t, err)

	snap := idx.Snapshot()
	snap.Terms["build"][0] = 1
	snap.DocumentNames[0] = "changed"

	got := idx.Lookup("build")
	require.Len(t, got, 1)
	assert.Equal(t, "gettingStarted", got[0].Filename)
}

func TestComplete(t *testing.T) {
	idx, err := Load([]byte(`{
		"documentNames": ["a"],
		"documentTitles": ["A"],
		"terms": {"build": [0], "builder": [0], "bundl": [0], "cmake": [0]},
		"titleTerms": {"buildsystem": [0]}
	}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"build", "builder", "buildsystem"}, idx.Complete("Buil", 0))
	assert.Equal(t, []string{"build", "builder"}, idx.Complete("buil", 2))
	assert.Equal(t, []string{"build", "builder", "buildsystem", "bundl"}, idx.Complete("bu", 10))
	assert.Empty(t, idx.Complete("zzz", 10))
	assert.Empty(t, idx.Complete("  ", 10))
}
