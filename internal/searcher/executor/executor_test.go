package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/snapshot/registry"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/termindex"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSnapshot = `{
  "documentNames": ["install", "build", "index"],
  "documentTitles": ["Installation", "Building", "Welcome"],
  "terms": {
    "build": [1, 0],
    "cmake": [1, 2],
    "instal": [0],
    "window": [1],
    "docker": [0, 2]
  },
  "titleTerms": {"instal": [0]},
  "titleTermsMap": {
    "0": [{"heading": "Installation", "anchor": ""}, {"heading": "Installing with Docker", "anchor": "installing-with-docker"}],
    "1": [{"heading": "Building", "anchor": ""}, {"heading": "Windows", "anchor": "windows"}]
  }
}`

type staticProvider struct {
	snap *registry.Snapshot
}

func (p staticProvider) Current() (*registry.Snapshot, error) {
	if p.snap == nil {
		return nil, apperrors.ErrSnapshotUnavailable
	}
	return p.snap, nil
}

func newExecutor(t *testing.T) *Executor {
	t.Helper()
	idx, err := termindex.Load([]byte(testSnapshot))
	require.NoError(t, err)
	return New(staticProvider{snap: &registry.Snapshot{Index: idx, Version: 7}})
}

func filenames(res *SearchResult) []string {
	out := make([]string, len(res.Results))
	for i, m := range res.Results {
		out[i] = m.Filename
	}
	return out
}

func TestExecute(t *testing.T) {
	exec := newExecutor(t)
	tests := []struct {
		name  string
		query string
		limit int
		want  []string
		total int
	}{
		{"single term keeps stored order", "build", 10, []string{"build", "install"}, 2},
		{"and", "build cmake", 10, []string{"build"}, 1},
		{"or in first appearance order", "build OR docker", 10, []string{"build", "install", "index"}, 3},
		{"dash exclusion", "build -windows", 10, []string{"install"}, 1},
		{"not exclusion", "cmake NOT docker", 10, []string{"build"}, 1},
		{"and with unknown term", "build nonexistent", 10, []string{}, 0},
		{"or with unknown term", "build OR nonexistent", 10, []string{"build", "install"}, 2},
		{"limit", "build OR docker", 1, []string{"build"}, 3},
		{"stop-words only", "the", 10, []string{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := exec.Execute(context.Background(), parser.Parse(tt.query), tt.limit)
			require.NoError(t, err)
			assert.Equal(t, tt.want, filenames(res))
			assert.Equal(t, tt.total, res.TotalHits)
			assert.Equal(t, uint64(7), res.SnapshotVersion)
			assert.Equal(t, tt.query, res.Query)
		})
	}
}

func TestExecuteMatchesLookupForSingleTerm(t *testing.T) {
	exec := newExecutor(t)
	snap, err := exec.snapshots.Current()
	require.NoError(t, err)
	for _, term := range snap.Index.Terms() {
		res, err := exec.Execute(context.Background(), parser.Parse(term), 0)
		require.NoError(t, err)
		assert.Equal(t, snap.Index.Lookup(term), res.Results, "term %q", term)
	}
}

func TestExecuteAnchors(t *testing.T) {
	exec := newExecutor(t)
	res, err := exec.Execute(context.Background(), parser.Parse("docker"), 10)
	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	assert.Equal(t, "installing-with-docker", res.Results[0].Anchor)
	assert.Equal(t, "Installing with Docker", res.Results[0].Heading)
	assert.Empty(t, res.Results[1].Anchor)
	assert.Equal(t, map[string]int{"docker": 2}, res.TermStats)
}

func TestExecuteEmptyPlan(t *testing.T) {
	exec := newExecutor(t)
	res, err := exec.Execute(context.Background(), parser.Parse(""), 10)
	require.NoError(t, err)
	assert.NotNil(t, res.Results)
	assert.Empty(t, res.Results)
}

func TestExecuteWithoutSnapshot(t *testing.T) {
	exec := New(staticProvider{})
	_, err := exec.Execute(context.Background(), parser.Parse("build"), 10)
	assert.True(t, errors.Is(err, apperrors.ErrSnapshotUnavailable))

	_, _, _, err = exec.Lookup(context.Background(), "build")
	assert.True(t, errors.Is(err, apperrors.ErrSnapshotUnavailable))
}

func TestLookup(t *testing.T) {
	exec := newExecutor(t)
	key, matches, version, err := exec.Lookup(context.Background(), "Installing")
	require.NoError(t, err)
	assert.Equal(t, "instal", key)
	assert.Equal(t, uint64(7), version)
	require.Len(t, matches, 1)
	assert.Equal(t, "install", matches[0].Filename)
	assert.True(t, matches[0].TitleMatch)
}
