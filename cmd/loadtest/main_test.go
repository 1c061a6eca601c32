package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestURL(t *testing.T) {
	cfg := Config{BaseURL: "http://localhost:8080", LookupEvery: 2, Queries: []string{"cmake presets", "build -test"}}

	target, isLookup := requestURL(cfg, 0)
	assert.True(t, isLookup)
	assert.Equal(t, "http://localhost:8080/api/v1/terms/cmake", target)

	target, isLookup = requestURL(cfg, 1)
	assert.False(t, isLookup)
	assert.Equal(t, "http://localhost:8080/api/v1/search?q=build+-test&limit=10", target)

	cfg.LookupEvery = 0
	_, isLookup = requestURL(cfg, 0)
	assert.False(t, isLookup)
}

func TestReadQueries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queries.txt")
	require.NoError(t, os.WriteFile(path, []byte("# docs\nbuild\n\n  test cases \n"), 0o644))

	got, err := readQueries(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"build", "test cases"}, got)

	require.NoError(t, os.WriteFile(path, []byte("# nothing\n"), 0o644))
	_, err = readQueries(path)
	assert.Error(t, err)
}

func TestPercentileAndStats(t *testing.T) {
	s := NewStats()
	s.RecordRequest(time.Millisecond, 200, nil)
	s.RecordRequest(3*time.Millisecond, 503, nil)
	assert.Equal(t, int64(2), s.totalRequests.Load())
	assert.Equal(t, int64(1), s.errorCount.Load())

	lat := []time.Duration{1, 2, 3, 4}
	assert.Equal(t, time.Duration(2), percentile(lat, 50))
	assert.Equal(t, time.Duration(4), percentile(lat, 99))
	assert.Equal(t, time.Duration(0), percentile(nil, 50))
}
