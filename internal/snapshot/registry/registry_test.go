package registry

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/snapshot/source"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/health"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	snapshotV1 = `{"documentNames":["gettingStarted","index"],"documentTitles":["Getting started","Welcome"],"terms":{"build":[0]}}`
	snapshotV2 = `{"documentNames":["gettingStarted","index"],"documentTitles":["Getting started","Welcome"],"terms":{"build":[0,1],"instal":[1]}}`
	malformed  = `{"documentNames":["index"],"documentTitles":["Welcome"],"terms":{"build":[3]}}`
)

// fakeSource serves queued responses; the last one repeats.
type fakeSource struct {
	mu        sync.Mutex
	responses []fakeResponse
	calls     int
}

type fakeResponse struct {
	data string
	err  error
}

func (f *fakeSource) push(data string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, fakeResponse{data: data, err: err})
}

func (f *fakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeSource) Location() string { return "fake://snapshot" }

func (f *fakeSource) Fetch(ctx context.Context) (*source.Payload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	resp := f.responses[len(f.responses)-1]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	if resp.err != nil {
		return nil, resp.err
	}
	return &source.Payload{Data: []byte(resp.data), Location: f.Location(), ModTime: time.Now()}, nil
}

type fakeHistory struct {
	mu      sync.Mutex
	records []LoadRecord
}

func (h *fakeHistory) Record(ctx context.Context, rec LoadRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, rec)
	return nil
}

func (h *fakeHistory) statuses() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.records))
	for i, rec := range h.records {
		out[i] = rec.Status
	}
	return out
}

func testConfig() config.SnapshotConfig {
	return config.SnapshotConfig{
		LoadTimeout:   time.Second,
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
	}
}

func TestCurrentBeforeLoad(t *testing.T) {
	src := &fakeSource{}
	src.push(snapshotV1, nil)
	r := New(src, testConfig())

	_, err := r.Current()
	assert.True(t, errors.Is(err, apperrors.ErrSnapshotUnavailable))
	assert.False(t, r.Ready())
	assert.Equal(t, health.StatusDown, r.HealthCheck(context.Background()).Status)
}

func TestReloadSwapsSnapshot(t *testing.T) {
	src := &fakeSource{}
	src.push(snapshotV1, nil)
	src.push(snapshotV2, nil)
	hist := &fakeHistory{}
	var swapped []uint64
	r := New(src, testConfig(), WithHistory(hist), OnSwap(func(s *Snapshot) {
		swapped = append(swapped, s.Version)
	}))
	ctx := context.Background()

	first, err := r.Reload(ctx, TriggerStartup)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first.Version)
	assert.Len(t, first.Index.Lookup("build"), 1)
	assert.Equal(t, Checksum([]byte(snapshotV1)), first.Checksum)

	second, err := r.Reload(ctx, TriggerAPI)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), second.Version)
	assert.Len(t, second.Index.Lookup("build"), 2)

	// The old snapshot is untouched.
	assert.Len(t, first.Index.Lookup("build"), 1)

	cur, err := r.Current()
	require.NoError(t, err)
	assert.Same(t, second, cur)
	assert.Equal(t, []uint64{1, 2}, swapped)
	assert.Equal(t, []string{StatusLoaded, StatusLoaded}, hist.statuses())
	assert.Equal(t, health.StatusUp, r.HealthCheck(ctx).Status)
}

func TestReloadUnchangedKeepsVersion(t *testing.T) {
	src := &fakeSource{}
	src.push(snapshotV1, nil)
	hist := &fakeHistory{}
	r := New(src, testConfig(), WithHistory(hist))
	ctx := context.Background()

	first, err := r.Reload(ctx, TriggerStartup)
	require.NoError(t, err)
	again, err := r.Reload(ctx, TriggerAPI)
	require.NoError(t, err)

	assert.Same(t, first, again)
	assert.Equal(t, []string{StatusLoaded, StatusUnchanged}, hist.statuses())
}

func TestReloadMalformedKeepsCurrent(t *testing.T) {
	src := &fakeSource{}
	src.push(snapshotV1, nil)
	src.push(malformed, nil)
	hist := &fakeHistory{}
	r := New(src, testConfig(), WithHistory(hist))
	ctx := context.Background()

	good, err := r.Reload(ctx, TriggerStartup)
	require.NoError(t, err)

	_, err = r.Reload(ctx, TriggerAPI)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrMalformedIndex), "got %v", err)
	assert.Equal(t, 2, src.Calls(), "malformed snapshots are not retried")

	cur, err := r.Current()
	require.NoError(t, err)
	assert.Same(t, good, cur)
	assert.Equal(t, []string{StatusLoaded, StatusFailed}, hist.statuses())
}

func TestReloadRetriesTransientErrors(t *testing.T) {
	src := &fakeSource{}
	src.push("", errors.New("connection reset"))
	src.push(snapshotV1, nil)
	r := New(src, testConfig())

	snap, err := r.Reload(context.Background(), TriggerStartup)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), snap.Version)
	assert.Equal(t, 2, src.Calls())
}

func TestReloadGivesUp(t *testing.T) {
	src := &fakeSource{}
	src.push("", apperrors.ErrSnapshotUnavailable)
	r := New(src, testConfig())

	_, err := r.Reload(context.Background(), TriggerStartup)
	assert.True(t, errors.Is(err, apperrors.ErrSnapshotUnavailable))
	assert.Equal(t, 3, src.Calls())
	assert.False(t, r.Ready())
}

func TestHandlePublished(t *testing.T) {
	src := &fakeSource{}
	src.push(snapshotV1, nil)
	src.push(snapshotV2, nil)
	src.push(malformed, nil)
	r := New(src, testConfig())
	ctx := context.Background()

	first, err := r.Reload(ctx, TriggerStartup)
	require.NoError(t, err)

	same, _ := json.Marshal(PublishedEvent{Location: "fake://snapshot", Checksum: first.Checksum})
	require.NoError(t, r.HandlePublished(ctx, nil, same))
	assert.Equal(t, 1, src.Calls(), "matching checksum skips the fetch")

	next, _ := json.Marshal(PublishedEvent{Location: "fake://snapshot"})
	require.NoError(t, r.HandlePublished(ctx, nil, next))
	cur, err := r.Current()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), cur.Version)

	// A malformed snapshot is acknowledged, not redelivered.
	require.NoError(t, r.HandlePublished(ctx, nil, next))
	cur, err = r.Current()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), cur.Version)

	assert.NoError(t, r.HandlePublished(ctx, nil, []byte("not json")))
}

func TestHandlePublishedIgnoresOtherLocation(t *testing.T) {
	src := &fakeSource{}
	src.push(snapshotV1, nil)
	src.push(snapshotV2, nil)
	r := New(src, testConfig())
	ctx := context.Background()
	_, err := r.Reload(ctx, TriggerStartup)
	require.NoError(t, err)

	other, _ := json.Marshal(PublishedEvent{Location: "s3://docs/other/searchindex.js", Checksum: "abc"})
	require.NoError(t, r.HandlePublished(ctx, nil, other))
	assert.Equal(t, 1, src.Calls(), "an event for another object does not fetch")
	cur, err := r.Current()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), cur.Version)

	mine, _ := json.Marshal(PublishedEvent{Location: src.Location(), Checksum: "abc"})
	require.NoError(t, r.HandlePublished(ctx, nil, mine))
	cur, err = r.Current()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), cur.Version)
}

func TestConcurrentReadersDuringReload(t *testing.T) {
	src := &fakeSource{}
	src.push(snapshotV1, nil)
	r := New(src, testConfig())
	ctx := context.Background()
	_, err := r.Reload(ctx, TriggerStartup)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				snap, err := r.Current()
				if !assert.NoError(t, err) {
					return
				}
				assert.NotEmpty(t, snap.Index.Lookup("build"))
			}
		}()
	}
	for i := 0; i < 5; i++ {
		if i%2 == 0 {
			src.push(snapshotV2, nil)
		} else {
			src.push(snapshotV1, nil)
		}
		_, err := r.Reload(ctx, TriggerAPI)
		require.NoError(t, err)
	}
	wg.Wait()
}
