package collector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu      sync.Mutex
	batches [][]kafka.Event
	err     error
}

func (f *fakePublisher) PublishBatch(ctx context.Context, events []kafka.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, events)
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

func lookup(query string) analytics.LookupEvent {
	return analytics.LookupEvent{Type: analytics.EventSearch, Query: query, Timestamp: time.Now().UTC()}
}

func TestFlushWhenBatchIsFull(t *testing.T) {
	pub := &fakePublisher{}
	bc := NewBatchCollector(pub, 3, time.Hour)
	ctx := context.Background()

	require.NoError(t, bc.Send(ctx, lookup("build")))
	require.NoError(t, bc.Send(ctx, lookup("cmake")))
	assert.Equal(t, 2, bc.BufferLen())
	assert.Equal(t, 0, pub.count())

	require.NoError(t, bc.Send(ctx, lookup("docker")))
	assert.Equal(t, 0, bc.BufferLen())
	require.Len(t, pub.batches, 1)
	assert.Equal(t, "build", pub.batches[0][0].Key)
}

func TestFlushOnShutdown(t *testing.T) {
	pub := &fakePublisher{}
	bc := NewBatchCollector(pub, 100, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	bc.Start(ctx)

	require.NoError(t, bc.Send(ctx, lookup("build")))
	cancel()
	bc.Close()
	assert.Equal(t, 1, pub.count())
}

func TestFailedFlushRequeuesBounded(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	bc := NewBatchCollector(pub, 2, time.Hour)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, bc.Send(ctx, lookup("build")))
	}
	assert.LessOrEqual(t, bc.BufferLen(), 6)

	pub.mu.Lock()
	pub.err = nil
	pub.mu.Unlock()
	bc.Flush(ctx)
	assert.Equal(t, 0, bc.BufferLen())
	assert.Greater(t, pub.count(), 0)
}
