package analytics

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Collector decouples request handling from event delivery: Track never
// blocks, and events are dropped when the buffer is full or the collector is
// closed.
type Collector struct {
	sink    Sink
	eventCh chan LookupEvent
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
	logger  *slog.Logger
	done    chan struct{}
}

func NewCollector(sink Sink, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &Collector{
		sink:    sink,
		eventCh: make(chan LookupEvent, bufferSize),
		logger:  slog.Default().With("component", "analytics-collector"),
		done:    make(chan struct{}),
	}
}

func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					return
				}
				c.send(ctx, event)
			case <-ctx.Done():
				c.drainRemaining()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started", "buffer_size", cap(c.eventCh))
}

func (c *Collector) Track(event LookupEvent) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		c.dropped.Add(1)
		return
	}
	select {
	case c.eventCh <- event:
	default:
		if n := c.dropped.Add(1); n == 1 || n%1000 == 0 {
			c.logger.Warn("analytics event dropped (buffer full)", "dropped_total", n)
		}
	}
}

// Dropped returns the number of events lost to a full buffer.
func (c *Collector) Dropped() int64 {
	return c.dropped.Load()
}

// Close stops accepting events and waits for buffered ones to be sent. Track
// calls racing with Close drop their event.
func (c *Collector) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.eventCh)
	c.mu.Unlock()
	<-c.done
}

func (c *Collector) send(ctx context.Context, event LookupEvent) {
	if err := c.sink.Send(ctx, event); err != nil {
		c.logger.Error("failed to send analytics event", "error", err)
	}
}

func (c *Collector) drainRemaining() {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return
			}
			c.send(context.Background(), event)
		default:
			return
		}
	}
}
