// Package tracing records in-process span trees for a single request. Spans
// travel in the context; a finished tree can be rendered as a Server-Timing
// header or logged when the request was slow.
package tracing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

type contextKey struct{}

// Span is one timed step of a request.
type Span struct {
	Name      string
	TraceID   string
	StartTime time.Time

	mu       sync.Mutex
	duration time.Duration
	ended    bool
	children []*Span
	attrs    map[string]any
}

// StartSpan creates a root span and stores it in the returned context.
func StartSpan(ctx context.Context, name string, traceID string) (context.Context, *Span) {
	span := &Span{
		Name:      name,
		TraceID:   traceID,
		StartTime: time.Now(),
		attrs:     make(map[string]any),
	}
	return context.WithValue(ctx, contextKey{}, span), span
}

// StartChildSpan creates a span under the one in ctx. Without a parent it
// behaves like StartSpan with an empty trace id.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	parent := SpanFromContext(ctx)
	if parent == nil {
		return StartSpan(ctx, name, "")
	}
	child := &Span{
		Name:      name,
		TraceID:   parent.TraceID,
		StartTime: time.Now(),
		attrs:     make(map[string]any),
	}
	parent.mu.Lock()
	parent.children = append(parent.children, child)
	parent.mu.Unlock()
	return context.WithValue(ctx, contextKey{}, child), child
}

// End fixes the span's duration. Later calls are ignored.
func (s *Span) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ended {
		s.duration = time.Since(s.StartTime)
		s.ended = true
	}
}

// Duration is the span's length, or the time elapsed so far if it has not
// ended.
func (s *Span) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return s.duration
	}
	return time.Since(s.StartTime)
}

func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.attrs[key] = value
	s.mu.Unlock()
}

func (s *Span) Children() []*Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Span(nil), s.children...)
}

func SpanFromContext(ctx context.Context) *Span {
	if span, ok := ctx.Value(contextKey{}).(*Span); ok {
		return span
	}
	return nil
}

// ServerTiming renders the span and its direct children as a Server-Timing
// header value, e.g. "search;dur=0.412, parse;dur=0.008".
func (s *Span) ServerTiming() string {
	parts := []string{timingEntry(s)}
	for _, child := range s.Children() {
		parts = append(parts, timingEntry(child))
	}
	return strings.Join(parts, ", ")
}

func timingEntry(s *Span) string {
	ms := float64(s.Duration().Microseconds()) / 1000
	return fmt.Sprintf("%s;dur=%.3f", s.Name, ms)
}

// LogIfSlow writes the span tree to log when the span took longer than
// threshold, and reports whether it did.
func (s *Span) LogIfSlow(log *slog.Logger, threshold time.Duration) bool {
	if s.Duration() <= threshold {
		return false
	}
	s.log(log, 0)
	return true
}

func (s *Span) log(log *slog.Logger, depth int) {
	s.mu.Lock()
	attrs := []any{
		"trace_id", s.TraceID,
		"span", s.Name,
		"duration_us", s.duration.Microseconds(),
		"depth", depth,
	}
	for k, v := range s.attrs {
		attrs = append(attrs, k, v)
	}
	s.mu.Unlock()
	log.Warn("slow span", attrs...)

	for _, child := range s.Children() {
		child.log(log, depth+1)
	}
}
