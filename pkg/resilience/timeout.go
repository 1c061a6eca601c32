package resilience

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"
)

// WithTimeout runs fn with a context cancelled after timeout and returns as
// soon as either fn finishes or the deadline passes. fn keeps running in the
// background after a timeout, so it must only write state it owns. A panic
// in fn is returned as an error instead of crashing the process.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return safeCall(ctx, name, fn)
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- safeCall(timeoutCtx, name, fn)
	}()
	select {
	case err := <-done:
		return err
	case <-timeoutCtx.Done():
		if ctx.Err() != nil {
			return fmt.Errorf("%s: parent context cancelled: %w", name, ctx.Err())
		}
		return fmt.Errorf("%s: %w (limit: %v)", name, context.DeadlineExceeded, timeout)
	}
}

func safeCall(ctx context.Context, name string, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic: %v\n%s", name, r, debug.Stack())
		}
	}()
	return fn(ctx)
}
