package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// requestContext bounds a fetch. timeout <= 0 means no deadline, so the
// full simulated request and response time elapses.
func requestContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	if timeout > 0 {
		return context.WithTimeout(parent, timeout)
	}
	return context.WithCancel(parent)
}

// contextWithSignal returns a context that is cancelled when SIGINT or SIGTERM
// is received. The returned stop function should be deferred to clean up the
// signal handler.
func contextWithSignal(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}
