package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// waitForShutdown blocks until SIGINT/SIGTERM arrives or ctx is canceled,
// then returns so the caller can run its own graceful teardown.
func waitForShutdown(ctx context.Context) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	select {
	case <-ctx.Done():
	case <-sigs:
	}
}
