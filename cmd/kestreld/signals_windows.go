//go:build windows

package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/kestrelmq/kestrel/internal/snapshot"
)

// Windows has no SIGUSR1; operators use the admin endpoint instead.
func watchSnapshotSignal(ctx context.Context, _ *snapshot.Trigger, logger *zap.Logger) {
	logger.Info("signal-triggered snapshots unavailable on this platform, use the admin endpoint")
	<-ctx.Done()
}
