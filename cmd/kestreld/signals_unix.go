//go:build unix

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/kestrelmq/kestrel/internal/snapshot"
)

// watchSnapshotSignal requests a snapshot each time SIGUSR1 arrives. The
// request is identical to a periodic tick; operators can force a snapshot
// without waiting for the schedule.
func watchSnapshotSignal(ctx context.Context, trigger *snapshot.Trigger, logger *zap.Logger) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGUSR1)
	defer signal.Stop(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			logger.Info("snapshot requested by signal")
			if err := trigger.Fire(); err != nil {
				logger.Warn("snapshot trigger failed", zap.Error(err))
			}
		}
	}
}
