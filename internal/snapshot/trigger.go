package snapshot

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kestrelmq/kestrel/internal/broker"
)

// ErrThrottled is returned by Trigger.Fire when on-demand requests arrive
// faster than the trigger allows through.
var ErrThrottled = errors.New("snapshot trigger throttled")

// triggerRate caps operator-issued snapshot requests at one per second.
const triggerRate = time.Second

// Tick sends a snapshot request through the broker on a fixed interval
// until ctx is cancelled. The first request fires one full interval after
// startup; there is no snapshot on boot. Send failures are logged and the
// ticker keeps going.
func Tick(ctx context.Context, interval time.Duration, handle broker.Handle, sink SnapshotHandle, logger *zap.Logger) {
	logger.Info("persisting state on a schedule", zap.Duration("interval", interval))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := handle.TrySend(broker.SnapshotEvent{Sink: sink}); err != nil {
				logger.Warn("failed to tick the snapshotter", zap.Error(err))
			}
		}
	}
}

// Trigger issues one-shot snapshot requests on behalf of an operator. The
// request it produces is identical in shape to a tick, so the broker and
// the snapshotter cannot tell the two apart. A rate limiter keeps a noisy
// operator from flooding the broker control channel.
type Trigger struct {
	handle  broker.Handle
	sink    SnapshotHandle
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewTrigger creates an operator trigger over the given broker handle.
func NewTrigger(handle broker.Handle, sink SnapshotHandle, logger *zap.Logger) *Trigger {
	return &Trigger{
		handle:  handle,
		sink:    sink,
		limiter: rate.NewLimiter(rate.Every(triggerRate), 1),
		logger:  logger,
	}
}

// Fire requests one snapshot. Returns ErrThrottled when rate limited and
// broker.ErrBrokerBusy when the control channel is full.
func (t *Trigger) Fire() error {
	if !t.limiter.Allow() {
		return ErrThrottled
	}
	t.logger.Info("snapshot requested")
	return t.handle.TrySend(broker.SnapshotEvent{Sink: t.sink})
}
