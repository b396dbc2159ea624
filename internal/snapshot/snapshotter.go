// Package snapshot owns the lifecycle of state persistence: the actor that
// serializes store requests, the handles other components use to reach it,
// and the triggers that decide when a snapshot should happen.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kestrelmq/kestrel/internal/broker"
	"github.com/kestrelmq/kestrel/internal/persist"
)

// requestBuffer bounds queued snapshot requests; a full queue rejects
// further requests rather than blocking the broker loop.
const requestBuffer = 16

// ErrShutdownTimeout is returned when the snapshotter does not hand back
// its persistor before the caller's deadline, e.g. because a store is
// stalled on the filesystem.
var ErrShutdownTimeout = errors.New("snapshotter did not hand back its persistor before the deadline")

// Snapshotter is the exclusive runtime owner of one Persistor. Its Run
// loop drains snapshot requests one at a time, so at most one store is in
// flight at any moment; this single-ownership structure is what keeps
// writes to the state directory serialized without a lock.
type Snapshotter struct {
	persistor persist.Persistor
	requests  chan broker.State
	shutdown  chan struct{}
	handback  chan persist.Persistor
	once      sync.Once
	logger    *zap.Logger

	lastPersisted atomic.Int64 // unix millis of last successful store, 0 if none
}

// New creates a snapshotter owning persistor. The caller must not use
// persistor again until it is handed back through ShutdownHandle.Shutdown.
func New(persistor persist.Persistor, logger *zap.Logger) *Snapshotter {
	return &Snapshotter{
		persistor: persistor,
		requests:  make(chan broker.State, requestBuffer),
		shutdown:  make(chan struct{}),
		handback:  make(chan persist.Persistor, 1),
		logger:    logger,
	}
}

// SnapshotHandle returns a handle for submitting snapshot requests.
func (s *Snapshotter) SnapshotHandle() SnapshotHandle {
	return SnapshotHandle{requests: s.requests}
}

// ShutdownHandle returns a handle for stopping the snapshotter and
// reclaiming its persistor.
func (s *Snapshotter) ShutdownHandle() ShutdownHandle {
	return ShutdownHandle{snapshotter: s}
}

// LastPersisted reports the time of the last successful store, or a zero
// time when nothing has been persisted yet.
func (s *Snapshotter) LastPersisted() time.Time {
	ms := s.lastPersisted.Load()
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// Run processes snapshot requests until shutdown is requested, then hands
// the persistor back and returns. A failed store is logged and the loop
// continues; the next trigger gets another chance.
func (s *Snapshotter) Run() {
	s.logger.Info("snapshotter started")
	for {
		select {
		case <-s.shutdown:
			s.logger.Info("snapshotter draining")
			s.handback <- s.persistor
			return
		case state := <-s.requests:
			if err := s.persistor.Store(state); err != nil {
				s.logger.Error("failed to persist state", zap.Error(err))
				continue
			}
			s.lastPersisted.Store(time.Now().UnixMilli())
		}
	}
}

// SnapshotHandle submits exported broker states to the snapshotter. It is
// cheap to copy and safe for concurrent use by many producers.
type SnapshotHandle struct {
	requests chan<- broker.State
}

// RequestSnapshot enqueues state for persistence without blocking.
// Reports whether the request was accepted. Implements broker.StateSink.
func (h SnapshotHandle) RequestSnapshot(state broker.State) bool {
	select {
	case h.requests <- state:
		return true
	default:
		return false
	}
}

// ShutdownHandle requests a graceful stop of the snapshotter.
type ShutdownHandle struct {
	snapshotter *Snapshotter
}

// Shutdown stops the snapshotter and returns its persistor once any
// in-flight store has finished. Requests queued after shutdown begins are
// refused; an in-flight store is never interrupted. The caller supplies
// the deadline through ctx and should treat expiry as fatal.
func (h ShutdownHandle) Shutdown(ctx context.Context) (persist.Persistor, error) {
	h.snapshotter.once.Do(func() { close(h.snapshotter.shutdown) })
	select {
	case p := <-h.snapshotter.handback:
		return p, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrShutdownTimeout, ctx.Err())
	}
}
