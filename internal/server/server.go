// Package server exposes the daemon's admin surface: health and status
// probes, an operator snapshot trigger, and a live event stream.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kestrelmq/kestrel/internal/broker"
)

// StatsSource is the slice of the broker the status endpoint reads.
type StatsSource interface {
	Stats() broker.Stats
}

// SnapshotInfo reports when state was last persisted.
type SnapshotInfo interface {
	LastPersisted() time.Time
}

// SnapshotTrigger fires a one-shot snapshot request.
type SnapshotTrigger interface {
	Fire() error
}

// Server holds the collaborators the admin handlers talk to.
type Server struct {
	stats       StatsSource
	snapshotter SnapshotInfo
	trigger     SnapshotTrigger
	hub         *EventHub
	logger      *zap.Logger
}

// New creates the admin server. hub may be nil to disable the event stream.
func New(stats StatsSource, snapshotter SnapshotInfo, trigger SnapshotTrigger, hub *EventHub, logger *zap.Logger) *Server {
	return &Server{
		stats:       stats,
		snapshotter: snapshotter,
		trigger:     trigger,
		hub:         hub,
		logger:      logger,
	}
}

// NewRouter builds the admin HTTP handler.
func NewRouter(s *Server, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(zapLoggerMiddleware(logger))

	r.Get("/healthz", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Post("/admin/snapshot", s.handleSnapshot)
	if s.hub != nil {
		r.Get("/events", s.hub.HandleEvents)
	}

	return r
}

func zapLoggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
			)
			next.ServeHTTP(w, r)
		})
	}
}
