package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kestrelmq/kestrel/internal/broker"
	"github.com/kestrelmq/kestrel/internal/snapshot"
)

// statusResponse is the payload of GET /status.
type statusResponse struct {
	Sessions      int    `json:"sessions"`
	Connected     int    `json:"connected"`
	Retained      int    `json:"retained"`
	LastPersisted string `json:"last_persisted,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	stats := s.stats.Stats()
	resp := statusResponse{
		Sessions:  stats.Sessions,
		Connected: stats.Connected,
		Retained:  stats.Retained,
	}
	if last := s.snapshotter.LastPersisted(); !last.IsZero() {
		resp.LastPersisted = last.Format(time.RFC3339)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Debug("failed to write status response", zap.Error(err))
	}
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	switch err := s.trigger.Fire(); {
	case err == nil:
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("snapshot requested"))
	case errors.Is(err, snapshot.ErrThrottled):
		http.Error(w, err.Error(), http.StatusTooManyRequests)
	case errors.Is(err, broker.ErrBrokerBusy):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		s.logger.Error("snapshot trigger failed", zap.Error(err))
		http.Error(w, "snapshot trigger failed", http.StatusInternalServerError)
	}
}
