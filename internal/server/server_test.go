package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kestrelmq/kestrel/internal/broker"
	"github.com/kestrelmq/kestrel/internal/snapshot"
)

type fakeStats struct{ stats broker.Stats }

func (f fakeStats) Stats() broker.Stats { return f.stats }

type fakeSnapshotInfo struct{ last time.Time }

func (f fakeSnapshotInfo) LastPersisted() time.Time { return f.last }

type fakeTrigger struct {
	fired int
	err   error
}

func (f *fakeTrigger) Fire() error {
	f.fired++
	return f.err
}

func newTestRouter(trigger *fakeTrigger, last time.Time) http.Handler {
	srv := New(
		fakeStats{stats: broker.Stats{Sessions: 3, Connected: 2, Retained: 1}},
		fakeSnapshotInfo{last: last},
		trigger,
		nil,
		zap.NewNop(),
	)
	return NewRouter(srv, zap.NewNop())
}

func TestHealthz(t *testing.T) {
	r := newTestRouter(&fakeTrigger{}, time.Time{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d", rec.Code)
	}
}

func TestStatus(t *testing.T) {
	last := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	r := newTestRouter(&fakeTrigger{}, last)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid status payload: %v", err)
	}
	if resp.Sessions != 3 || resp.Connected != 2 || resp.Retained != 1 {
		t.Errorf("unexpected counters: %+v", resp)
	}
	if resp.LastPersisted != "2024-01-01T12:00:00Z" {
		t.Errorf("last_persisted = %q", resp.LastPersisted)
	}
}

func TestStatusOmitsLastPersistedWhenNeverStored(t *testing.T) {
	r := newTestRouter(&fakeTrigger{}, time.Time{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if _, ok := resp["last_persisted"]; ok {
		t.Error("last_persisted present before any snapshot")
	}
}

func TestSnapshotTrigger(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"accepted", nil, http.StatusAccepted},
		{"throttled", snapshot.ErrThrottled, http.StatusTooManyRequests},
		{"broker busy", broker.ErrBrokerBusy, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trigger := &fakeTrigger{err: tt.err}
			r := newTestRouter(trigger, time.Time{})

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/snapshot", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if trigger.fired != 1 {
				t.Errorf("trigger fired %d times", trigger.fired)
			}
		})
	}
}

func TestSnapshotTriggerRejectsGet(t *testing.T) {
	r := newTestRouter(&fakeTrigger{}, time.Time{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/snapshot", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}
