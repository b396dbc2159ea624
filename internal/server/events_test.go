package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/kestrelmq/kestrel/internal/broker"
)

func TestEventHubStreamsNotes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notes := make(chan broker.Note, 8)
	hub := NewEventHub(notes, zap.NewNop())
	go hub.Run(ctx)

	ts := httptest.NewServer(http.HandlerFunc(hub.HandleEvents))
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()
	defer resp.Body.Close()

	// Keep feeding notes until the subscriber is registered and one
	// arrives; registration races the dial.
	feedCtx, stopFeed := context.WithCancel(ctx)
	defer stopFeed()
	go func() {
		for {
			select {
			case <-feedCtx.Done():
				return
			case notes <- broker.Note{Kind: "connect", ClientID: "c1", Time: time.Now().UTC()}:
			}
			time.Sleep(10 * time.Millisecond)
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var note broker.Note
	if err := conn.ReadJSON(&note); err != nil {
		t.Fatalf("reading note: %v", err)
	}
	if note.Kind != "connect" || note.ClientID != "c1" {
		t.Errorf("unexpected note: %+v", note)
	}
}
