package server

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/kestrelmq/kestrel/internal/broker"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// EventHub fans broker activity notes out to websocket subscribers. Slow
// subscribers drop notes rather than back-pressuring the broker.
type EventHub struct {
	notes  <-chan broker.Note
	logger *zap.Logger

	mu      sync.RWMutex
	clients map[*hubClient]bool
}

type hubClient struct {
	send chan broker.Note
	done chan struct{}
}

// NewEventHub creates a hub draining notes.
func NewEventHub(notes <-chan broker.Note, logger *zap.Logger) *EventHub {
	return &EventHub{
		notes:   notes,
		logger:  logger,
		clients: make(map[*hubClient]bool),
	}
}

// Run broadcasts notes until ctx is cancelled.
func (h *EventHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case note := <-h.notes:
			h.broadcast(note)
		}
	}
}

func (h *EventHub) broadcast(note broker.Note) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- note:
		default:
			// client is behind; drop the note
		}
	}
}

func (h *EventHub) addClient(c *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
}

func (h *EventHub) removeClient(c *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.done)
	}
}

// HandleEvents upgrades the connection and streams notes as JSON frames.
func (h *EventHub) HandleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	client := &hubClient{
		send: make(chan broker.Note, 32),
		done: make(chan struct{}),
	}
	h.addClient(client)
	defer h.removeClient(client)

	h.logger.Info("event stream client connected", zap.String("remote_addr", r.RemoteAddr))

	// Drain reads so close frames are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.removeClient(client)
				return
			}
		}
	}()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-client.done:
			return
		case note := <-client.send:
			if err := conn.WriteJSON(note); err != nil {
				h.logger.Debug("failed to write to event stream client", zap.Error(err))
				return
			}
		}
	}
}
