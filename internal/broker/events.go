package broker

import (
	"errors"
	"time"
)

// Event is a message consumed by the broker's control loop. Client events
// originate from connection handlers; system events originate from the
// snapshot triggers and the lifecycle orchestrator.
type Event interface {
	event()
}

// ConnectEvent records a client connecting. A session is created on first
// connect and resumed afterwards.
type ConnectEvent struct {
	ClientID string
}

// DisconnectEvent records a client disconnecting. The session is kept so
// it survives a restart.
type DisconnectEvent struct {
	ClientID string
}

// SubscribeEvent adds a topic filter to a client's session.
type SubscribeEvent struct {
	ClientID    string
	TopicFilter string
	QoS         byte
}

// UnsubscribeEvent removes a topic filter from a client's session.
type UnsubscribeEvent struct {
	ClientID    string
	TopicFilter string
}

// PublishEvent records a publish. Delivery is handled upstream; the broker
// loop only tracks retained payloads (an empty retained payload clears the
// topic).
type PublishEvent struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
}

// SnapshotEvent asks the broker to export its current state and forward it
// to the given sink. Triggers send this without knowing anything about
// persistence; the broker exports lazily, at receive time.
type SnapshotEvent struct {
	Sink StateSink
}

func (ConnectEvent) event()     {}
func (DisconnectEvent) event()  {}
func (SubscribeEvent) event()   {}
func (UnsubscribeEvent) event() {}
func (PublishEvent) event()     {}
func (SnapshotEvent) event()    {}

// StateSink receives an exported state snapshot. Reports whether the
// snapshot was accepted.
type StateSink interface {
	RequestSnapshot(state State) bool
}

// ErrBrokerBusy is returned by Handle.TrySend when the control channel is
// full.
var ErrBrokerBusy = errors.New("broker control channel is full")

// Handle sends events into the broker's control channel. It is cheap to
// copy and safe for concurrent use by many producers.
type Handle struct {
	events chan<- Event
}

// TrySend enqueues an event without blocking.
func (h Handle) TrySend(e Event) error {
	select {
	case h.events <- e:
		return nil
	default:
		return ErrBrokerBusy
	}
}

// Note is an observational record of broker activity, fanned out to admin
// event-stream subscribers. It carries no broker-internal references.
type Note struct {
	Kind     string    `json:"kind"`
	ClientID string    `json:"client_id,omitempty"`
	Topic    string    `json:"topic,omitempty"`
	Time     time.Time `json:"time"`
}
