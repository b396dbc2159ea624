package broker

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// controlBuffer bounds the control channel; producers use Handle.TrySend
// and must tolerate ErrBrokerBusy.
const controlBuffer = 128

// Broker maintains session, subscription, and retained-message state and
// consumes events from a single control channel. All state mutation happens
// on the Run goroutine, so no lock guards the maps.
type Broker struct {
	events   chan Event
	notes    chan<- Note
	logger   *zap.Logger
	sessions map[string]*session
	retained map[string]RetainedMessage

	sessionCount  atomic.Int64
	connectedCnt  atomic.Int64
	retainedCount atomic.Int64
}

type session struct {
	id            string
	clientID      string
	connected     bool
	lastSeen      time.Time
	subscriptions map[string]byte // topic filter -> qos
}

// Stats is a read-only view of broker counters for the admin surface.
type Stats struct {
	Sessions  int `json:"sessions"`
	Connected int `json:"connected"`
	Retained  int `json:"retained"`
}

// New creates a broker seeded with a previously persisted state. notes may
// be nil to disable activity notes.
func New(initial State, notes chan<- Note, logger *zap.Logger) *Broker {
	b := &Broker{
		events:   make(chan Event, controlBuffer),
		notes:    notes,
		logger:   logger,
		sessions: make(map[string]*session),
		retained: make(map[string]RetainedMessage),
	}
	b.restore(initial)
	return b
}

// Handle returns a cloneable sender for the broker's control channel.
func (b *Broker) Handle() Handle {
	return Handle{events: b.events}
}

// Stats returns current counters. Safe to call from any goroutine.
func (b *Broker) Stats() Stats {
	return Stats{
		Sessions:  int(b.sessionCount.Load()),
		Connected: int(b.connectedCnt.Load()),
		Retained:  int(b.retainedCount.Load()),
	}
}

// Run consumes control events until ctx is cancelled, then returns the
// final exported state. The caller owns the returned state; the broker
// must not be used afterwards.
func (b *Broker) Run(ctx context.Context) State {
	b.logger.Info("broker started",
		zap.Int("sessions", len(b.sessions)),
		zap.Int("retained", len(b.retained)),
	)
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("broker stopping")
			return b.export()
		case e := <-b.events:
			b.dispatch(e)
		}
	}
}

func (b *Broker) dispatch(e Event) {
	switch e := e.(type) {
	case ConnectEvent:
		s := b.session(e.ClientID)
		s.connected = true
		s.lastSeen = time.Now().UTC()
		b.note("connect", e.ClientID, "")
	case DisconnectEvent:
		if s, ok := b.sessions[e.ClientID]; ok {
			s.connected = false
			s.lastSeen = time.Now().UTC()
		}
		b.note("disconnect", e.ClientID, "")
	case SubscribeEvent:
		s := b.session(e.ClientID)
		s.subscriptions[e.TopicFilter] = e.QoS
		b.note("subscribe", e.ClientID, e.TopicFilter)
	case UnsubscribeEvent:
		if s, ok := b.sessions[e.ClientID]; ok {
			delete(s.subscriptions, e.TopicFilter)
		}
		b.note("unsubscribe", e.ClientID, e.TopicFilter)
	case PublishEvent:
		if e.Retain {
			if len(e.Payload) == 0 {
				delete(b.retained, e.Topic)
			} else {
				payload := make([]byte, len(e.Payload))
				copy(payload, e.Payload)
				b.retained[e.Topic] = RetainedMessage{Topic: e.Topic, Payload: payload, QoS: e.QoS}
			}
		}
		b.note("publish", "", e.Topic)
	case SnapshotEvent:
		state := b.export()
		if !e.Sink.RequestSnapshot(state) {
			b.logger.Warn("snapshot request dropped, snapshotter queue full")
		}
	default:
		b.logger.Warn("unknown control event")
	}
	b.updateCounters()
}

// session returns the session for clientID, creating it on first use.
func (b *Broker) session(clientID string) *session {
	s, ok := b.sessions[clientID]
	if !ok {
		s = &session{
			id:            uuid.NewString(),
			clientID:      clientID,
			subscriptions: make(map[string]byte),
		}
		b.sessions[clientID] = s
	}
	return s
}

// export builds a deep, deterministically ordered copy of the current
// state. The copy shares no storage with the broker's maps.
func (b *Broker) export() State {
	state := State{}
	if len(b.sessions) > 0 {
		state.Sessions = make([]Session, 0, len(b.sessions))
		for _, s := range b.sessions {
			sess := Session{
				ID:        s.id,
				ClientID:  s.clientID,
				Connected: s.connected,
				LastSeen:  s.lastSeen,
			}
			if len(s.subscriptions) > 0 {
				sess.Subscriptions = make([]Subscription, 0, len(s.subscriptions))
				for filter, qos := range s.subscriptions {
					sess.Subscriptions = append(sess.Subscriptions, Subscription{TopicFilter: filter, QoS: qos})
				}
				sort.Slice(sess.Subscriptions, func(i, j int) bool {
					return sess.Subscriptions[i].TopicFilter < sess.Subscriptions[j].TopicFilter
				})
			}
			state.Sessions = append(state.Sessions, sess)
		}
		sort.Slice(state.Sessions, func(i, j int) bool {
			return state.Sessions[i].ClientID < state.Sessions[j].ClientID
		})
	}
	if len(b.retained) > 0 {
		state.Retained = make([]RetainedMessage, 0, len(b.retained))
		for _, msg := range b.retained {
			payload := make([]byte, len(msg.Payload))
			copy(payload, msg.Payload)
			state.Retained = append(state.Retained, RetainedMessage{Topic: msg.Topic, Payload: payload, QoS: msg.QoS})
		}
		sort.Slice(state.Retained, func(i, j int) bool {
			return state.Retained[i].Topic < state.Retained[j].Topic
		})
	}
	return state
}

func (b *Broker) restore(state State) {
	for _, sess := range state.Sessions {
		s := &session{
			id:            sess.ID,
			clientID:      sess.ClientID,
			connected:     false, // nobody is connected right after a restart
			lastSeen:      sess.LastSeen,
			subscriptions: make(map[string]byte, len(sess.Subscriptions)),
		}
		if s.id == "" {
			s.id = uuid.NewString()
		}
		for _, sub := range sess.Subscriptions {
			s.subscriptions[sub.TopicFilter] = sub.QoS
		}
		b.sessions[sess.ClientID] = s
	}
	for _, msg := range state.Retained {
		payload := make([]byte, len(msg.Payload))
		copy(payload, msg.Payload)
		b.retained[msg.Topic] = RetainedMessage{Topic: msg.Topic, Payload: payload, QoS: msg.QoS}
	}
	b.updateCounters()
}

func (b *Broker) updateCounters() {
	connected := 0
	for _, s := range b.sessions {
		if s.connected {
			connected++
		}
	}
	b.sessionCount.Store(int64(len(b.sessions)))
	b.connectedCnt.Store(int64(connected))
	b.retainedCount.Store(int64(len(b.retained)))
}

func (b *Broker) note(kind, clientID, topic string) {
	if b.notes == nil {
		return
	}
	n := Note{Kind: kind, ClientID: clientID, Topic: topic, Time: time.Now().UTC()}
	select {
	case b.notes <- n:
	default:
		// subscribers are behind; notes are best effort
	}
}
