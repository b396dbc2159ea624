package broker

import "time"

// State is a point-in-time snapshot of the broker's session, subscription,
// and retained-message data. It is fully self-contained: every handoff
// (broker -> snapshotter -> persistor) passes it by value, and exports
// deep-copy all nested data so no component ever shares backing storage
// with the running broker.
type State struct {
	Sessions []Session
	Retained []RetainedMessage
}

// Session is the persisted form of one client session.
type Session struct {
	ID            string
	ClientID      string
	Connected     bool
	LastSeen      time.Time
	Subscriptions []Subscription
}

// Subscription is one topic filter a session is subscribed to.
type Subscription struct {
	TopicFilter string
	QoS         byte
}

// RetainedMessage is the last retained payload published to a topic.
type RetainedMessage struct {
	Topic   string
	Payload []byte
	QoS     byte
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	out := State{}
	if s.Sessions != nil {
		out.Sessions = make([]Session, len(s.Sessions))
		for i, sess := range s.Sessions {
			cp := sess
			if sess.Subscriptions != nil {
				cp.Subscriptions = make([]Subscription, len(sess.Subscriptions))
				copy(cp.Subscriptions, sess.Subscriptions)
			}
			out.Sessions[i] = cp
		}
	}
	if s.Retained != nil {
		out.Retained = make([]RetainedMessage, len(s.Retained))
		for i, msg := range s.Retained {
			cp := msg
			if msg.Payload != nil {
				cp.Payload = make([]byte, len(msg.Payload))
				copy(cp.Payload, msg.Payload)
			}
			out.Retained[i] = cp
		}
	}
	return out
}

// IsEmpty reports whether the state carries no sessions and no retained
// messages, i.e. it is indistinguishable from a first run.
func (s State) IsEmpty() bool {
	return len(s.Sessions) == 0 && len(s.Retained) == 0
}
