package persist

import "github.com/kestrelmq/kestrel/internal/broker"

// Persistor loads and durably stores broker state. Store consumes the
// state it is given; after a successful Store, a fresh persistor's Load
// (e.g. after a restart) returns an equal state.
//
// Exactly one component owns a Persistor at any time. During normal
// operation that owner is the snapshotter; at shutdown ownership is handed
// back to the orchestrator for the final flush.
type Persistor interface {
	Load() (broker.State, error)
	Store(state broker.State) error
}

// NullPersistor is the Persistor used when persistence is disabled: Load
// yields an empty state and Store discards.
type NullPersistor struct{}

func (NullPersistor) Load() (broker.State, error) { return broker.State{}, nil }

func (NullPersistor) Store(broker.State) error { return nil }
