package broker

import (
	"reflect"
	"testing"
	"time"
)

func TestStateClone(t *testing.T) {
	orig := State{
		Sessions: []Session{
			{
				ID:       "id-1",
				ClientID: "c1",
				LastSeen: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
				Subscriptions: []Subscription{
					{TopicFilter: "a/#", QoS: 1},
				},
			},
		},
		Retained: []RetainedMessage{
			{Topic: "t", Payload: []byte("v"), QoS: 1},
		},
	}

	clone := orig.Clone()
	if !reflect.DeepEqual(clone, orig) {
		t.Fatalf("clone differs from original:\n got %+v\nwant %+v", clone, orig)
	}

	// Mutating the clone must not reach the original.
	clone.Sessions[0].Subscriptions[0].TopicFilter = "changed"
	clone.Retained[0].Payload[0] = 'x'

	if orig.Sessions[0].Subscriptions[0].TopicFilter != "a/#" {
		t.Error("clone shares subscription storage with the original")
	}
	if string(orig.Retained[0].Payload) != "v" {
		t.Error("clone shares payload storage with the original")
	}
}

func TestStateIsEmpty(t *testing.T) {
	if !(State{}).IsEmpty() {
		t.Error("zero state should be empty")
	}
	if (State{Retained: []RetainedMessage{{Topic: "t"}}}).IsEmpty() {
		t.Error("state with retained messages should not be empty")
	}
}
