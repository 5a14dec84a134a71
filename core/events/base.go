package events

import "time"

// Kind names an event on the wire.
type Kind string

type Event interface {
	Kind() Kind
	Timestamp() time.Time
}

// Base stamps an event with its kind and the moment it was raised. Concrete
// events embed it.
type Base struct {
	kind Kind
	at   time.Time
}

func NewBase(kind Kind) Base {
	return Base{kind: kind, at: time.Now()}
}

func (b Base) Kind() Kind {
	return b.kind
}

func (b Base) Timestamp() time.Time {
	return b.at
}

// Envelope is what event subscribers receive: kind and timestamp next to
// the event's own fields.
type Envelope struct {
	Kind      Kind      `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Payload   Event     `json:"payload"`
}

func Wrap(event Event) Envelope {
	return Envelope{Kind: event.Kind(), Timestamp: event.Timestamp(), Payload: event}
}
