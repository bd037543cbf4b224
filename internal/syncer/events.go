package syncer

import (
	"time"

	"github.com/fintrack/fintrack/internal/ledger"
)

// EventType identifies a coordinator event.
type EventType string

const (
	// EventQueued is emitted when a mutation is accepted offline.
	EventQueued EventType = "queued"
	// EventDelivered is emitted when a call reaches the remote.
	EventDelivered EventType = "delivered"
	// EventFailed is emitted when an online attempt fails.
	EventFailed EventType = "failed"
	// EventDrained is emitted after a drain pass that attempted something.
	EventDrained EventType = "drained"
	// EventSnapshot is emitted after the snapshot is replaced.
	EventSnapshot EventType = "snapshot"
)

// Event describes something the coordinator did.
type Event struct {
	Type   EventType     `json:"type"`
	Action ledger.Action `json:"action,omitempty"`

	// ID is the transaction id, when the event concerns one.
	ID string `json:"id,omitempty"`

	// Count is the number of records involved (snapshot size, replayed
	// operations).
	Count int `json:"count,omitempty"`

	// Pending is the queue length after the event, when known.
	Pending int `json:"pending,omitempty"`

	Error string    `json:"error,omitempty"`
	Time  time.Time `json:"time"`
}

// Notifier receives coordinator events. Notify must not block.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to a Notifier.
type NotifierFunc func(Event)

// Notify implements Notifier.
func (f NotifierFunc) Notify(e Event) { f(e) }
