package ledger

import (
	"fmt"
	"time"
)

// Action names a remote API call.
type Action string

const (
	// ActionFetch reads the full transaction list. It is never queued.
	ActionFetch Action = "fetch"
	// ActionAdd creates a transaction.
	ActionAdd Action = "add"
	// ActionUpdate replaces a transaction by id.
	ActionUpdate Action = "update"
	// ActionDelete removes a transaction by id.
	ActionDelete Action = "delete"
)

// IsMutation reports whether the action changes remote state and may
// therefore be queued while offline.
func (a Action) IsMutation() bool {
	switch a {
	case ActionAdd, ActionUpdate, ActionDelete:
		return true
	default:
		return false
	}
}

// ParseAction converts a stored action name back into an Action.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionFetch, ActionAdd, ActionUpdate, ActionDelete:
		return a, nil
	default:
		return "", fmt.Errorf("unknown action %q", s)
	}
}

// Payload is the action-specific data sent as individual form fields.
type Payload map[string]string

// Clone returns a copy that can be mutated independently.
func (p Payload) Clone() Payload {
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// PendingOperation is a mutation waiting in the local queue.
type PendingOperation struct {
	// Seq is the queue position; lower values replay first.
	Seq int64 `json:"seq"`

	Action     Action    `json:"action"`
	Payload    Payload   `json:"payload"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// String returns a short description for logs.
func (op PendingOperation) String() string {
	if id := op.Payload["id"]; id != "" {
		return fmt.Sprintf("#%d %s %s", op.Seq, op.Action, id)
	}
	return fmt.Sprintf("#%d %s", op.Seq, op.Action)
}
