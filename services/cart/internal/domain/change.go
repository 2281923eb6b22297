package domain

import "time"

// ChangeKind classifies a cart mutation for listeners.
type ChangeKind string

const (
	ChangeUpdated ChangeKind = "updated"
	ChangeCleared ChangeKind = "cleared"
)

// Change describes the state of a session's cart right after a mutation.
type Change struct {
	Session string     `json:"session"`
	Kind    ChangeKind `json:"kind"`
	Items   Items      `json:"items"`
	At      time.Time  `json:"at"`
}

// NewChange builds a change stamped with the current UTC time.
func NewChange(session string, kind ChangeKind, items Items) Change {
	if items == nil {
		items = Items{}
	}
	return Change{
		Session: session,
		Kind:    kind,
		Items:   items,
		At:      time.Now().UTC(),
	}
}
