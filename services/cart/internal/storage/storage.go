package storage

import (
	"context"
)

// Slot is a single named storage cell holding the raw cart document.
type Slot interface {
	// Get returns the stored document, or nil when the slot is empty.
	Get(ctx context.Context) ([]byte, error)

	// Set overwrites the slot with data.
	Set(ctx context.Context, data []byte) error

	// Remove deletes the slot. Removing an empty slot is not an error.
	Remove(ctx context.Context) error
}

// Backend hands out the slot belonging to a cart session.
type Backend interface {
	Slot(session string) Slot
}
