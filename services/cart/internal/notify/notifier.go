package notify

import (
	"context"
	"errors"

	"github.com/zenleaftraders/zenleaftraders/services/cart/internal/domain"
)

// Notifier receives a cart change after it has been persisted.
type Notifier interface {
	Notify(ctx context.Context, change domain.Change) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, change domain.Change) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, change domain.Change) error {
	return f(ctx, change)
}

// Multi delivers a change to every notifier in order. All notifiers run even
// when an earlier one fails; the failures are joined.
type Multi []Notifier

// Notify fans the change out.
func (m Multi) Notify(ctx context.Context, change domain.Change) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, change); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards every change.
var Nop Notifier = NotifierFunc(func(context.Context, domain.Change) error { return nil })
