// Package store implements the cart store: the canonical line items of one
// cart slot and the read-modify-write operations on them.
//
// Every operation re-reads and re-aggregates the slot, so a store never holds
// state of its own and always reflects the latest write, including writes
// made by other processes. Mutations rewrite the slot in canonical form and
// then notify; a notification failure is logged and does not fail the
// mutation. Concurrent writers to one slot are last-write-wins.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/zenleaftraders/zenleaftraders/services/cart/internal/domain"
	"github.com/zenleaftraders/zenleaftraders/services/cart/internal/metrics"
	"github.com/zenleaftraders/zenleaftraders/services/cart/internal/notify"
	"github.com/zenleaftraders/zenleaftraders/services/cart/internal/storage"
)

// Store operates on the cart held in a single slot.
type Store struct {
	session  string
	slot     storage.Slot
	notifier notify.Notifier
	logger   *slog.Logger
}

// New creates a store for session backed by slot. A nil notifier discards
// change notifications.
func New(session string, slot storage.Slot, notifier notify.Notifier, logger *slog.Logger) *Store {
	if notifier == nil {
		notifier = notify.Nop
	}
	return &Store{
		session:  session,
		slot:     slot,
		notifier: notifier,
		logger:   logger,
	}
}

// Items returns the aggregated canonical view of the slot. Unparsable slot
// content reads as an empty cart.
func (s *Store) Items(ctx context.Context) (domain.Items, error) {
	data, err := s.slot.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("read cart: %w", err)
	}

	items, ok := domain.Load(data)
	if !ok {
		metrics.CorruptSlotReads.Inc()
		s.logger.WarnContext(ctx, "unparsable cart document treated as empty",
			slog.String("session", s.session),
			slog.Int("bytes", len(data)),
		)
	}
	return items, nil
}

// Add merges a line into the cart. An empty name is ignored without error,
// even when the slot cannot be read.
// Price and quantity are coerced to valid values.
func (s *Store) Add(ctx context.Context, name string, price float64, size string, quantity int) (domain.Items, error) {
	if name == "" {
		items, err := s.Items(ctx)
		if err != nil {
			s.logger.WarnContext(ctx, "cart unreadable on empty add",
				slog.String("session", s.session),
				slog.String("error", err.Error()),
			)
			return domain.Items{}, nil
		}
		return items, nil
	}

	items, err := s.Items(ctx)
	if err != nil {
		return nil, err
	}

	items = domain.AddItem(items, domain.LineItem{
		Name:     name,
		Size:     size,
		Price:    domain.Price(price),
		Quantity: domain.CoerceQuantity(float64(quantity)),
	})
	if err := s.write(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

// AddRaw normalizes a raw entry and adds it.
func (s *Store) AddRaw(ctx context.Context, raw *domain.RawEntry) (domain.Items, error) {
	item := domain.Normalize(raw)
	return s.Add(ctx, item.Name, item.Price, item.Size, item.Quantity)
}

// Remove deletes the line with the given key. Removing a missing key still
// rewrites the slot in canonical form.
func (s *Store) Remove(ctx context.Context, key domain.Key) (domain.Items, error) {
	items, err := s.Items(ctx)
	if err != nil {
		return nil, err
	}

	items = domain.RemoveItem(items, key)
	if err := s.write(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

// SetQuantity sets the quantity of the line with the given key. When no line
// matches nothing is written and no notification is sent.
func (s *Store) SetQuantity(ctx context.Context, key domain.Key, quantity float64) (domain.Items, error) {
	items, err := s.Items(ctx)
	if err != nil {
		return nil, err
	}

	updated, ok := domain.SetQuantity(items, key, quantity)
	if !ok {
		return items, nil
	}
	if err := s.write(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// Clear deletes the slot.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.slot.Remove(ctx); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	s.notify(ctx, domain.NewChange(s.session, domain.ChangeCleared, nil))
	return nil
}

// Count returns the total quantity across all lines.
func (s *Store) Count(ctx context.Context) (int, error) {
	items, err := s.Items(ctx)
	if err != nil {
		return 0, err
	}
	return items.Count(), nil
}

// Total returns the sum of price times quantity across all lines.
func (s *Store) Total(ctx context.Context) (decimal.Decimal, error) {
	items, err := s.Items(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return items.Total(), nil
}

// write overwrites the slot with the canonical list and notifies.
func (s *Store) write(ctx context.Context, items domain.Items) error {
	if items == nil {
		items = domain.Items{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}
	if err := s.slot.Set(ctx, data); err != nil {
		return fmt.Errorf("write cart: %w", err)
	}
	s.notify(ctx, domain.NewChange(s.session, domain.ChangeUpdated, items))
	return nil
}

func (s *Store) notify(ctx context.Context, change domain.Change) {
	if err := s.notifier.Notify(ctx, change); err != nil {
		metrics.NotifyErrors.WithLabelValues("store").Inc()
		s.logger.ErrorContext(ctx, "failed to notify cart change",
			slog.String("session", s.session),
			slog.String("kind", string(change.Kind)),
			slog.String("error", err.Error()),
		)
	}
}
