package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	apperrors "github.com/zenleaftraders/zenleaftraders/pkg/errors"
	"github.com/zenleaftraders/zenleaftraders/pkg/tracing"
	"github.com/zenleaftraders/zenleaftraders/pkg/validator"
	"github.com/zenleaftraders/zenleaftraders/services/cart/internal/domain"
	"github.com/zenleaftraders/zenleaftraders/services/cart/internal/metrics"
	"github.com/zenleaftraders/zenleaftraders/services/cart/internal/notify"
	"github.com/zenleaftraders/zenleaftraders/services/cart/internal/storage"
	"github.com/zenleaftraders/zenleaftraders/services/cart/internal/store"
)

const tracerName = "github.com/zenleaftraders/zenleaftraders/services/cart/internal/service"

// AddItemInput holds the parameters for adding an item to the cart. Price and
// Quantity are loosely typed: a price may be a number or a string such as
// "$110", a quantity a number or a numeric string.
type AddItemInput struct {
	Name     string
	Size     string
	Price    any
	Quantity any
}

// CartService resolves a session to its cart store and runs cart operations
// against it.
type CartService struct {
	backend  storage.Backend
	notifier notify.Notifier
	bus      *notify.Bus
	logger   *slog.Logger
}

// NewCartService creates a new cart service. Mutations are reported to
// notifier; bus is where SSE subscribers attach and is normally one of the
// notifier's targets.
func NewCartService(backend storage.Backend, notifier notify.Notifier, bus *notify.Bus, logger *slog.Logger) *CartService {
	if bus == nil {
		bus = notify.NewBus()
	}
	return &CartService{
		backend:  backend,
		notifier: notifier,
		bus:      bus,
		logger:   logger,
	}
}

// View returns the render data of the session's cart.
func (s *CartService) View(ctx context.Context, session string) (domain.View, error) {
	st, err := s.open(session)
	if err != nil {
		return domain.View{}, err
	}

	ctx, span := tracing.Start(ctx, tracerName, "CartService.View", attribute.String("cart.session", session))
	items, err := st.Items(ctx)
	err = storageError(err)
	tracing.End(span, err)
	if err != nil {
		return domain.View{}, err
	}
	return domain.BuildView(items), nil
}

// Count returns the total quantity in the session's cart.
func (s *CartService) Count(ctx context.Context, session string) (int, error) {
	st, err := s.open(session)
	if err != nil {
		return 0, err
	}
	count, err := st.Count(ctx)
	if err != nil {
		return 0, storageError(err)
	}
	return count, nil
}

// AddItem merges an item into the cart. An empty name leaves the cart
// untouched.
func (s *CartService) AddItem(ctx context.Context, session string, input AddItemInput) (domain.View, error) {
	st, err := s.open(session)
	if err != nil {
		return domain.View{}, err
	}

	price := domain.Price(input.Price)
	quantity := domain.Quantity(input.Quantity)

	ctx, span := tracing.Start(ctx, tracerName, "CartService.AddItem",
		attribute.String("cart.session", session),
		attribute.String("cart.item.name", input.Name),
	)
	items, err := st.Add(ctx, input.Name, price, input.Size, quantity)
	err = storageError(err)
	tracing.End(span, err)
	if err != nil {
		return domain.View{}, err
	}
	if input.Name == "" {
		return domain.BuildView(items), nil
	}

	metrics.Mutations.WithLabelValues("add").Inc()
	s.logger.InfoContext(ctx, "item added to cart",
		slog.String("session", session),
		slog.String("name", input.Name),
		slog.String("size", input.Size),
		slog.Float64("price", price),
		slog.Int("quantity", quantity),
	)

	return domain.BuildView(items), nil
}

// AddRaw normalizes a legacy raw entry and merges it into the cart.
func (s *CartService) AddRaw(ctx context.Context, session string, raw *domain.RawEntry) (domain.View, error) {
	st, err := s.open(session)
	if err != nil {
		return domain.View{}, err
	}

	ctx, span := tracing.Start(ctx, tracerName, "CartService.AddRaw", attribute.String("cart.session", session))
	items, err := st.AddRaw(ctx, raw)
	err = storageError(err)
	tracing.End(span, err)
	if err != nil {
		return domain.View{}, err
	}

	item := domain.Normalize(raw)
	metrics.Mutations.WithLabelValues("add_raw").Inc()
	s.logger.InfoContext(ctx, "raw entry added to cart",
		slog.String("session", session),
		slog.String("name", item.Name),
		slog.Int("quantity", item.Quantity),
	)

	return domain.BuildView(items), nil
}

// RemoveItem deletes the line identified by the encoded key.
func (s *CartService) RemoveItem(ctx context.Context, session, encodedKey string) (domain.View, error) {
	st, err := s.open(session)
	if err != nil {
		return domain.View{}, err
	}
	key, err := parseKey(encodedKey)
	if err != nil {
		return domain.View{}, err
	}

	ctx, span := tracing.Start(ctx, tracerName, "CartService.RemoveItem",
		attribute.String("cart.session", session),
		attribute.String("cart.item.key", key.String()),
	)
	items, err := st.Remove(ctx, key)
	err = storageError(err)
	tracing.End(span, err)
	if err != nil {
		return domain.View{}, err
	}

	metrics.Mutations.WithLabelValues("remove").Inc()
	s.logger.InfoContext(ctx, "item removed from cart",
		slog.String("session", session),
		slog.String("key", key.String()),
	)

	return domain.BuildView(items), nil
}

// SetQuantity sets the quantity of the line identified by the encoded key. An
// unknown key leaves the cart untouched.
func (s *CartService) SetQuantity(ctx context.Context, session, encodedKey string, quantity any) (domain.View, error) {
	st, err := s.open(session)
	if err != nil {
		return domain.View{}, err
	}
	key, err := parseKey(encodedKey)
	if err != nil {
		return domain.View{}, err
	}
	qty := domain.Quantity(quantity)

	ctx, span := tracing.Start(ctx, tracerName, "CartService.SetQuantity",
		attribute.String("cart.session", session),
		attribute.String("cart.item.key", key.String()),
		attribute.Int("cart.item.quantity", qty),
	)
	items, err := st.SetQuantity(ctx, key, float64(qty))
	err = storageError(err)
	tracing.End(span, err)
	if err != nil {
		return domain.View{}, err
	}

	if items.Index(key) < 0 {
		s.logger.DebugContext(ctx, "quantity update for unknown cart line ignored",
			slog.String("session", session),
			slog.String("key", key.String()),
		)
		return domain.BuildView(items), nil
	}

	metrics.Mutations.WithLabelValues("set_quantity").Inc()
	s.logger.InfoContext(ctx, "cart item quantity updated",
		slog.String("session", session),
		slog.String("key", key.String()),
		slog.Int("quantity", qty),
	)

	return domain.BuildView(items), nil
}

// Clear removes every item from the session's cart.
func (s *CartService) Clear(ctx context.Context, session string) error {
	st, err := s.open(session)
	if err != nil {
		return err
	}

	ctx, span := tracing.Start(ctx, tracerName, "CartService.Clear", attribute.String("cart.session", session))
	err = storageError(st.Clear(ctx))
	tracing.End(span, err)
	if err != nil {
		return err
	}

	metrics.Mutations.WithLabelValues("clear").Inc()
	s.logger.InfoContext(ctx, "cart cleared",
		slog.String("session", session),
	)

	return nil
}

// Subscribe registers fn for every change to the session's cart, local or
// from another instance. The returned function removes the subscription.
func (s *CartService) Subscribe(session string, fn func(domain.Change)) (unsubscribe func(), err error) {
	if err := checkSession(session); err != nil {
		return nil, err
	}
	return s.bus.SubscribeSession(session, func(_ context.Context, change domain.Change) {
		fn(change)
	}), nil
}

func (s *CartService) open(session string) (*store.Store, error) {
	if err := checkSession(session); err != nil {
		return nil, err
	}
	return store.New(session, s.backend.Slot(session), s.notifier, s.logger), nil
}

func checkSession(session string) error {
	if session == "" {
		return apperrors.Unauthorized("cart session required")
	}
	if err := validator.ValidateVar("session", session, "session"); err != nil {
		return apperrors.InvalidInput("malformed cart session")
	}
	return nil
}

func parseKey(encoded string) (domain.Key, error) {
	key, err := domain.DecodeKey(encoded)
	if err != nil {
		if errors.Is(err, domain.ErrMalformedKey) {
			return domain.Key{}, apperrors.InvalidInput("malformed item key")
		}
		return domain.Key{}, apperrors.InvalidInput(err.Error())
	}
	return key, nil
}

// storageError maps a failure of the slot backend to 503.
func storageError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Unavailable("cart storage unavailable", err)
}
