package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/zenleaftraders/zenleaftraders/pkg/errors"
	"github.com/zenleaftraders/zenleaftraders/services/cart/internal/domain"
	"github.com/zenleaftraders/zenleaftraders/services/cart/internal/notify"
	"github.com/zenleaftraders/zenleaftraders/services/cart/internal/storage"
)

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recorder struct {
	changes []domain.Change
}

func (r *recorder) Notify(_ context.Context, change domain.Change) error {
	r.changes = append(r.changes, change)
	return nil
}

func newTestService(t *testing.T) (*CartService, *storage.MemoryBackend, *recorder) {
	t.Helper()
	backend := storage.NewMemoryBackend()
	rec := &recorder{}
	bus := notify.NewBus()
	svc := NewCartService(backend, notify.Multi{bus, rec}, bus, newTestLogger())
	return svc, backend, rec
}

func keyOf(name, size string, price float64) string {
	return domain.Key{Name: name, Size: size, Price: price}.Encode()
}

// --- Session validation ---

func TestCartService_SessionRequired(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.View(context.Background(), "")

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestCartService_MalformedSession(t *testing.T) {
	svc, _, _ := newTestService(t)

	for _, session := range []string{"has space", "semi;colon", string(make([]byte, 129))} {
		_, err := svc.AddItem(context.Background(), session, AddItemInput{Name: "x"})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput, session)
	}
}

// --- View / AddItem ---

func TestCartService_View_Empty(t *testing.T) {
	svc, _, _ := newTestService(t)

	view, err := svc.View(context.Background(), "sess-1")

	require.NoError(t, err)
	assert.True(t, view.Empty)
	assert.Equal(t, 0, view.Count)
	assert.Equal(t, "$0.00", view.TotalText)
	assert.Empty(t, view.OrderDetails)
}

func TestCartService_AddItem_MergesAndCoerces(t *testing.T) {
	svc, _, rec := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "sess-1", AddItemInput{Name: "Blue Dream", Size: "1 oz", Price: "$110", Quantity: 1})
	require.NoError(t, err)
	view, err := svc.AddItem(ctx, "sess-1", AddItemInput{Name: "Blue Dream", Size: "1 oz", Price: 110.0, Quantity: "2"})
	require.NoError(t, err)

	require.Len(t, view.Items, 1)
	assert.Equal(t, 3, view.Items[0].Quantity)
	assert.Equal(t, 110.0, view.Items[0].Price)
	assert.Equal(t, 330.0, view.Total)
	assert.Equal(t, "$330.00", view.TotalText)
	assert.Len(t, rec.changes, 2)
}

func TestCartService_AddItem_EmptyNameIsIgnored(t *testing.T) {
	svc, backend, rec := newTestService(t)

	view, err := svc.AddItem(context.Background(), "sess-1", AddItemInput{Price: 10, Quantity: 1})

	require.NoError(t, err)
	assert.True(t, view.Empty)
	assert.Empty(t, rec.changes)
	_, stored := backend.Raw("sess-1")
	assert.False(t, stored)
}

func TestCartService_AddItem_BadNumbersCoerced(t *testing.T) {
	svc, _, _ := newTestService(t)

	view, err := svc.AddItem(context.Background(), "sess-1", AddItemInput{Name: "Gummies", Price: "free", Quantity: -4})

	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 0.0, view.Items[0].Price)
	assert.Equal(t, 1, view.Items[0].Quantity)
}

func TestCartService_AddRaw_Normalizes(t *testing.T) {
	svc, _, _ := newTestService(t)

	view, err := svc.AddRaw(context.Background(), "sess-1", &domain.RawEntry{
		ProductName: "OG Kush",
		SizePrice:   "1/8 oz: $45",
		Quantity:    "2",
	})

	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "OG Kush", view.Items[0].Name)
	assert.Equal(t, "1/8 oz", view.Items[0].Size)
	assert.Equal(t, 45.0, view.Items[0].Price)
	assert.Equal(t, 2, view.Items[0].Quantity)
}

func TestCartService_LegacySlotRewrittenCanonically(t *testing.T) {
	svc, backend, _ := newTestService(t)
	backend.Put("sess-1", []byte(`[{"product":"Pre-roll","sizePrice":"1g: $12"},{"product":"Pre-roll","sizePrice":"1g: $12"}]`))

	view, err := svc.AddItem(context.Background(), "sess-1", AddItemInput{Name: "Tincture", Price: 30, Quantity: 1})
	require.NoError(t, err)
	require.Len(t, view.Items, 2)
	assert.Equal(t, 2, view.Items[0].Quantity)

	raw, ok := backend.Raw("sess-1")
	require.True(t, ok)
	assert.JSONEq(t,
		`[{"name":"Pre-roll","size":"1g","price":12,"quantity":2},{"name":"Tincture","size":"","price":30,"quantity":1}]`,
		string(raw))
}

// --- Remove / SetQuantity ---

func TestCartService_RemoveItem(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.AddItem(ctx, "sess-1", AddItemInput{Name: "A", Size: "S", Price: 5, Quantity: 1})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, "sess-1", AddItemInput{Name: "B", Price: 7, Quantity: 1})
	require.NoError(t, err)

	view, err := svc.RemoveItem(ctx, "sess-1", keyOf("A", "S", 5))

	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "B", view.Items[0].Name)
}

func TestCartService_RemoveItem_MalformedKey(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.RemoveItem(context.Background(), "sess-1", "only-one-part")

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestCartService_SetQuantity(t *testing.T) {
	svc, _, rec := newTestService(t)
	ctx := context.Background()
	_, err := svc.AddItem(ctx, "sess-1", AddItemInput{Name: "A", Price: 5, Quantity: 1})
	require.NoError(t, err)

	view, err := svc.SetQuantity(ctx, "sess-1", keyOf("A", "", 5), "4")

	require.NoError(t, err)
	assert.Equal(t, 4, view.Items[0].Quantity)
	assert.Equal(t, 20.0, view.Total)
	assert.Len(t, rec.changes, 2)
}

func TestCartService_SetQuantity_UnknownKeyNoWrite(t *testing.T) {
	svc, _, rec := newTestService(t)
	ctx := context.Background()
	_, err := svc.AddItem(ctx, "sess-1", AddItemInput{Name: "A", Price: 5, Quantity: 1})
	require.NoError(t, err)

	view, err := svc.SetQuantity(ctx, "sess-1", keyOf("Z", "", 1), 9)

	require.NoError(t, err)
	assert.Equal(t, 1, view.Items[0].Quantity)
	assert.Len(t, rec.changes, 1)
}

// --- Clear / Count ---

func TestCartService_ClearAndCount(t *testing.T) {
	svc, backend, rec := newTestService(t)
	ctx := context.Background()
	_, err := svc.AddItem(ctx, "sess-1", AddItemInput{Name: "A", Price: 5, Quantity: 3})
	require.NoError(t, err)

	count, err := svc.Count(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	require.NoError(t, svc.Clear(ctx, "sess-1"))

	count, err = svc.Count(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	_, stored := backend.Raw("sess-1")
	assert.False(t, stored)
	require.Len(t, rec.changes, 2)
	assert.Equal(t, domain.ChangeCleared, rec.changes[1].Kind)
}

// --- Subscribe ---

func TestCartService_Subscribe_OnlyOwnSession(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	var got []domain.Change
	unsubscribe, err := svc.Subscribe("sess-1", func(c domain.Change) { got = append(got, c) })
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, "sess-1", AddItemInput{Name: "A", Price: 5, Quantity: 1})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, "sess-2", AddItemInput{Name: "B", Price: 5, Quantity: 1})
	require.NoError(t, err)

	unsubscribe()
	_, err = svc.AddItem(ctx, "sess-1", AddItemInput{Name: "C", Price: 5, Quantity: 1})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "sess-1", got[0].Session)
	assert.Equal(t, 1, got[0].Items.Count())
}

func TestCartService_Subscribe_RequiresSession(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Subscribe("", func(domain.Change) {})

	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

// --- Redis backend ---

func TestCartService_RedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc := NewCartService(storage.NewRedisBackend(client, time.Hour), notify.Nop, nil, newTestLogger())
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "sess-1", AddItemInput{Name: "A", Price: 5, Quantity: 2})
	require.NoError(t, err)

	count, err := svc.Count(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestCartService_StorageFailureIsUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	svc := NewCartService(storage.NewRedisBackend(client, time.Hour), notify.Nop, nil, newTestLogger())

	mr.Close()
	_, err := svc.View(context.Background(), "sess-1")

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "SERVICE_UNAVAILABLE", appErr.Code)
}
