package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenleaftraders/zenleaftraders/services/cart/internal/domain"
	"github.com/zenleaftraders/zenleaftraders/services/cart/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ============================================================================
// Bus Tests
// ============================================================================

func TestBus_DeliversToSubscribers(t *testing.T) {
	bus := NewBus()
	var got []domain.Change
	bus.Subscribe(func(_ context.Context, c domain.Change) { got = append(got, c) })

	change := domain.NewChange("sess-1", domain.ChangeUpdated, domain.Items{{Name: "A", Quantity: 1}})
	require.NoError(t, bus.Notify(context.Background(), change))

	require.Len(t, got, 1)
	assert.Equal(t, "sess-1", got[0].Session)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	calls := 0
	unsubscribe := bus.Subscribe(func(context.Context, domain.Change) { calls++ })
	assert.Equal(t, 1, bus.Len())

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 0, bus.Len())

	require.NoError(t, bus.Notify(context.Background(), domain.NewChange("s", domain.ChangeCleared, nil)))
	assert.Equal(t, 0, calls)
}

func TestBus_SubscribeSession(t *testing.T) {
	bus := NewBus()
	calls := 0
	bus.SubscribeSession("mine", func(context.Context, domain.Change) { calls++ })

	ctx := context.Background()
	require.NoError(t, bus.Notify(ctx, domain.NewChange("other", domain.ChangeUpdated, nil)))
	require.NoError(t, bus.Notify(ctx, domain.NewChange("mine", domain.ChangeUpdated, nil)))

	assert.Equal(t, 1, calls)
}

// ============================================================================
// Multi Tests
// ============================================================================

func TestMulti_RunsAllAndJoinsErrors(t *testing.T) {
	errA := errors.New("a failed")
	errC := errors.New("c failed")
	ran := 0

	m := Multi{
		NotifierFunc(func(context.Context, domain.Change) error { ran++; return errA }),
		nil,
		NotifierFunc(func(context.Context, domain.Change) error { ran++; return nil }),
		NotifierFunc(func(context.Context, domain.Change) error { ran++; return errC }),
	}

	err := m.Notify(context.Background(), domain.NewChange("s", domain.ChangeUpdated, nil))

	assert.Equal(t, 3, ran)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errC)
}

func TestMulti_Empty(t *testing.T) {
	assert.NoError(t, Multi{}.Notify(context.Background(), domain.Change{}))
	assert.NoError(t, Nop.Notify(context.Background(), domain.Change{}))
}

// ============================================================================
// Redis Pub/Sub Tests
// ============================================================================

type redisFixture struct {
	mr      *miniredis.Miniredis
	client  *goredis.Client
	backend *storage.RedisBackend
}

func setupRedis(t *testing.T) redisFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return redisFixture{
		mr:      mr,
		client:  client,
		backend: storage.NewRedisBackend(client, time.Hour),
	}
}

// startListener runs a listener for origin and returns the channel its
// dispatched changes arrive on.
func startListener(t *testing.T, fx redisFixture, origin string) <-chan domain.Change {
	t.Helper()
	received := make(chan domain.Change, 4)
	target := NotifierFunc(func(_ context.Context, c domain.Change) error {
		received <- c
		return nil
	})

	listener := NewRedisListener(fx.client, DefaultChannel, origin, fx.backend, target, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, listener.Subscribe(ctx))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = listener.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return received
}

func TestRedisListener_ReceivesRemoteChange(t *testing.T) {
	fx := setupRedis(t)
	received := startListener(t, fx, "instance-b")

	doc := `[{"name":"Blue Dream","size":"1 oz","price":110,"quantity":1},{"name":"Blue Dream","size":"1 oz","price":110,"quantity":2}]`
	require.NoError(t, fx.mr.Set("cart:sess-1", doc))

	publisher := NewRedisPublisher(fx.client, DefaultChannel, "instance-a")
	require.NoError(t, publisher.Notify(context.Background(), domain.NewChange("sess-1", domain.ChangeUpdated, nil)))

	select {
	case change := <-received:
		assert.Equal(t, "sess-1", change.Session)
		assert.Equal(t, domain.ChangeUpdated, change.Kind)
		require.Len(t, change.Items, 1)
		assert.Equal(t, 3, change.Items[0].Quantity)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for remote change")
	}
}

func TestRedisListener_IgnoresOwnOrigin(t *testing.T) {
	fx := setupRedis(t)
	received := startListener(t, fx, "instance-a")

	publisher := NewRedisPublisher(fx.client, DefaultChannel, "instance-a")
	require.NoError(t, publisher.Notify(context.Background(), domain.NewChange("sess-1", domain.ChangeCleared, nil)))

	select {
	case change := <-received:
		t.Fatalf("unexpected change delivered: %+v", change)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestRedisListener_IgnoresMalformedMessage(t *testing.T) {
	fx := setupRedis(t)
	received := startListener(t, fx, "instance-b")

	fx.mr.Publish(DefaultChannel, "not json")
	fx.mr.Publish(DefaultChannel, `{"origin":"instance-a"}`)

	select {
	case change := <-received:
		t.Fatalf("unexpected change delivered: %+v", change)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestRedisPublisher_ConnectionError(t *testing.T) {
	fx := setupRedis(t)
	fx.mr.Close()

	publisher := NewRedisPublisher(fx.client, DefaultChannel, "instance-a")
	err := publisher.Notify(context.Background(), domain.NewChange("sess-1", domain.ChangeUpdated, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis publish")
}
