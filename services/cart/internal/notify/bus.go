package notify

import (
	"context"
	"sync"

	"github.com/zenleaftraders/zenleaftraders/services/cart/internal/domain"
)

// Listener handles a change delivered by the Bus.
type Listener func(ctx context.Context, change domain.Change)

// Bus delivers changes to listeners in the same process. Listeners run
// synchronously on the notifying goroutine and must not block.
type Bus struct {
	mu        sync.RWMutex
	nextID    int
	listeners map[int]Listener
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{listeners: make(map[int]Listener)}
}

// Subscribe registers l and returns a function that removes it.
func (b *Bus) Subscribe(l Listener) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = l
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, id)
			b.mu.Unlock()
		})
	}
}

// SubscribeSession registers l for changes to a single session.
func (b *Bus) SubscribeSession(session string, l Listener) (unsubscribe func()) {
	return b.Subscribe(func(ctx context.Context, change domain.Change) {
		if change.Session == session {
			l(ctx, change)
		}
	})
}

// Notify delivers change to every current listener. It never fails.
func (b *Bus) Notify(ctx context.Context, change domain.Change) error {
	b.mu.RLock()
	listeners := make([]Listener, 0, len(b.listeners))
	for _, l := range b.listeners {
		listeners = append(listeners, l)
	}
	b.mu.RUnlock()

	for _, l := range listeners {
		l(ctx, change)
	}
	return nil
}

// Len returns the number of registered listeners.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}
