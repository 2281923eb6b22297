package storage

import (
	"context"
	"sync"
)

// MemoryBackend keeps cart documents in process memory. It backs local
// development runs without Redis and the store tests.
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

// Slot returns the slot for the given session.
func (b *MemoryBackend) Slot(session string) Slot {
	return &memorySlot{backend: b, key: KeyPrefix + session}
}

// Put writes a document directly, bypassing any store logic.
func (b *MemoryBackend) Put(session string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[KeyPrefix+session] = append([]byte(nil), data...)
}

// Raw returns the stored document for a session and whether it exists.
func (b *MemoryBackend) Raw(session string) ([]byte, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, ok := b.data[KeyPrefix+session]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

type memorySlot struct {
	backend *MemoryBackend
	key     string
}

func (s *memorySlot) Get(_ context.Context) ([]byte, error) {
	s.backend.mu.RLock()
	defer s.backend.mu.RUnlock()
	data, ok := s.backend.data[s.key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), data...), nil
}

func (s *memorySlot) Set(_ context.Context, data []byte) error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	s.backend.data[s.key] = append([]byte(nil), data...)
	return nil
}

func (s *memorySlot) Remove(_ context.Context) error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	delete(s.backend.data, s.key)
	return nil
}
