package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySlot_RoundTrip(t *testing.T) {
	backend := NewMemoryBackend()
	slot := backend.Slot("sess-1")
	ctx := context.Background()

	got, err := slot.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, slot.Set(ctx, []byte(sampleDoc)))

	got, err = slot.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleDoc, string(got))

	raw, ok := backend.Raw("sess-1")
	require.True(t, ok)
	assert.Equal(t, sampleDoc, string(raw))

	require.NoError(t, slot.Remove(ctx))
	_, ok = backend.Raw("sess-1")
	assert.False(t, ok)
}

func TestMemorySlot_GetReturnsCopy(t *testing.T) {
	backend := NewMemoryBackend()
	backend.Put("sess-1", []byte("[]"))

	got, err := backend.Slot("sess-1").Get(context.Background())
	require.NoError(t, err)
	got[0] = 'x'

	raw, _ := backend.Raw("sess-1")
	assert.Equal(t, "[]", string(raw))
}

func TestMemoryBackend_RawReturnsCopy(t *testing.T) {
	backend := NewMemoryBackend()
	backend.Put("sess-1", []byte("[]"))

	raw, ok := backend.Raw("sess-1")
	require.True(t, ok)
	raw[0] = 'x'

	got, err := backend.Slot("sess-1").Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "[]", string(got))
}
