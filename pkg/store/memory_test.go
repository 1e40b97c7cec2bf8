package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_IncrWithTTL(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		count, err := s.IncrWithTTL(ctx, "counter", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, count)
	}

	value, ok, err := s.Get(ctx, "counter")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "3", value)
}

func TestMemoryStore_GetMissingKey(t *testing.T) {
	s := NewMemoryStore()

	value, ok, err := s.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, value)
}

func TestMemoryStore_SetAndDelete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.SetWithTTL(ctx, "k", "v", time.Minute))

	value, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", value)

	require.NoError(t, s.Delete(ctx, "k"))
	_, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_Expiry(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.SetWithTTL(ctx, "k", "v", 20*time.Millisecond))
	_, err := s.IncrWithTTL(ctx, "counter", 20*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(40 * time.Millisecond)

	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	// An expired counter restarts from zero.
	count, err := s.IncrWithTTL(ctx, "counter", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
