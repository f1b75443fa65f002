package kv

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreGetMissing(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Get(context.Background(), "leads")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
	s := NewMemoryStore(WithClock(func() time.Time { return now }))

	require.NoError(t, s.Set(ctx, "exit_intent:abc", []byte("true"), time.Hour))
	got, err := s.Get(ctx, "exit_intent:abc")
	require.NoError(t, err)
	assert.Equal(t, "true", string(got))

	now = now.Add(time.Hour)
	_, err = s.Get(ctx, "exit_intent:abc")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreSetNXFirstWins(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
	s := NewMemoryStore(WithClock(func() time.Time { return now }))

	ok, err := s.SetNX(ctx, "flag", []byte("1"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.SetNX(ctx, "flag", []byte("2"), time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	now = now.Add(2 * time.Minute)
	ok, err = s.SetNX(ctx, "flag", []byte("3"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "expired key can be set again")
}

func TestMemoryStoreUpdateIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Update(ctx, "counter", func(cur []byte, _ bool) ([]byte, error) {
				return append(cur, 'x'), nil
			})
		}()
	}
	wg.Wait()

	got, err := s.Get(ctx, "counter")
	require.NoError(t, err)
	assert.Len(t, got, 50)
}

func TestMemoryStoreUpdateAbortsOnError(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, "leads", []byte("[]"), 0))

	boom := errors.New("boom")
	err := s.Update(ctx, "leads", func([]byte, bool) ([]byte, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	got, err := s.Get(ctx, "leads")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(got))
}
