package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/procurement/backend/internal/domain/sequence"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyStoreFactory(t *testing.T) {
	ctx := context.Background()

	t.Run("redis disabled yields no client", func(t *testing.T) {
		f := NewIdempotencyStoreFactory(config.RedisConfig{Enabled: false})
		client, err := f.Connect(ctx)
		require.NoError(t, err)
		assert.Nil(t, client)
	})

	t.Run("falls back to in-memory without a client", func(t *testing.T) {
		f := NewIdempotencyStoreFactory(config.RedisConfig{})
		store, err := f.CreateStore(nil)
		require.NoError(t, err)
		defer store.Close()
		_, ok := store.(*InMemoryIdempotencyStore)
		assert.True(t, ok)
	})

	t.Run("refuses in-memory when fallback is disabled", func(t *testing.T) {
		f := NewIdempotencyStoreFactory(config.RedisConfig{}, WithInMemoryFallback(false))
		_, err := f.CreateStore(nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrStorageUnavailable))
	})

	t.Run("unreachable redis falls back when allowed", func(t *testing.T) {
		f := NewIdempotencyStoreFactory(config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1})
		client, err := f.Connect(ctx)
		require.NoError(t, err)
		assert.Nil(t, client)
	})

	t.Run("unreachable redis fails when fallback is disabled", func(t *testing.T) {
		f := NewIdempotencyStoreFactory(config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1}, WithInMemoryFallback(false))
		_, err := f.Connect(ctx)
		assert.Error(t, err)
	})
}

func TestSequenceKey(t *testing.T) {
	assert.Equal(t, "seq:ORDER:2025-03", SequenceKey("ORDER", sequencePeriod(2025, 3)))
}

func sequencePeriod(year, month int) sequence.Period {
	return sequence.Period{Year: year, Month: time.Month(month)}
}
