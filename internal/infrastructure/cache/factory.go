package cache

import (
	"context"

	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// IdempotencyStoreFactory creates idempotency stores based on configuration
type IdempotencyStoreFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
	keyPrefix             string
}

// IdempotencyStoreFactoryOption is a functional option for configuring the factory
type IdempotencyStoreFactoryOption func(*IdempotencyStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to in-memory store when Redis is unavailable
// Default is true (allow fallback)
func WithInMemoryFallback(allow bool) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// WithKeyPrefix sets the key namespace of Redis-backed stores
func WithKeyPrefix(prefix string) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.keyPrefix = prefix
	}
}

// NewIdempotencyStoreFactory creates a new factory
func NewIdempotencyStoreFactory(cfg config.RedisConfig, opts ...IdempotencyStoreFactoryOption) *IdempotencyStoreFactory {
	f := &IdempotencyStoreFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
		keyPrefix:             DefaultSyncKeyPrefix,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateInMemoryStore creates an in-memory idempotency store
// WARNING: In-memory stores do not share state across process instances,
// so a repeat handled by another instance is not suppressed
func (f *IdempotencyStoreFactory) CreateInMemoryStore() shared.IdempotencyStore {
	return NewInMemoryIdempotencyStore()
}

// CreateStore returns a Redis store on client when one is given, otherwise an
// in-memory store if fallback is allowed
func (f *IdempotencyStoreFactory) CreateStore(client *redis.Client) (shared.IdempotencyStore, error) {
	if client != nil {
		f.logger.Info("using Redis idempotency store", zap.String("prefix", f.keyPrefix))
		return NewRedisIdempotencyStoreWithClient(client, f.keyPrefix), nil
	}

	if !f.allowInMemoryFallback {
		return nil, shared.NewDomainError("STORAGE_UNAVAILABLE", "Redis is required for the idempotency store")
	}

	f.logger.Warn("Redis disabled, using in-memory idempotency store; " +
		"repeats handled by other instances are not suppressed")
	return f.CreateInMemoryStore(), nil
}

// Connect opens a Redis client when Redis is enabled. It returns nil without
// error when Redis is disabled, and falls back to nil when the connection
// fails and fallback is allowed.
func (f *IdempotencyStoreFactory) Connect(ctx context.Context) (*redis.Client, error) {
	if !f.redisConfig.Enabled {
		return nil, nil
	}
	client, err := NewRedisClient(ctx, f.redisConfig)
	if err == nil {
		return client, nil
	}
	if !f.allowInMemoryFallback {
		return nil, err
	}
	f.logger.Warn("Redis unavailable, continuing without it", zap.Error(err))
	return nil, nil
}
