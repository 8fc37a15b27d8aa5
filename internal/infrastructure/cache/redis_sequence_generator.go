package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/procurement/backend/internal/domain/sequence"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/redis/go-redis/v9"
)

// RedisSequenceGenerator issues counter values with INCR. Keys carry no TTL;
// Redis must run with persistence enabled for counters to survive restarts.
type RedisSequenceGenerator struct {
	client *redis.Client
}

// NewRedisSequenceGenerator creates a new RedisSequenceGenerator
func NewRedisSequenceGenerator(client *redis.Client) *RedisSequenceGenerator {
	return &RedisSequenceGenerator{client: client}
}

// SequenceKey returns the Redis key of a (kind, period) counter
func SequenceKey(kind sequence.Kind, period sequence.Period) string {
	return fmt.Sprintf("seq:%s:%s", kind, period)
}

// Next increments and returns the counter
func (g *RedisSequenceGenerator) Next(ctx context.Context, kind sequence.Kind, period sequence.Period) (int64, error) {
	value, err := g.client.Incr(ctx, SequenceKey(kind, period)).Result()
	if err != nil {
		return 0, shared.NewDomainError("STORAGE_UNAVAILABLE", "sequence store unavailable: "+err.Error())
	}
	return value, nil
}

// Current returns the last issued value, or 0 when the key does not exist
func (g *RedisSequenceGenerator) Current(ctx context.Context, kind sequence.Kind, period sequence.Period) (int64, error) {
	value, err := g.client.Get(ctx, SequenceKey(kind, period)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, shared.NewDomainError("STORAGE_UNAVAILABLE", "sequence store unavailable: "+err.Error())
	}
	return value, nil
}

// Ensure RedisSequenceGenerator implements Generator
var _ sequence.Generator = (*RedisSequenceGenerator)(nil)
