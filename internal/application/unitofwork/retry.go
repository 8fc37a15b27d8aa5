package unitofwork

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/procurement/backend/internal/domain/shared"
)

// RetryPolicy bounds the retries of an operation hitting a concurrency
// conflict or unavailable storage.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy returns 3 attempts starting at 100ms
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     time.Second,
	}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialInterval
	if p.MaxInterval > 0 {
		eb.MaxInterval = p.MaxInterval
	}
	eb.MaxElapsedTime = 0
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(attempts-1)), ctx)
}

// Retry runs op until it succeeds, fails with a non-retryable error, or the
// attempts are used up. The last error is returned unchanged.
func Retry(ctx context.Context, policy RetryPolicy, op func() error) error {
	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if !shared.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy.backOff(ctx))
}

// RetryWithNotify is Retry with a callback invoked before each new attempt
func RetryWithNotify(ctx context.Context, policy RetryPolicy, op func() error, notify func(err error, wait time.Duration)) error {
	return backoff.RetryNotify(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if !shared.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy.backOff(ctx), notify)
}
