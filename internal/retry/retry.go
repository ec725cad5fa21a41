package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mcoot/arcade-judge/internal/model"
)

// Policy bounds how a per-user step is retried
type Policy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultPolicy returns the retry policy used for per-user commits
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:      3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
	}
}

// NoRetry runs the step exactly once
func NoRetry() Policy {
	return Policy{}
}

// Do runs op until it succeeds, returns a permanent error, or the policy is exhausted.
// op must redo its reads, since a version conflict means the data it read is stale.
func Do(ctx context.Context, p Policy, op func() error) error {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	b.MaxElapsedTime = 0

	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if !Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, p.MaxRetries), ctx))
}

// Retryable reports whether an error may succeed on a fresh attempt
func Retryable(err error) bool {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, model.ErrUserNotFound),
		errors.Is(err, model.ErrEmptyBatch),
		errors.Is(err, model.ErrBatchTooLarge),
		errors.Is(err, model.ErrUnknownPeriod):
		return false
	}
	return true
}
