package engine

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
)

// RetryConfig configures retry behavior for sequential node execution.
// Hybrid and streaming runners are never retried: they are long-lived
// tasks whose side effects (emitted chunks) cannot be rolled back.
type RetryConfig struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// Retryable determines whether an error should trigger a retry.
	// Nil retries every error.
	Retryable func(error) bool
}

// DefaultRetryConfig returns a retry configuration suitable for
// transient I/O failures in nodes.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

// backOff builds the context-aware exponential policy for one node
// invocation. A fresh policy per invocation keeps the interval state
// from leaking across nodes.
func (c *RetryConfig) backOff(ctx context.Context) backoff.BackOffContext {
	eb := backoff.NewExponentialBackOff()
	if c.InitialInterval > 0 {
		eb.InitialInterval = c.InitialInterval
	}
	if c.MaxInterval > 0 {
		eb.MaxInterval = c.MaxInterval
	}
	eb.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(eb, c.MaxRetries), ctx)
}

// retry runs op under c, treating non-retryable errors as permanent.
func (c *RetryConfig) retry(ctx context.Context, op func() error) error {
	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if c.Retryable != nil && !c.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.Retry(wrapped, c.backOff(ctx))
}
