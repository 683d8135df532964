package resilience

import (
	"context"
	"time"

	"compliance-assistant-be/internal/pkg/logger"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 1 * time.Second
)

type Options struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	AttemptTimeout time.Duration // 0 means no per-attempt timeout
	Jitter         bool
}

type Option func(*Options)

func WithMaxAttempts(attempts int) Option {
	return func(o *Options) {
		o.MaxAttempts = attempts
	}
}

func WithBaseDelay(delay time.Duration) Option {
	return func(o *Options) {
		o.BaseDelay = delay
	}
}

// WithAttemptTimeout bounds each attempt independently of the backoff
// schedule. An attempt that exceeds it counts as one failed attempt.
func WithAttemptTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.AttemptTimeout = timeout
	}
}

func WithJitter() Option {
	return func(o *Options) {
		o.Jitter = true
	}
}

// Permanent marks an error as non-retriable (e.g. a validation failure);
// Do surfaces it immediately without consuming further attempts.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs op with exponential backoff: waits of base*2^n between attempts
// (1s, 2s, 4s, ... by default), no jitter unless requested. Each failed
// attempt is logged with its index and cause; the last error is returned
// once MaxAttempts is exhausted.
func Do[T any](ctx context.Context, log logger.ILogger, name string, op func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	options := &Options{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.MaxAttempts < 1 {
		options.MaxAttempts = 1
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = options.BaseDelay
	expBackoff.Multiplier = 2
	expBackoff.MaxInterval = 5 * time.Minute
	expBackoff.MaxElapsedTime = 0 // bounded by attempt count, not wall clock
	if !options.Jitter {
		expBackoff.RandomizationFactor = 0
	}

	attempt := 0
	operation := func() (T, error) {
		attempt++
		attemptCtx := ctx
		if options.AttemptTimeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, options.AttemptTimeout)
			defer cancel()
		}
		return op(attemptCtx)
	}

	notify := func(err error, wait time.Duration) {
		if log != nil {
			log.Warn("Resilience", "Operation attempt failed, backing off", map[string]interface{}{
				"operation": name,
				"attempt":   attempt,
				"wait":      wait.String(),
				"error":     err.Error(),
			})
		}
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(expBackoff, uint64(options.MaxAttempts-1)),
		ctx,
	)

	return backoff.RetryNotifyWithData(operation, policy, notify)
}
