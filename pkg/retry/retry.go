// Package retry re-runs Telegram Bot API calls and storage transactions with
// capped exponential backoff. The caller decides what is transient through
// WithRetryIf; without it an error is returned on the first attempt.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Config holds retry configuration.
type Config struct {
	// MaxAttempts counts the first attempt too.
	MaxAttempts int

	// InitialDelay doubles after every failed attempt up to MaxDelay.
	InitialDelay time.Duration
	MaxDelay     time.Duration

	// Jitter is the fraction of the delay added or subtracted at random.
	Jitter float64

	RetryIf func(error) bool
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Option is a functional option for configuring retries.
type Option func(*Config)

// WithMaxAttempts sets the maximum number of attempts.
func WithMaxAttempts(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.MaxAttempts = n
		}
	}
}

// WithInitialDelay sets the delay before the first retry.
func WithInitialDelay(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.InitialDelay = d
		}
	}
}

// WithMaxDelay caps the delay between retries.
func WithMaxDelay(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.MaxDelay = d
		}
	}
}

// WithRetryIf sets the predicate that marks an error as transient.
func WithRetryIf(fn func(error) bool) Option {
	return func(c *Config) {
		c.RetryIf = fn
	}
}

// WithOnRetry sets a callback invoked before every retry, for logging.
func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(c *Config) {
		c.OnRetry = fn
	}
}

// Retrier runs an operation until it succeeds, fails permanently or runs
// out of attempts.
type Retrier struct {
	config Config
}

func newRetrier(base Config, opts []Option) *Retrier {
	for _, opt := range opts {
		opt(&base)
	}
	if base.MaxAttempts <= 0 {
		base.MaxAttempts = 1
	}
	return &Retrier{config: base}
}

// TelegramRetrier returns a Retrier tuned for Bot API calls.
func TelegramRetrier(opts ...Option) *Retrier {
	return newRetrier(Config{
		MaxAttempts:  4,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Jitter:       0.1,
	}, opts)
}

// DatabaseRetrier returns a Retrier tuned for storage operations that failed
// with a transient error (serialization failure, lost connection).
func DatabaseRetrier(opts ...Option) *Retrier {
	return newRetrier(Config{
		MaxAttempts:  3,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     time.Second,
		Jitter:       0.05,
	}, opts)
}

// Do executes operation with retries and returns the last error.
func (r *Retrier) Do(ctx context.Context, operation func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		err := operation(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if r.config.RetryIf == nil || !r.config.RetryIf(err) || attempt == r.config.MaxAttempts {
			return err
		}

		delay := r.backoff(attempt)
		if hint := retryAfter(err); hint > delay {
			delay = hint
		}
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}

	return lastErr
}

// backoff returns InitialDelay * 2^(attempt-1), capped and jittered.
func (r *Retrier) backoff(attempt int) time.Duration {
	delay := r.config.InitialDelay
	for i := 1; i < attempt && delay < r.config.MaxDelay; i++ {
		delay *= 2
	}
	if r.config.MaxDelay > 0 && delay > r.config.MaxDelay {
		delay = r.config.MaxDelay
	}
	if r.config.Jitter > 0 {
		delay += time.Duration(float64(delay) * r.config.Jitter * (rand.Float64()*2 - 1))
	}
	if delay < 0 {
		delay = 0
	}
	return delay
}

// RetryAfterHint is implemented by errors that carry a server-side backoff
// hint, such as Telegram's 429 retry_after.
type RetryAfterHint interface {
	RetryAfter() time.Duration
}

func retryAfter(err error) time.Duration {
	var hint RetryAfterHint
	if errors.As(err, &hint) {
		return hint.RetryAfter()
	}
	return 0
}
