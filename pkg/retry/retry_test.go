package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errFlaky = errors.New("flaky")
	errFatal = errors.New("fatal")
)

func isFlaky(err error) bool { return errors.Is(err, errFlaky) }

func fast(extra ...Option) []Option {
	return append([]Option{WithInitialDelay(time.Millisecond), WithMaxDelay(5 * time.Millisecond)}, extra...)
}

func TestDo_RetriesTransientUntilSuccess(t *testing.T) {
	calls := 0
	err := DatabaseRetrier(fast(WithMaxAttempts(5), WithRetryIf(isFlaky))...).Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errFlaky
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnPermanentErrors(t *testing.T) {
	calls := 0
	err := DatabaseRetrier(fast(WithRetryIf(isFlaky))...).Do(context.Background(), func(context.Context) error {
		calls++
		return errFatal
	})
	assert.ErrorIs(t, err, errFatal)
	assert.Equal(t, 1, calls)
}

func TestDo_WithoutPredicateRunsOnce(t *testing.T) {
	calls := 0
	err := TelegramRetrier(fast()...).Do(context.Background(), func(context.Context) error {
		calls++
		return errFlaky
	})
	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	var retries []int
	calls := 0
	r := DatabaseRetrier(fast(WithMaxAttempts(3), WithRetryIf(isFlaky), WithOnRetry(func(attempt int, _ error, _ time.Duration) {
		retries = append(retries, attempt)
	}))...)

	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return errFlaky
	})

	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retries)
}

func TestDo_RespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := DatabaseRetrier().Do(ctx, func(context.Context) error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}

type hintErr struct{ d time.Duration }

func (e hintErr) Error() string             { return "slow down" }
func (e hintErr) RetryAfter() time.Duration { return e.d }

func TestDo_HonoursRetryAfterHint(t *testing.T) {
	var delays []time.Duration
	calls := 0
	r := DatabaseRetrier(fast(
		WithRetryIf(func(error) bool { return true }),
		WithOnRetry(func(_ int, _ error, d time.Duration) { delays = append(delays, d) }),
	)...)

	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		if calls == 1 {
			return hintErr{d: 20 * time.Millisecond}
		}
		return nil
	})

	require.NoError(t, err)
	require.Len(t, delays, 1)
	assert.Equal(t, 20*time.Millisecond, delays[0])
}

func TestBackoff_DoublesAndCaps(t *testing.T) {
	r := newRetrier(Config{MaxAttempts: 10, InitialDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond}, nil)

	assert.Equal(t, 10*time.Millisecond, r.backoff(1))
	assert.Equal(t, 20*time.Millisecond, r.backoff(2))
	assert.Equal(t, 40*time.Millisecond, r.backoff(3))
	assert.Equal(t, 50*time.Millisecond, r.backoff(4))
	assert.Equal(t, 50*time.Millisecond, r.backoff(9))
}
