package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run adapts an error-only call to DoVal.
func run(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func fastConfig(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestDoVal_SuccessOnFirstAttempt(t *testing.T) {
	var calls int
	err := run(context.Background(), DefaultRetryConfig(), func(_ context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoVal_SuccessAfterRetry(t *testing.T) {
	var calls int
	err := run(context.Background(), fastConfig(3), func(_ context.Context) error {
		calls++
		if calls < 3 {
			return NewTransientError(errors.New("temporary"), 503)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoVal_ExhaustsRetries(t *testing.T) {
	var calls int
	err := run(context.Background(), fastConfig(3), func(_ context.Context) error {
		calls++
		return NewTransientError(errors.New("always fails"), 500)
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "always fails")
}

func TestDoVal_NonTransientError_NoRetry(t *testing.T) {
	var calls int
	err := run(context.Background(), fastConfig(5), func(_ context.Context) error {
		calls++
		return errors.New("bad request")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoVal_DeadlineIsFinal(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	var calls int
	err := run(ctx, fastConfig(5), func(ctx context.Context) error {
		calls++
		<-ctx.Done()
		return ctx.Err()
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, calls)
}

func TestDoVal_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxAttempts: 5, InitialBackoff: time.Hour, MaxBackoff: time.Hour}

	var calls int
	err := run(ctx, cfg, func(_ context.Context) error {
		calls++
		cancel()
		return NewTransientError(errors.New("flaky"), 502)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoVal_CustomShouldRetry(t *testing.T) {
	sentinel := errors.New("retry me")
	cfg := fastConfig(3)
	cfg.ShouldRetry = func(err error) bool { return errors.Is(err, sentinel) }

	var calls int
	err := run(context.Background(), cfg, func(_ context.Context) error {
		calls++
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)
	assert.Equal(t, 3, calls)
}

func TestDoVal_OnRetryCallback(t *testing.T) {
	var attempts []int
	cfg := fastConfig(3)
	cfg.OnRetry = func(attempt int, _ error) { attempts = append(attempts, attempt) }

	_ = run(context.Background(), cfg, func(_ context.Context) error {
		return NewTransientError(errors.New("x"), 429)
	})
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestDoVal_ReturnsValue(t *testing.T) {
	var calls int
	v, err := DoVal(context.Background(), fastConfig(3), func(_ context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", NewTransientError(errors.New("slow down"), 429)
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestDoVal_ReturnsZeroOnFailure(t *testing.T) {
	v, err := DoVal(context.Background(), fastConfig(2), func(_ context.Context) (int, error) {
		return 42, errors.New("permanent")
	})
	require.Error(t, err)
	assert.Zero(t, v)
}

func TestWithAttempts(t *testing.T) {
	assert.Equal(t, 5, DefaultRetryConfig().WithAttempts(5).MaxAttempts)
	assert.Equal(t, 3, DefaultRetryConfig().WithAttempts(0).MaxAttempts)
}

func TestComputeBackoff(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: 100 * time.Millisecond, MaxBackoff: time.Second, Multiplier: 2}
	assert.Equal(t, 100*time.Millisecond, computeBackoff(0, cfg))
	assert.Equal(t, 200*time.Millisecond, computeBackoff(1, cfg))
	assert.Equal(t, 400*time.Millisecond, computeBackoff(2, cfg))
	assert.Equal(t, time.Second, computeBackoff(10, cfg))

	cfg.JitterFraction = 0.5
	for i := 0; i < 50; i++ {
		d := computeBackoff(0, cfg)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 150*time.Millisecond)
	}
}

func TestRetryLogger(t *testing.T) {
	fn := RetryLogger("anthropic", "extract")
	assert.NotPanics(t, func() { fn(1, errors.New("x")) })
}
