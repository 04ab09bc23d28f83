package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func fastConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}
}

func TestDoSucceedsFirstTry(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastConfig(), testLogger(), "op", func(context.Context) (int, error) {
		calls++
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesTransientErrors(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastConfig(), testLogger(), "op", func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("status 503 service unavailable")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	calls := 0
	permanent := errors.New("status 400 bad request")
	_, err := Do(context.Background(), fastConfig(), testLogger(), "op", func(context.Context) (int, error) {
		calls++
		return 0, permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls, "permanent errors must not be retried")
}

func TestDoExhaustsBudget(t *testing.T) {
	calls := 0
	transient := errors.New("connection refused")
	_, err := Do(context.Background(), fastConfig(), testLogger(), "op", func(context.Context) (int, error) {
		calls++
		return 0, transient
	})
	assert.ErrorIs(t, err, transient)
	assert.Equal(t, 4, calls, "initial attempt plus MaxRetries")
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := Do(ctx, fastConfig(), testLogger(), "op", func(context.Context) (int, error) {
		calls++
		return 0, errors.New("timeout")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}

func TestDoCancelDuringBackoff(t *testing.T) {
	cfg := Config{MaxRetries: 2, InitialBackoff: time.Hour, MaxBackoff: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := Do(ctx, cfg, testLogger(), "op", func(context.Context) (int, error) {
			return 0, errors.New("timeout")
		})
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("retry loop did not exit on cancellation")
	}
}

func TestNextBackoffIsCapped(t *testing.T) {
	max := 10 * time.Millisecond
	b := nextBackoff(100*time.Millisecond, max)
	// Cap plus at most a quarter of jitter.
	assert.LessOrEqual(t, b, max+max/4)
	assert.GreaterOrEqual(t, b, max)
}

func TestIsTransient(t *testing.T) {
	transient := []string{
		"i/o timeout",
		"connection refused",
		"connection reset by peer",
		"status 429 too many requests",
		"status 502 bad gateway",
		"unexpected EOF",
		"dns lookup failed",
	}
	for _, msg := range transient {
		assert.True(t, IsTransient(errors.New(msg)), msg)
	}

	permanent := []string{
		"status 400 bad request",
		"status 401 unauthorized",
		"invalid request body",
	}
	for _, msg := range permanent {
		assert.False(t, IsTransient(errors.New(msg)), msg)
	}

	assert.False(t, IsTransient(nil))
}
