package retry

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts:          attempts,
		InitialBackoff:       time.Millisecond,
		MaxBackoff:           time.Millisecond,
		Multiplier:           1,
		RetryableStatusCodes: []int{http.StatusServiceUnavailable},
	}
}

func TestWithRetrySucceedsEventually(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), fastConfig(5), func() error {
		calls++
		if calls < 3 {
			return errors.New("page load failed")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetryExhausts(t *testing.T) {
	calls := 0
	cause := errors.New("net::ERR_CONNECTION_RESET")
	err := WithRetry(context.Background(), fastConfig(5), func() error {
		calls++
		return cause
	})
	require.Error(t, err)
	assert.Equal(t, 5, calls)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, cause)
}

func TestWithRetryStatusCodes(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), fastConfig(3), func() error {
		calls++
		return NewHTTPError(http.StatusNotFound, "Not Found", "")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.NotErrorIs(t, err, ErrExhausted)

	calls = 0
	err = WithRetry(context.Background(), fastConfig(3), func() error {
		calls++
		return NewHTTPError(http.StatusServiceUnavailable, "Service Unavailable", "")
	})
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestWithRetryPermanent(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), fastConfig(3), func() error {
		calls++
		return Permanent(errors.New("captcha"))
	})
	assert.Equal(t, 1, calls)
	assert.EqualError(t, err, "captcha")
}

func TestWithRetryCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastConfig(3)
	cfg.InitialBackoff = time.Hour
	cfg.MaxBackoff = time.Hour
	err := WithRetry(ctx, cfg, func() error {
		cancel()
		return errors.New("boom")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCalculateBackoff(t *testing.T) {
	fixed := PageLoadConfig()
	for attempt := 0; attempt < 4; attempt++ {
		assert.Equal(t, 3*time.Second, calculateBackoff(attempt, fixed))
	}

	exp := DefaultConfig()
	assert.Equal(t, 1*time.Second, calculateBackoff(0, exp))
	assert.Equal(t, 4*time.Second, calculateBackoff(2, exp))
	assert.Equal(t, 30*time.Second, calculateBackoff(10, exp))
}
