package utils_test

import (
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wardenhq/warden/pkg/utils"
)

func fastRetryOptions() utils.RetryOptions {
	return utils.RetryOptions{
		MaxElapsedTime:  time.Second,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		MaxRetries:      3,
	}
}

func TestWithRetrySucceedsFirstTry(t *testing.T) {
	t.Parallel()

	calls := 0

	result, err := utils.WithRetry(t.Context(), func() (int, error) {
		calls++
		return 42, nil
	}, fastRetryOptions())

	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 1, calls)
}

func TestWithRetryRecoversAfterFailures(t *testing.T) {
	t.Parallel()

	calls := 0

	result, err := utils.WithRetry(t.Context(), func() (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("transient")
		}

		return "ok", nil
	}, fastRetryOptions())

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, calls)
}

func TestWithRetryExhaustsRetries(t *testing.T) {
	t.Parallel()

	calls := 0

	_, err := utils.WithRetry(t.Context(), func() (int, error) {
		calls++
		return 0, errors.New("persistent")
	}, fastRetryOptions())

	require.Error(t, err)
	assert.Equal(t, 4, calls)
}

func TestWithRetryPermanentErrorStopsImmediately(t *testing.T) {
	t.Parallel()

	calls := 0
	permanent := errors.New("not found")

	_, err := utils.WithRetry(t.Context(), func() (int, error) {
		calls++
		return 0, backoff.Permanent(permanent)
	}, fastRetryOptions())

	require.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}
