package reliability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errNotReady = errors.New("not ready")

func TestExecuteWithRetry_SucceedsAfterFailures(t *testing.T) {
	var attempts []int
	policy := &RetryPolicy{
		MaxRetries:    3,
		RetryInterval: time.Millisecond,
		BackoffFactor: 2,
		OnError:       func(attempt int, err error) { attempts = append(attempts, attempt) },
	}

	calls := 0
	err := ExecuteWithRetry(context.Background(), policy, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errNotReady
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestExecuteWithRetry_Exhausted(t *testing.T) {
	policy := &RetryPolicy{MaxRetries: 2, RetryInterval: time.Millisecond}

	calls := 0
	err := ExecuteWithRetry(context.Background(), policy, func(ctx context.Context) error {
		calls++
		return errNotReady
	})
	assert.ErrorIs(t, err, errNotReady)
	assert.Contains(t, err.Error(), "max retries (2) exceeded")
	assert.Equal(t, 3, calls)
}

func TestExecuteWithRetry_NoRetries(t *testing.T) {
	err := ExecuteWithRetry(context.Background(), &RetryPolicy{}, func(ctx context.Context) error {
		return errNotReady
	})
	assert.Equal(t, errNotReady, err)
}

func TestExecuteWithRetry_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := &RetryPolicy{
		MaxRetries:    5,
		RetryInterval: time.Hour,
		OnError:       func(int, error) { cancel() },
	}

	err := ExecuteWithRetry(ctx, policy, func(ctx context.Context) error {
		return errNotReady
	})
	assert.ErrorIs(t, err, context.Canceled)
}
