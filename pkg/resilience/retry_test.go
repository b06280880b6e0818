package resilience

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/talentsync/talentsync/pkg/config"
	"github.com/talentsync/talentsync/pkg/errors"
)

func newTestRetrier(maxRetries int) *RetryExecutor {
	return NewRetryExecutor(config.RetryConfig{
		MaxRetries: maxRetries,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
	}, zap.NewNop())
}

func TestRetryExecutor_ExhaustsAttemptsOnTransientError(t *testing.T) {
	re := newTestRetrier(3)
	upstream := errors.New(errors.ErrorTypeTimeout, "upstream timed out")

	invocations := 0
	err := re.Execute(context.Background(), "fetch_candidates", func() error {
		invocations++
		return upstream
	})

	assert.Equal(t, 4, invocations, "max_retries 3 means 4 invocations")
	require.Same(t, upstream, err, "the last error must propagate unchanged")
}

func TestRetryExecutor_SucceedsAfterTransientFailures(t *testing.T) {
	re := newTestRetrier(3)

	invocations := 0
	err := re.Execute(context.Background(), "fetch_jobs", func() error {
		invocations++
		if invocations < 3 {
			return errors.New(errors.ErrorTypeConnection, "connection reset")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, invocations)
}

func TestRetryExecutor_AuthFailsOnFirstAttempt(t *testing.T) {
	re := newTestRetrier(3)
	denied := errors.New(errors.ErrorTypeAuthentication, "invalid credentials")

	invocations := 0
	err := re.Execute(context.Background(), "connect", func() error {
		invocations++
		return denied
	})

	assert.Equal(t, 1, invocations)
	require.Same(t, denied, err)
}

func TestRetryExecutor_ValidationNotRetried(t *testing.T) {
	re := newTestRetrier(3)

	invocations := 0
	err := re.Execute(context.Background(), "push_candidate", func() error {
		invocations++
		return errors.New(errors.ErrorTypeValidation, "missing required field email")
	})

	assert.Equal(t, 1, invocations)
	assert.True(t, errors.IsValidation(err))
}

func TestRetryExecutor_CircuitOpenNotRetried(t *testing.T) {
	re := newTestRetrier(3)

	invocations := 0
	err := re.Execute(context.Background(), "fetch_candidates", func() error {
		invocations++
		return errors.New(errors.ErrorTypeCircuitOpen, "circuit breaker open for crm-a")
	})

	assert.Equal(t, 1, invocations)
	assert.True(t, errors.IsCircuitOpen(err))
}

func TestRetryExecutor_UntypedConnectionErrorRetried(t *testing.T) {
	re := newTestRetrier(2)

	// Raw adapter errors are categorized by message
	invocations := 0
	err := re.Execute(context.Background(), "fetch_jobs", func() error {
		invocations++
		return fmt.Errorf("dial tcp 10.0.0.4:443: connection refused")
	})

	require.Error(t, err)
	assert.Equal(t, 3, invocations)
}

func TestRetryExecutor_CancelDuringBackoff(t *testing.T) {
	re := NewRetryExecutor(config.RetryConfig{
		MaxRetries: 3,
		BaseDelay:  200 * time.Millisecond,
		MaxDelay:   time.Second,
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	timer := time.AfterFunc(20*time.Millisecond, cancel)
	defer timer.Stop()

	invocations := 0
	err := re.Execute(ctx, "fetch_candidates", func() error {
		invocations++
		return errors.New(errors.ErrorTypeTimeout, "slow upstream")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "retry cancelled")
	assert.Equal(t, 1, invocations, "cancellation must stop further attempts")
}

func TestRetryExecutor_DeadContextStopsRetrying(t *testing.T) {
	re := newTestRetrier(3)
	upstream := errors.New(errors.ErrorTypeTimeout, "slow upstream")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	invocations := 0
	err := re.Execute(ctx, "fetch_candidates", func() error {
		invocations++
		return upstream
	})

	assert.Equal(t, 1, invocations)
	require.Same(t, upstream, err, "the operation's own error wins over the context error")
}

func TestRetryExecutor_DelayDoublesUpToCap(t *testing.T) {
	re := NewRetryExecutor(config.RetryConfig{
		MaxRetries: 5,
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   400 * time.Millisecond,
	}, zap.NewNop())

	assert.Equal(t, 100*time.Millisecond, re.Delay(0))
	assert.Equal(t, 200*time.Millisecond, re.Delay(1))
	assert.Equal(t, 400*time.Millisecond, re.Delay(2))
	assert.Equal(t, 400*time.Millisecond, re.Delay(3), "backoff must stay capped at max_delay")
}
