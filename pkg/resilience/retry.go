package resilience

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/talentsync/talentsync/pkg/config"
	"github.com/talentsync/talentsync/pkg/errors"
)

// RetryExecutor retries transient failures with bounded exponential backoff.
// An operation runs at most MaxRetries+1 times; authentication, validation
// and circuit-open errors are returned immediately without retrying.
type RetryExecutor struct {
	config  config.RetryConfig
	logger  *zap.Logger
	onRetry func(op string, attempt int)
}

// NewRetryExecutor creates an executor from retry configuration.
func NewRetryExecutor(cfg config.RetryConfig, logger *zap.Logger) *RetryExecutor {
	return &RetryExecutor{
		config: cfg,
		logger: logger.With(zap.String("component", "retry")),
	}
}

// OnRetry registers a hook invoked before each backoff sleep. Register
// before the first Execute; the hook is not guarded against concurrent
// registration.
func (re *RetryExecutor) OnRetry(fn func(op string, attempt int)) {
	re.onRetry = fn
}

// Execute runs fn, retrying transient errors. The last error propagates
// unchanged after retries are exhausted.
func (re *RetryExecutor) Execute(ctx context.Context, op string, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= re.config.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		// A dead parent context means the caller is gone, not the upstream
		if ctx.Err() != nil {
			return err
		}

		// Only transient faults are worth retrying
		if !errors.IsRetryable(err) {
			return err
		}

		// Don't sleep after the last attempt
		if attempt == re.config.MaxRetries {
			break
		}

		delay := re.Delay(attempt)
		re.logger.Warn("retrying operation",
			zap.String("operation", op),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))
		if re.onRetry != nil {
			re.onRetry(op, attempt+1)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}

	re.logger.Error("retries exhausted",
		zap.String("operation", op),
		zap.Int("attempts", re.config.MaxRetries+1),
		zap.Error(lastErr))

	return lastErr
}

// Delay returns the backoff before retry attempt (0-based):
// min(base_delay * 2^attempt, max_delay).
func (re *RetryExecutor) Delay(attempt int) time.Duration {
	delay := float64(re.config.BaseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(re.config.MaxDelay) {
		delay = float64(re.config.MaxDelay)
	}
	return time.Duration(delay)
}
