package resilience

import (
	"context"

	"go.uber.org/zap"

	"github.com/talentsync/talentsync/pkg/config"
)

// Executor composes the per-source resilience stack around one outbound
// call: the retry loop wraps token acquisition plus the breaker-guarded
// operation. Each source owns exactly one Executor; its limiter and breaker
// state are never shared.
type Executor struct {
	source  string
	limiter *TokenBucketLimiter
	breaker *CircuitBreaker
	retry   *RetryExecutor
	logger  *zap.Logger
}

// NewExecutor builds the resilience stack for one source from its
// configuration. A zero requests_per_second leaves the limiter off.
func NewExecutor(cfg *config.SourceConfig, logger *zap.Logger) *Executor {
	log := logger.With(zap.String("source", cfg.Name))

	var limiter *TokenBucketLimiter
	if cfg.RateLimit.IsRateLimited() {
		limiter = NewTokenBucketLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	}

	return &Executor{
		source:  cfg.Name,
		limiter: limiter,
		breaker: NewCircuitBreaker(cfg.Name, cfg.Breaker, logger),
		retry:   NewRetryExecutor(cfg.Retry, log),
		logger:  log,
	}
}

// Execute runs one outbound operation under the full stack. Transient
// failures are retried with backoff; circuit-open rejections fail fast and
// are never retried; authentication and validation errors surface on the
// first attempt.
func (e *Executor) Execute(ctx context.Context, op string, fn func() error) error {
	return e.retry.Execute(ctx, op, func() error {
		if e.limiter != nil {
			if err := e.limiter.Acquire(ctx); err != nil {
				return err
			}
		}
		return e.breaker.Call(fn)
	})
}

// Source returns the name of the source this executor guards.
func (e *Executor) Source() string {
	return e.source
}

// Breaker exposes the breaker for state inspection and hook wiring.
func (e *Executor) Breaker() *CircuitBreaker {
	return e.breaker
}

// Retry exposes the retry executor for hook wiring.
func (e *Executor) Retry() *RetryExecutor {
	return e.retry
}

// Limiter exposes the limiter, nil when limiting is disabled.
func (e *Executor) Limiter() *TokenBucketLimiter {
	return e.limiter
}
