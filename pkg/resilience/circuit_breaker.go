package resilience

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/talentsync/talentsync/pkg/config"
	"github.com/talentsync/talentsync/pkg/errors"
)

// CircuitState represents the state of a circuit breaker
type CircuitState int32

const (
	// StateClosed allows all requests to pass through
	StateClosed CircuitState = iota
	// StateOpen blocks all requests until the recovery timeout elapses
	StateOpen
	// StateHalfOpen allows a limited number of concurrent trial requests
	StateHalfOpen
)

// String returns the state name used in logs, metrics and snapshots.
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreaker guards one source's outbound calls. It opens after a run of
// consecutive failures, fails fast while open, and probes recovery with a
// bounded number of concurrent trial calls.
type CircuitBreaker struct {
	name   string
	config config.BreakerConfig
	logger *zap.Logger

	// State
	state           int32 // 0: closed, 1: open, 2: half-open
	lastStateChange time.Time
	openedAt        time.Time
	nextRetryTime   time.Time

	// Counters
	consecutiveFailures  int32
	consecutiveSuccesses int32
	halfOpenInFlight     int32
	totalRequests        int64
	failedRequests       int64

	onStateChange func(from, to CircuitState)

	mu sync.RWMutex
}

// BreakerState is a snapshot of breaker state and statistics.
type BreakerState struct {
	State                string    `json:"state"`
	LastStateChange      time.Time `json:"last_state_change"`
	OpenedAt             time.Time `json:"opened_at,omitempty"`
	ConsecutiveFailures  int32     `json:"consecutive_failures"`
	ConsecutiveSuccesses int32     `json:"consecutive_successes"`
	TotalRequests        int64     `json:"total_requests"`
	FailedRequests       int64     `json:"failed_requests"`
	NextRetryTime        time.Time `json:"next_retry_time,omitempty"`
	FailureThreshold     int       `json:"failure_threshold"`
	SuccessThreshold     int       `json:"success_threshold"`
}

// NewCircuitBreaker creates a breaker for the named source. It starts closed.
func NewCircuitBreaker(name string, cfg config.BreakerConfig, logger *zap.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		name:            name,
		config:          cfg,
		logger:          logger.With(zap.String("component", "circuit_breaker"), zap.String("source", name)),
		state:           int32(StateClosed),
		lastStateChange: time.Now(),
	}
}

// OnStateChange registers a hook invoked after every state transition.
// The hook runs outside the breaker's lock.
func (cb *CircuitBreaker) OnStateChange(fn func(from, to CircuitState)) {
	cb.onStateChange = fn
}

// Call runs a function with circuit breaker protection. While open, the
// function is not invoked and a circuit_open error returns immediately;
// the rejection is not counted as a breaker failure.
func (cb *CircuitBreaker) Call(fn func() error) error {
	allowed, slot := cb.allow()
	if !allowed {
		return errors.Newf(errors.ErrorTypeCircuitOpen, "circuit breaker %s is open", cb.name)
	}

	atomic.AddInt64(&cb.totalRequests, 1)

	err := fn()
	if slot {
		cb.releaseHalfOpenSlot()
	}
	if err != nil {
		atomic.AddInt64(&cb.failedRequests, 1)
		cb.RecordFailure()
		return err
	}

	cb.RecordSuccess()
	return nil
}

// Allow determines if a request may proceed under the current state.
func (cb *CircuitBreaker) Allow() bool {
	allowed, _ := cb.allow()
	return allowed
}

// allow reports admission and whether a half-open trial slot was taken.
func (cb *CircuitBreaker) allow() (bool, bool) {
	state := CircuitState(atomic.LoadInt32(&cb.state))

	switch state {
	case StateClosed:
		return true, false

	case StateOpen:
		cb.mu.RLock()
		shouldRetry := time.Now().After(cb.nextRetryTime)
		cb.mu.RUnlock()

		if shouldRetry {
			cb.transitionToHalfOpen()
			return cb.acquireHalfOpenSlot(), true
		}
		return false, false

	case StateHalfOpen:
		return cb.acquireHalfOpenSlot(), true

	default:
		return false, false
	}
}

// RecordSuccess records a successful request. In half-open state, enough
// consecutive successes close the circuit.
func (cb *CircuitBreaker) RecordSuccess() {
	state := CircuitState(atomic.LoadInt32(&cb.state))

	switch state {
	case StateClosed:
		atomic.StoreInt32(&cb.consecutiveFailures, 0)

	case StateHalfOpen:
		successes := atomic.AddInt32(&cb.consecutiveSuccesses, 1)
		if successes >= int32(cb.config.SuccessThreshold) {
			cb.transitionToClosed()
		}
	}
}

// RecordFailure records a failed request. In closed state the consecutive
// failure threshold opens the circuit; in half-open state any failure
// reopens it.
func (cb *CircuitBreaker) RecordFailure() {
	state := CircuitState(atomic.LoadInt32(&cb.state))

	switch state {
	case StateClosed:
		failures := atomic.AddInt32(&cb.consecutiveFailures, 1)
		if failures >= int32(cb.config.FailureThreshold) {
			cb.transitionToOpen()
		}

	case StateHalfOpen:
		cb.transitionToOpen()
	}
}

// acquireHalfOpenSlot admits at most HalfOpenMaxCalls concurrent trials.
func (cb *CircuitBreaker) acquireHalfOpenSlot() bool {
	for {
		current := atomic.LoadInt32(&cb.halfOpenInFlight)
		if current >= int32(cb.config.HalfOpenMaxCalls) {
			return false
		}
		if atomic.CompareAndSwapInt32(&cb.halfOpenInFlight, current, current+1) {
			return true
		}
	}
}

// releaseHalfOpenSlot frees a trial slot, flooring at zero because state
// transitions reset the counter while calls are still in flight.
func (cb *CircuitBreaker) releaseHalfOpenSlot() {
	for {
		current := atomic.LoadInt32(&cb.halfOpenInFlight)
		if current <= 0 {
			return
		}
		if atomic.CompareAndSwapInt32(&cb.halfOpenInFlight, current, current-1) {
			return
		}
	}
}

// transitionToOpen transitions to open state and arms the recovery clock
func (cb *CircuitBreaker) transitionToOpen() {
	cb.mu.Lock()

	from := StateHalfOpen
	if !atomic.CompareAndSwapInt32(&cb.state, int32(StateHalfOpen), int32(StateOpen)) {
		if !atomic.CompareAndSwapInt32(&cb.state, int32(StateClosed), int32(StateOpen)) {
			cb.mu.Unlock()
			return
		}
		from = StateClosed
	}

	now := time.Now()
	cb.lastStateChange = now
	cb.openedAt = now
	cb.nextRetryTime = now.Add(cb.config.RecoveryTimeout)
	atomic.StoreInt32(&cb.consecutiveSuccesses, 0)
	atomic.StoreInt32(&cb.halfOpenInFlight, 0)
	retryAt := cb.nextRetryTime

	cb.mu.Unlock()

	cb.logger.Warn("circuit breaker opened",
		zap.Time("retry_after", retryAt),
		zap.Int32("consecutive_failures", atomic.LoadInt32(&cb.consecutiveFailures)))
	cb.notify(from, StateOpen)
}

// transitionToHalfOpen transitions to half-open state
func (cb *CircuitBreaker) transitionToHalfOpen() {
	cb.mu.Lock()

	if !atomic.CompareAndSwapInt32(&cb.state, int32(StateOpen), int32(StateHalfOpen)) {
		cb.mu.Unlock()
		return
	}

	cb.lastStateChange = time.Now()
	atomic.StoreInt32(&cb.consecutiveFailures, 0)
	atomic.StoreInt32(&cb.consecutiveSuccesses, 0)
	atomic.StoreInt32(&cb.halfOpenInFlight, 0)

	cb.mu.Unlock()

	cb.logger.Info("circuit breaker half-open")
	cb.notify(StateOpen, StateHalfOpen)
}

// transitionToClosed transitions to closed state
func (cb *CircuitBreaker) transitionToClosed() {
	cb.mu.Lock()

	if !atomic.CompareAndSwapInt32(&cb.state, int32(StateHalfOpen), int32(StateClosed)) {
		cb.mu.Unlock()
		return
	}

	cb.lastStateChange = time.Now()
	cb.openedAt = time.Time{}
	atomic.StoreInt32(&cb.consecutiveFailures, 0)
	atomic.StoreInt32(&cb.halfOpenInFlight, 0)

	cb.mu.Unlock()

	cb.logger.Info("circuit breaker closed")
	cb.notify(StateHalfOpen, StateClosed)
}

func (cb *CircuitBreaker) notify(from, to CircuitState) {
	if cb.onStateChange != nil {
		cb.onStateChange(from, to)
	}
}

// CurrentState returns the current circuit state.
func (cb *CircuitBreaker) CurrentState() CircuitState {
	return CircuitState(atomic.LoadInt32(&cb.state))
}

// State returns the current state of the circuit breaker along with
// statistics about requests, failures, and transitions.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	return BreakerState{
		State:                CircuitState(atomic.LoadInt32(&cb.state)).String(),
		LastStateChange:      cb.lastStateChange,
		OpenedAt:             cb.openedAt,
		ConsecutiveFailures:  atomic.LoadInt32(&cb.consecutiveFailures),
		ConsecutiveSuccesses: atomic.LoadInt32(&cb.consecutiveSuccesses),
		TotalRequests:        atomic.LoadInt64(&cb.totalRequests),
		FailedRequests:       atomic.LoadInt64(&cb.failedRequests),
		NextRetryTime:        cb.nextRetryTime,
		FailureThreshold:     cb.config.FailureThreshold,
		SuccessThreshold:     cb.config.SuccessThreshold,
	}
}
