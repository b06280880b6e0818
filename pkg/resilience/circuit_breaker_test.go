package resilience

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/talentsync/talentsync/pkg/config"
	"github.com/talentsync/talentsync/pkg/errors"
)

func newTestBreaker(cfg config.BreakerConfig) *CircuitBreaker {
	return NewCircuitBreaker("test-source", cfg, zap.NewNop())
}

var errUpstream = fmt.Errorf("upstream exploded")

func failOnce(cb *CircuitBreaker) error {
	return cb.Call(func() error { return errUpstream })
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb := newTestBreaker(config.BreakerConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  time.Minute,
		HalfOpenMaxCalls: 1,
		SuccessThreshold: 1,
	})

	for i := 0; i < 2; i++ {
		require.Error(t, failOnce(cb))
		assert.Equal(t, StateClosed, cb.CurrentState(), "breaker must stay closed below the threshold")
	}

	require.Error(t, failOnce(cb))
	assert.Equal(t, StateOpen, cb.CurrentState(), "breaker must open after exactly threshold failures")
}

func TestCircuitBreaker_OpenRejectsWithoutInvoking(t *testing.T) {
	cb := newTestBreaker(config.BreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  time.Minute,
		HalfOpenMaxCalls: 1,
		SuccessThreshold: 1,
	})

	require.Error(t, failOnce(cb))
	require.Equal(t, StateOpen, cb.CurrentState())

	invoked := false
	err := cb.Call(func() error {
		invoked = true
		return nil
	})

	require.Error(t, err)
	assert.True(t, errors.IsCircuitOpen(err))
	assert.False(t, invoked, "rejected call must not reach the operation")

	// Rejections are not failures
	state := cb.State()
	assert.Equal(t, int32(1), state.ConsecutiveFailures)
}

func TestCircuitBreaker_RecoversThroughHalfOpen(t *testing.T) {
	cb := newTestBreaker(config.BreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  40 * time.Millisecond,
		HalfOpenMaxCalls: 2,
		SuccessThreshold: 2,
	})

	require.Error(t, failOnce(cb))
	require.Equal(t, StateOpen, cb.CurrentState())

	time.Sleep(60 * time.Millisecond)

	require.NoError(t, cb.Call(func() error { return nil }))
	assert.Equal(t, StateHalfOpen, cb.CurrentState(), "one success is below the close threshold")

	require.NoError(t, cb.Call(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.CurrentState(), "two consecutive successes close the breaker")
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := newTestBreaker(config.BreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  40 * time.Millisecond,
		HalfOpenMaxCalls: 1,
		SuccessThreshold: 2,
	})

	require.Error(t, failOnce(cb))
	time.Sleep(60 * time.Millisecond)

	require.Error(t, failOnce(cb))
	assert.Equal(t, StateOpen, cb.CurrentState())

	// Recovery clock restarted, next call rejects fast
	err := cb.Call(func() error { return nil })
	require.Error(t, err)
	assert.True(t, errors.IsCircuitOpen(err))
}

func TestCircuitBreaker_HalfOpenLimitsConcurrentTrials(t *testing.T) {
	cb := newTestBreaker(config.BreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  20 * time.Millisecond,
		HalfOpenMaxCalls: 1,
		SuccessThreshold: 1,
	})

	require.Error(t, failOnce(cb))
	time.Sleep(40 * time.Millisecond)

	release := make(chan struct{})
	started := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		_ = cb.Call(func() error {
			close(started)
			<-release
			return nil
		})
	}()

	<-started

	// The single trial slot is taken, extra calls fail fast
	err := cb.Call(func() error { return nil })
	require.Error(t, err)
	assert.True(t, errors.IsCircuitOpen(err))

	close(release)
	wg.Wait()

	assert.Equal(t, StateClosed, cb.CurrentState())
}

func TestCircuitBreaker_SuccessResetsFailureStreak(t *testing.T) {
	cb := newTestBreaker(config.BreakerConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  time.Minute,
		HalfOpenMaxCalls: 1,
		SuccessThreshold: 1,
	})

	require.Error(t, failOnce(cb))
	require.Error(t, failOnce(cb))
	require.NoError(t, cb.Call(func() error { return nil }))
	require.Error(t, failOnce(cb))
	require.Error(t, failOnce(cb))

	assert.Equal(t, StateClosed, cb.CurrentState(), "streak broken by a success must not open the breaker")
}

func TestCircuitBreaker_StateChangeHook(t *testing.T) {
	cb := newTestBreaker(config.BreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  30 * time.Millisecond,
		HalfOpenMaxCalls: 1,
		SuccessThreshold: 1,
	})

	var mu sync.Mutex
	var transitions []string
	cb.OnStateChange(func(from, to CircuitState) {
		mu.Lock()
		transitions = append(transitions, from.String()+"->"+to.String())
		mu.Unlock()
	})

	require.Error(t, failOnce(cb))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, cb.Call(func() error { return nil }))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"closed->open", "open->half_open", "half_open->closed"}, transitions)
}
