// Package engine orchestrates synchronization runs across recruiting
// sources. It owns the per-source resilience stack, the watermark and
// failure bookkeeping, duplicate detection hand-off, health evaluation
// and alerting.
//
// # Overview
//
// The engine provides:
//   - Per-source sync orchestration (jobs first, then candidates)
//   - Incremental windows driven by persisted watermarks
//   - Failure accounting with threshold alerts
//   - Partial-run reprocessing entries
//   - Webhook intake with signature verification
//   - Health classification per source
//
// # Basic Usage
//
//	eng, err := engine.New(cfg, store, detector, logger)
//	if err != nil {
//	    return err
//	}
//	defer eng.Close()
//
//	run := eng.SyncSource(ctx, "crm-a", models.TriggerManual)
//	if run.State != models.RunStateSuccess {
//	    // inspect run.Error and run.Result
//	}
//
// Runs never surface as raw errors: every outcome, including a source
// that does not exist, is reported as a finished SyncRun.
package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/talentsync/talentsync/pkg/config"
	"github.com/talentsync/talentsync/pkg/connector/core"
	"github.com/talentsync/talentsync/pkg/connector/registry"
	"github.com/talentsync/talentsync/pkg/dedupe"
	"github.com/talentsync/talentsync/pkg/errors"
	"github.com/talentsync/talentsync/pkg/metrics"
	"github.com/talentsync/talentsync/pkg/models"
	"github.com/talentsync/talentsync/pkg/resilience"
	"github.com/talentsync/talentsync/pkg/state"
)

// Fallbacks for engine settings a hand-built config left zero.
const (
	defaultFailureThreshold = 3
	defaultStaleAfter       = 24 * time.Hour
	defaultMaxFailureLog    = 10
)

// Engine coordinates sync runs, state bookkeeping and alerting for every
// configured source.
type Engine struct {
	cfg      *config.EngineConfig
	store    state.Store
	detector *dedupe.Detector
	alerts   *AlertDispatcher
	logger   *zap.Logger

	mu       sync.Mutex
	runtimes map[string]*sourceRuntime
}

// sourceRuntime is the lazily built per-source machinery. The run mutex
// serializes runs so at most one sync per source is in flight.
type sourceRuntime struct {
	cfg     *config.SourceConfig
	adapter core.Adapter
	exec    *resilience.Executor

	runMu sync.Mutex
}

// New builds an engine over the given store. The detector may be nil to
// disable duplicate detection. A Kafka alert sink is installed when
// alerting brokers are configured; the log sink is always present.
func New(cfg *config.EngineConfig, store state.Store, detector *dedupe.Detector, logger *zap.Logger) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "engine configuration is required")
	}
	if store == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "state store is required")
	}

	sinks := []AlertSink{NewLogSink(logger)}
	if len(cfg.Alerting.Brokers) > 0 {
		kafkaSink, err := NewKafkaSink(cfg.Alerting)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, kafkaSink)
	}

	return &Engine{
		cfg:      cfg,
		store:    store,
		detector: detector,
		alerts:   NewAlertDispatcher(logger, sinks...),
		logger:   logger,
		runtimes: make(map[string]*sourceRuntime),
	}, nil
}

// runtime returns the machinery for the named source, building the
// adapter and resilience stack on first use.
func (e *Engine) runtime(name string) (*sourceRuntime, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if rt, ok := e.runtimes[name]; ok {
		return rt, nil
	}

	sc, ok := e.cfg.Source(name)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeConfig, "source %q is not configured", name)
	}

	adapter, err := registry.Create(sc)
	if err != nil {
		return nil, err
	}

	exec := resilience.NewExecutor(sc, e.logger)
	wireResilienceMetrics(name, exec)

	rt := &sourceRuntime{cfg: sc, adapter: adapter, exec: exec}
	e.runtimes[name] = rt
	return rt, nil
}

// wireResilienceMetrics exports breaker and retry activity for one source.
func wireResilienceMetrics(source string, exec *resilience.Executor) {
	metrics.BreakerState.WithLabelValues(source).Set(float64(resilience.StateClosed))
	exec.Breaker().OnStateChange(func(from, to resilience.CircuitState) {
		metrics.BreakerTransitions.WithLabelValues(source, from.String(), to.String()).Inc()
		metrics.BreakerState.WithLabelValues(source).Set(float64(to))
	})
	exec.Retry().OnRetry(func(op string, _ int) {
		metrics.RetryAttempts.WithLabelValues(source, op).Inc()
	})
}

// SyncAll runs every configured source concurrently and returns the runs
// in configuration order. Each source still syncs serially with respect
// to itself.
func (e *Engine) SyncAll(ctx context.Context, trigger string) []*models.SyncRun {
	runs := make([]*models.SyncRun, len(e.cfg.Sources))

	var wg sync.WaitGroup
	for i := range e.cfg.Sources {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			runs[i] = e.SyncSource(ctx, name, trigger)
		}(i, e.cfg.Sources[i].Name)
	}
	wg.Wait()

	return runs
}

// CheckSource verifies reachability of the named source without syncing.
func (e *Engine) CheckSource(ctx context.Context, name string) (bool, string, error) {
	rt, err := e.runtime(name)
	if err != nil {
		return false, "", err
	}
	ok, detail := rt.adapter.TestConnection(ctx)
	return ok, detail, nil
}

// Sources lists the configured source names in configuration order.
func (e *Engine) Sources() []string {
	names := make([]string, len(e.cfg.Sources))
	for i := range e.cfg.Sources {
		names[i] = e.cfg.Sources[i].Name
	}
	return names
}

// Close releases alert sinks. The state store is owned by the caller and
// stays open.
func (e *Engine) Close() error {
	return e.alerts.Close()
}

func (e *Engine) failureThreshold() int {
	if e.cfg.Health.FailureThreshold > 0 {
		return e.cfg.Health.FailureThreshold
	}
	return defaultFailureThreshold
}

func (e *Engine) staleAfter() time.Duration {
	if e.cfg.Health.StaleAfter > 0 {
		return e.cfg.Health.StaleAfter
	}
	return defaultStaleAfter
}

func (e *Engine) maxFailureLog() int {
	if e.cfg.Health.MaxFailureLogEntries > 0 {
		return e.cfg.Health.MaxFailureLogEntries
	}
	return defaultMaxFailureLog
}
