package engine

import (
	"context"
	"time"

	"github.com/talentsync/talentsync/pkg/errors"
	"github.com/talentsync/talentsync/pkg/metrics"
	"github.com/talentsync/talentsync/pkg/models"
	"github.com/talentsync/talentsync/pkg/state"
)

// Health classifies the named source from its persisted failure log and
// watermark.
//
// Classification order:
//   - failures at or above the threshold: CRITICAL
//   - any failures below the threshold: WARNING
//   - no failures but a missing or old watermark: STALE
//   - otherwise: HEALTHY
func (e *Engine) Health(ctx context.Context, name string) (*models.SourceHealth, error) {
	if _, ok := e.cfg.Source(name); !ok {
		return nil, errors.Newf(errors.ErrorTypeConfig, "source %q is not configured", name)
	}

	h := &models.SourceHealth{Source: name, CheckedAt: time.Now().UTC()}

	var events []models.FailureEvent
	if err := state.GetJSON(ctx, e.store, state.FailuresKey(name), &events); err != nil && !state.IsNotFound(err) {
		return nil, err
	}
	h.ConsecutiveFailures = len(events)
	if n := len(events); n > 0 {
		last := events[n-1]
		h.LastFailure = &last.OccurredAt
		h.LastFailureReason = last.Reason
	}

	var wm time.Time
	err := state.GetJSON(ctx, e.store, state.WatermarkKey(name), &wm)
	haveWatermark := err == nil
	if err != nil && !state.IsNotFound(err) {
		return nil, err
	}
	if haveWatermark {
		h.Watermark = &wm
	}

	switch {
	case h.ConsecutiveFailures >= e.failureThreshold():
		h.State = models.HealthCritical
	case h.ConsecutiveFailures > 0:
		h.State = models.HealthWarning
	case !haveWatermark:
		// Never synced successfully and not failing either.
		h.State = models.HealthStale
	case time.Since(wm) > e.staleAfter():
		h.State = models.HealthStale
	default:
		h.State = models.HealthHealthy
	}

	metrics.SourceHealthState.WithLabelValues(name).Set(healthCode(h.State))
	if haveWatermark {
		metrics.WatermarkAge.WithLabelValues(name).Set(time.Since(wm).Seconds())
	}
	return h, nil
}

// HealthAll evaluates every configured source in configuration order.
func (e *Engine) HealthAll(ctx context.Context) ([]*models.SourceHealth, error) {
	out := make([]*models.SourceHealth, 0, len(e.cfg.Sources))
	for i := range e.cfg.Sources {
		h, err := e.Health(ctx, e.cfg.Sources[i].Name)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

// healthCode maps health states onto the gauge scale.
func healthCode(s models.HealthState) float64 {
	switch s {
	case models.HealthHealthy:
		return 0
	case models.HealthWarning:
		return 1
	case models.HealthCritical:
		return 2
	default:
		return 3
	}
}
