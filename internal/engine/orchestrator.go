package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/talentsync/talentsync/pkg/config"
	"github.com/talentsync/talentsync/pkg/connector/core"
	"github.com/talentsync/talentsync/pkg/errors"
	"github.com/talentsync/talentsync/pkg/logger"
	"github.com/talentsync/talentsync/pkg/metrics"
	"github.com/talentsync/talentsync/pkg/models"
	"github.com/talentsync/talentsync/pkg/observability"
	"github.com/talentsync/talentsync/pkg/state"
)

// WebhookSignatureHeader carries the payload signature on webhook
// deliveries.
const WebhookSignatureHeader = "X-Signature"

// SyncSource synchronizes one source end to end and always returns a
// finished run. Faults, including an unknown source name, are reported
// through the run's state and error, never as a raw error.
func (e *Engine) SyncSource(ctx context.Context, name, trigger string) *models.SyncRun {
	if trigger == "" {
		trigger = models.TriggerManual
	}
	run := models.NewSyncRun(name, trigger)
	ctx = context.WithValue(ctx, logger.RunIDKey, run.ID)
	ctx = context.WithValue(ctx, logger.SourceKey, name)

	rt, err := e.runtime(name)
	if err != nil {
		run.Start()
		run.Fail(err, nil)
		e.finishRun(ctx, run)
		return run
	}

	rt.runMu.Lock()
	defer rt.runMu.Unlock()

	e.executeRun(ctx, rt, run)
	return run
}

// executeRun drives the phases of one locked run: connect, jobs,
// candidates, duplicate detection, then bookkeeping.
func (e *Engine) executeRun(ctx context.Context, rt *sourceRuntime, run *models.SyncRun) {
	log := logger.WithContext(ctx)

	ctx, span := observability.StartSpan(ctx, "engine.sync")
	defer span.End()
	span.SetAttribute("source", run.Source)
	span.SetAttribute("run_id", run.ID)
	span.SetAttribute("trigger", run.Trigger)

	run.Start()
	req := e.buildRequest(ctx, rt.cfg, run)

	log.Info("sync run starting",
		zap.Bool("full_sync", req.FullSync),
		zap.Timep("modified_since", req.ModifiedSince))

	if err := rt.exec.Execute(ctx, "connect", func() error {
		return rt.adapter.Connect(ctx)
	}); err != nil {
		run.Fail(err, nil)
		span.Fail(err)
		e.finishRun(ctx, run)
		return
	}
	defer func() {
		if err := rt.adapter.Disconnect(context.Background()); err != nil {
			log.Warn("disconnect failed", zap.Error(err))
		}
	}()

	// Jobs sync first so candidate records can reference fresh jobs.
	jobs, err := e.runPhase(ctx, rt, run, "jobs", req)
	if err != nil {
		run.Fail(err, nil)
		span.Fail(err)
		e.finishRun(ctx, run)
		return
	}

	candidates, err := e.runPhase(ctx, rt, run, "candidates", req)
	if err != nil {
		run.Fail(err, jobs)
		span.Fail(err)
		e.finishRun(ctx, run)
		return
	}

	merged := jobs.Merge(candidates)
	e.detectDuplicates(ctx, run.Source, merged)

	run.Complete(merged)
	span.SetAttribute("state", string(run.State))
	span.SetAttribute("records_processed", merged.RecordsProcessed)
	span.SetAttribute("records_failed", merged.RecordsFailed)

	e.finishRun(ctx, run)
}

// buildRequest resolves the sync window. The watermark read happens
// before any adapter call: records changing mid-run fall into the next
// window because the new watermark is this run's start time.
func (e *Engine) buildRequest(ctx context.Context, sc *config.SourceConfig, run *models.SyncRun) core.SyncRequest {
	req := core.SyncRequest{
		FullSync:  sc.Sync.FullSync,
		JobFilter: sc.Sync.JobFilter,
		PageSize:  sc.Sync.PageSize,
	}
	run.FullSync = req.FullSync

	if req.FullSync {
		return req
	}

	var wm time.Time
	err := state.GetJSON(ctx, e.store, state.WatermarkKey(sc.Name), &wm)
	switch {
	case err == nil:
		req.ModifiedSince = &wm
		run.ModifiedSince = &wm
	case state.IsNotFound(err):
		// First run for this source scans everything.
	default:
		logger.WithContext(ctx).Warn("watermark lookup failed, scanning everything",
			zap.Error(err))
	}
	return req
}

// runPhase executes one adapter sync phase under the resilience stack.
func (e *Engine) runPhase(ctx context.Context, rt *sourceRuntime, run *models.SyncRun, phase string, req core.SyncRequest) (*models.SyncResult, error) {
	var result *models.SyncResult

	err := rt.exec.Execute(ctx, phase+"_sync", func() error {
		var callErr error
		switch phase {
		case "jobs":
			result, callErr = rt.adapter.SyncJobs(ctx, req)
		default:
			result, callErr = rt.adapter.SyncCandidates(ctx, req)
		}
		return callErr
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = models.NewSyncResult()
	}

	recordPhase(run.Source, phase, result)
	logger.WithContext(ctx).Debug("sync phase finished",
		zap.String("phase", phase),
		zap.Int("processed", result.RecordsProcessed),
		zap.Int("created", result.RecordsCreated),
		zap.Int("updated", result.RecordsUpdated),
		zap.Int("failed", result.RecordsFailed))
	return result, nil
}

// detectDuplicates hands newly created candidates to the detector. A
// detector fault degrades to a warning; it never fails the run.
func (e *Engine) detectDuplicates(ctx context.Context, source string, result *models.SyncResult) {
	if e.detector == nil || len(result.CreatedIDs) == 0 {
		return
	}

	flagged, err := e.detector.ProcessCreated(ctx, result.CreatedIDs)
	if err != nil {
		logger.WithContext(ctx).Warn("duplicate detection failed", zap.Error(err))
		result.AddWarning("duplicate detection failed: " + err.Error())
		return
	}
	if flagged > 0 {
		metrics.DuplicatesFlagged.WithLabelValues(source).Add(float64(flagged))
		logger.WithContext(ctx).Info("duplicates flagged", zap.Int("count", flagged))
	}
}

// finishRun applies the state bookkeeping for a terminal run and
// persists the run record. Bookkeeping faults are logged and swallowed:
// the run outcome already stands.
func (e *Engine) finishRun(ctx context.Context, run *models.SyncRun) {
	log := logger.WithContext(ctx)
	ret := e.cfg.Retention

	switch run.State {
	case models.RunStateSuccess:
		// The watermark only moves on full success, and it moves to the
		// run's start time.
		if err := state.SetJSON(ctx, e.store, state.WatermarkKey(run.Source), run.StartedAt, ret.Watermark); err != nil {
			log.Error("watermark update failed", zap.Error(err))
		}
		if err := e.store.Delete(ctx, state.FailuresKey(run.Source)); err != nil {
			log.Error("failure log clear failed", zap.Error(err))
		}

	case models.RunStatePartial:
		// A partial run leaves the watermark and the failure log alone;
		// the reprocess entry records what needs another pass.
		entry := models.ReprocessEntry{
			Source:        run.Source,
			RunID:         run.ID,
			ModifiedSince: run.ModifiedSince,
			CreatedAt:     time.Now().UTC(),
		}
		if run.Result != nil {
			entry.Errors = run.Result.Errors
		}
		if err := state.SetJSON(ctx, e.store, state.ReprocessKey(run.Source, run.ID), entry, ret.Reprocess); err != nil {
			log.Error("reprocess entry write failed", zap.Error(err))
		}

	case models.RunStateFailed:
		e.recordFailure(ctx, run)
	}

	if err := state.SetJSON(ctx, e.store, state.RunKey(run.ID), run, ret.RunLog); err != nil {
		log.Error("run record write failed", zap.Error(err))
	}

	metrics.SyncRuns.WithLabelValues(run.Source, string(run.State)).Inc()
	metrics.SyncDuration.WithLabelValues(run.Source).Observe(run.Duration().Seconds())

	switch run.State {
	case models.RunStateSuccess:
		log.Info("sync run succeeded", zap.Duration("duration", run.Duration()))
	case models.RunStatePartial:
		log.Warn("sync run partial",
			zap.Duration("duration", run.Duration()),
			zap.Int("failed", run.Result.RecordsFailed))
	default:
		log.Error("sync run failed",
			zap.Duration("duration", run.Duration()),
			zap.String("error", run.Error))
	}
}

// recordFailure appends to the source's rolling failure log and raises
// the threshold alert exactly once, when the count crosses.
func (e *Engine) recordFailure(ctx context.Context, run *models.SyncRun) {
	log := logger.WithContext(ctx)

	var events []models.FailureEvent
	if err := state.GetJSON(ctx, e.store, state.FailuresKey(run.Source), &events); err != nil && !state.IsNotFound(err) {
		log.Error("failure log read failed", zap.Error(err))
		events = nil
	}

	events = append(events, models.FailureEvent{
		RunID:      run.ID,
		Reason:     run.Error,
		OccurredAt: time.Now().UTC(),
	})
	if max := e.maxFailureLog(); len(events) > max {
		events = events[len(events)-max:]
	}

	if err := state.SetJSON(ctx, e.store, state.FailuresKey(run.Source), events, e.cfg.Retention.FailureLog); err != nil {
		log.Error("failure log write failed", zap.Error(err))
		return
	}

	if len(events) == e.failureThreshold() {
		e.alerts.Dispatch(ctx, Alert{
			Source:       run.Source,
			Severity:     SeverityCritical,
			Message:      "source failure threshold reached",
			RunID:        run.ID,
			FailureCount: len(events),
		})
	}
}

// recordPhase exports per-phase record counts.
func recordPhase(source, phase string, result *models.SyncResult) {
	if result.RecordsCreated > 0 {
		metrics.SyncedRecords.WithLabelValues(source, phase, "created").Add(float64(result.RecordsCreated))
	}
	if result.RecordsUpdated > 0 {
		metrics.SyncedRecords.WithLabelValues(source, phase, "updated").Add(float64(result.RecordsUpdated))
	}
	if result.RecordsFailed > 0 {
		metrics.SyncedRecords.WithLabelValues(source, phase, "failed").Add(float64(result.RecordsFailed))
	}
}

// HandleWebhook verifies and applies one pushed event payload. Unlike
// SyncSource it returns errors directly: the caller owns delivery
// acknowledgement and needs to distinguish rejection from acceptance.
func (e *Engine) HandleWebhook(ctx context.Context, source string, payload []byte, headers map[string]string) (*models.SyncResult, error) {
	rt, err := e.runtime(source)
	if err != nil {
		metrics.WebhooksReceived.WithLabelValues(source, "error").Inc()
		return nil, err
	}

	handler := rt.adapter.WebhookHandler()
	if handler == nil {
		metrics.WebhooksReceived.WithLabelValues(source, "error").Inc()
		return nil, errors.Newf(errors.ErrorTypeValidation, "source %s does not accept webhooks", source)
	}

	ctx = observability.ContextFromHeaders(ctx, headers)
	ctx = context.WithValue(ctx, logger.SourceKey, source)
	log := logger.WithContext(ctx)

	secret := rt.cfg.Credentials["webhook_secret"]
	if secret == "" {
		metrics.WebhooksReceived.WithLabelValues(source, "error").Inc()
		return nil, errors.Newf(errors.ErrorTypeConfig, "source %s has no webhook_secret configured", source)
	}
	if !handler.VerifySignature(payload, headers[WebhookSignatureHeader], secret) {
		metrics.WebhooksReceived.WithLabelValues(source, "invalid_signature").Inc()
		log.Warn("webhook signature rejected", zap.Int("payload_bytes", len(payload)))
		return nil, errors.New(errors.ErrorTypeAuthentication, "webhook signature verification failed")
	}

	result, err := handler.Handle(ctx, payload, headers)
	if err != nil {
		metrics.WebhooksReceived.WithLabelValues(source, "error").Inc()
		return nil, err
	}
	if result == nil {
		result = models.NewSyncResult()
	}

	e.detectDuplicates(ctx, source, result)
	recordPhase(source, "webhook", result)
	metrics.WebhooksReceived.WithLabelValues(source, "ok").Inc()

	log.Info("webhook processed",
		zap.Int("created", result.RecordsCreated),
		zap.Int("updated", result.RecordsUpdated))
	return result, nil
}
