package models

import (
	"time"

	"github.com/google/uuid"
)

// SyncResult accumulates the outcome of one sync phase. Results merge
// associatively and commutatively over their counts, so jobs and candidate
// phases can be combined in any grouping.
type SyncResult struct {
	RecordsProcessed int `json:"records_processed"`
	RecordsCreated   int `json:"records_created"`
	RecordsUpdated   int `json:"records_updated"`
	RecordsFailed    int `json:"records_failed"`

	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`

	// CreatedIDs names the records created during the phase so duplicate
	// detection can target them after the run
	CreatedIDs []string `json:"created_ids,omitempty"`

	Duration time.Duration `json:"duration"`
	Success  bool          `json:"success"`
}

// NewSyncResult returns an empty successful result, the identity element
// under Merge.
func NewSyncResult() *SyncResult {
	return &SyncResult{Success: true}
}

// Merge combines two results into a new one. Counts are summed, error and
// warning lists concatenated. The merged result is successful only when both
// inputs are successful and no record failed.
func (r *SyncResult) Merge(other *SyncResult) *SyncResult {
	if other == nil {
		merged := *r
		return &merged
	}

	merged := &SyncResult{
		RecordsProcessed: r.RecordsProcessed + other.RecordsProcessed,
		RecordsCreated:   r.RecordsCreated + other.RecordsCreated,
		RecordsUpdated:   r.RecordsUpdated + other.RecordsUpdated,
		RecordsFailed:    r.RecordsFailed + other.RecordsFailed,
		Duration:         r.Duration + other.Duration,
	}
	merged.Errors = append(append([]string(nil), r.Errors...), other.Errors...)
	merged.Warnings = append(append([]string(nil), r.Warnings...), other.Warnings...)
	merged.CreatedIDs = append(append([]string(nil), r.CreatedIDs...), other.CreatedIDs...)
	merged.Success = r.Success && other.Success && merged.RecordsFailed == 0
	return merged
}

// AddError records a failed record and its reason.
func (r *SyncResult) AddError(msg string) {
	r.RecordsFailed++
	r.Errors = append(r.Errors, msg)
	r.Success = false
}

// AddWarning records a non-fatal observation.
func (r *SyncResult) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// RunState is the lifecycle state of a sync run.
type RunState string

const (
	// RunStatePending means the run is created but not started
	RunStatePending RunState = "pending"
	// RunStateRunning means the run is in progress
	RunStateRunning RunState = "running"
	// RunStateSuccess means every phase completed and no record failed
	RunStateSuccess RunState = "success"
	// RunStatePartial means the run completed with some records failed
	RunStatePartial RunState = "partial"
	// RunStateFailed means a run-level fault stopped the run
	RunStateFailed RunState = "failed"
)

// Terminal reports whether the state is an end state.
func (s RunState) Terminal() bool {
	return s == RunStateSuccess || s == RunStatePartial || s == RunStateFailed
}

// SyncRun records one orchestrated synchronization of a single source.
type SyncRun struct {
	ID       string   `json:"id"`
	Source   string   `json:"source"`
	Trigger  string   `json:"trigger"`
	State    RunState `json:"state"`
	FullSync bool     `json:"full_sync"`

	// ModifiedSince is the incremental window lower bound, nil for full syncs
	// and first runs
	ModifiedSince *time.Time `json:"modified_since,omitempty"`

	Result *SyncResult `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`

	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Run triggers.
const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
	TriggerWebhook   = "webhook"
)

// NewSyncRun creates a pending run for the given source.
func NewSyncRun(source, trigger string) *SyncRun {
	return &SyncRun{
		ID:      uuid.NewString(),
		Source:  source,
		Trigger: trigger,
		State:   RunStatePending,
	}
}

// Start marks the run as running.
func (r *SyncRun) Start() {
	r.State = RunStateRunning
	r.StartedAt = time.Now().UTC()
}

// Complete finishes the run with the merged result, classifying it SUCCESS
// or PARTIAL.
func (r *SyncRun) Complete(result *SyncResult) {
	r.Result = result
	if result.Success {
		r.State = RunStateSuccess
	} else {
		r.State = RunStatePartial
	}
	now := time.Now().UTC()
	r.FinishedAt = &now
}

// Fail finishes the run with a run-level fault. A partial result collected
// before the fault is kept for the record.
func (r *SyncRun) Fail(err error, partial *SyncResult) {
	r.State = RunStateFailed
	if err != nil {
		r.Error = err.Error()
	}
	if partial != nil {
		r.Result = partial
	}
	now := time.Now().UTC()
	r.FinishedAt = &now
}

// Duration returns how long the run took, zero while still in flight.
func (r *SyncRun) Duration() time.Duration {
	if r.FinishedAt == nil || r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// FailureEvent is one entry of a source's rolling failure log.
type FailureEvent struct {
	RunID      string    `json:"run_id"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ReprocessEntry records the window and errors of a partial run so failed
// records can be picked up again without advancing the watermark.
type ReprocessEntry struct {
	Source        string     `json:"source"`
	RunID         string     `json:"run_id"`
	ModifiedSince *time.Time `json:"modified_since,omitempty"`
	Errors        []string   `json:"errors,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// HealthState classifies a source's operational condition.
type HealthState string

const (
	// HealthHealthy means no recent failures and a fresh watermark
	HealthHealthy HealthState = "healthy"
	// HealthWarning means failures below the alert threshold
	HealthWarning HealthState = "warning"
	// HealthCritical means failures at or above the alert threshold
	HealthCritical HealthState = "critical"
	// HealthStale means no failures but the watermark is missing or old
	HealthStale HealthState = "stale"
)

// SourceHealth is the evaluated health of one source.
type SourceHealth struct {
	Source              string      `json:"source"`
	State               HealthState `json:"state"`
	ConsecutiveFailures int         `json:"consecutive_failures"`
	LastFailure         *time.Time  `json:"last_failure,omitempty"`
	LastFailureReason   string      `json:"last_failure_reason,omitempty"`
	Watermark           *time.Time  `json:"watermark,omitempty"`
	CheckedAt           time.Time   `json:"checked_at"`
}
