// Package fixture implements a file-backed adapter that serves candidates
// and jobs from local JSON documents. It exists to drive demos and
// integration tests through the full sync pipeline without a vendor
// account.
package fixture

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/talentsync/talentsync/pkg/config"
	"github.com/talentsync/talentsync/pkg/connector/core"
	"github.com/talentsync/talentsync/pkg/errors"
	jsonpool "github.com/talentsync/talentsync/pkg/json"
	"github.com/talentsync/talentsync/pkg/logger"
	"github.com/talentsync/talentsync/pkg/models"
)

// Adapter options.
const (
	// OptionCandidatesFile is the path to a JSON array of candidates
	OptionCandidatesFile = "candidates_file"
	// OptionJobsFile is the path to a JSON array of jobs
	OptionJobsFile = "jobs_file"
)

// Adapter serves sync phases from fixture files.
type Adapter struct {
	cfg            *config.SourceConfig
	logger         *zap.Logger
	candidatesFile string
	jobsFile       string

	mu        sync.Mutex
	connected bool
}

// New creates a fixture adapter from the source configuration. At least one
// of candidates_file and jobs_file must be set in the source options.
func New(cfg *config.SourceConfig) (core.Adapter, error) {
	candidatesFile := cfg.Options[OptionCandidatesFile]
	jobsFile := cfg.Options[OptionJobsFile]
	if candidatesFile == "" && jobsFile == "" {
		return nil, errors.New(errors.ErrorTypeConfig,
			"fixture adapter needs a candidates_file or jobs_file option")
	}

	return &Adapter{
		cfg: cfg,
		logger: logger.Get().With(
			zap.String("component", "fixture_adapter"),
			zap.String("source", cfg.Name)),
		candidatesFile: candidatesFile,
		jobsFile:       jobsFile,
	}, nil
}

// Kind returns the adapter kind.
func (a *Adapter) Kind() core.Kind { return core.KindFixture }

// Name returns the configured source name.
func (a *Adapter) Name() string { return a.cfg.Name }

// Connect verifies the fixture files are reachable.
func (a *Adapter) Connect(ctx context.Context) error {
	for _, path := range []string{a.jobsFile, a.candidatesFile} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConnection,
				fmt.Sprintf("fixture file %s not readable", path))
		}
	}

	a.mu.Lock()
	a.connected = true
	a.mu.Unlock()

	a.logger.Debug("fixture adapter connected")
	return nil
}

// Disconnect releases the session.
func (a *Adapter) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	a.connected = false
	a.mu.Unlock()
	return nil
}

// TestConnection loads both files and reports their record counts.
func (a *Adapter) TestConnection(ctx context.Context) (bool, string) {
	jobs, err := a.loadJobs()
	if err != nil {
		return false, err.Error()
	}
	candidates, err := a.loadCandidates()
	if err != nil {
		return false, err.Error()
	}
	return true, fmt.Sprintf("%d jobs, %d candidates readable", len(jobs), len(candidates))
}

// SyncJobs replays the jobs fixture into the requested window.
func (a *Adapter) SyncJobs(ctx context.Context, req core.SyncRequest) (*models.SyncResult, error) {
	if err := a.ensureConnected(); err != nil {
		return nil, err
	}

	start := time.Now()
	jobs, err := a.loadJobs()
	if err != nil {
		return nil, err
	}

	result := models.NewSyncResult()
	for i := range jobs {
		job := &jobs[i]
		include, isNew := inWindow(job.CreatedAt, job.UpdatedAt, req)
		if !include {
			continue
		}
		result.RecordsProcessed++
		if job.ID == "" {
			result.AddError(fmt.Sprintf("job record %d: missing required field id", i))
			continue
		}
		if isNew {
			result.RecordsCreated++
		} else {
			result.RecordsUpdated++
		}
	}
	result.Duration = time.Since(start)

	a.logger.Info("jobs fixture synced",
		zap.Int("processed", result.RecordsProcessed),
		zap.Int("created", result.RecordsCreated),
		zap.Int("failed", result.RecordsFailed))
	return result, nil
}

// SyncCandidates replays the candidates fixture into the requested window,
// honoring the job filter.
func (a *Adapter) SyncCandidates(ctx context.Context, req core.SyncRequest) (*models.SyncResult, error) {
	if err := a.ensureConnected(); err != nil {
		return nil, err
	}

	start := time.Now()
	candidates, err := a.loadCandidates()
	if err != nil {
		return nil, err
	}

	result := models.NewSyncResult()
	for i := range candidates {
		candidate := &candidates[i]
		if len(req.JobFilter) > 0 && !intersects(candidate.JobIDs, req.JobFilter) {
			continue
		}
		include, isNew := inWindow(candidate.CreatedAt, candidate.UpdatedAt, req)
		if !include {
			continue
		}
		result.RecordsProcessed++
		if candidate.ID == "" {
			result.AddError(fmt.Sprintf("candidate record %d: missing required field id", i))
			continue
		}
		if isNew {
			result.RecordsCreated++
			result.CreatedIDs = append(result.CreatedIDs, candidate.ID)
		} else {
			result.RecordsUpdated++
		}
	}
	result.Duration = time.Since(start)

	a.logger.Info("candidates fixture synced",
		zap.Int("processed", result.RecordsProcessed),
		zap.Int("created", result.RecordsCreated),
		zap.Int("failed", result.RecordsFailed))
	return result, nil
}

// WebhookHandler returns the fixture push handler.
func (a *Adapter) WebhookHandler() core.WebhookHandler {
	return &Webhook{source: a.cfg.Name, logger: a.logger}
}

func (a *Adapter) ensureConnected() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.connected {
		return errors.New(errors.ErrorTypeConnection, "fixture adapter not connected")
	}
	return nil
}

func (a *Adapter) loadJobs() ([]models.Job, error) {
	if a.jobsFile == "" {
		return nil, nil
	}
	data, err := os.ReadFile(a.jobsFile)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to read jobs fixture")
	}
	var jobs []models.Job
	if err := jsonpool.Unmarshal(data, &jobs); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "malformed jobs fixture")
	}
	return jobs, nil
}

func (a *Adapter) loadCandidates() ([]models.Candidate, error) {
	if a.candidatesFile == "" {
		return nil, nil
	}
	data, err := os.ReadFile(a.candidatesFile)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to read candidates fixture")
	}
	var candidates []models.Candidate
	if err := jsonpool.Unmarshal(data, &candidates); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "malformed candidates fixture")
	}
	return candidates, nil
}

// inWindow reports whether a record falls into the sync window and whether
// it counts as newly created rather than updated.
func inWindow(created, updated time.Time, req core.SyncRequest) (bool, bool) {
	isNew := req.ModifiedSince == nil || created.After(*req.ModifiedSince)
	if req.FullSync || req.ModifiedSince == nil {
		return true, isNew
	}
	modified := updated
	if modified.IsZero() {
		modified = created
	}
	if !modified.After(*req.ModifiedSince) {
		return false, false
	}
	return true, isNew
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
