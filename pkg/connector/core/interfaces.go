// Package core defines the adapter contract every recruiting source
// implements. Adapters translate vendor APIs into the shared candidate and
// job model; the orchestration engine owns everything else (resilience,
// watermarks, dedupe, conflict handling).
package core

import (
	"context"
	"time"

	"github.com/talentsync/talentsync/pkg/models"
)

// Kind identifies the category of recruiting system behind an adapter.
type Kind string

const (
	// KindCRM is a candidate relationship management system
	KindCRM Kind = "crm"
	// KindHRIS is an HR information system
	KindHRIS Kind = "hris"
	// KindTalentNetwork is a sourcing network or job board
	KindTalentNetwork Kind = "talent_network"
	// KindFixture is a file-backed adapter for demos and integration tests
	KindFixture Kind = "fixture"
)

// Kinds returns the closed set of adapter kinds.
func Kinds() []Kind {
	return []Kind{KindCRM, KindHRIS, KindTalentNetwork, KindFixture}
}

// Valid reports whether k names a known adapter kind.
func (k Kind) Valid() bool {
	switch k {
	case KindCRM, KindHRIS, KindTalentNetwork, KindFixture:
		return true
	}
	return false
}

// SyncRequest carries the window and filters for one sync phase.
type SyncRequest struct {
	// ModifiedSince bounds an incremental pull; nil means everything.
	ModifiedSince *time.Time
	// FullSync ignores ModifiedSince and pulls the complete data set.
	FullSync bool
	// JobFilter restricts candidate sync to these job IDs when non-empty.
	JobFilter []string
	// PageSize is the adapter's pagination hint.
	PageSize int
}

// Adapter is the interface every recruiting source implements.
//
// Connections are scoped resources: the engine calls Connect before the
// first sync phase and Disconnect on every exit path. Sync methods return
// a SyncResult even on failure so partial progress is never lost.
type Adapter interface {
	// Metadata
	Kind() Kind
	Name() string

	// Lifecycle
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error

	// TestConnection probes the upstream without mutating state. The
	// detail string carries the vendor diagnostic on failure.
	TestConnection(ctx context.Context) (bool, string)

	// Sync phases. Jobs sync before candidates so candidate-to-job
	// associations resolve.
	SyncJobs(ctx context.Context, req SyncRequest) (*models.SyncResult, error)
	SyncCandidates(ctx context.Context, req SyncRequest) (*models.SyncResult, error)

	// WebhookHandler returns the push-event handler, nil when the
	// source does not push.
	WebhookHandler() WebhookHandler
}

// WebhookHandler processes push events from a source.
type WebhookHandler interface {
	// Handle applies one webhook payload and reports what changed.
	Handle(ctx context.Context, payload []byte, headers map[string]string) (*models.SyncResult, error)
	// VerifySignature checks the payload against the vendor signature
	// scheme using the source's shared secret.
	VerifySignature(payload []byte, signature, secret string) bool
}
