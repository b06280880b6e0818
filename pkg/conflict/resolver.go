// Package conflict resolves field-level disagreements between a locally
// stored entity and the version a source just delivered. The decision
// logic is pure; only the MANUAL strategy touches storage, parking both
// versions for human review.
package conflict

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/talentsync/talentsync/pkg/errors"
	"github.com/talentsync/talentsync/pkg/logger"
	"github.com/talentsync/talentsync/pkg/state"
)

// Strategy selects how a conflict is decided.
type Strategy string

const (
	// SourceWins takes the remote version unconditionally
	SourceWins Strategy = "source_wins"
	// TargetWins keeps the local version unconditionally
	TargetWins Strategy = "target_wins"
	// NewestWins compares timestamps; a missing timestamp defaults the
	// decision to the remote version
	NewestWins Strategy = "newest_wins"
	// Manual parks both versions for human review
	Manual Strategy = "manual"
)

// Valid reports whether s names a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case SourceWins, TargetWins, NewestWins, Manual:
		return true
	}
	return false
}

// ParseStrategy reads a strategy from configuration text.
func ParseStrategy(s string) (Strategy, error) {
	strategy := Strategy(strings.ToLower(strings.TrimSpace(s)))
	if !strategy.Valid() {
		return "", errors.Newf(errors.ErrorTypeConfig, "unknown conflict strategy %q", s)
	}
	return strategy, nil
}

// Resolution names the winning side.
type Resolution string

const (
	// ResolutionLocal keeps the stored version
	ResolutionLocal Resolution = "local"
	// ResolutionRemote applies the incoming version
	ResolutionRemote Resolution = "remote"
	// ResolutionManual defers to human review
	ResolutionManual Resolution = "manual"
)

// Conflict describes one disagreement: the entity, both snapshots and
// their modification timestamps when known.
type Conflict struct {
	EntityType string      `json:"entity_type"`
	EntityID   string      `json:"entity_id"`
	Local      interface{} `json:"local"`
	Remote     interface{} `json:"remote"`
	LocalTS    *time.Time  `json:"local_ts,omitempty"`
	RemoteTS   *time.Time  `json:"remote_ts,omitempty"`
}

// Decision is the resolved outcome. For MANUAL conflicts NeedsResolution
// is set and both snapshots ride along unresolved.
type Decision struct {
	EntityType      string      `json:"entity_type"`
	EntityID        string      `json:"entity_id"`
	Strategy        Strategy    `json:"strategy"`
	Resolution      Resolution  `json:"resolution"`
	NeedsResolution bool        `json:"needs_resolution"`
	Local           interface{} `json:"local,omitempty"`
	Remote          interface{} `json:"remote,omitempty"`
	LocalTS         *time.Time  `json:"local_ts,omitempty"`
	RemoteTS        *time.Time  `json:"remote_ts,omitempty"`
	DecidedAt       time.Time   `json:"decided_at"`
}

// Winner returns the snapshot to apply, nil while resolution is pending.
func (d *Decision) Winner() interface{} {
	switch d.Resolution {
	case ResolutionLocal:
		return d.Local
	case ResolutionRemote:
		return d.Remote
	}
	return nil
}

// Decide applies a strategy to a conflict. It is a pure function: no
// storage, no clock beyond stamping the decision time.
func Decide(c Conflict, strategy Strategy) (*Decision, error) {
	d := &Decision{
		EntityType: c.EntityType,
		EntityID:   c.EntityID,
		Strategy:   strategy,
		Local:      c.Local,
		Remote:     c.Remote,
		LocalTS:    c.LocalTS,
		RemoteTS:   c.RemoteTS,
		DecidedAt:  time.Now().UTC(),
	}

	switch strategy {
	case SourceWins:
		d.Resolution = ResolutionRemote
	case TargetWins:
		d.Resolution = ResolutionLocal
	case NewestWins:
		// A missing timestamp on either side defaults to remote
		if c.LocalTS != nil && c.RemoteTS != nil && c.LocalTS.After(*c.RemoteTS) {
			d.Resolution = ResolutionLocal
		} else {
			d.Resolution = ResolutionRemote
		}
	case Manual:
		d.Resolution = ResolutionManual
		d.NeedsResolution = true
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown conflict strategy %q", strategy)
	}

	return d, nil
}

// Resolver decides conflicts and maintains the manual-review queue.
type Resolver struct {
	store  state.Store
	ttl    time.Duration
	logger *zap.Logger
}

// NewResolver creates a resolver persisting manual conflicts with the
// given retention.
func NewResolver(store state.Store, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Resolver{
		store:  store,
		ttl:    ttl,
		logger: logger.Get().With(zap.String("component", "conflict_resolver")),
	}
}

// Resolve decides one conflict. MANUAL decisions are persisted keyed by
// entity, so a repeated conflict for the same entity overwrites the queued
// one instead of piling up.
func (r *Resolver) Resolve(ctx context.Context, c Conflict, strategy Strategy) (*Decision, error) {
	decision, err := Decide(c, strategy)
	if err != nil {
		return nil, err
	}

	if decision.NeedsResolution {
		key := state.ConflictKey(c.EntityType, c.EntityID)
		if err := state.SetJSON(ctx, r.store, key, decision, r.ttl); err != nil {
			return nil, err
		}
		r.logger.Info("conflict queued for manual review",
			zap.String("entity_type", c.EntityType),
			zap.String("entity_id", c.EntityID))
	}

	return decision, nil
}

// Pending lists the queued manual conflicts.
func (r *Resolver) Pending(ctx context.Context) ([]*Decision, error) {
	keys, err := r.store.Keys(ctx, state.ConflictPrefix)
	if err != nil {
		return nil, err
	}

	decisions := make([]*Decision, 0, len(keys))
	for _, key := range keys {
		var d Decision
		if err := state.GetJSON(ctx, r.store, key, &d); err != nil {
			// Keys can expire between the scan and the read
			if state.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		decisions = append(decisions, &d)
	}
	return decisions, nil
}

// Discard removes a queued conflict after human review.
func (r *Resolver) Discard(ctx context.Context, entityType, entityID string) error {
	return r.store.Delete(ctx, state.ConflictKey(entityType, entityID))
}
