// Package state persists the engine's operational state: watermarks,
// failure logs, run records, manual conflict snapshots and reprocess
// entries. It is a flat key-value space with per-key TTLs; business
// entities never land here.
package state

import (
	"context"
	"time"

	"github.com/talentsync/talentsync/pkg/errors"
	jsonpool "github.com/talentsync/talentsync/pkg/json"
)

// Store is the engine's durable KV. Get returns an ErrorTypeNotFound error
// for absent or expired keys. A zero TTL keeps the key until deleted.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// Key prefixes. Every engine key is <prefix><qualifier> so prefix scans
// enumerate one concern at a time.
const (
	WatermarkPrefix = "watermark:"
	FailuresPrefix  = "failures:"
	RunPrefix       = "run:"
	ConflictPrefix  = "conflict:"
	ReprocessPrefix = "reprocess:"
)

// WatermarkKey is the last-successful-sync timestamp for a source.
func WatermarkKey(source string) string {
	return WatermarkPrefix + source
}

// FailuresKey is the rolling failure log for a source.
func FailuresKey(source string) string {
	return FailuresPrefix + source
}

// RunKey is the persisted record of one sync run.
func RunKey(runID string) string {
	return RunPrefix + runID
}

// ConflictKey is a manual-review conflict snapshot for one entity.
func ConflictKey(entityType, id string) string {
	return ConflictPrefix + entityType + ":" + id
}

// ReprocessKey is the failed-window entry of one partial run.
func ReprocessKey(source, runID string) string {
	return ReprocessPrefix + source + ":" + runID
}

// GetJSON reads a key and unmarshals it into v.
func GetJSON(ctx context.Context, s Store, key string, v interface{}) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := jsonpool.Unmarshal(data, v); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to decode state value "+key)
	}
	return nil
}

// SetJSON marshals v and writes it under key.
func SetJSON(ctx context.Context, s Store, key string, v interface{}, ttl time.Duration) error {
	data, err := jsonpool.Marshal(v)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to encode state value "+key)
	}
	return s.Set(ctx, key, data, ttl)
}

// IsNotFound reports whether err marks an absent or expired key.
func IsNotFound(err error) bool {
	return errors.IsType(err, errors.ErrorTypeNotFound)
}
