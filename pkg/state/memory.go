package state

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/talentsync/talentsync/pkg/errors"
	"github.com/talentsync/talentsync/pkg/logger"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryStore is the in-process Store used by tests and embedded runs.
// Expired entries are invisible immediately; a janitor reclaims them in
// the background.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]memoryEntry
	logger *zap.Logger

	stop      chan struct{}
	closeOnce sync.Once
}

// NewMemoryStore creates a memory store with a one-minute janitor sweep.
func NewMemoryStore() *MemoryStore {
	return newMemoryStore(time.Minute)
}

func newMemoryStore(sweepInterval time.Duration) *MemoryStore {
	s := &MemoryStore{
		data:   make(map[string]memoryEntry),
		logger: logger.Get().With(zap.String("component", "memory_state_store")),
		stop:   make(chan struct{}),
	}
	go s.janitor(sweepInterval)
	return s
}

// Get returns the value for key, or an ErrorTypeNotFound error.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	entry, ok := s.data[key]
	s.mu.RUnlock()

	if !ok || entry.expired(time.Now()) {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "state key %s not found", key)
	}

	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, nil
}

// Set stores value under key. A positive ttl bounds its lifetime.
func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	entry := memoryEntry{value: make([]byte, len(value))}
	copy(entry.value, value)
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}

	s.mu.Lock()
	s.data[key] = entry
	s.mu.Unlock()
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}

// Keys returns the live keys with the given prefix, sorted.
func (s *MemoryStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	now := time.Now()

	s.mu.RLock()
	keys := make([]string, 0)
	for key, entry := range s.data {
		if strings.HasPrefix(key, prefix) && !entry.expired(now) {
			keys = append(keys, key)
		}
	}
	s.mu.RUnlock()

	sort.Strings(keys)
	return keys, nil
}

// Close stops the janitor.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() { close(s.stop) })
	return nil
}

func (s *MemoryStore) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *MemoryStore) sweep() {
	now := time.Now()
	removed := 0

	s.mu.Lock()
	for key, entry := range s.data {
		if entry.expired(now) {
			delete(s.data, key)
			removed++
		}
	}
	s.mu.Unlock()

	if removed > 0 {
		s.logger.Debug("swept expired state entries", zap.Int("removed", removed))
	}
}
