package dedupe

import (
	"context"
	"sort"
	"sync"

	"github.com/talentsync/talentsync/pkg/errors"
	"github.com/talentsync/talentsync/pkg/models"
)

func sortByID(candidates []*models.Candidate) {
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })
}

// CandidateStore is the slice of the platform's candidate storage the
// detector needs. Lookups must exclude nothing: the detector itself skips
// duplicate-flagged records where the signals require it.
type CandidateStore interface {
	Get(ctx context.Context, id string) (*models.Candidate, error)
	FindByEmail(ctx context.Context, normalizedEmail string) ([]*models.Candidate, error)
	FindByPhone(ctx context.Context, phoneDigits string) ([]*models.Candidate, error)
	List(ctx context.Context) ([]*models.Candidate, error)
	Update(ctx context.Context, candidate *models.Candidate) error

	// Transact runs fn against a view that serializes with concurrent
	// edits, so merge read-modify-write never loses updates.
	Transact(ctx context.Context, fn func(tx CandidateStore) error) error
}

// MemoryCandidateStore is the in-process CandidateStore used by tests and
// the fixture pipeline. Transact serializes on the store lock and rolls
// the map back when fn fails.
type MemoryCandidateStore struct {
	mu         sync.RWMutex
	candidates map[string]*models.Candidate
}

// NewMemoryCandidateStore creates an empty store.
func NewMemoryCandidateStore() *MemoryCandidateStore {
	return &MemoryCandidateStore{candidates: make(map[string]*models.Candidate)}
}

// Put seeds or replaces a candidate.
func (s *MemoryCandidateStore) Put(candidate *models.Candidate) {
	s.mu.Lock()
	s.candidates[candidate.ID] = candidate.Clone()
	s.mu.Unlock()
}

// Len reports how many candidates are stored.
func (s *MemoryCandidateStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.candidates)
}

// Get returns a copy of the candidate with the given id.
func (s *MemoryCandidateStore) Get(ctx context.Context, id string) (*models.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(id)
}

// FindByEmail returns candidates whose normalized email matches.
func (s *MemoryCandidateStore) FindByEmail(ctx context.Context, normalizedEmail string) ([]*models.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findByEmail(normalizedEmail), nil
}

// FindByPhone returns candidates whose normalized phone digits match.
func (s *MemoryCandidateStore) FindByPhone(ctx context.Context, phoneDigits string) ([]*models.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findByPhone(phoneDigits), nil
}

// List returns copies of all candidates.
func (s *MemoryCandidateStore) List(ctx context.Context) ([]*models.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list(), nil
}

// Update replaces a stored candidate.
func (s *MemoryCandidateStore) Update(ctx context.Context, candidate *models.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update(candidate)
}

// Transact serializes fn on the store lock. When fn fails every change it
// made is rolled back.
func (s *MemoryCandidateStore) Transact(ctx context.Context, fn func(tx CandidateStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make(map[string]*models.Candidate, len(s.candidates))
	for id, candidate := range s.candidates {
		snapshot[id] = candidate.Clone()
	}

	if err := fn(&memoryTx{store: s}); err != nil {
		s.candidates = snapshot
		return err
	}
	return nil
}

// Unlocked internals shared by the store and its transaction view.

func (s *MemoryCandidateStore) get(id string) (*models.Candidate, error) {
	candidate, ok := s.candidates[id]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "candidate %s not found", id)
	}
	return candidate.Clone(), nil
}

func (s *MemoryCandidateStore) findByEmail(normalizedEmail string) []*models.Candidate {
	if normalizedEmail == "" {
		return nil
	}
	var found []*models.Candidate
	for _, candidate := range s.candidates {
		if NormalizeEmail(candidate.Email) == normalizedEmail {
			found = append(found, candidate.Clone())
		}
	}
	sortByID(found)
	return found
}

func (s *MemoryCandidateStore) findByPhone(phoneDigits string) []*models.Candidate {
	if phoneDigits == "" {
		return nil
	}
	var found []*models.Candidate
	for _, candidate := range s.candidates {
		if NormalizePhone(candidate.Phone) == phoneDigits {
			found = append(found, candidate.Clone())
		}
	}
	sortByID(found)
	return found
}

func (s *MemoryCandidateStore) list() []*models.Candidate {
	all := make([]*models.Candidate, 0, len(s.candidates))
	for _, candidate := range s.candidates {
		all = append(all, candidate.Clone())
	}
	sortByID(all)
	return all
}

func (s *MemoryCandidateStore) update(candidate *models.Candidate) error {
	if _, ok := s.candidates[candidate.ID]; !ok {
		return errors.Newf(errors.ErrorTypeNotFound, "candidate %s not found", candidate.ID)
	}
	s.candidates[candidate.ID] = candidate.Clone()
	return nil
}

// memoryTx is the in-transaction view; the store lock is already held.
type memoryTx struct {
	store *MemoryCandidateStore
}

func (t *memoryTx) Get(ctx context.Context, id string) (*models.Candidate, error) {
	return t.store.get(id)
}

func (t *memoryTx) FindByEmail(ctx context.Context, normalizedEmail string) ([]*models.Candidate, error) {
	return t.store.findByEmail(normalizedEmail), nil
}

func (t *memoryTx) FindByPhone(ctx context.Context, phoneDigits string) ([]*models.Candidate, error) {
	return t.store.findByPhone(phoneDigits), nil
}

func (t *memoryTx) List(ctx context.Context) ([]*models.Candidate, error) {
	return t.store.list(), nil
}

func (t *memoryTx) Update(ctx context.Context, candidate *models.Candidate) error {
	return t.store.update(candidate)
}

func (t *memoryTx) Transact(ctx context.Context, fn func(tx CandidateStore) error) error {
	return fn(t)
}
