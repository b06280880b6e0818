package dedupe

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/talentsync/talentsync/pkg/errors"
	"github.com/talentsync/talentsync/pkg/logger"
	"github.com/talentsync/talentsync/pkg/models"
)

// Signal names which normalized attribute matched a duplicate.
type Signal string

const (
	// SignalEmail is an exact normalized email match
	SignalEmail Signal = "email"
	// SignalPhone is an exact normalized phone digit match
	SignalPhone Signal = "phone"
	// SignalNamePhonePrefix combines name tokens with a phone prefix
	SignalNamePhonePrefix Signal = "name_phone_prefix"
	// SignalNameExternalID combines the full name with a shared external
	// profile identifier
	SignalNameExternalID Signal = "name_external_id"
)

// Match is one probable duplicate and the signal that exposed it.
type Match struct {
	Candidate *models.Candidate
	Signal    Signal
}

// DuplicateSet is the outcome of detection for one primary record.
type DuplicateSet struct {
	Primary *models.Candidate
	Matches []Match
}

// Empty reports whether detection found anything.
func (s *DuplicateSet) Empty() bool { return len(s.Matches) == 0 }

// IDs returns the matched candidate ids in signal-priority order.
func (s *DuplicateSet) IDs() []string {
	ids := make([]string, 0, len(s.Matches))
	for _, m := range s.Matches {
		ids = append(ids, m.Candidate.ID)
	}
	return ids
}

// Detector finds and merges duplicate candidates against a CandidateStore.
type Detector struct {
	store  CandidateStore
	logger *zap.Logger
}

// NewDetector creates a detector over the given store.
func NewDetector(store CandidateStore) *Detector {
	return &Detector{
		store:  store,
		logger: logger.Get().With(zap.String("component", "duplicate_detector")),
	}
}

// FindDuplicates searches for probable duplicates of one candidate.
// Signals apply in priority order and their matches are unioned by id;
// duplicate-flagged records never match, so merged sets stay settled.
func (d *Detector) FindDuplicates(ctx context.Context, id string) (*DuplicateSet, error) {
	primary, err := d.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	set := &DuplicateSet{Primary: primary}
	if primary.IsDuplicate {
		return set, nil
	}

	seen := map[string]bool{primary.ID: true}
	add := func(found []*models.Candidate, signal Signal) {
		for _, candidate := range found {
			if seen[candidate.ID] || candidate.IsDuplicate {
				continue
			}
			seen[candidate.ID] = true
			set.Matches = append(set.Matches, Match{Candidate: candidate, Signal: signal})
		}
	}

	if email := NormalizeEmail(primary.Email); email != "" {
		found, err := d.store.FindByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		add(found, SignalEmail)
	}

	if digits := NormalizePhone(primary.Phone); digits != "" {
		found, err := d.store.FindByPhone(ctx, digits)
		if err != nil {
			return nil, err
		}
		add(found, SignalPhone)
	}

	nameKey := NameKey(primary.FirstName, primary.LastName)
	prefix := PhonePrefix(primary.Phone)
	fullName := strings.TrimSpace(primary.FullName())
	wantNamePhone := nameKey != "" && prefix != ""
	wantNameExternal := fullName != "" && len(primary.ExternalIDs) > 0

	if wantNamePhone || wantNameExternal {
		all, err := d.store.List(ctx)
		if err != nil {
			return nil, err
		}

		var byNamePhone, byNameExternal []*models.Candidate
		for _, candidate := range all {
			if candidate.ID == primary.ID {
				continue
			}
			if wantNamePhone &&
				NameKey(candidate.FirstName, candidate.LastName) == nameKey &&
				PhonePrefix(candidate.Phone) == prefix {
				byNamePhone = append(byNamePhone, candidate)
				continue
			}
			if wantNameExternal &&
				EqualFullName(candidate.FullName(), fullName) &&
				sharesExternalID(primary, candidate) {
				byNameExternal = append(byNameExternal, candidate)
			}
		}
		add(byNamePhone, SignalNamePhonePrefix)
		add(byNameExternal, SignalNameExternalID)
	}

	if !set.Empty() {
		d.logger.Debug("duplicates detected",
			zap.String("candidate", primary.ID),
			zap.Int("matches", len(set.Matches)))
	}
	return set, nil
}

// Sweep groups every unflagged candidate by normalized email and returns a
// set for each group with more than one member. The oldest record becomes
// the primary.
func (d *Detector) Sweep(ctx context.Context) ([]*DuplicateSet, error) {
	all, err := d.store.List(ctx)
	if err != nil {
		return nil, err
	}

	groups := make(map[string][]*models.Candidate)
	for _, candidate := range all {
		if candidate.IsDuplicate {
			continue
		}
		email := NormalizeEmail(candidate.Email)
		if email == "" {
			continue
		}
		groups[email] = append(groups[email], candidate)
	}

	var sets []*DuplicateSet
	for _, members := range groups {
		if len(members) < 2 {
			continue
		}
		sort.Slice(members, func(i, j int) bool {
			if !members[i].CreatedAt.Equal(members[j].CreatedAt) {
				return members[i].CreatedAt.Before(members[j].CreatedAt)
			}
			return members[i].ID < members[j].ID
		})

		set := &DuplicateSet{Primary: members[0]}
		for _, dup := range members[1:] {
			set.Matches = append(set.Matches, Match{Candidate: dup, Signal: SignalEmail})
		}
		sets = append(sets, set)
	}

	sort.Slice(sets, func(i, j int) bool { return sets[i].Primary.ID < sets[j].Primary.ID })
	return sets, nil
}

// Merge consolidates a duplicate set inside one store transaction. Optional
// fields the primary lacks are copied from the first duplicate that has
// them; every duplicate is flagged with a pointer at the primary and kept.
// Replaying a merge is a no-op.
func (d *Detector) Merge(ctx context.Context, set *DuplicateSet) error {
	if set == nil || set.Empty() {
		return nil
	}

	return d.store.Transact(ctx, func(tx CandidateStore) error {
		primary, err := tx.Get(ctx, set.Primary.ID)
		if err != nil {
			return err
		}
		if primary.IsDuplicate {
			// The primary was itself merged away since detection
			return nil
		}

		flagged := 0
		for _, match := range set.Matches {
			dup, err := tx.Get(ctx, match.Candidate.ID)
			if err != nil {
				if errors.IsType(err, errors.ErrorTypeNotFound) {
					continue
				}
				return err
			}
			if dup.IsDuplicate {
				continue
			}

			fillMissing(primary, dup)
			dup.IsDuplicate = true
			dup.DuplicateOf = primary.ID
			dup.UpdatedAt = time.Now().UTC()
			if err := tx.Update(ctx, dup); err != nil {
				return err
			}
			flagged++
		}

		if flagged == 0 {
			return nil
		}
		primary.UpdatedAt = time.Now().UTC()
		if err := tx.Update(ctx, primary); err != nil {
			return err
		}

		d.logger.Info("duplicates merged",
			zap.String("primary", primary.ID),
			zap.Int("flagged", flagged))
		return nil
	})
}

// ProcessCreated runs detection and merge over newly created records and
// returns how many records were flagged as duplicates.
func (d *Detector) ProcessCreated(ctx context.Context, ids []string) (int, error) {
	flagged := 0
	for _, id := range ids {
		set, err := d.FindDuplicates(ctx, id)
		if err != nil {
			// Created ids can trail the platform store; skip the gap
			if errors.IsType(err, errors.ErrorTypeNotFound) {
				continue
			}
			return flagged, err
		}
		if set.Empty() {
			continue
		}
		if err := d.Merge(ctx, set); err != nil {
			return flagged, err
		}
		flagged += len(set.Matches)
	}
	return flagged, nil
}

// fillMissing copies fields the primary lacks from dup. Called once per
// duplicate in match order, so the first duplicate holding a value wins.
func fillMissing(primary, dup *models.Candidate) {
	if primary.Email == "" {
		primary.Email = dup.Email
	}
	if primary.Phone == "" {
		primary.Phone = dup.Phone
	}
	if primary.Title == "" {
		primary.Title = dup.Title
	}
	if primary.Company == "" {
		primary.Company = dup.Company
	}
	if primary.Location == "" {
		primary.Location = dup.Location
	}
	if primary.LinkedInURL == "" {
		primary.LinkedInURL = dup.LinkedInURL
	}
	if primary.Summary == "" {
		primary.Summary = dup.Summary
	}
	if len(primary.Tags) == 0 && len(dup.Tags) > 0 {
		primary.Tags = append([]string(nil), dup.Tags...)
	}
	if len(primary.JobIDs) == 0 && len(dup.JobIDs) > 0 {
		primary.JobIDs = append([]string(nil), dup.JobIDs...)
	}
	for provider, id := range dup.ExternalIDs {
		if _, ok := primary.ExternalIDs[provider]; !ok {
			if primary.ExternalIDs == nil {
				primary.ExternalIDs = make(map[string]string)
			}
			primary.ExternalIDs[provider] = id
		}
	}
}

func sharesExternalID(a, b *models.Candidate) bool {
	for provider, id := range a.ExternalIDs {
		if id == "" {
			continue
		}
		if other, ok := b.ExternalIDs[provider]; ok && other == id {
			return true
		}
	}
	return false
}
