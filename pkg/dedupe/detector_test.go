package dedupe

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentsync/talentsync/pkg/models"
)

func newPopulatedDetector(candidates ...*models.Candidate) (*Detector, *MemoryCandidateStore) {
	store := NewMemoryCandidateStore()
	for _, c := range candidates {
		store.Put(c)
	}
	return NewDetector(store), store
}

func signals(set *DuplicateSet) map[string]Signal {
	out := make(map[string]Signal, len(set.Matches))
	for _, m := range set.Matches {
		out[m.Candidate.ID] = m.Signal
	}
	return out
}

func TestFindDuplicates_EmailSignalIsSymmetric(t *testing.T) {
	d, _ := newPopulatedDetector(
		&models.Candidate{ID: "c1", FirstName: "Ada", LastName: "Li", Email: "ADA@Example.com"},
		&models.Candidate{ID: "c2", FirstName: "A.", LastName: "Li", Email: " ada@example.com"},
	)
	ctx := context.Background()

	fromC1, err := d.FindDuplicates(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, map[string]Signal{"c2": SignalEmail}, signals(fromC1))

	fromC2, err := d.FindDuplicates(ctx, "c2")
	require.NoError(t, err)
	assert.Equal(t, map[string]Signal{"c1": SignalEmail}, signals(fromC2))
}

func TestFindDuplicates_PhoneSignal(t *testing.T) {
	d, _ := newPopulatedDetector(
		&models.Candidate{ID: "c1", FirstName: "Ada", LastName: "Li", Email: "a@x.com", Phone: "415-555-0101"},
		&models.Candidate{ID: "c2", FirstName: "Ada", LastName: "Li", Email: "b@y.com", Phone: "(415) 555 0101"},
	)

	set, err := d.FindDuplicates(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, map[string]Signal{"c2": SignalPhone}, signals(set))
}

func TestFindDuplicates_NamePlusPhonePrefix(t *testing.T) {
	d, _ := newPopulatedDetector(
		&models.Candidate{ID: "c1", FirstName: "Ada", LastName: "Li", Phone: "4155550101"},
		// same name tokens in a different order, phone shares the prefix only
		&models.Candidate{ID: "c2", FirstName: "Li", LastName: "Ada", Phone: "4155559999"},
		// same name, unrelated phone
		&models.Candidate{ID: "c3", FirstName: "Ada", LastName: "Li", Phone: "2125550101"},
	)

	set, err := d.FindDuplicates(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, map[string]Signal{"c2": SignalNamePhonePrefix}, signals(set))
}

func TestFindDuplicates_NamePlusSharedExternalID(t *testing.T) {
	d, _ := newPopulatedDetector(
		&models.Candidate{ID: "c1", FirstName: "Ada", LastName: "Li",
			ExternalIDs: map[string]string{"linkedin": "li-9"}},
		&models.Candidate{ID: "c2", FirstName: "ada", LastName: "li",
			ExternalIDs: map[string]string{"linkedin": "li-9", "github": "gh-1"}},
		// same name, different profile
		&models.Candidate{ID: "c3", FirstName: "Ada", LastName: "Li",
			ExternalIDs: map[string]string{"linkedin": "li-42"}},
	)

	set, err := d.FindDuplicates(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, map[string]Signal{"c2": SignalNameExternalID}, signals(set))
}

func TestFindDuplicates_UnionKeepsFirstSignal(t *testing.T) {
	// c2 matches on email and phone; it must appear once, attributed to the
	// higher-priority email signal
	d, _ := newPopulatedDetector(
		&models.Candidate{ID: "c1", FirstName: "Ada", LastName: "Li", Email: "a@x.com", Phone: "4155550101"},
		&models.Candidate{ID: "c2", FirstName: "Ada", LastName: "Li", Email: "a@x.com", Phone: "4155550101"},
	)

	set, err := d.FindDuplicates(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, set.Matches, 1)
	assert.Equal(t, map[string]Signal{"c2": SignalEmail}, signals(set))
}

func TestFindDuplicates_FlaggedRecordsAreInvisible(t *testing.T) {
	d, _ := newPopulatedDetector(
		&models.Candidate{ID: "c1", FirstName: "Ada", LastName: "Li", Email: "a@x.com"},
		&models.Candidate{ID: "c2", FirstName: "Ada", LastName: "Li", Email: "a@x.com",
			IsDuplicate: true, DuplicateOf: "c1"},
	)
	ctx := context.Background()

	set, err := d.FindDuplicates(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, set.Empty(), "flagged records must never match again")

	flagged, err := d.FindDuplicates(ctx, "c2")
	require.NoError(t, err)
	assert.True(t, flagged.Empty(), "flagged records must not seed new sets")
}

func TestMerge_FillsMissingFieldsFirstWins(t *testing.T) {
	d, store := newPopulatedDetector(
		&models.Candidate{ID: "c1", FirstName: "Ada", LastName: "Li", Email: "a@x.com"},
		&models.Candidate{ID: "c2", FirstName: "Ada", LastName: "Li", Email: "a@x.com",
			Phone: "4155550101", ExternalIDs: map[string]string{"linkedin": "li-9"}},
		&models.Candidate{ID: "c3", FirstName: "Ada", LastName: "Li", Email: "a@x.com",
			Phone: "2125550000", Title: "Staff Engineer"},
	)
	ctx := context.Background()

	set, err := d.FindDuplicates(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, set.Matches, 2)
	require.NoError(t, d.Merge(ctx, set))

	primary, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "4155550101", primary.Phone, "first duplicate holding the field wins")
	assert.Equal(t, "Staff Engineer", primary.Title)
	assert.Equal(t, "li-9", primary.ExternalIDs["linkedin"])
	assert.False(t, primary.IsDuplicate)

	for _, id := range []string{"c2", "c3"} {
		dup, err := store.Get(ctx, id)
		require.NoError(t, err, "merged records are flagged, never deleted")
		assert.True(t, dup.IsDuplicate)
		assert.Equal(t, "c1", dup.DuplicateOf)
	}
}

func TestMerge_IsIdempotent(t *testing.T) {
	d, store := newPopulatedDetector(
		&models.Candidate{ID: "c1", FirstName: "Ada", LastName: "Li", Email: "a@x.com"},
		&models.Candidate{ID: "c2", FirstName: "Ada", LastName: "Li", Email: "a@x.com", Phone: "4155550101"},
	)
	ctx := context.Background()

	set, err := d.FindDuplicates(ctx, "c1")
	require.NoError(t, err)
	require.NoError(t, d.Merge(ctx, set))

	after, err := store.List(ctx)
	require.NoError(t, err)

	// Replaying detection plus merge must change nothing
	replay, err := d.FindDuplicates(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, replay.Empty())
	require.NoError(t, d.Merge(ctx, set))

	again, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, after, again)
}

func TestSweep_GroupsByNormalizedEmail(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	d, _ := newPopulatedDetector(
		&models.Candidate{ID: "c1", Email: "a@x.com", CreatedAt: base.Add(time.Hour)},
		&models.Candidate{ID: "c2", Email: "A@X.COM", CreatedAt: base},
		&models.Candidate{ID: "c3", Email: "a@x.com", IsDuplicate: true, DuplicateOf: "c2", CreatedAt: base},
		&models.Candidate{ID: "c4", Email: "solo@x.com", CreatedAt: base},
		&models.Candidate{ID: "c5", CreatedAt: base},
	)

	sets, err := d.Sweep(context.Background())
	require.NoError(t, err)
	require.Len(t, sets, 1)

	assert.Equal(t, "c2", sets[0].Primary.ID, "oldest record becomes the primary")
	assert.Equal(t, []string{"c1"}, sets[0].IDs())
}

func TestProcessCreated_MergesAndCounts(t *testing.T) {
	d, store := newPopulatedDetector(
		&models.Candidate{ID: "c1", FirstName: "Ada", LastName: "Li", Email: "a@x.com"},
		&models.Candidate{ID: "c2", FirstName: "Ada", LastName: "Li", Email: "a@x.com"},
	)
	ctx := context.Background()

	flagged, err := d.ProcessCreated(ctx, []string{"c1", "missing-id"})
	require.NoError(t, err)
	assert.Equal(t, 1, flagged)

	dup, err := store.Get(ctx, "c2")
	require.NoError(t, err)
	assert.True(t, dup.IsDuplicate)

	// Replay finds nothing new
	flagged, err = d.ProcessCreated(ctx, []string{"c1"})
	require.NoError(t, err)
	assert.Zero(t, flagged)
}
