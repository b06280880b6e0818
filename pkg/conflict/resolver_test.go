package conflict

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentsync/talentsync/pkg/state"
)

func ts(day int) *time.Time {
	t := time.Date(2025, 6, day, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestDecide_FixedStrategies(t *testing.T) {
	c := Conflict{
		EntityType: "candidate",
		EntityID:   "c1",
		Local:      map[string]string{"title": "Engineer"},
		Remote:     map[string]string{"title": "Director"},
	}

	d, err := Decide(c, SourceWins)
	require.NoError(t, err)
	assert.Equal(t, ResolutionRemote, d.Resolution)
	assert.Equal(t, c.Remote, d.Winner())

	d, err = Decide(c, TargetWins)
	require.NoError(t, err)
	assert.Equal(t, ResolutionLocal, d.Resolution)
	assert.Equal(t, c.Local, d.Winner())
}

func TestDecide_NewestWins(t *testing.T) {
	tests := []struct {
		name     string
		localTS  *time.Time
		remoteTS *time.Time
		want     Resolution
	}{
		{"local older", ts(1), ts(2), ResolutionRemote},
		{"local newer", ts(3), ts(2), ResolutionLocal},
		{"both missing", nil, nil, ResolutionRemote},
		{"local missing", nil, ts(2), ResolutionRemote},
		{"remote missing", ts(3), nil, ResolutionRemote},
		{"equal", ts(2), ts(2), ResolutionRemote},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Decide(Conflict{
				EntityType: "candidate", EntityID: "c1",
				Local: "l", Remote: "r",
				LocalTS: tt.localTS, RemoteTS: tt.remoteTS,
			}, NewestWins)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Resolution)
		})
	}
}

func TestDecide_ManualNeedsResolution(t *testing.T) {
	d, err := Decide(Conflict{
		EntityType: "candidate", EntityID: "c1",
		Local: "l", Remote: "r",
	}, Manual)
	require.NoError(t, err)

	assert.True(t, d.NeedsResolution)
	assert.Equal(t, ResolutionManual, d.Resolution)
	assert.Nil(t, d.Winner(), "manual conflicts carry no winner")
	assert.Equal(t, "l", d.Local)
	assert.Equal(t, "r", d.Remote)
}

func TestDecide_UnknownStrategy(t *testing.T) {
	_, err := Decide(Conflict{EntityType: "candidate", EntityID: "c1"}, Strategy("coinflip"))
	require.Error(t, err)
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy(" Newest_Wins ")
	require.NoError(t, err)
	assert.Equal(t, NewestWins, s)

	_, err = ParseStrategy("coinflip")
	require.Error(t, err)
}

func TestResolver_ManualPersistsWithOverwrite(t *testing.T) {
	store := state.NewMemoryStore()
	defer store.Close()
	r := NewResolver(store, time.Hour)
	ctx := context.Background()

	_, err := r.Resolve(ctx, Conflict{
		EntityType: "candidate", EntityID: "c1",
		Local: "first-local", Remote: "first-remote",
	}, Manual)
	require.NoError(t, err)

	// A repeated conflict for the same entity replaces the queued one
	_, err = r.Resolve(ctx, Conflict{
		EntityType: "candidate", EntityID: "c1",
		Local: "second-local", Remote: "second-remote",
	}, Manual)
	require.NoError(t, err)

	pending, err := r.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "c1", pending[0].EntityID)
	assert.Equal(t, "second-remote", pending[0].Remote)
	assert.True(t, pending[0].NeedsResolution)
}

func TestResolver_AutomaticStrategiesDoNotPersist(t *testing.T) {
	store := state.NewMemoryStore()
	defer store.Close()
	r := NewResolver(store, time.Hour)
	ctx := context.Background()

	_, err := r.Resolve(ctx, Conflict{
		EntityType: "candidate", EntityID: "c1",
		Local: "l", Remote: "r",
	}, SourceWins)
	require.NoError(t, err)

	pending, err := r.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestResolver_Discard(t *testing.T) {
	store := state.NewMemoryStore()
	defer store.Close()
	r := NewResolver(store, time.Hour)
	ctx := context.Background()

	_, err := r.Resolve(ctx, Conflict{
		EntityType: "candidate", EntityID: "c1", Local: "l", Remote: "r",
	}, Manual)
	require.NoError(t, err)
	_, err = r.Resolve(ctx, Conflict{
		EntityType: "job", EntityID: "j1", Local: "l", Remote: "r",
	}, Manual)
	require.NoError(t, err)

	require.NoError(t, r.Discard(ctx, "candidate", "c1"))

	pending, err := r.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "j1", pending[0].EntityID)
}
