package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentsync/talentsync/pkg/config"
	"github.com/talentsync/talentsync/pkg/connector/core"
	"github.com/talentsync/talentsync/pkg/errors"
	"github.com/talentsync/talentsync/pkg/models"
)

type stubAdapter struct {
	name string
	kind core.Kind
}

func (s *stubAdapter) Kind() core.Kind { return s.kind }
func (s *stubAdapter) Name() string    { return s.name }

func (s *stubAdapter) Connect(ctx context.Context) error    { return nil }
func (s *stubAdapter) Disconnect(ctx context.Context) error { return nil }

func (s *stubAdapter) TestConnection(ctx context.Context) (bool, string) { return true, "" }

func (s *stubAdapter) SyncJobs(ctx context.Context, req core.SyncRequest) (*models.SyncResult, error) {
	return models.NewSyncResult(), nil
}

func (s *stubAdapter) SyncCandidates(ctx context.Context, req core.SyncRequest) (*models.SyncResult, error) {
	return models.NewSyncResult(), nil
}

func (s *stubAdapter) WebhookHandler() core.WebhookHandler { return nil }

func stubFactory(kind core.Kind) Factory {
	return func(cfg *config.SourceConfig) (core.Adapter, error) {
		return &stubAdapter{name: cfg.Name, kind: kind}, nil
	}
}

func TestRegistry_RegisterAndCreate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(core.KindCRM, stubFactory(core.KindCRM)))

	cfg := config.NewSourceConfig("crm-a", "crm")
	adapter, err := r.Create(cfg)
	require.NoError(t, err)
	assert.Equal(t, "crm-a", adapter.Name())
	assert.Equal(t, core.KindCRM, adapter.Kind())
}

func TestRegistry_CreateUnknownKind(t *testing.T) {
	r := NewRegistry()

	cfg := config.NewSourceConfig("hr-main", "hris")
	_, err := r.Create(cfg)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeOrchestration))
	assert.Contains(t, err.Error(), "hris")
	assert.Contains(t, err.Error(), "hr-main")
}

func TestRegistry_RejectsInvalidKind(t *testing.T) {
	r := NewRegistry()
	err := r.Register(core.Kind("mainframe"), stubFactory("mainframe"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestRegistry_DuplicateRegistration(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(core.KindCRM, stubFactory(core.KindCRM)))

	err := r.Register(core.KindCRM, stubFactory(core.KindCRM))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestRegistry_KindsSorted(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(core.KindTalentNetwork, stubFactory(core.KindTalentNetwork)))
	require.NoError(t, r.Register(core.KindCRM, stubFactory(core.KindCRM)))
	require.NoError(t, r.Register(core.KindHRIS, stubFactory(core.KindHRIS)))

	assert.Equal(t, []core.Kind{core.KindCRM, core.KindHRIS, core.KindTalentNetwork}, r.Kinds())
	assert.True(t, r.Has(core.KindCRM))
	assert.False(t, r.Has(core.KindFixture))
}

func TestRegistry_FactoryErrorWrapped(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(core.KindCRM, func(cfg *config.SourceConfig) (core.Adapter, error) {
		return nil, errors.New(errors.ErrorTypeConfig, "missing api key")
	}))

	_, err := r.Create(config.NewSourceConfig("crm-a", "crm"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "crm-a")
	assert.Contains(t, err.Error(), "missing api key")
}

func TestRegistry_Clear(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(core.KindCRM, stubFactory(core.KindCRM)))
	r.Clear()
	assert.Empty(t, r.Kinds())
}
