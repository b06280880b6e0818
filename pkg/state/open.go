package state

import (
	"context"

	"github.com/talentsync/talentsync/pkg/config"
	"github.com/talentsync/talentsync/pkg/errors"
)

// Open creates the Store selected by the configuration.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "postgres":
		return NewPostgresStore(ctx, cfg)
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown state backend %q", cfg.Backend)
	}
}
