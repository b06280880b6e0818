package registry

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/talentsync/talentsync/pkg/config"
	"github.com/talentsync/talentsync/pkg/connector/core"
	"github.com/talentsync/talentsync/pkg/errors"
	"github.com/talentsync/talentsync/pkg/logger"
)

// Factory creates a configured adapter for one source.
type Factory func(cfg *config.SourceConfig) (core.Adapter, error)

// Registry maps adapter kinds to factories. Adapter packages register
// themselves in init; the engine only ever sees the Adapter interface.
type Registry struct {
	factories map[core.Kind]Factory
	mu        sync.RWMutex
	logger    *zap.Logger
}

// Global registry instance
var globalRegistry = NewRegistry()

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[core.Kind]Factory),
		logger:    logger.Get().With(zap.String("component", "adapter_registry")),
	}
}

// Register adds a factory for an adapter kind.
func (r *Registry) Register(kind core.Kind, factory Factory) error {
	if !kind.Valid() {
		return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("unknown adapter kind %q", kind))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[kind]; exists {
		return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("adapter kind %q already registered", kind))
	}

	r.factories[kind] = factory
	r.logger.Info("adapter registered", zap.String("kind", string(kind)))
	return nil
}

// Create builds an adapter for the source configuration, selecting the
// factory by the source's kind.
func (r *Registry) Create(cfg *config.SourceConfig) (core.Adapter, error) {
	kind := core.Kind(cfg.Kind)

	r.mu.RLock()
	factory, exists := r.factories[kind]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.New(errors.ErrorTypeOrchestration,
			fmt.Sprintf("no adapter registered for kind %q (source %s)", cfg.Kind, cfg.Name))
	}

	adapter, err := factory(cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig,
			fmt.Sprintf("failed to create %s adapter for source %s", cfg.Kind, cfg.Name))
	}

	return adapter, nil
}

// Kinds returns the registered adapter kinds, sorted.
func (r *Registry) Kinds() []core.Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]core.Kind, 0, len(r.factories))
	for kind := range r.factories {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Has checks whether a kind is registered.
func (r *Registry) Has(kind core.Kind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.factories[kind]
	return exists
}

// Clear removes all registered factories (mainly for testing).
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories = make(map[core.Kind]Factory)
}

// Global registry functions

// Register adds a factory to the global registry.
func Register(kind core.Kind, factory Factory) error {
	return globalRegistry.Register(kind, factory)
}

// MustRegister adds a factory to the global registry and panics on
// conflict. Adapter packages call this from init.
func MustRegister(kind core.Kind, factory Factory) {
	if err := globalRegistry.Register(kind, factory); err != nil {
		panic(err)
	}
}

// Create builds an adapter from the global registry.
func Create(cfg *config.SourceConfig) (core.Adapter, error) {
	return globalRegistry.Create(cfg)
}

// Kinds returns registered kinds from the global registry.
func Kinds() []core.Kind {
	return globalRegistry.Kinds()
}

// Has checks the global registry for a kind.
func Has(kind core.Kind) bool {
	return globalRegistry.Has(kind)
}

// GetRegistry returns the global registry instance.
func GetRegistry() *Registry {
	return globalRegistry
}
