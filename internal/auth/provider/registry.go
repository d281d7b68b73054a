package provider

import (
	"fmt"
	"log"
	"sync"

	apperrors "github.com/emberhome/ember/internal/platform/errors"
)

var (
	// ErrDuplicateProvider indicates a second registration for an already
	// taken (type, id) key. Non-fatal: the first registration wins.
	ErrDuplicateProvider = apperrors.New(apperrors.CodeDuplicateProvider, "duplicate auth provider")
	// ErrUnknownProviderType indicates configuration referenced a provider
	// type with no registered factory.
	ErrUnknownProviderType = apperrors.New(apperrors.CodeProviderLoad, "unknown auth provider type")
	// ErrConfigInvalid indicates a provider configuration entry the factory
	// rejected.
	ErrConfigInvalid = apperrors.New(apperrors.CodeConfigInvalid, "invalid auth provider configuration")
)

// Factory constructs a provider from validated configuration. A factory
// returning an error drops that provider without affecting the others.
type Factory func(store Store, config Config) (Provider, error)

// Registry maps provider type names to factories. It is an explicit
// instance owned by the composition root: providers register at startup
// with compiled-in Register calls, and the manager receives the built
// providers at construction.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register binds a provider type name to its factory. Registering the same
// type twice keeps the first factory and returns ErrDuplicateProvider.
func (r *Registry) Register(providerType string, factory Factory) error {
	if providerType == "" {
		return fmt.Errorf("provider type is required")
	}
	if factory == nil {
		return fmt.Errorf("factory is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[providerType]; ok {
		return fmt.Errorf("register %s: %w", providerType, ErrDuplicateProvider)
	}
	r.factories[providerType] = factory
	return nil
}

// factory returns the registered factory for a type, if any.
func (r *Registry) factory(providerType string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, ok := r.factories[providerType]
	return factory, ok
}

// FromConfigs builds providers from validated configuration entries,
// preserving configuration order.
//
// Failures degrade, never crash: an unknown type, a rejected configuration,
// or a duplicate (type, id) key drops that entry with a log line and leaves
// the remaining providers untouched. For duplicates the first entry wins.
func (r *Registry) FromConfigs(store Store, configs []Config, logger *log.Logger) []Provider {
	if logger == nil {
		logger = log.Default()
	}

	seen := make(map[Key]bool)
	providers := make([]Provider, 0, len(configs))
	for _, config := range configs {
		if config.Type == "" {
			logger.Printf("skipping auth provider with empty type: %v", ErrConfigInvalid)
			continue
		}

		factory, ok := r.factory(config.Type)
		if !ok {
			logger.Printf("unable to load auth provider %s: %v", config.Type, ErrUnknownProviderType)
			continue
		}

		key := config.Key()
		if seen[key] {
			logger.Printf("found duplicate provider %s/%s, add unique IDs to configure the same provider twice: %v", key.Type, key.ID, ErrDuplicateProvider)
			continue
		}

		p, err := factory(store, config)
		if err != nil {
			logger.Printf("invalid configuration for auth provider %s: %v", config.Type, err)
			continue
		}

		seen[key] = true
		providers = append(providers, p)
	}
	return providers
}

// Size returns the number of registered factories.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.factories)
}
