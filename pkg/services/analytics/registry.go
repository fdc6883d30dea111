package analytics

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/de-tools/analytics-bridge/pkg/models/domain"
)

// Factory creates a Driver from its merged options
type Factory func(ctx context.Context, opts Options) (Driver, error)

// Registry manages driver factories
type Registry interface {
	// Register adds a new driver factory
	Register(name string, factory Factory) error
	// Create instantiates the driver registered under name using the provided options
	Create(ctx context.Context, name string, opts Options) (Driver, error)
	// ListDrivers returns the registered driver names
	ListDrivers() []string
}

type registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a new driver registry
func NewRegistry() Registry {
	return &registry{
		factories: make(map[string]Factory),
	}
}

func (r *registry) Register(name string, factory Factory) error {
	if name == "" {
		return fmt.Errorf("driver name cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("factory cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("driver %q is already registered", name)
	}

	r.factories[name] = factory
	return nil
}

func (r *registry) Create(ctx context.Context, name string, opts Options) (Driver, error) {
	r.mu.RLock()
	factory, exists := r.factories[name]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: driver %q is not registered", domain.ErrUnknownDriver, name)
	}

	driver, err := factory(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create driver %q: %w", name, err)
	}
	return driver, nil
}

func (r *registry) ListDrivers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
