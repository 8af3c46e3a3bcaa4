// Package processor defines the record-processing contract workers execute
// and the registry that maps record categories to processor factories.
package processor

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/willnx/autobox/config"
	"github.com/willnx/autobox/errors"
	"github.com/willnx/autobox/metric"
)

// Processor transforms raw records and persists the result to a backing
// store. A processor instance belongs to exactly one worker and is never
// shared, so implementations do not need internal locking.
//
// Process classifies its failures: invalid-classified errors mean the
// record is malformed and should be dropped, anything else means the
// processor can no longer make progress and the worker should stop.
type Processor interface {
	// Process transforms one raw record and hands it to the store.
	Process(record []byte) error

	// Flush delivers anything the processor has staged and releases
	// store resources. It is called exactly once, when the owning
	// worker ends.
	Flush() error
}

// Factory builds a fresh Processor for one worker. Factories are called
// every time a worker spawns, so each worker gets private store
// connections and staging state.
type Factory func() (Processor, error)

// Deps carries the shared dependencies category factories close over.
type Deps struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *metric.Metrics
}

// Validate checks that required dependencies are present.
func (d Deps) Validate() error {
	if d.Config == nil {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Deps", "Validate", "check config")
	}
	if d.Logger == nil {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Deps", "Validate", "check logger")
	}
	return nil
}

// Registry maps category names to processor factories. Registration
// happens once at startup; lookups happen on every worker spawn.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty processor registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under the given category name. Registering the
// same category twice is a configuration bug and fails.
func (r *Registry) Register(category string, factory Factory) error {
	if category == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "Register", "validate category name")
	}
	if factory == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "Register", "validate factory")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[category]; exists {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "Register",
			fmt.Sprintf("duplicate registration for category %s", category))
	}
	r.factories[category] = factory
	return nil
}

// New builds a fresh processor for the given category.
func (r *Registry) New(category string) (Processor, error) {
	r.mu.RLock()
	factory, exists := r.factories[category]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "New",
			fmt.Sprintf("lookup of unknown category %s", category))
	}
	return factory()
}

// Names returns the registered category names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
