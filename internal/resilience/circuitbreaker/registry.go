package circuitbreaker

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Registry owns the named circuits of a service. It is constructed once at
// the composition root and handed to whatever needs to protect a call, which
// keeps "one breaker per logical dependency" without hidden global state.
type Registry struct {
	store  StateStore
	logger *slog.Logger

	mu       sync.RWMutex
	breakers map[string]*Breaker
}

// NewRegistry creates an empty registry backed by the given state store.
// Every circuit registered later shares the store, with records namespaced
// by circuit name.
func NewRegistry(store StateStore, logger *slog.Logger) *Registry {
	return &Registry{
		store:    store,
		logger:   logger,
		breakers: make(map[string]*Breaker),
	}
}

// Register creates a circuit from cfg and adds it to the registry.
// Registering the same name twice is a programming error.
func (r *Registry) Register(cfg Config) (*Breaker, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("register circuit: name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.breakers[cfg.Name]; exists {
		return nil, fmt.Errorf("register circuit: %q already registered", cfg.Name)
	}

	b := New(cfg, r.store, r.logger)
	r.breakers[cfg.Name] = b
	return b, nil
}

// Get returns the circuit registered under the given operation name.
func (r *Registry) Get(name string) (*Breaker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.breakers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCircuit, name)
	}
	return b, nil
}

// Names returns the registered circuit names in stable order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.breakers))
	for name := range r.breakers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Status returns the status of the named circuit.
func (r *Registry) Status(ctx context.Context, name string) (Status, error) {
	b, err := r.Get(name)
	if err != nil {
		return Status{}, err
	}
	return b.Status(ctx), nil
}

// StatusAll returns the status of every registered circuit, ordered by name.
func (r *Registry) StatusAll(ctx context.Context) []Status {
	names := r.Names()
	statuses := make([]Status, 0, len(names))
	for _, name := range names {
		if st, err := r.Status(ctx, name); err == nil {
			statuses = append(statuses, st)
		}
	}
	return statuses
}

// AnyOpen reports whether any registered circuit is currently open.
// Readiness probes use this to report degraded status.
func (r *Registry) AnyOpen(ctx context.Context) bool {
	for _, name := range r.Names() {
		if b, err := r.Get(name); err == nil && b.State(ctx) == StateOpen {
			return true
		}
	}
	return false
}
