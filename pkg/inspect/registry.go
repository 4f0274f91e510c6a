package inspect

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cgast/idemverify/pkg/resource"
)

// Registry routes each kind to its own resolver, falling back to a default.
// It lets one verification pass read files from the host while taking
// interface facts from the run, for example.
type Registry struct {
	mu        sync.RWMutex
	resolvers map[resource.Kind]StateResolver
	fallback  StateResolver
}

// NewRegistry creates a registry whose unregistered kinds go to fallback.
// fallback may be nil.
func NewRegistry(fallback StateResolver) *Registry {
	return &Registry{
		resolvers: make(map[resource.Kind]StateResolver),
		fallback:  fallback,
	}
}

// Register assigns a resolver to a kind. Returns an error if the kind is
// unsupported or already has a resolver.
func (r *Registry) Register(kind resource.Kind, resolver StateResolver) error {
	if _, err := resource.Lookup(kind); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.resolvers[kind]; exists {
		return fmt.Errorf("resolver already registered for kind %s", kind)
	}
	r.resolvers[kind] = resolver
	return nil
}

// Resolve returns the resolver responsible for kind.
func (r *Registry) Resolve(kind resource.Kind) (StateResolver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if res, ok := r.resolvers[kind]; ok {
		return res, nil
	}
	if r.fallback != nil {
		return r.fallback, nil
	}
	return nil, fmt.Errorf("no resolver for kind %s", kind)
}

// Kinds returns the explicitly registered kinds, sorted.
func (r *Registry) Kinds() []resource.Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]resource.Kind, 0, len(r.resolvers))
	for k := range r.resolvers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

func (r *Registry) ResolveCurrentState(ctx context.Context, ref resource.Ref) (resource.Attributes, error) {
	res, err := r.Resolve(ref.Kind)
	if err != nil {
		return nil, err
	}
	return res.ResolveCurrentState(ctx, ref)
}
