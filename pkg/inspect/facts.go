package inspect

import (
	"context"
	"fmt"
	"sync"

	"github.com/cgast/idemverify/pkg/resource"
)

// FactSource provides attributes recorded by the convergence run for a ref.
type FactSource interface {
	Facts(ctx context.Context, ref resource.Ref) (resource.Attributes, bool, error)
}

// FactsResolver resolves refs from recorded facts instead of the live host.
type FactsResolver struct {
	Source FactSource
}

func (r FactsResolver) ResolveCurrentState(ctx context.Context, ref resource.Ref) (resource.Attributes, error) {
	attrs, ok, err := r.Source.Facts(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("read facts for %s: %w", ref.Key(), err)
	}
	if !ok {
		return nil, fmt.Errorf("%s does not exist in recorded facts", ref)
	}
	return attrs, nil
}

// MapFacts is an in-memory FactSource keyed by ref.Key().
type MapFacts struct {
	mu    sync.RWMutex
	facts map[string]resource.Attributes
}

// NewMapFacts creates an empty in-memory fact source.
func NewMapFacts() *MapFacts {
	return &MapFacts{facts: make(map[string]resource.Attributes)}
}

// Put records the attributes of ref, replacing earlier facts. The map is
// copied.
func (m *MapFacts) Put(ref resource.Ref, attrs resource.Attributes) {
	cp := make(resource.Attributes, len(attrs))
	for k, v := range attrs {
		cp[k] = v
	}
	m.mu.Lock()
	m.facts[ref.Key()] = cp
	m.mu.Unlock()
}

func (m *MapFacts) Facts(_ context.Context, ref resource.Ref) (resource.Attributes, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	attrs, ok := m.facts[ref.Key()]
	if !ok {
		return nil, false, nil
	}
	cp := make(resource.Attributes, len(attrs))
	for k, v := range attrs {
		cp[k] = v
	}
	return cp, true, nil
}

// Len returns the number of recorded resources.
func (m *MapFacts) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.facts)
}
