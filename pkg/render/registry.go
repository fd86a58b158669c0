package render

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// ElementType renders nodes whose "#type" names it. children holds the
// already rendered children of the node.
type ElementType interface {
	Name() string
	Render(ctx context.Context, node Node, children string) (Output, error)
}

// Registry stores element types by name, providing discovery and duplication
// safeguards.
type Registry struct {
	mu    sync.RWMutex
	types map[string]ElementType
}

// NewRegistry creates an empty registry instance.
func NewRegistry() *Registry {
	return &Registry{
		types: make(map[string]ElementType),
	}
}

// DefaultRegistry returns a registry holding the built-in element types.
func DefaultRegistry() *Registry {
	registry := NewRegistry()
	registry.MustRegister(HTMLTag{})
	registry.MustRegister(Link{})
	registry.MustRegister(Container{})
	return registry
}

// Register adds an element type by its Name(). Duplicate names return an
// error.
func (r *Registry) Register(element ElementType) error {
	if element == nil {
		return fmt.Errorf("render: element type is required")
	}
	name := element.Name()
	if name == "" {
		return fmt.Errorf("render: element type name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[name]; exists {
		return fmt.Errorf("render: element type %q already registered", name)
	}

	r.types[name] = element
	return nil
}

// MustRegister panics on registration failure. Useful for init-time wiring.
func (r *Registry) MustRegister(element ElementType) {
	if err := r.Register(element); err != nil {
		panic(err)
	}
}

// Get retrieves an element type by name.
func (r *Registry) Get(name string) (ElementType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	element, ok := r.types[name]
	if !ok {
		return nil, fmt.Errorf("render: element type %q not found", name)
	}
	return element, nil
}

// List returns a sorted list of element type names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether an element type is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.types[name]
	return ok
}
