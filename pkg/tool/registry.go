package tool

import (
	"fmt"
	"sync"

	"alphaagent/pkg/types"
)

// ToolFactory builds a tool for a name that was not registered up front.
type ToolFactory func(name string) (Tool, error)

// Registry holds the static tool catalog in registration order.
// An optional fallback factory serves names outside the catalog.
type Registry struct {
	mu       sync.RWMutex
	order    []string
	tools    map[string]Tool
	fallback ToolFactory
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool to the catalog. Re-registering a name replaces it in place.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name()]; !exists {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
}

// SetFallback installs the factory used by Resolve for unknown names.
func (r *Registry) SetFallback(factory ToolFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = factory
}

// Get returns a registered tool by exact name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Resolve returns the registered tool, or one built by the fallback factory.
func (r *Registry) Resolve(name string) (Tool, error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	fallback := r.fallback
	r.mu.RUnlock()

	if ok {
		return t, nil
	}
	if fallback != nil {
		return fallback(name)
	}
	return nil, &ToolNotFoundError{Name: name}
}

// List returns the catalog in registration order.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		list = append(list, r.tools[name])
	}
	return list
}

// Declarations returns the catalog as model-facing declarations.
func (r *Registry) Declarations() []types.FunctionDeclaration {
	return ToDeclarations(r.List())
}

// ToolNotFoundError indicates a requested tool is missing.
type ToolNotFoundError struct {
	Name string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("tool not found: %s", e.Name)
}
