package tools

import (
	"sync"

	"github.com/pkg/errors"
)

var ErrToolExists = errors.New("tool already registered")

// Registry is an ordered set of capabilities keyed by unique name.
// It is populated once at startup and only read afterwards.
type Registry struct {
	mu         sync.RWMutex
	order      []string
	tools      map[string]ToolDefinition
	completion string
}

func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]ToolDefinition),
	}
}

// Register adds a capability. Names must be unique and at most one completion
// capability may be registered.
func (r *Registry) Register(def ToolDefinition) error {
	if def.Name == "" {
		return errors.New("tool name cannot be empty")
	}
	if def.Function == nil {
		return errors.Errorf("tool %s has no function", def.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[def.Name]; exists {
		return errors.Wrapf(ErrToolExists, "tool %s", def.Name)
	}
	if def.Completion && r.completion != "" {
		return errors.Errorf("completion tool already registered as %s", r.completion)
	}
	r.tools[def.Name] = def
	r.order = append(r.order, def.Name)
	if def.Completion {
		r.completion = def.Name
	}
	return nil
}

func (r *Registry) MustRegister(defs ...ToolDefinition) {
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			panic(err)
		}
	}
}

// Lookup returns a copy of the named definition.
func (r *Registry) Lookup(name string) (ToolDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.tools[name]
	return def, ok
}

// List returns the definitions in registration order.
func (r *Registry) List() []ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Completion returns the reserved completion capability, if one is registered.
func (r *Registry) Completion() (ToolDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.completion == "" {
		return ToolDefinition{}, false
	}
	return r.tools[r.completion], true
}

// IsCompletion reports whether name is the reserved completion capability.
func (r *Registry) IsCompletion(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.completion != "" && r.completion == name
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
