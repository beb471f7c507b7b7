package config

import (
	"fmt"
	"slices"
	"sync"
)

// Func builds a value from positional and keyword arguments. Arguments have
// already been resolved: nested constructor nodes are replaced by their
// results, detached nodes arrive as *Node.
type Func func(args []any, kwargs map[string]any) (any, error)

// Registry maps constructor names to Funcs. Config trees store names, never
// function values, so a tree can be loaded from files and printed. Safe for
// concurrent use.
type Registry struct {
	funcs map[string]Func
	mu    sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

// Register adds a constructor. Returns ErrAlreadyExists for a duplicate
// name; use Replace to swap an existing one.
func (r *Registry) Register(name string, fn Func) error {
	if name == "" {
		return ErrEmptyName
	}
	if fn == nil {
		return fmt.Errorf("%w: %s is nil", ErrNotCallable, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.funcs[name]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, name)
	}
	r.funcs[name] = fn
	return nil
}

// Replace swaps the constructor registered under name. Returns
// ErrNotCallable if name is not registered.
func (r *Registry) Replace(name string, fn Func) error {
	if fn == nil {
		return fmt.Errorf("%w: %s is nil", ErrNotCallable, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.funcs[name]; !exists {
		return fmt.Errorf("%w: %s", ErrNotCallable, name)
	}
	r.funcs[name] = fn
	return nil
}

// Lookup returns the constructor registered under name.
func (r *Registry) Lookup(name string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.funcs[name]
	return fn, ok
}

// Names returns the registered constructor names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
