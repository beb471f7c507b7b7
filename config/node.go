// Package config implements a nested, ordered configuration tree whose
// nodes may be bound to named constructors and evaluated lazily into the
// objects they describe.
//
// A tree has two kinds of node. A value node is a plain ordered mapping and
// evaluates to itself. A constructor node names a Func from a Registry and
// evaluates by calling it with its positional args and its entries as
// keyword arguments, after evaluating nested constructor nodes first:
//
//	reg := config.NewRegistry()
//	monitor.Register(reg)
//
//	printer, _ := config.NewFunc(reg, "scalar_printer")
//	printer.Set("enable_step", true)
//	m, err := printer.Evaluate(nil, nil)
//
// A detached node is handed to its parent's constructor unevaluated, so the
// callee decides when (or whether) to build it.
package config

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Node is one node of a configuration tree. Entries keep insertion order.
// Entry values are *Node, scalars (string, int, float64, bool, nil),
// []any or map[string]any.
type Node struct {
	keys    []string
	entries map[string]any

	name   string
	fn     Func
	args   []any
	detach bool
}

// Option configures a constructor node.
type Option func(*Node)

// WithArgs sets the node's stored positional arguments.
func WithArgs(args ...any) Option {
	return func(n *Node) { n.args = args }
}

// Detached marks the node to be passed to its parent's constructor
// unevaluated.
func Detached() Option {
	return func(n *Node) { n.detach = true }
}

// WithEntry adds a keyword entry. Entries are applied in option order.
func WithEntry(key string, value any) Option {
	return func(n *Node) { n.put(key, value) }
}

// New creates an empty value node.
func New() *Node {
	return &Node{entries: make(map[string]any)}
}

// NewFunc creates a constructor node bound to the Func registered under
// name. It fails with ErrNotCallable when the name is unknown, so bad
// references surface while the tree is built rather than at evaluation.
func NewFunc(reg *Registry, name string, opts ...Option) (*Node, error) {
	fn, ok := reg.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotCallable, name)
	}

	n := New()
	n.name = name
	n.fn = fn
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Must panics if err is non-nil. It is intended for trees built from
// constants at program start.
func Must(n *Node, err error) *Node {
	if err != nil {
		panic(err)
	}
	return n
}

// Name returns the constructor name, or "" for a value node.
func (n *Node) Name() string {
	return n.name
}

// IsFunc reports whether n is a constructor node.
func (n *Node) IsFunc() bool {
	return n.fn != nil
}

func (n *Node) IsDetached() bool {
	return n.detach
}

// Args returns a copy of the stored positional arguments.
func (n *Node) Args() []any {
	return slices.Clone(n.args)
}

// Keys returns entry keys in insertion order.
func (n *Node) Keys() []string {
	return slices.Clone(n.keys)
}

func (n *Node) Len() int {
	return len(n.keys)
}

// Get returns the value at a dotted path.
func (n *Node) Get(path string) (any, bool) {
	keys, err := splitPath(path)
	if err != nil {
		return nil, false
	}

	cur := n
	for _, k := range keys[:len(keys)-1] {
		child, ok := cur.entries[k].(*Node)
		if !ok {
			return nil, false
		}
		cur = child
	}
	v, ok := cur.entries[keys[len(keys)-1]]
	return v, ok
}

// Child returns the node at a dotted path.
func (n *Node) Child(path string) (*Node, bool) {
	v, ok := n.Get(path)
	if !ok {
		return nil, false
	}
	child, ok := v.(*Node)
	return child, ok
}

// Set assigns value at a dotted path, creating intermediate value nodes as
// needed. An intermediate that exists but is not a node fails with
// ErrNotANode.
func (n *Node) Set(path string, value any) error {
	keys, err := splitPath(path)
	if err != nil {
		return err
	}
	return n.SetKeys(keys, value)
}

// SetKeys is Set with a pre-split path.
func (n *Node) SetKeys(keys []string, value any) error {
	if len(keys) == 0 {
		return fmt.Errorf("%w: empty path", ErrInvalidPath)
	}

	cur := n
	for i, k := range keys[:len(keys)-1] {
		v, exists := cur.entries[k]
		if !exists {
			child := New()
			cur.put(k, child)
			cur = child
			continue
		}
		child, ok := v.(*Node)
		if !ok {
			return fmt.Errorf("%w: %s is %T", ErrNotANode, strings.Join(keys[:i+1], "."), v)
		}
		cur = child
	}

	cur.put(keys[len(keys)-1], value)
	return nil
}

// Delete removes the entry at key, reporting whether it existed.
func (n *Node) Delete(key string) bool {
	if _, ok := n.entries[key]; !ok {
		return false
	}
	delete(n.entries, key)
	n.keys = slices.DeleteFunc(n.keys, func(k string) bool { return k == key })
	return true
}

// Clone deep-copies n: child nodes and containers are copied, scalars shared.
func (n *Node) Clone() *Node {
	c := &Node{
		keys:    slices.Clone(n.keys),
		entries: make(map[string]any, len(n.entries)),
		name:    n.name,
		fn:      n.fn,
		args:    make([]any, len(n.args)),
		detach:  n.detach,
	}
	if n.args == nil {
		c.args = nil
	}
	for i, a := range n.args {
		c.args[i] = cloneValue(a)
	}
	for k, v := range n.entries {
		c.entries[k] = cloneValue(v)
	}
	return c
}

func (n *Node) put(key string, value any) {
	if _, exists := n.entries[key]; !exists {
		n.keys = append(n.keys, key)
	}
	n.entries[key] = value
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case *Node:
		return x.Clone()
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = cloneValue(e)
		}
		return out
	case map[string]any:
		out := maps.Clone(x)
		for k, e := range out {
			out[k] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

func splitPath(path string) ([]string, error) {
	keys := strings.Split(path, ".")
	for _, k := range keys {
		if k == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return keys, nil
}
