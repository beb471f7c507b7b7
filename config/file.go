package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Reserved mapping keys in config files.
const (
	keyFunc   = "_fn"
	keyArgs   = "_args"
	keyDetach = "_detach"
)

// LoadFile merges a YAML document into the tree. Mappings become nodes;
// a mapping with an _fn key becomes a constructor node bound to that
// registered name, with optional _args (a sequence) and _detach (a bool).
// A plain mapping merges into an existing child node of the same key, so a
// file can adjust one field of a default tree without restating the rest.
func (c *Configs) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidFile, path, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidFile, path, err)
	}
	if len(doc.Content) == 0 {
		return nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: %s: top level must be a mapping", ErrInvalidFile, path)
	}
	if err := c.mergeMapping(c.Root, root); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func (c *Configs) mergeMapping(dst *Node, m *yaml.Node) error {
	for i := 0; i+1 < len(m.Content); i += 2 {
		key, val := m.Content[i].Value, m.Content[i+1]
		switch key {
		case keyFunc, keyArgs:
			return fmt.Errorf("%w: line %d: %s not allowed here", ErrInvalidFile, m.Content[i].Line, key)
		case keyDetach:
			continue
		}

		if val.Kind == yaml.MappingNode && !hasKey(val, keyFunc) {
			if hasKey(val, keyArgs) {
				return fmt.Errorf("%w: line %d: %s", ErrArgsWithoutFunc, val.Line, key)
			}
			child, ok := dst.entries[key].(*Node)
			if !ok {
				child = New()
				dst.put(key, child)
			}
			if err := c.mergeMapping(child, val); err != nil {
				return err
			}
			if d, ok := lookup(val, keyDetach); ok {
				if err := d.Decode(&child.detach); err != nil {
					return fmt.Errorf("%w: line %d: %v", ErrInvalidFile, d.Line, err)
				}
			}
			continue
		}

		v, err := c.convert(val)
		if err != nil {
			return err
		}
		dst.put(key, v)
	}
	return nil
}

func (c *Configs) convert(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.AliasNode:
		return c.convert(n.Alias)
	case yaml.SequenceNode:
		out := make([]any, len(n.Content))
		for i, e := range n.Content {
			v, err := c.convert(e)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case yaml.MappingNode:
		if hasKey(n, keyFunc) {
			return c.funcNode(n)
		}
		if hasKey(n, keyArgs) {
			return nil, fmt.Errorf("%w: line %d", ErrArgsWithoutFunc, n.Line)
		}
		node := New()
		if err := c.mergeMapping(node, n); err != nil {
			return nil, err
		}
		if d, ok := lookup(n, keyDetach); ok {
			if err := d.Decode(&node.detach); err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidFile, d.Line, err)
			}
		}
		return node, nil
	default:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidFile, n.Line, err)
		}
		return normalize(v), nil
	}
}

func (c *Configs) funcNode(m *yaml.Node) (*Node, error) {
	fnVal, _ := lookup(m, keyFunc)
	var opts []Option

	if a, ok := lookup(m, keyArgs); ok {
		if a.Kind != yaml.SequenceNode {
			return nil, fmt.Errorf("%w: line %d: %s must be a sequence", ErrInvalidFile, a.Line, keyArgs)
		}
		args, err := c.convert(a)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithArgs(args.([]any)...))
	}

	if d, ok := lookup(m, keyDetach); ok {
		var detach bool
		if err := d.Decode(&detach); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidFile, d.Line, err)
		}
		if detach {
			opts = append(opts, Detached())
		}
	}

	node, err := NewFunc(c.Registry, fnVal.Value, opts...)
	if err != nil {
		return nil, fmt.Errorf("line %d: %w", fnVal.Line, err)
	}

	for i := 0; i+1 < len(m.Content); i += 2 {
		key := m.Content[i].Value
		if key == keyFunc || key == keyArgs || key == keyDetach {
			continue
		}
		v, err := c.convert(m.Content[i+1])
		if err != nil {
			return nil, err
		}
		node.put(key, v)
	}
	return node, nil
}

func lookup(m *yaml.Node, key string) (*yaml.Node, bool) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1], true
		}
	}
	return nil, false
}

func hasKey(m *yaml.Node, key string) bool {
	_, ok := lookup(m, key)
	return ok
}
