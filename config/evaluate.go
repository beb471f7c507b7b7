package config

import (
	"fmt"
	"maps"
)

// Evaluate builds the value n describes.
//
// A value node returns itself. A constructor node calls its Func with:
//   - args if non-empty, otherwise the stored positional args
//   - kwargs, plus every stored entry whose key kwargs does not already hold
//
// Before the call, arguments are resolved depth-first: slices and maps are
// copied element by element, nested constructor nodes are replaced by their
// results, nested value nodes by copies with resolved entries, and detached
// nodes are passed through untouched. The stored tree is never modified, so
// evaluating the same tree twice gives structurally equal results.
func (n *Node) Evaluate(args []any, kwargs map[string]any) (any, error) {
	if n.fn == nil {
		return n, nil
	}

	callArgs := args
	if len(callArgs) == 0 {
		callArgs = n.args
	}

	callKwargs := make(map[string]any, len(kwargs)+len(n.keys))
	maps.Copy(callKwargs, kwargs)
	for _, k := range n.keys {
		if _, ok := callKwargs[k]; !ok {
			callKwargs[k] = n.entries[k]
		}
	}

	resolvedArgs := make([]any, len(callArgs))
	for i, a := range callArgs {
		v, err := resolve(a)
		if err != nil {
			return nil, fmt.Errorf("%s arg %d: %w", n.name, i, err)
		}
		resolvedArgs[i] = v
	}

	resolvedKwargs := make(map[string]any, len(callKwargs))
	for k, a := range callKwargs {
		v, err := resolve(a)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", n.name, k, err)
		}
		resolvedKwargs[k] = v
	}

	out, err := n.fn(resolvedArgs, resolvedKwargs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", n.name, err)
	}
	return out, nil
}

func resolve(v any) (any, error) {
	switch x := v.(type) {
	case *Node:
		if x.detach {
			return x, nil
		}
		if x.fn != nil {
			return x.Evaluate(nil, nil)
		}
		return x.resolved()
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			r, err := resolve(e)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			r, err := resolve(e)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	default:
		return v, nil
	}
}

// resolved copies a value node with each entry resolved.
func (n *Node) resolved() (*Node, error) {
	out := New()
	for _, k := range n.keys {
		v, err := resolve(n.entries[k])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out.put(k, v)
	}
	return out, nil
}
