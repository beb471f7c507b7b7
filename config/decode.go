package config

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Decode fills dst, a pointer to a struct with json tags, from constructor
// kwargs. Keys without a matching field fail, so a misspelled override is
// reported instead of silently ignored. Value nodes among the kwargs decode
// as objects.
func Decode(kwargs map[string]any, dst any) error {
	data, err := json.Marshal(plain(kwargs))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}

// Decode fills dst from n's entries, as the package-level Decode does for
// kwargs.
func (n *Node) Decode(dst any) error {
	return Decode(plain(n).(map[string]any), dst)
}

// plain converts value nodes to maps so they marshal as JSON objects.
func plain(v any) any {
	switch x := v.(type) {
	case *Node:
		out := make(map[string]any, len(x.keys))
		for _, k := range x.keys {
			out[k] = plain(x.entries[k])
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = plain(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = plain(e)
		}
		return out
	default:
		return v
	}
}
