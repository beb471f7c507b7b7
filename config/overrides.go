package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPrefix marks command-line tokens that address the config tree.
const DefaultPrefix = "--configs."

// Configs is the experiment configuration context: one tree plus the
// registry its constructor nodes resolve against. Build it once at start-up
// and pass it to whatever needs configuration.
type Configs struct {
	Root     *Node
	Registry *Registry
	Prefix   string
}

func NewConfigs(reg *Registry) *Configs {
	if reg == nil {
		reg = NewRegistry()
	}
	return &Configs{
		Root:     New(),
		Registry: reg,
		Prefix:   DefaultPrefix,
	}
}

// ApplyArguments applies override tokens to the tree, in order. Each
// override is either one token, PREFIX.path.to.key=value, or two,
// PREFIX.path.to.key value. Overrides applied before a bad token stay
// applied.
func (c *Configs) ApplyArguments(args []string) error {
	for i := 0; i < len(args); i++ {
		tok := args[i]
		rest, ok := strings.CutPrefix(tok, c.Prefix)
		if !ok || rest == "" {
			return fmt.Errorf("%w: %s", ErrUnrecognizedArgument, tok)
		}

		path, raw, hasValue := strings.Cut(rest, "=")
		if !hasValue {
			if i+1 >= len(args) {
				return fmt.Errorf("%w: %s", ErrMissingValue, tok)
			}
			i++
			raw = args[i]
		}

		if err := c.Root.Set(path, ParseValue(raw)); err != nil {
			return fmt.Errorf("%s: %w", tok, err)
		}
	}
	return nil
}

// ParseValue converts override text to a value. Quoted text becomes the
// string between the quotes. Otherwise the text is read as a literal:
// numbers, booleans (true/True), null/None, flow lists and maps, and
// parenthesized tuples, which become lists. Anything else is kept as the
// raw string.
func ParseValue(s string) any {
	t := strings.TrimSpace(s)
	if len(t) >= 2 {
		if q := t[0]; (q == '"' || q == '\'') && t[len(t)-1] == q {
			return t[1 : len(t)-1]
		}
	}

	switch t {
	case "None":
		return nil
	case "True":
		return true
	case "False":
		return false
	case "":
		return s
	}

	if t[0] == '(' && t[len(t)-1] == ')' {
		return parseTuple(s, t[1:len(t)-1])
	}

	var v any
	if err := yaml.Unmarshal([]byte(t), &v); err != nil {
		return s
	}

	switch x := v.(type) {
	case nil:
		if t == "null" || t == "~" || t == "Null" || t == "NULL" {
			return nil
		}
		return s
	case []any, map[string]any:
		if t[0] != '[' && t[0] != '{' {
			return s
		}
		return normalize(x)
	case time.Time:
		return s
	case int:
		return x
	case float64:
		if math.IsInf(x, 0) || math.IsNaN(x) {
			return s
		}
		return x
	default:
		return normalize(x)
	}
}

// parseTuple reads the inside of a parenthesized literal. With a comma it is
// a list, as "(1, 2)", "(1,)" and "()" are; without one the parentheses
// only group, so "(5)" is 5. Anything unreadable keeps the raw text s.
func parseTuple(s, inner string) any {
	inner = strings.TrimSpace(inner)
	if inner != "" && !hasTopLevelComma(inner) {
		if v := ParseValue(inner); v != any(inner) {
			return v
		}
		return s
	}

	var list []any
	body := strings.TrimSuffix(inner, ",")
	if err := yaml.Unmarshal([]byte("["+body+"]"), &list); err != nil {
		return s
	}
	if list == nil {
		list = []any{}
	}
	return normalize(list)
}

func hasTopLevelComma(s string) bool {
	depth := 0
	var quote rune
	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '[' || r == '{' || r == '(':
			depth++
		case r == ']' || r == '}' || r == ')':
			depth--
		case r == ',' && depth == 0:
			return true
		}
	}
	return false
}

// normalize converts decoded YAML into the value types a tree holds.
func normalize(v any) any {
	switch x := v.(type) {
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalize(e)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[fmt.Sprint(k)] = normalize(e)
		}
		return out
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return v
	}
}
