package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Format renders the tree one entry per line, children indented by two
// spaces per level:
//
//	[fn] = scalar_printer(detach=true)
//	[args:0] = 1
//	[enable_step] = true
//	[json]
//	  [fn] = json_writer
func (n *Node) Format(indent int) string {
	pad := strings.Repeat(" ", indent)
	var b strings.Builder

	if n.fn != nil {
		b.WriteString(pad + "[fn] = " + n.name)
		if n.detach {
			b.WriteString("(detach=true)")
		}
		b.WriteByte('\n')
		for i, a := range n.args {
			fmt.Fprintf(&b, "%s[args:%d] = %v\n", pad, i, a)
		}
	}

	for _, k := range n.keys {
		b.WriteString(pad + "[" + k + "]")
		if child, ok := n.entries[k].(*Node); ok {
			b.WriteString("\n" + child.Format(indent+2))
		} else {
			fmt.Fprintf(&b, " = %v", n.entries[k])
		}
		b.WriteByte('\n')
	}

	return strings.TrimRight(b.String(), "\n")
}

func (n *Node) String() string {
	return n.Format(0)
}

// Repr renders n as a call expression, e.g.
// scalar_printer(1, enable_step=true, detach=true). Value nodes render
// without a name: (a=1, b="x").
func (n *Node) Repr() string {
	var items []string
	if n.fn != nil {
		for _, a := range n.args {
			items = append(items, repr(a))
		}
	}
	for _, k := range n.keys {
		items = append(items, k+"="+repr(n.entries[k]))
	}
	if n.fn != nil && n.detach {
		items = append(items, "detach=true")
	}
	return n.name + "(" + strings.Join(items, ", ") + ")"
}

// GoString makes %#v print the call expression.
func (n *Node) GoString() string {
	return n.Repr()
}

func repr(v any) string {
	switch x := v.(type) {
	case nil:
		return "nil"
	case string:
		return strconv.Quote(x)
	case *Node:
		return x.Repr()
	case []any:
		items := make([]string, len(x))
		for i, e := range x {
			items[i] = repr(e)
		}
		return "[" + strings.Join(items, ", ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		items := make([]string, len(keys))
		for i, k := range keys {
			items[i] = strconv.Quote(k) + ": " + repr(x[k])
		}
		return "{" + strings.Join(items, ", ") + "}"
	default:
		return fmt.Sprint(v)
	}
}
