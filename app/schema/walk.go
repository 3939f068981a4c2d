package schema

import (
	"fmt"
	"strings"
)

// Walk calls fn for t and every nested type, depth first. Returning false
// from fn skips the children of that node.
func Walk(t *Type, fn func(path string, t *Type) bool) {
	walkType("$", t, fn)
}

func walkType(path string, t *Type, fn func(string, *Type) bool) {
	if t == nil || !fn(path, t) {
		return
	}
	switch t.Kind {
	case KindObject:
		for _, p := range t.properties {
			walkType(path+"."+p.Name, p.Type, fn)
		}
	case KindList:
		walkType(path+"[*]", t.elem, fn)
	case KindRecord:
		walkType(path+".*", t.elem, fn)
	case KindOneOf:
		for _, m := range t.members {
			walkType(path, m, fn)
		}
	}
}

// Describe renders t as one line per node, for help output.
func Describe(t *Type) string {
	var b strings.Builder
	Walk(t, func(path string, n *Type) bool {
		b.WriteString(path)
		b.WriteString(": ")
		b.WriteString(string(n.Kind))
		switch n.Kind {
		case KindEnum:
			fmt.Fprintf(&b, " (%s)", strings.Join(n.values, "|"))
		case KindConst:
			fmt.Fprintf(&b, " (%v)", n.constant)
		case KindMatching:
			fmt.Fprintf(&b, " (%s)", n.pattern)
		}
		if n.Nullable {
			b.WriteString(", optional")
		}
		if n.HasDefault {
			fmt.Fprintf(&b, ", default %v", n.Default)
		}
		b.WriteByte('\n')
		return true
	})
	return b.String()
}
