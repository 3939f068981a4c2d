package schema

import "strings"

// ValidationError reports a value that does not satisfy a schema. Path
// locates the offending value, e.g. $.service_config.auth.type.
type ValidationError struct {
	Entity   string
	Path     string
	Message  string
	Children []*ValidationError
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	if e.Entity != "" {
		b.WriteString(e.Entity)
		b.WriteString(": ")
	}
	b.WriteString(e.Path)
	b.WriteByte(' ')
	b.WriteString(e.Message)
	if len(e.Children) > 0 {
		b.WriteString(" (")
		for i, c := range e.Children {
			if i > 0 {
				b.WriteString("; ")
			}
			b.WriteString(c.Path)
			b.WriteByte(' ')
			b.WriteString(c.Message)
		}
		b.WriteByte(')')
	}
	return b.String()
}
