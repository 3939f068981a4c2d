package query

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var placeholder = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

func lookup(vars Variables, key string) (string, error) {
	v, ok := vars[key]
	if !ok || v == nil {
		return "", fmt.Errorf("template references unset variable %q", key)
	}
	if l, ok := v.([]string); ok {
		return strings.Join(l, ","), nil
	}
	s, ok := scalarString(v)
	if !ok {
		return "", fmt.Errorf("variable %q is not a scalar", key)
	}
	return s, nil
}

func escapePath(s string) string {
	parts := strings.Split(s, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// expandURL fills {key} placeholders, escaping values for the part of the
// URL they land in.
func expandURL(tmpl string, vars Variables) (string, error) {
	query := strings.IndexByte(tmpl, '?')
	var b strings.Builder
	last := 0
	for _, m := range placeholder.FindAllStringSubmatchIndex(tmpl, -1) {
		s, err := lookup(vars, tmpl[m[2]:m[3]])
		if err != nil {
			return "", err
		}
		b.WriteString(tmpl[last:m[0]])
		if query >= 0 && m[0] > query {
			b.WriteString(url.QueryEscape(s))
		} else {
			b.WriteString(escapePath(s))
		}
		last = m[1]
	}
	b.WriteString(tmpl[last:])
	return b.String(), nil
}

func expandString(tmpl string, vars Variables) (string, error) {
	var err error
	out := placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		s, lerr := lookup(vars, m[1:len(m)-1])
		if lerr != nil && err == nil {
			err = lerr
		}
		return s
	})
	return out, err
}

// expandBody walks a body template. A string that is exactly one
// placeholder is replaced by the raw variable so numbers and lists keep
// their type.
func expandBody(v any, vars Variables) (any, error) {
	switch t := v.(type) {
	case string:
		if m := placeholder.FindStringSubmatch(t); m != nil && m[0] == t {
			val, ok := vars[m[1]]
			if !ok {
				return nil, fmt.Errorf("template references unset variable %q", m[1])
			}
			return val, nil
		}
		return expandString(t, vars)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			e, err := expandBody(item, vars)
			if err != nil {
				return nil, err
			}
			out[k] = e
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			e, err := expandBody(item, vars)
			if err != nil {
				return nil, err
			}
			out[i] = e
		}
		return out, nil
	}
	return v, nil
}
