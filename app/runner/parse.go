package runner

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"k8s.io/client-go/util/jsonpath"

	"github.com/winhowes/RemoteData/app/query"
	"github.com/winhowes/RemoteData/app/schema"
)

// find evaluates a JSONPath against data. Missing keys yield no matches.
func find(data any, path string) ([]any, error) {
	if path == "" || path == "$" {
		return []any{data}, nil
	}
	jp := jsonpath.New("path").AllowMissingKeys(true)
	if err := jp.Parse("{" + path + "}"); err != nil {
		return nil, fmt.Errorf("jsonpath %s: %w", path, err)
	}
	sets, err := jp.FindResults(data)
	if err != nil {
		return nil, nil
	}
	var out []any
	for _, set := range sets {
		for _, v := range set {
			if !v.IsValid() || !v.CanInterface() {
				continue
			}
			if (v.Kind() == reflect.Interface || v.Kind() == reflect.Map || v.Kind() == reflect.Slice) && v.IsNil() {
				out = append(out, nil)
				continue
			}
			out = append(out, v.Interface())
		}
	}
	return out, nil
}

func first(data any, path string) (any, error) {
	m, err := find(data, path)
	if err != nil || len(m) == 0 {
		return nil, err
	}
	if len(m) == 1 {
		return m[0], nil
	}
	return m, nil
}

// items selects the result items from a preprocessed response.
func items(data any, out *query.OutputSchema) ([]any, error) {
	matches, err := find(data, out.RootPath())
	if err != nil {
		return nil, err
	}
	if !out.IsCollection {
		if len(matches) == 0 {
			return []any{nil}, nil
		}
		return matches[:1], nil
	}
	if len(matches) == 1 {
		switch l := matches[0].(type) {
		case []any:
			return l, nil
		case nil:
			return []any{}, nil
		}
	}
	if matches == nil {
		return []any{}, nil
	}
	return matches, nil
}

// extract builds the typed fields of one item. Fields the item lacks get
// a nil value.
func extract(item any, fields []query.OutputField) (map[string]FieldDescriptor, error) {
	out := make(map[string]FieldDescriptor, len(fields))
	for _, f := range fields {
		var raw any
		if f.Generate != nil {
			raw = f.Generate(item)
		} else if item != nil {
			v, err := first(item, f.JSONPath())
			if err != nil {
				return nil, err
			}
			raw = v
		}
		out[f.Key] = FieldDescriptor{Name: f.DisplayName(), Type: string(f.Type), Value: coerce(f.Type, raw)}
	}
	return out, nil
}

// coerce converts a decoded JSON value to the scalar form of kind. Values
// that cannot be converted become nil.
func coerce(kind schema.Kind, v any) any {
	if v == nil {
		return nil
	}
	switch kind {
	case schema.KindInteger:
		if i, ok := schema.ToInt(v); ok {
			return int64(i)
		}
		if s, ok := v.(string); ok {
			if i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
				return i
			}
		}
		return nil
	case schema.KindNumber:
		if f, ok := schema.ToFloat(v); ok {
			return f
		}
		if s, ok := v.(string); ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				return f
			}
		}
		return nil
	case schema.KindCurrency:
		if f, ok := schema.ToFloat(v); ok {
			return f
		}
		if s, ok := v.(string); ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				return f
			}
		}
		// Amounts like "call for price" are kept as text.
		return stringify(v)
	case schema.KindBoolean:
		switch b := v.(type) {
		case bool:
			return b
		case string:
			if p, err := strconv.ParseBool(b); err == nil {
				return p
			}
		}
		return nil
	case schema.KindNull:
		return nil
	}
	s := stringify(v)
	if kind == schema.KindHTML {
		return schema.SanitizeHTML(s)
	}
	return s
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if item != nil {
				parts = append(parts, stringify(item))
			}
		}
		return strings.Join(parts, ", ")
	}
	if i, ok := schema.ToInt(v); ok {
		return strconv.Itoa(i)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
