package schema

import (
	"encoding/json"
	"fmt"
	"html"
	"math"
	"net"
	"net/mail"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/idna"
)

var (
	strictPolicy = bluemonday.StrictPolicy()
	ugcPolicy    = bluemonday.UGCPolicy()
)

// Validator checks values against a schema. Entity names the thing being
// validated in error messages and Root is the path prefix, "$" when empty.
type Validator struct {
	Entity string
	Root   string
}

// Validate reports whether value satisfies t.
func Validate(value any, t *Type) error { return Validator{}.Validate(value, t) }

// Check validates value against t and returns a sanitized copy with
// defaults applied.
func Check(value any, t *Type) (any, error) { return Validator{}.Check(value, t) }

// Validate reports whether value satisfies t.
func (v Validator) Validate(value any, t *Type) error {
	if _, err := v.walk(t, v.root(), value, false); err != nil {
		return err
	}
	return nil
}

// Check validates value against t and returns a sanitized copy with
// defaults applied.
func (v Validator) Check(value any, t *Type) (any, error) {
	out, err := v.walk(t, v.root(), value, true)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (v Validator) root() string {
	if v.Root == "" {
		return "$"
	}
	return v.Root
}

func (v Validator) fail(path, format string, args ...any) *ValidationError {
	return &ValidationError{Entity: v.Entity, Path: path, Message: fmt.Sprintf(format, args...)}
}

func (v Validator) walk(t *Type, path string, val any, sanitize bool) (any, *ValidationError) {
	if t == nil {
		return nil, v.fail(path, "has no schema")
	}
	if val == nil {
		switch {
		case t.HasDefault:
			return t.Default, nil
		case t.Nullable, t.Kind == KindNull, t.Kind == KindAny:
			return nil, nil
		case t.Kind != KindOneOf:
			return nil, v.fail(path, "is required")
		}
	}

	switch t.Kind {
	case KindObject:
		return v.walkObject(t, path, val, sanitize)
	case KindRecord:
		m, ok := asMap(val)
		if !ok {
			return nil, v.fail(path, "must be an object")
		}
		out := make(map[string]any, len(m))
		for k, item := range m {
			if t.key != nil {
				if _, err := v.walk(t.key, path+"."+k, k, false); err != nil {
					return nil, err
				}
			}
			res, err := v.walk(t.elem, path+"."+k, item, sanitize)
			if err != nil {
				return nil, err
			}
			out[k] = res
		}
		return out, nil
	case KindList:
		items, ok := asList(val)
		if !ok {
			return nil, v.fail(path, "must be a list")
		}
		out := make([]any, len(items))
		for i, item := range items {
			res, err := v.walk(t.elem, fmt.Sprintf("%s[%d]", path, i), item, sanitize)
			if err != nil {
				return nil, err
			}
			out[i] = res
		}
		return out, nil
	case KindOneOf:
		var children []*ValidationError
		for _, m := range t.members {
			res, err := v.walk(m, path, val, sanitize)
			if err == nil {
				return res, nil
			}
			children = append(children, err)
		}
		e := v.fail(path, "does not match any allowed type")
		e.Children = children
		return nil, e
	case KindEnum:
		s, ok := val.(string)
		if !ok || !contains(t.values, s) {
			return nil, v.fail(path, "must be one of %s", strings.Join(t.values, ", "))
		}
		return s, nil
	case KindConst:
		if !equalValues(val, t.constant) {
			return nil, v.fail(path, "must be %v", t.constant)
		}
		return val, nil
	case KindMatching:
		s, ok := val.(string)
		if !ok || !t.pattern.MatchString(s) {
			return nil, v.fail(path, "must match %s", t.pattern.String())
		}
		return s, nil
	}

	if !IsPrimitiveKind(t.Kind) {
		return nil, v.fail(path, "has unknown schema type %q", t.Kind)
	}
	if msg := checkPrimitive(t.Kind, val); msg != "" {
		return nil, v.fail(path, "%s", msg)
	}
	if !sanitize || t.SkipSanitize {
		return val, nil
	}
	return sanitizeLeaf(t.Kind, val), nil
}

func (v Validator) walkObject(t *Type, path string, val any, sanitize bool) (any, *ValidationError) {
	m, ok := asMap(val)
	if !ok {
		return nil, v.fail(path, "must be an object")
	}
	for k := range m {
		if _, known := t.Property(k); !known {
			return nil, v.fail(path+"."+k, "is not a known property")
		}
	}
	out := make(map[string]any, len(t.properties))
	for _, p := range t.properties {
		raw, present := m[p.Name]
		res, err := v.walk(p.Type, path+"."+p.Name, raw, sanitize)
		if err != nil {
			return nil, err
		}
		if res == nil && !present {
			continue
		}
		out[p.Name] = res
	}
	return out, nil
}

func checkPrimitive(k Kind, val any) string {
	switch k {
	case KindAny:
		return ""
	case KindNull:
		if val != nil {
			return "must be null"
		}
	case KindBoolean:
		if _, ok := val.(bool); !ok {
			return "must be a boolean"
		}
	case KindInteger:
		if _, ok := ToInt(val); !ok {
			return "must be an integer"
		}
	case KindNumber:
		if _, ok := ToFloat(val); !ok {
			if s, isStr := val.(string); !isStr || !isNumeric(s) {
				return "must be a number"
			}
		}
	case KindCurrency:
		if _, ok := ToFloat(val); ok {
			return ""
		}
		if _, ok := val.(string); !ok {
			return "must be a number or string"
		}
	case KindString, KindHTML, KindMarkdown, KindTitle, KindImageAlt:
		if _, ok := val.(string); !ok {
			return "must be a string"
		}
	case KindID, KindButtonText:
		if s, ok := val.(string); !ok || s == "" {
			return "must be a non-empty string"
		}
	case KindEmailAddress:
		s, ok := val.(string)
		if !ok {
			return "must be a string"
		}
		if _, err := mail.ParseAddress(s); err != nil {
			return "must be an email address"
		}
	case KindURL, KindImageURL, KindButtonURL:
		s, ok := val.(string)
		if !ok {
			return "must be a string"
		}
		if err := checkURL(s); err != nil {
			return "must be a URL: " + err.Error()
		}
	case KindJSONPath:
		if s, ok := val.(string); !ok || !strings.HasPrefix(s, "$") {
			return "must be a JSONPath starting with $"
		}
	case KindUUID:
		s, ok := val.(string)
		if !ok {
			return "must be a string"
		}
		if _, err := uuid.Parse(s); err != nil {
			return "must be a UUID"
		}
	}
	return ""
}

func checkURL(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%q is not absolute", s)
	}
	host := u.Hostname()
	if net.ParseIP(host) != nil {
		return nil
	}
	if _, err := idna.Lookup.ToASCII(host); err != nil {
		return err
	}
	return nil
}

func sanitizeLeaf(k Kind, val any) any {
	switch k {
	case KindAny, KindNull, KindBoolean, KindMarkdown, KindJSONPath, KindUUID,
		KindURL, KindImageURL, KindButtonURL:
		return val
	case KindInteger:
		n, _ := ToInt(val)
		return n
	case KindNumber:
		if f, ok := ToFloat(val); ok {
			return f
		}
		f, _ := strconv.ParseFloat(val.(string), 64)
		return f
	case KindString, KindID, KindTitle, KindImageAlt, KindButtonText, KindEmailAddress:
		return StripTags(val.(string))
	case KindCurrency:
		if s, ok := val.(string); ok {
			return StripTags(s)
		}
		return val
	case KindHTML:
		return ugcPolicy.Sanitize(val.(string))
	}
	panic(fmt.Sprintf("schema: no sanitizer for kind %q", k))
}

// StripTags removes all markup from s and decodes HTML entities.
func StripTags(s string) string {
	return html.UnescapeString(strictPolicy.Sanitize(s))
}

// SanitizeHTML keeps a safe subset of markup in s.
func SanitizeHTML(s string) string { return ugcPolicy.Sanitize(s) }

// ToInt converts integer-valued numbers, including integral floats decoded
// from JSON, to int.
func ToInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint:
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		return int(n), true
	case float32:
		if float32(math.Trunc(float64(n))) == n {
			return int(n), true
		}
	case float64:
		if math.Trunc(n) == n && !math.IsInf(n, 0) {
			return int(n), true
		}
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
	}
	return 0, false
}

// ToFloat converts any Go numeric value to float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	if i, ok := ToInt(v); ok {
		return float64(i), true
	}
	return 0, false
}

func isNumeric(s string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func equalValues(a, b any) bool {
	fa, okA := ToFloat(a)
	fb, okB := ToFloat(b)
	if okA && okB {
		return fa == fb
	}
	return reflect.DeepEqual(a, b)
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[string]string:
		out := make(map[string]any, len(m))
		for k, s := range m {
			out[k] = s
		}
		return out, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, item := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = item
		}
		return out, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

func asList(v any) ([]any, bool) {
	if l, ok := v.([]any); ok {
		return l, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
