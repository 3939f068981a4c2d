package query

import (
	"fmt"
	"strings"

	"github.com/winhowes/RemoteData/app/schema"
)

// OutputField maps one value out of a response item. Path is a JSONPath
// relative to the item and defaults to $.<key>. Generate, when set,
// computes the value from the whole item instead.
type OutputField struct {
	Key      string             `json:"key" yaml:"key"`
	Name     string             `json:"name,omitempty" yaml:"name,omitempty"`
	Path     string             `json:"path,omitempty" yaml:"path,omitempty"`
	Type     schema.Kind        `json:"type" yaml:"type"`
	Generate func(item any) any `json:"-" yaml:"-"`
}

// JSONPath returns the effective path.
func (f OutputField) JSONPath() string {
	if f.Path != "" {
		return f.Path
	}
	return "$." + f.Key
}

// DisplayName returns Name, falling back to Key.
func (f OutputField) DisplayName() string {
	if f.Name != "" {
		return f.Name
	}
	return f.Key
}

// OutputSchema describes how to turn a response into results. Path selects
// the item (or the items when IsCollection) from the response root.
type OutputSchema struct {
	IsCollection bool          `json:"is_collection,omitempty" yaml:"is_collection,omitempty"`
	Path         string        `json:"path,omitempty" yaml:"path,omitempty"`
	Fields       []OutputField `json:"fields" yaml:"fields"`
}

// RootPath returns Path or $.
func (o *OutputSchema) RootPath() string {
	if o.Path == "" {
		return "$"
	}
	return o.Path
}

// Pagination field keys.
const (
	PageTotalItems     = "total_items"
	PageCursorNext     = "cursor_next"
	PageCursorPrevious = "cursor_previous"
	PageHasNextPage    = "has_next_page"
)

var paginationKeys = map[string]schema.Kind{
	PageTotalItems:     schema.KindInteger,
	PageCursorNext:     schema.KindString,
	PageCursorPrevious: schema.KindString,
	PageHasNextPage:    schema.KindBoolean,
}

// PaginationSchema extracts paging state from the response root.
type PaginationSchema struct {
	Fields []OutputField `json:"fields" yaml:"fields"`
}

// Field returns the field declared for key.
func (p *PaginationSchema) Field(key string) (OutputField, bool) {
	if p == nil {
		return OutputField{}, false
	}
	for _, f := range p.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return OutputField{}, false
}

func validateFields(v schema.Validator, path string, fields []OutputField) error {
	seen := make(map[string]bool, len(fields))
	for i, f := range fields {
		p := fmt.Sprintf("%s[%d]", path, i)
		if f.Key == "" {
			return &schema.ValidationError{Entity: v.Entity, Path: p + ".key", Message: "is required"}
		}
		if seen[f.Key] {
			return &schema.ValidationError{Entity: v.Entity, Path: p + ".key", Message: fmt.Sprintf("duplicates %q", f.Key)}
		}
		seen[f.Key] = true
		if !schema.IsPrimitiveKind(f.Type) {
			return &schema.ValidationError{Entity: v.Entity, Path: p + ".type", Message: fmt.Sprintf("unknown field type %q", f.Type)}
		}
		if f.Path != "" && !strings.HasPrefix(f.Path, "$") {
			return &schema.ValidationError{Entity: v.Entity, Path: p + ".path", Message: "must be a JSONPath starting with $"}
		}
	}
	return nil
}

// Validate checks the output schema.
func (o *OutputSchema) Validate(v schema.Validator) error {
	r := root(v)
	if o == nil {
		return &schema.ValidationError{Entity: v.Entity, Path: r, Message: "is required"}
	}
	if o.Path != "" && !strings.HasPrefix(o.Path, "$") {
		return &schema.ValidationError{Entity: v.Entity, Path: r + ".path", Message: "must be a JSONPath starting with $"}
	}
	if len(o.Fields) == 0 {
		return &schema.ValidationError{Entity: v.Entity, Path: r + ".fields", Message: "must not be empty"}
	}
	return validateFields(v, r+".fields", o.Fields)
}

// Validate checks the pagination schema. A nil schema is valid.
func (p *PaginationSchema) Validate(v schema.Validator) error {
	if p == nil {
		return nil
	}
	r := root(v)
	if err := validateFields(v, r+".fields", p.Fields); err != nil {
		return err
	}
	for i, f := range p.Fields {
		want, ok := paginationKeys[f.Key]
		if !ok {
			return &schema.ValidationError{Entity: v.Entity, Path: fmt.Sprintf("%s.fields[%d].key", r, i), Message: fmt.Sprintf("unknown pagination key %q", f.Key)}
		}
		if f.Type != want {
			return &schema.ValidationError{Entity: v.Entity, Path: fmt.Sprintf("%s.fields[%d].type", r, i), Message: fmt.Sprintf("must be %s", want)}
		}
	}
	return nil
}
