package query

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/winhowes/RemoteData/app/schema"
)

// InputType names the type of one input variable.
type InputType string

const (
	InputBoolean InputType = "boolean"
	InputID      InputType = "id"
	InputInteger InputType = "integer"
	InputNull    InputType = "null"
	InputNumber  InputType = "number"
	InputString  InputType = "string"
	InputIDList  InputType = "id:list"

	InputUI             InputType = "ui:input"
	InputSearch         InputType = "ui:search_input"
	InputOffset         InputType = "ui:pagination_offset"
	InputPage           InputType = "ui:pagination_page"
	InputPerPage        InputType = "ui:pagination_per_page"
	InputCursor         InputType = "ui:pagination_cursor"
	InputCursorNext     InputType = "ui:pagination_cursor_next"
	InputCursorPrevious InputType = "ui:pagination_cursor_previous"
)

var inputTypes = map[InputType]bool{
	InputBoolean: true, InputID: true, InputInteger: true, InputNull: true,
	InputNumber: true, InputString: true, InputIDList: true, InputUI: true,
	InputSearch: true, InputOffset: true, InputPage: true, InputPerPage: true,
	InputCursor: true, InputCursorNext: true, InputCursorPrevious: true,
}

// InputVar declares one input variable.
type InputVar struct {
	Key          string    `json:"key" yaml:"key"`
	Name         string    `json:"name,omitempty" yaml:"name,omitempty"`
	Type         InputType `json:"type" yaml:"type"`
	DefaultValue any       `json:"default_value,omitempty" yaml:"default_value,omitempty"`
	Required     bool      `json:"required,omitempty" yaml:"required,omitempty"`
}

// InputSchema is the ordered list of variables a query accepts.
type InputSchema []InputVar

// Find returns the first variable of type t.
func (s InputSchema) Find(t InputType) (InputVar, bool) {
	for _, v := range s {
		if v.Type == t {
			return v, true
		}
	}
	return InputVar{}, false
}

// Count returns how many variables have type t.
func (s InputSchema) Count(t InputType) int {
	n := 0
	for _, v := range s {
		if v.Type == t {
			n++
		}
	}
	return n
}

// Validate checks the schema itself.
func (s InputSchema) Validate(v schema.Validator) error {
	seen := make(map[string]bool, len(s))
	for i, in := range s {
		path := fmt.Sprintf("%s[%d]", root(v), i)
		if in.Key == "" {
			return &schema.ValidationError{Entity: v.Entity, Path: path + ".key", Message: "is required"}
		}
		if seen[in.Key] {
			return &schema.ValidationError{Entity: v.Entity, Path: path + ".key", Message: fmt.Sprintf("duplicates %q", in.Key)}
		}
		seen[in.Key] = true
		if !inputTypes[in.Type] {
			return &schema.ValidationError{Entity: v.Entity, Path: path + ".type", Message: fmt.Sprintf("unknown input type %q", in.Type)}
		}
		if in.DefaultValue != nil {
			if _, err := coerceInput(in.Type, in.DefaultValue); err != nil {
				return &schema.ValidationError{Entity: v.Entity, Path: path + ".default_value", Message: err.Error()}
			}
		}
	}
	return nil
}

// Prepare keeps only declared variables, applies defaults, enforces
// required variables and converts values to their declared types.
func (s InputSchema) Prepare(vars Variables) (Variables, error) {
	out := make(Variables, len(s))
	for _, in := range s {
		val, ok := vars[in.Key]
		if !ok || val == nil {
			if in.DefaultValue == nil {
				if in.Required {
					return nil, fmt.Errorf("missing required input variable: %s", in.Key)
				}
				continue
			}
			val = in.DefaultValue
		}
		conv, err := coerceInput(in.Type, val)
		if err != nil {
			return nil, fmt.Errorf("input variable %s: %w", in.Key, err)
		}
		out[in.Key] = conv
	}
	return out, nil
}

func coerceInput(t InputType, val any) (any, error) {
	switch t {
	case InputNull:
		if val != nil {
			return nil, fmt.Errorf("must be null")
		}
		return nil, nil
	case InputBoolean:
		switch b := val.(type) {
		case bool:
			return b, nil
		case string:
			if p, err := strconv.ParseBool(b); err == nil {
				return p, nil
			}
		}
		return nil, fmt.Errorf("must be a boolean")
	case InputInteger, InputOffset, InputPage, InputPerPage:
		if i, ok := schema.ToInt(val); ok {
			return int64(i), nil
		}
		if s, ok := val.(string); ok {
			if i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
				return i, nil
			}
		}
		return nil, fmt.Errorf("must be an integer")
	case InputNumber:
		if f, ok := schema.ToFloat(val); ok {
			return f, nil
		}
		if s, ok := val.(string); ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				return f, nil
			}
		}
		return nil, fmt.Errorf("must be a number")
	case InputIDList:
		switch l := val.(type) {
		case string:
			return []string{l}, nil
		case []string:
			return l, nil
		case []any:
			out := make([]string, 0, len(l))
			for _, item := range l {
				s, ok := scalarString(item)
				if !ok {
					return nil, fmt.Errorf("must be a list of ids")
				}
				out = append(out, s)
			}
			return out, nil
		}
		return nil, fmt.Errorf("must be a list of ids")
	}
	s, ok := scalarString(val)
	if !ok {
		return nil, fmt.Errorf("must be a string")
	}
	return s, nil
}

// scalarString formats strings, booleans and numbers. Integral floats
// print without a fraction so ids decoded from JSON stay intact.
func scalarString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case bool:
		return strconv.FormatBool(s), true
	case json.Number:
		return s.String(), true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(s), 'f', -1, 32), true
	}
	if i, ok := schema.ToInt(v); ok {
		return strconv.Itoa(i), true
	}
	return "", false
}

func root(v schema.Validator) string {
	if v.Root == "" {
		return "$"
	}
	return v.Root
}
