package runner

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/winhowes/RemoteData/app/schema"
)

// FieldDescriptor is one typed value in a result.
type FieldDescriptor struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// UnmarshalJSON decodes Value into the Go type implied by Type: int64 for
// integers, float64 for numbers and numeric currency amounts, bool for
// booleans and string otherwise.
func (f *FieldDescriptor) UnmarshalJSON(b []byte) error {
	var raw struct {
		Name  string          `json:"name"`
		Type  string          `json:"type"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	f.Name, f.Type, f.Value = raw.Name, raw.Type, nil
	if len(raw.Value) == 0 || bytes.Equal(raw.Value, []byte("null")) {
		return nil
	}
	var err error
	switch schema.Kind(raw.Type) {
	case schema.KindInteger:
		var v int64
		err = json.Unmarshal(raw.Value, &v)
		f.Value = v
	case schema.KindNumber:
		var v float64
		err = json.Unmarshal(raw.Value, &v)
		f.Value = v
	case schema.KindCurrency:
		if raw.Value[0] == '"' {
			var v string
			err = json.Unmarshal(raw.Value, &v)
			f.Value = v
		} else {
			var v float64
			err = json.Unmarshal(raw.Value, &v)
			f.Value = v
		}
	case schema.KindBoolean:
		var v bool
		err = json.Unmarshal(raw.Value, &v)
		f.Value = v
	default:
		var v string
		err = json.Unmarshal(raw.Value, &v)
		f.Value = v
	}
	if err != nil {
		return fmt.Errorf("field %s: %w", raw.Name, err)
	}
	return nil
}

// Result is one item of an execution.
type Result struct {
	Result map[string]FieldDescriptor `json:"result"`
}

// Pagination carries the paging state of a response and the input
// variables that fetch the neighbouring pages.
type Pagination struct {
	Type           string         `json:"type"`
	PerPage        int64          `json:"per_page,omitempty"`
	TotalItems     *int64         `json:"total_items,omitempty"`
	HasNextPage    *bool          `json:"has_next_page,omitempty"`
	CursorNext     string         `json:"cursor_next,omitempty"`
	CursorPrevious string         `json:"cursor_previous,omitempty"`
	Next           map[string]any `json:"next,omitempty"`
	Previous       map[string]any `json:"previous,omitempty"`
}

// ExecutionResult is what the rendering layer consumes. Results is nil
// when the response carried no body.
type ExecutionResult struct {
	QueryName   string                     `json:"query_name,omitempty"`
	Metadata    map[string]FieldDescriptor `json:"metadata"`
	Results     []Result                   `json:"results"`
	Pagination  *Pagination                `json:"pagination"`
	QueryInputs []map[string]any           `json:"query_inputs"`
}

// UnmarshalJSON keeps numbers in free-form maps as json.Number so that a
// decoded result compares equal to the one that was encoded.
func (r *ExecutionResult) UnmarshalJSON(b []byte) error {
	type plain ExecutionResult
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var out plain
	if err := dec.Decode(&out); err != nil {
		return err
	}
	*r = ExecutionResult(out)
	return nil
}

// canonical converts v to the form it takes after a JSON round trip with
// UseNumber.
func canonical(v any) (map[string]any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
