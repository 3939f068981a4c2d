// Package fieldmap holds the field list shared by services whose tables
// are described in configuration, such as Airtable and Google Sheets.
package fieldmap

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/winhowes/RemoteData/app/query"
	"github.com/winhowes/RemoteData/app/schema"
)

// Field maps one column of a remote table.
type Field struct {
	Key  string      `json:"key"`
	Name string      `json:"name,omitempty"`
	Type schema.Kind `json:"type"`
}

// Table is a named remote table with its mapped fields.
type Table struct {
	ID     string  `json:"id,omitempty"`
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// FieldTypes are the output types a mapped column may declare.
var FieldTypes = []string{
	string(schema.KindString), string(schema.KindInteger), string(schema.KindNumber),
	string(schema.KindBoolean), string(schema.KindCurrency), string(schema.KindMarkdown),
	string(schema.KindHTML), string(schema.KindURL), string(schema.KindImageURL),
	string(schema.KindImageAlt), string(schema.KindButtonURL), string(schema.KindEmailAddress),
	string(schema.KindID), string(schema.KindTitle),
}

// FieldsSchema validates a list of fields.
func FieldsSchema() *schema.Type {
	return schema.ListOf(schema.Object(
		schema.Field("key", schema.SkipSanitize(schema.String())),
		schema.Field("name", schema.Nullable(schema.String())),
		schema.Field("type", schema.WithDefault(schema.Enum(FieldTypes...), string(schema.KindString))),
	))
}

// Tables decodes a validated list of tables.
func Tables(raw any) ([]Table, error) {
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var out []Table
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Slug turns a table name into a query name suffix.
func Slug(name string) string {
	return strings.Trim(nonAlnum.ReplaceAllString(strings.ToLower(name), "_"), "_")
}

// Output builds output fields that read each column through get.
func Output(fields []Field, get func(item any, key string) any) []query.OutputField {
	out := make([]query.OutputField, 0, len(fields))
	for _, f := range fields {
		key := f.Key
		t := f.Type
		if t == "" {
			t = schema.KindString
		}
		out = append(out, query.OutputField{
			Key:      key,
			Name:     f.Name,
			Type:     t,
			Generate: func(item any) any { return get(item, key) },
		})
	}
	return out
}

// Get reads key from a map item.
func Get(item any, key string) any {
	m, ok := item.(map[string]any)
	if !ok {
		return nil
	}
	return m[key]
}
