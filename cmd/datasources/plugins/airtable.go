package plugins

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/pflag"

	"github.com/winhowes/RemoteData/app/datasource"
)

// Table describes one table or sheet and the fields exposed from it.
type Table struct {
	ID     string
	Name   string
	Fields []Field
}

// Field is one exposed column. An empty Type means string.
type Field struct {
	Key  string
	Type string
}

func fieldList(fields []Field) []interface{} {
	out := make([]interface{}, 0, len(fields))
	for _, f := range fields {
		m := map[string]interface{}{"key": f.Key}
		if f.Type != "" {
			m["type"] = f.Type
		}
		out = append(out, m)
	}
	return out
}

// Airtable returns an entry for one base.
func Airtable(name, baseID, tokenRef string, tables []Table) Entry {
	list := make([]interface{}, 0, len(tables))
	for _, t := range tables {
		list = append(list, map[string]interface{}{
			"id":     t.ID,
			"name":   t.Name,
			"fields": fieldList(t.Fields),
		})
	}
	return Entry{Name: name, Config: datasource.Config{Service: "airtable", ServiceConfig: map[string]interface{}{
		"base_id":      baseID,
		"access_token": tokenRef,
		"tables":       list,
	}}}
}

// parseTables reads --table ref=name and --field ref.key[=type] values into
// tables ordered by ref.
func parseTables(tableVals, fieldVals []string) ([]Table, error) {
	names, err := pairs(tableVals)
	if err != nil {
		return nil, err
	}
	byRef := make(map[string]*Table, len(names))
	for ref, n := range names {
		byRef[ref] = &Table{ID: ref, Name: n}
	}
	for _, v := range fieldVals {
		spec, typ, _ := strings.Cut(v, "=")
		ref, key, ok := strings.Cut(spec, ".")
		t := byRef[ref]
		if !ok || key == "" || t == nil {
			return nil, &FlagError{Value: v, Want: "<table>.<key>[=type] for a declared table"}
		}
		t.Fields = append(t.Fields, Field{Key: key, Type: typ})
	}
	refs := make([]string, 0, len(byRef))
	for ref := range byRef {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	out := make([]Table, 0, len(refs))
	for _, ref := range refs {
		out = append(out, *byRef[ref])
	}
	return out, nil
}

func init() {
	Register("airtable", func(fs *pflag.FlagSet) func() (Entry, error) {
		name := fs.String("name", "airtable", "data source name")
		base := fs.String("base", "", "base id (app...)")
		token := fs.String("token", "", "secret reference for the access token")
		tables := fs.StringArray("table", nil, "table as <tbl id>=<name>, repeatable")
		fields := fs.StringArray("field", nil, "field as <tbl id>.<key>[=type], repeatable")
		return func() (Entry, error) {
			if *base == "" || *token == "" {
				return Entry{}, fmt.Errorf("--base and --token are required")
			}
			ts, err := parseTables(*tables, *fields)
			if err != nil {
				return Entry{}, err
			}
			return Airtable(*name, *base, *token, ts), nil
		}
	})
}
