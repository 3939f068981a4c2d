package plugins

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/winhowes/RemoteData/app/datasource"
)

// GoogleSheets returns an entry for one spreadsheet. credentialsRef points
// to a service account key. Table IDs are ignored; sheets are addressed by
// name.
func GoogleSheets(name, spreadsheetID, credentialsRef string, sheets []Table) Entry {
	list := make([]interface{}, 0, len(sheets))
	for _, s := range sheets {
		list = append(list, map[string]interface{}{
			"name":   s.Name,
			"fields": fieldList(s.Fields),
		})
	}
	return Entry{Name: name, Config: datasource.Config{Service: "google-sheets", ServiceConfig: map[string]interface{}{
		"spreadsheet_id": spreadsheetID,
		"credentials":    credentialsRef,
		"sheets":         list,
	}}}
}

func init() {
	Register("google-sheets", func(fs *pflag.FlagSet) func() (Entry, error) {
		name := fs.String("name", "google-sheets", "data source name")
		id := fs.String("spreadsheet", "", "spreadsheet id")
		creds := fs.String("credentials", "", "secret reference for the service account key")
		sheets := fs.StringArray("sheet", nil, "sheet as <ref>=<sheet name>, repeatable")
		fields := fs.StringArray("field", nil, "field as <ref>.<key>[=type], repeatable")
		return func() (Entry, error) {
			if *id == "" || *creds == "" {
				return Entry{}, fmt.Errorf("--spreadsheet and --credentials are required")
			}
			ts, err := parseTables(*sheets, *fields)
			if err != nil {
				return Entry{}, err
			}
			return GoogleSheets(*name, *id, *creds, ts), nil
		}
	})
}
