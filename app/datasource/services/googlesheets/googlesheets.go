// Package googlesheets is the data source service for Google Sheets
// spreadsheets read with a service account.
package googlesheets

import (
	"fmt"
	"net/url"
	"strconv"

	authplugins "github.com/winhowes/RemoteData/app/auth"
	"github.com/winhowes/RemoteData/app/datasource"
	"github.com/winhowes/RemoteData/app/datasource/services/internal/fieldmap"
	"github.com/winhowes/RemoteData/app/query"
	"github.com/winhowes/RemoteData/app/schema"
)

const Name = "google-sheets"

// APIBase is the Sheets API root.
var APIBase = "https://sheets.googleapis.com/v4/spreadsheets"

// Scope grants read access to spreadsheets.
const Scope = "https://www.googleapis.com/auth/spreadsheets.readonly"

// RowIDKey is the synthetic column holding the 1-based data row number.
const RowIDKey = "RowId"

type Service struct{}

func (Service) Name() string { return Name }

func (Service) ConfigSchema() *schema.Type {
	return schema.Object(
		schema.Field("spreadsheet_id", schema.Matching(`^[A-Za-z0-9_-]+$`)),
		schema.Field("credentials", schema.SkipSanitize(schema.String())),
		schema.Field("display_name", schema.Nullable(schema.String())),
		schema.Field("sheets", schema.ListOf(schema.Object(
			schema.Field("name", schema.String()),
			schema.Field("fields", fieldmap.FieldsSchema()),
		))),
	)
}

func (Service) Map(cfg map[string]any) (*datasource.Fields, error) {
	id, _ := cfg["spreadsheet_id"].(string)
	creds, _ := cfg["credentials"].(string)
	name, _ := cfg["display_name"].(string)
	if name == "" {
		name = "Google Sheet " + id
	}
	sheets, err := fieldmap.Tables(cfg["sheets"])
	if err != nil {
		return nil, err
	}
	return &datasource.Fields{
		DisplayName: name,
		Endpoint:    APIBase + "/" + id,
		ImageURL:    "https://ssl.gstatic.com/docs/spreadsheets/favicon3.ico",
		Auth: []authplugins.Config{{Type: "google_service_account", Params: map[string]interface{}{
			"credentials": creds,
			"scopes":      []interface{}{Scope},
		}}},
		Extra: map[string]any{"sheets": sheets},
	}, nil
}

// Rows turns a values response into one object per data row keyed by the
// header row. Each object also carries its row number under RowIDKey.
func Rows(raw any) ([]any, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a values object, got %T", raw)
	}
	values, _ := m["values"].([]any)
	if len(values) == 0 {
		return []any{}, nil
	}
	header, _ := values[0].([]any)
	out := make([]any, 0, len(values)-1)
	for i, r := range values[1:] {
		row, _ := r.([]any)
		obj := map[string]any{RowIDKey: strconv.Itoa(i + 1)}
		for j, h := range header {
			key, _ := h.(string)
			if key == "" {
				continue
			}
			if j < len(row) {
				obj[key] = row[j]
			} else {
				obj[key] = nil
			}
		}
		out = append(out, obj)
	}
	return out, nil
}

func output(t fieldmap.Table, collection bool) *query.OutputSchema {
	fields := append([]query.OutputField{
		{Key: "row_id", Name: "Row ID", Path: "$." + RowIDKey, Type: schema.KindID},
	}, fieldmap.Output(t.Fields, fieldmap.Get)...)
	return &query.OutputSchema{IsCollection: collection, Fields: fields}
}

func (Service) Queries(ds *datasource.DataSource) ([]query.Query, error) {
	sheets, _ := ds.Extra("sheets").([]fieldmap.Table)
	var out []query.Query
	for _, s := range sheets {
		valuesURL := ds.Endpoint() + "/values/" + url.PathEscape(s.Name)
		out = append(out,
			&query.HTTPQuery{
				QueryName:    "sheets_list_" + fieldmap.Slug(s.Name),
				Source:       ds,
				Output:       output(s, true),
				EndpointFunc: func(query.Variables) (string, error) { return valuesURL, nil },
				PreprocessFunc: func(raw any, _ query.Variables) (any, error) {
					return Rows(raw)
				},
			},
			&query.HTTPQuery{
				QueryName: "sheets_get_" + fieldmap.Slug(s.Name),
				Source:    ds,
				Inputs: query.InputSchema{
					{Key: "row_id", Name: "Row ID", Type: query.InputID, Required: true},
				},
				Output:       output(s, false),
				EndpointFunc: func(query.Variables) (string, error) { return valuesURL, nil },
				PreprocessFunc: func(raw any, vars query.Variables) (any, error) {
					rows, err := Rows(raw)
					if err != nil {
						return nil, err
					}
					want, _ := vars["row_id"].(string)
					for _, r := range rows {
						if r.(map[string]any)[RowIDKey] == want {
							return r, nil
						}
					}
					return nil, nil
				},
			},
		)
	}
	return out, nil
}
