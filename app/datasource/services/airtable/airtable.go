// Package airtable is the data source service for Airtable bases.
package airtable

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	authplugins "github.com/winhowes/RemoteData/app/auth"
	"github.com/winhowes/RemoteData/app/datasource"
	"github.com/winhowes/RemoteData/app/datasource/services/internal/fieldmap"
	"github.com/winhowes/RemoteData/app/query"
	"github.com/winhowes/RemoteData/app/schema"
)

const Name = "airtable"

// APIBase is the Airtable REST API root.
var APIBase = "https://api.airtable.com/v0"

type Service struct{}

func (Service) Name() string { return Name }

func (Service) ConfigSchema() *schema.Type {
	return schema.Object(
		schema.Field("base_id", schema.Matching(`^app[A-Za-z0-9]+$`)),
		schema.Field("access_token", schema.SkipSanitize(schema.String())),
		schema.Field("display_name", schema.Nullable(schema.String())),
		schema.Field("tables", schema.ListOf(schema.Object(
			schema.Field("id", schema.Matching(`^tbl[A-Za-z0-9]+$`)),
			schema.Field("name", schema.String()),
			schema.Field("fields", fieldmap.FieldsSchema()),
		))),
	)
}

func (Service) Map(cfg map[string]any) (*datasource.Fields, error) {
	base, _ := cfg["base_id"].(string)
	token, _ := cfg["access_token"].(string)
	name, _ := cfg["display_name"].(string)
	if name == "" {
		name = "Airtable " + base
	}
	tables, err := fieldmap.Tables(cfg["tables"])
	if err != nil {
		return nil, err
	}
	return &datasource.Fields{
		DisplayName: name,
		Endpoint:    APIBase + "/" + base,
		ImageURL:    "https://airtable.com/images/favicon/baymax/apple-touch-icon.png",
		Auth:        []authplugins.Config{{Type: "bearer", Params: map[string]interface{}{"token": token}}},
		Extra:       map[string]any{"tables": tables},
	}, nil
}

// RecordFormula builds a filterByFormula matching any of ids.
func RecordFormula(ids []string) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("RECORD_ID()='%s'", strings.ReplaceAll(id, "'", `\'`))
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return "OR(" + strings.Join(parts, ",") + ")"
}

func recordField(item any, key string) any {
	m, _ := item.(map[string]any)
	return fieldmap.Get(m["fields"], key)
}

func output(t fieldmap.Table) *query.OutputSchema {
	fields := append([]query.OutputField{
		{Key: "record_id", Name: "Record ID", Path: "$.id", Type: schema.KindID},
	}, fieldmap.Output(t.Fields, recordField)...)
	return &query.OutputSchema{IsCollection: true, Path: "$.records", Fields: fields}
}

func (Service) Queries(ds *datasource.DataSource) ([]query.Query, error) {
	tables, _ := ds.Extra("tables").([]fieldmap.Table)
	var out []query.Query
	for _, t := range tables {
		tableURL := ds.Endpoint() + "/" + url.PathEscape(t.ID)
		out = append(out,
			&query.HTTPQuery{
				QueryName: "airtable_get_" + fieldmap.Slug(t.Name),
				Source:    ds,
				Inputs: query.InputSchema{
					{Key: "record_id", Name: "Record ID", Type: query.InputIDList, Required: true},
				},
				Output: output(t),
				EndpointFunc: func(vars query.Variables) (string, error) {
					ids, _ := vars["record_id"].([]string)
					if len(ids) == 0 {
						return "", fmt.Errorf("record_id is empty")
					}
					return tableURL + "?filterByFormula=" + url.QueryEscape(RecordFormula(ids)), nil
				},
			},
			&query.HTTPQuery{
				QueryName: "airtable_list_" + fieldmap.Slug(t.Name),
				Source:    ds,
				Inputs: query.InputSchema{
					{Key: "per_page", Name: "Items per page", Type: query.InputPerPage, DefaultValue: 10},
					{Key: "offset", Name: "Page cursor", Type: query.InputCursor},
				},
				Output: output(t),
				Paging: &query.PaginationSchema{Fields: []query.OutputField{
					{Key: query.PageCursorNext, Path: "$.offset", Type: schema.KindString},
				}},
				EndpointFunc: func(vars query.Variables) (string, error) {
					q := url.Values{}
					if n, ok := vars["per_page"].(int64); ok {
						q.Set("pageSize", strconv.FormatInt(n, 10))
					}
					if off, _ := vars["offset"].(string); off != "" {
						q.Set("offset", off)
					}
					return tableURL + "?" + q.Encode(), nil
				},
			},
		)
	}
	return out, nil
}
