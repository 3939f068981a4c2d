package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	yaml "gopkg.in/yaml.v3"

	"github.com/winhowes/RemoteData/app/datasource"
	"github.com/winhowes/RemoteData/app/store"
	"github.com/winhowes/RemoteData/cmd/datasources/plugins"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestBuilderPrintsYAML(t *testing.T) {
	out, err := execute(t, "github", "--name", "docs", "--owner", "acme", "--repo", "handbook")
	if err != nil {
		t.Fatalf("execute: %v\n%s", err, out)
	}
	var entries []plugins.Entry
	if err := yaml.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("output is not yaml: %v\n%s", err, out)
	}
	if len(entries) != 1 || entries[0].Name != "docs" || entries[0].Service != "github" {
		t.Fatalf("unexpected entries %+v", entries)
	}
	if entries[0].UUID == "" {
		t.Fatal("expected derived uuid")
	}
	if entries[0].ServiceConfig["ref"] != "main" {
		t.Fatalf("service config %v", entries[0].ServiceConfig)
	}
}

func TestBuilderPrintsJSON(t *testing.T) {
	out, err := execute(t, "http", "--endpoint", "https://inv.test", "-o", "json")
	if err != nil {
		t.Fatalf("execute: %v\n%s", err, out)
	}
	var e plugins.Entry
	if err := json.Unmarshal([]byte(out), &e); err != nil {
		t.Fatalf("output is not json: %v\n%s", err, out)
	}
	if e.Service != "generic-http" || e.ServiceConfig["endpoint"] != "https://inv.test" {
		t.Fatalf("unexpected entry %+v", e)
	}
}

func TestBuilderRejectsInvalidConfig(t *testing.T) {
	if _, err := execute(t, "http", "--endpoint", "not a url"); err == nil {
		t.Fatal("expected validation error")
	}
	if _, err := execute(t, "shopify", "--store", "bad store!", "--token", "t"); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestBuilderApply(t *testing.T) {
	var got datasource.Config
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/data-sources" {
			http.NotFound(w, r)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
		got.UUID = "3f2504e0-4f89-11d3-9a0c-0305e82c3301"
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(got)
	}))
	defer srv.Close()

	out, err := execute(t, "shopify", "--store", "acme", "--token", "env:SHOPIFY", "--apply", "--server", srv.URL)
	if err != nil {
		t.Fatalf("execute: %v\n%s", err, out)
	}
	if got.Service != "shopify" || got.ServiceConfig["store_name"] != "acme" {
		t.Fatalf("server received %+v", got)
	}
	if !strings.Contains(out, "3f2504e0-4f89-11d3-9a0c-0305e82c3301 added") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestBuilderApplyServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"nope"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := execute(t, "github", "--owner", "a", "--repo", "b", "--apply", "--server", srv.URL)
	if err == nil || !strings.Contains(err.Error(), "400") {
		t.Fatalf("expected server error, got %v", err)
	}
}

func TestListUsesServerFromEnv(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		json.NewEncoder(w).Encode([]store.Record{
			{Config: datasource.Config{UUID: "u-1", Service: "github"}, Origin: store.OriginFile},
			{Config: datasource.Config{UUID: "u-2", Service: "mock"}, Origin: store.OriginStorage},
		})
	}))
	defer srv.Close()
	t.Setenv("RDB_SERVER", srv.URL)

	out, err := execute(t, "list", "--origin", "file")
	if err != nil {
		t.Fatalf("execute: %v\n%s", err, out)
	}
	if query != "origin=file" {
		t.Fatalf("query %q", query)
	}
	for _, want := range []string{"UUID", "u-1", "github", "u-2", "storage"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestServicesDescribesSchemas(t *testing.T) {
	out, err := execute(t, "services")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"generic-http", "$.endpoint", "shopify", "$.store_name"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

const validConfig = `
data_sources:
  - name: docs
    service: github
    service_config:
      repo_owner: acme
      repo_name: handbook
  - name: broken
    service: generic-http
    service_config:
      endpoint: nope
queries:
  - name: pages
    data_source: docs
    endpoint: /contents
    output_schema:
      fields:
        - key: name
          type: string
  - name: orphan
    data_source: missing
    output_schema:
      fields: []
cache:
  backend: memory
`

func TestValidate(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(validConfig), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "validate", p)
	if err == nil || !strings.Contains(err.Error(), "2 invalid entries") {
		t.Fatalf("expected two failures, got %v\n%s", err, out)
	}
	for _, want := range []string{"data source docs: ok", "data source broken:", "query pages: ok", "query orphan: unknown data source missing"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestValidateJSONC(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.jsonc")
	data := `{
  // one source
  "data_sources": [{"name": "docs", "service": "github", "service_config": {"repo_owner": "acme", "repo_name": "handbook"}},],
}`
	if err := os.WriteFile(p, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	if out, err := execute(t, "validate", p); err != nil {
		t.Fatalf("execute: %v\n%s", err, out)
	}
}
