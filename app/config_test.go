package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/winhowes/RemoteData/app/query"
)

func writeConfig(t *testing.T, name, data string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadConfigInvalidFile(t *testing.T) {
	_, err := loadConfig("nonexistent.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	p := writeConfig(t, "bad.yaml", "{invalid}")
	if _, err := loadConfig(p); err == nil {
		t.Fatal("expected YAML unmarshal error")
	}
}

func TestLoadConfigUnknownField(t *testing.T) {
	for _, name := range []string{"unknown.yaml", "unknown.json"} {
		p := writeConfig(t, name, `{"bogus": 1}`)
		if _, err := loadConfig(p); err == nil {
			t.Fatalf("%s: expected error for unknown field", name)
		}
	}
}

func TestLoadConfigEmpty(t *testing.T) {
	p := writeConfig(t, "empty.yaml", "")
	cfg, err := loadConfig(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.DataSources) != 0 || len(cfg.Queries) != 0 {
		t.Fatalf("expected empty config, got %+v", cfg)
	}
}

const yamlConfig = `
data_sources:
  - name: shop
    service: generic-http
    service_config:
      display_name: Shop
      endpoint: https://shop.test
queries:
  - name: products
    data_source: shop
    endpoint: /products
    cache_ttl: 300
    output_schema:
      is_collection: true
      path: $.items
      fields:
        - key: title
          type: string
cache:
  backend: memory
  default_ttl: 120
transport:
  timeout: 10s
  allowed_schemes: [https]
format:
  currency: EUR
`

const jsoncConfig = `{
  // shared with the YAML fixture
  "data_sources": [
    {
      "name": "shop",
      "service": "generic-http",
      "service_config": {"display_name": "Shop", "endpoint": "https://shop.test"},
    },
  ],
  "queries": [
    {
      "name": "products",
      "data_source": "shop",
      "endpoint": "/products",
      "cache_ttl": 300,
      "output_schema": {
        "is_collection": true,
        "path": "$.items",
        "fields": [{"key": "title", "type": "string"}],
      },
    },
  ],
  "cache": {"backend": "memory", "default_ttl": 120},
  "transport": {"timeout": "10s", "allowed_schemes": ["https"]},
  "format": {"currency": "EUR"},
}`

func TestLoadConfigFormats(t *testing.T) {
	fromYAML, err := loadConfig(writeConfig(t, "config.yaml", yamlConfig))
	if err != nil {
		t.Fatalf("yaml: %v", err)
	}
	fromJSON, err := loadConfig(writeConfig(t, "config.jsonc", jsoncConfig))
	if err != nil {
		t.Fatalf("jsonc: %v", err)
	}
	if diff := cmp.Diff(fromYAML, fromJSON, cmp.Comparer(func(a, b query.OutputField) bool {
		return a.Key == b.Key && a.Type == b.Type && a.Path == b.Path
	})); diff != "" {
		t.Fatalf("yaml and jsonc differ (-yaml +jsonc):\n%s", diff)
	}

	ds := fromYAML.DataSources[0]
	if ds.Name != "shop" || ds.Service != "generic-http" || ds.ServiceConfig["endpoint"] != "https://shop.test" {
		t.Fatalf("unexpected data source %+v", ds)
	}
	q := fromYAML.Queries[0]
	if q.CacheTTL == nil || *q.CacheTTL != 300 || !q.OutputSchema.IsCollection {
		t.Fatalf("unexpected query %+v", q)
	}
	if fromYAML.Cache.DefaultTTL != 120 || fromYAML.Format.Currency != "EUR" {
		t.Fatalf("unexpected settings %+v", fromYAML)
	}
}

func TestLoadConfigValidates(t *testing.T) {
	p := writeConfig(t, "config.yaml", "queries:\n  - name: bad name\n    data_source: x\n")
	if _, err := loadConfig(p); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestFormatConfigMerge(t *testing.T) {
	base := FormatConfig{Locale: "en-US", Currency: "USD"}
	got := base.merge(&FormatConfig{Currency: "JPY", DateLayout: "2006"})
	want := FormatConfig{Locale: "en-US", Currency: "JPY", DateLayout: "2006"}
	if got != want {
		t.Fatalf("merge = %+v, want %+v", got, want)
	}
	if base.merge(nil) != base {
		t.Fatal("merge(nil) changed config")
	}
}
