package plugins

import (
	"reflect"
	"testing"

	"github.com/spf13/pflag"
)

func run(t *testing.T, name string, args []string) (Entry, error) {
	t.Helper()
	b := Get(name)
	if b == nil {
		t.Fatalf("builder %s not registered", name)
	}
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	build := b(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse: %v", err)
	}
	return build()
}

func TestBuilders(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want Entry
	}{
		{"github", []string{"--name", "docs", "--owner", "acme", "--repo", "handbook"}, GitHub("docs", "acme", "handbook", "main", "")},
		{"github", []string{"--owner", "acme", "--repo", "api", "--ref", "v2", "--token", "env:GH_TOKEN"}, GitHub("github", "acme", "api", "v2", "env:GH_TOKEN")},
		{"shopify", []string{"--name", "shop", "--store", "acme", "--token", "env:SHOPIFY"}, Shopify("shop", "acme", "env:SHOPIFY")},
		{"airtable", []string{
			"--base", "appX1", "--token", "file:/run/at",
			"--table", "tblB=Orders", "--table", "tblA=Customers",
			"--field", "tblA.email", "--field", "tblB.total=currency",
		}, Airtable("airtable", "appX1", "file:/run/at", []Table{
			{ID: "tblA", Name: "Customers", Fields: []Field{{Key: "email"}}},
			{ID: "tblB", Name: "Orders", Fields: []Field{{Key: "total", Type: "currency"}}},
		})},
		{"google-sheets", []string{
			"--spreadsheet", "1AbC", "--credentials", "env:SA", "--sheet", "s=Sheet1", "--field", "s.name",
		}, GoogleSheets("google-sheets", "1AbC", "env:SA", []Table{
			{ID: "s", Name: "Sheet1", Fields: []Field{{Key: "name"}}},
		})},
		{"http", []string{
			"--name", "inv", "--endpoint", "https://inv.test", "--auth", "bearer", "--auth-secret", "env:INV",
			"--header", "X-Team=ops",
		}, HTTP("inv", HTTPOptions{
			DisplayName: "inv",
			Endpoint:    "https://inv.test",
			AuthType:    "bearer",
			AuthRef:     "env:INV",
			Headers:     map[string]string{"X-Team": "ops"},
		})},
		{"graphql", []string{"--endpoint", "https://gql.test/graphql", "--display-name", "Catalog", "--http3"}, GraphQL("graphql", HTTPOptions{
			DisplayName: "Catalog",
			Endpoint:    "https://gql.test/graphql",
			Headers:     map[string]string{},
			HTTP3:       true,
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := run(t, tt.name, tt.args)
			if err != nil {
				t.Fatalf("builder returned error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("builder %s output mismatch\n got: %#v\nwant: %#v", tt.name, got, tt.want)
			}
		})
	}
}

func TestBuildersRequireFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"github", []string{"--owner", "acme"}},
		{"shopify", []string{"--store", "acme"}},
		{"airtable", []string{"--base", "appX"}},
		{"airtable", []string{"--base", "appX", "--token", "t", "--field", "tblA.x"}},
		{"google-sheets", []string{"--spreadsheet", "x"}},
		{"http", nil},
		{"http", []string{"--endpoint", "https://x.test", "--header", "novalue"}},
	}
	for _, tt := range tests {
		if _, err := run(t, tt.name, tt.args); err == nil {
			t.Errorf("%s %v: expected error", tt.name, tt.args)
		}
	}
}

func TestHTTPConfigAuth(t *testing.T) {
	e := HTTP("x", HTTPOptions{Endpoint: "https://x.test", AuthType: "api-key", AuthKey: "X-Key", AuthRef: "env:K", AddTo: "query"})
	want := map[string]interface{}{"type": "api-key", "key": "X-Key", "value": "env:K", "add_to": "query"}
	if got := e.ServiceConfig["auth"]; !reflect.DeepEqual(got, want) {
		t.Fatalf("auth = %#v, want %#v", got, want)
	}
	if _, ok := HTTP("x", HTTPOptions{AuthType: "none"}).ServiceConfig["auth"]; ok {
		t.Fatal("auth type none should omit auth")
	}
}
