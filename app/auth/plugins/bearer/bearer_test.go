package bearer

import (
	"context"
	"net/http"
	"testing"

	"github.com/winhowes/RemoteData/app/secrets"
	_ "github.com/winhowes/RemoteData/app/secrets/plugins"
	"github.com/winhowes/RemoteData/app/transport"
)

func TestBearerDefaults(t *testing.T) {
	defer secrets.ClearCache()
	t.Setenv("BEARER_TOKEN", "abc")
	p := BearerAuth{}
	cfg, err := p.ParseParams(map[string]interface{}{"token": "env:BEARER_TOKEN"})
	if err != nil {
		t.Fatal(err)
	}
	r := &transport.Request{Header: http.Header{}}
	if err := p.AddAuth(context.Background(), r, cfg); err != nil {
		t.Fatal(err)
	}
	if got := r.Header.Get("Authorization"); got != "Bearer abc" {
		t.Fatalf("unexpected header %q", got)
	}
}

func TestBearerCustomHeader(t *testing.T) {
	p := BearerAuth{}
	cfg, err := p.ParseParams(map[string]interface{}{"token": "literal-token", "header": "X-Shopify-Storefront-Access-Token"})
	if err != nil {
		t.Fatal(err)
	}
	r := &transport.Request{Header: http.Header{}}
	if err := p.AddAuth(context.Background(), r, cfg); err != nil {
		t.Fatal(err)
	}
	if got := r.Header.Get("X-Shopify-Storefront-Access-Token"); got != "literal-token" {
		t.Fatalf("unexpected header %q", got)
	}
}

func TestBearerMissingToken(t *testing.T) {
	if _, err := (BearerAuth{}).ParseParams(map[string]interface{}{}); err == nil {
		t.Fatal("expected error")
	}
}
