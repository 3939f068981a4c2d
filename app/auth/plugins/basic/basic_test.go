package basic

import (
	"context"
	"encoding/base64"
	"net/http"
	"testing"

	"github.com/winhowes/RemoteData/app/secrets"
	_ "github.com/winhowes/RemoteData/app/secrets/plugins"
	"github.com/winhowes/RemoteData/app/transport"
)

func TestBasicAddAuth(t *testing.T) {
	defer secrets.ClearCache()
	t.Setenv("BASIC_PASS", "pass")
	p := BasicAuth{}
	cfg, err := p.ParseParams(map[string]interface{}{"username": "user", "password": "env:BASIC_PASS"})
	if err != nil {
		t.Fatal(err)
	}
	r := &transport.Request{Header: http.Header{}}
	if err := p.AddAuth(context.Background(), r, cfg); err != nil {
		t.Fatal(err)
	}
	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("user:pass"))
	if got := r.Header.Get("Authorization"); got != want {
		t.Fatalf("expected %q, got %s", want, got)
	}
}

func TestBasicAddAuthMissingSecret(t *testing.T) {
	p := BasicAuth{}
	cfg, err := p.ParseParams(map[string]interface{}{"username": "user", "password": "env:BASIC_MISSING"})
	if err != nil {
		t.Fatal(err)
	}
	r := &transport.Request{Header: http.Header{}}
	if err := p.AddAuth(context.Background(), r, cfg); err == nil {
		t.Fatal("expected error for missing secret")
	}
	if got := r.Header.Get("Authorization"); got != "" {
		t.Fatalf("expected empty header, got %s", got)
	}
}

func TestBasicParseParamsErrors(t *testing.T) {
	p := BasicAuth{}
	if _, err := p.ParseParams(map[string]interface{}{"password": "x"}); err == nil {
		t.Fatal("expected error for missing username")
	}
	if _, err := p.ParseParams(map[string]interface{}{"username": "u", "prefix": "x"}); err == nil {
		t.Fatal("expected error for unknown param")
	}
}
