package apikey

import (
	"context"
	"net/http"
	"testing"

	"github.com/winhowes/RemoteData/app/transport"
)

func TestAPIKeyHeader(t *testing.T) {
	p := APIKey{}
	cfg, err := p.ParseParams(map[string]interface{}{"key": "X-Api-Key", "value": "k1"})
	if err != nil {
		t.Fatal(err)
	}
	r := &transport.Request{URL: "https://api.example.com/v1", Header: http.Header{}}
	if err := p.AddAuth(context.Background(), r, cfg); err != nil {
		t.Fatal(err)
	}
	if r.Header.Get("X-Api-Key") != "k1" || r.URL != "https://api.example.com/v1" {
		t.Fatalf("unexpected request %v %s", r.Header, r.URL)
	}
}

func TestAPIKeyQuery(t *testing.T) {
	p := APIKey{}
	cfg, err := p.ParseParams(map[string]interface{}{"key": "api_key", "value": "k 2", "add_to": "query"})
	if err != nil {
		t.Fatal(err)
	}
	r := &transport.Request{URL: "https://api.example.com/v1?page=2", Header: http.Header{}}
	if err := p.AddAuth(context.Background(), r, cfg); err != nil {
		t.Fatal(err)
	}
	if r.URL != "https://api.example.com/v1?api_key=k+2&page=2" {
		t.Fatalf("unexpected url %s", r.URL)
	}
}

func TestAPIKeyBadPlacement(t *testing.T) {
	if _, err := (APIKey{}).ParseParams(map[string]interface{}{"key": "k", "value": "v", "add_to": "body"}); err == nil {
		t.Fatal("expected error")
	}
}
