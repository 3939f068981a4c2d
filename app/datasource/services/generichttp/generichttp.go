// Package generichttp is the data source service for arbitrary REST APIs.
package generichttp

import (
	"fmt"

	authplugins "github.com/winhowes/RemoteData/app/auth"
	"github.com/winhowes/RemoteData/app/datasource"
	"github.com/winhowes/RemoteData/app/schema"
	"github.com/winhowes/RemoteData/app/transport"
)

// Name is the service name in data source configs.
const Name = "generic-http"

// Service maps generic HTTP configs. HTTP3, when set, builds the sender
// used by sources that enable http3.
type Service struct {
	HTTP3 func() transport.Sender
}

func (Service) Name() string { return Name }

func (Service) ConfigSchema() *schema.Type { return Schema() }

func (s Service) Map(cfg map[string]any) (*datasource.Fields, error) {
	return Map(cfg, s.HTTP3)
}

// Schema is the config schema shared with the graphql service.
func Schema() *schema.Type {
	return schema.Object(
		schema.Field("display_name", schema.String()),
		schema.Field("endpoint", schema.URL()),
		schema.Field("auth", schema.Nullable(schema.Object(
			schema.Field("type", schema.Enum("basic", "bearer", "api-key", "none")),
			schema.Field("add_to", schema.WithDefault(schema.Enum("header", "query"), "header")),
			schema.Field("key", schema.Nullable(schema.SkipSanitize(schema.String()))),
			schema.Field("value", schema.Nullable(schema.SkipSanitize(schema.String()))),
		))),
		schema.Field("headers", schema.Nullable(schema.Record(schema.String(), schema.SkipSanitize(schema.String())))),
		schema.Field("image_url", schema.Nullable(schema.ImageURL())),
		schema.Field("http3", schema.WithDefault(schema.Boolean(), false)),
	)
}

// Map turns a validated config into data source fields.
func Map(cfg map[string]any, http3 func() transport.Sender) (*datasource.Fields, error) {
	f := &datasource.Fields{
		DisplayName: str(cfg["display_name"]),
		Endpoint:    str(cfg["endpoint"]),
		ImageURL:    str(cfg["image_url"]),
	}
	if h, ok := cfg["headers"].(map[string]any); ok {
		f.Headers = make(map[string]string, len(h))
		for k, v := range h {
			f.Headers[k] = str(v)
		}
	}
	if a, ok := cfg["auth"].(map[string]any); ok {
		ac, err := AuthConfig(a)
		if err != nil {
			return nil, err
		}
		if ac != nil {
			f.Auth = []authplugins.Config{*ac}
		}
	}
	if on, _ := cfg["http3"].(bool); on {
		if http3 == nil {
			return nil, fmt.Errorf("http3 transport is not available")
		}
		f.Sender = http3()
	}
	return f, nil
}

// AuthConfig translates the auth block into an auth plugin config. It
// returns nil for type none.
func AuthConfig(a map[string]any) (*authplugins.Config, error) {
	key, value := str(a["key"]), str(a["value"])
	switch a["type"] {
	case "none":
		return nil, nil
	case "basic":
		if key == "" {
			return nil, fmt.Errorf("basic auth requires key (the username)")
		}
		return &authplugins.Config{Type: "basic", Params: map[string]interface{}{"username": key, "password": value}}, nil
	case "bearer":
		if value == "" {
			return nil, fmt.Errorf("bearer auth requires value")
		}
		return &authplugins.Config{Type: "bearer", Params: map[string]interface{}{"token": value}}, nil
	case "api-key":
		if key == "" || value == "" {
			return nil, fmt.Errorf("api-key auth requires key and value")
		}
		return &authplugins.Config{Type: "api_key", Params: map[string]interface{}{
			"key": key, "value": value, "add_to": str(a["add_to"]),
		}}, nil
	}
	return nil, fmt.Errorf("unknown auth type %v", a["type"])
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
