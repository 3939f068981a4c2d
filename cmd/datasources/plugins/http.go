package plugins

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/winhowes/RemoteData/app/datasource"
)

// HTTPOptions holds the settings shared by the generic HTTP and GraphQL
// services.
type HTTPOptions struct {
	DisplayName string
	Endpoint    string
	// AuthType is basic, bearer, api-key or empty for none.
	AuthType string
	AuthKey  string
	AuthRef  string
	// AddTo places an api-key in the header (default) or the query.
	AddTo   string
	Headers map[string]string
	HTTP3   bool
}

func httpConfig(o HTTPOptions) map[string]interface{} {
	cfg := map[string]interface{}{
		"display_name": o.DisplayName,
		"endpoint":     o.Endpoint,
	}
	if o.AuthType != "" && o.AuthType != "none" {
		auth := map[string]interface{}{"type": o.AuthType}
		if o.AuthKey != "" {
			auth["key"] = o.AuthKey
		}
		if o.AuthRef != "" {
			auth["value"] = o.AuthRef
		}
		if o.AddTo != "" {
			auth["add_to"] = o.AddTo
		}
		cfg["auth"] = auth
	}
	if len(o.Headers) > 0 {
		h := make(map[string]interface{}, len(o.Headers))
		for k, v := range o.Headers {
			h[k] = v
		}
		cfg["headers"] = h
	}
	if o.HTTP3 {
		cfg["http3"] = true
	}
	return cfg
}

// HTTP returns an entry for a generic JSON API.
func HTTP(name string, o HTTPOptions) Entry {
	return Entry{Name: name, Config: datasource.Config{Service: "generic-http", ServiceConfig: httpConfig(o)}}
}

// GraphQL returns an entry for a GraphQL endpoint.
func GraphQL(name string, o HTTPOptions) Entry {
	return Entry{Name: name, Config: datasource.Config{Service: "graphql", ServiceConfig: httpConfig(o)}}
}

func httpBuilder(service string, build func(string, HTTPOptions) Entry) Builder {
	return func(fs *pflag.FlagSet) func() (Entry, error) {
		name := fs.String("name", service, "data source name")
		display := fs.String("display-name", "", "name shown to users, defaults to --name")
		endpoint := fs.String("endpoint", "", "base URL")
		authType := fs.String("auth", "", "auth type: basic, bearer or api-key")
		authKey := fs.String("auth-key", "", "api-key header or parameter name, or basic auth user")
		authRef := fs.String("auth-secret", "", "secret reference for the token, key or password")
		addTo := fs.String("add-to", "", "where an api-key goes: header or query")
		headers := fs.StringArray("header", nil, "extra header as <name>=<value>, repeatable")
		http3 := fs.Bool("http3", false, "send requests over HTTP/3")
		return func() (Entry, error) {
			if *endpoint == "" {
				return Entry{}, fmt.Errorf("--endpoint is required")
			}
			h, err := pairs(*headers)
			if err != nil {
				return Entry{}, err
			}
			o := HTTPOptions{
				DisplayName: *display,
				Endpoint:    *endpoint,
				AuthType:    *authType,
				AuthKey:     *authKey,
				AuthRef:     *authRef,
				AddTo:       *addTo,
				Headers:     h,
				HTTP3:       *http3,
			}
			if o.DisplayName == "" {
				o.DisplayName = *name
			}
			return build(*name, o), nil
		}
	}
}

func init() {
	Register("http", httpBuilder("http", HTTP))
	Register("graphql", httpBuilder("graphql", GraphQL))
}
