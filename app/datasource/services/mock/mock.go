// Package mock is a data source service that answers requests from canned
// responses held in its config. It is meant for local development and
// tests.
package mock

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/winhowes/RemoteData/app/datasource"
	"github.com/winhowes/RemoteData/app/schema"
	"github.com/winhowes/RemoteData/app/transport"
)

const Name = "mock"

type Service struct{}

func (Service) Name() string { return Name }

func (Service) ConfigSchema() *schema.Type {
	return schema.Object(
		schema.Field("display_name", schema.String()),
		schema.Field("endpoint", schema.URL()),
		schema.Field("responses", schema.Record(
			schema.Matching(`^(GET|POST) \S+$`),
			schema.Object(
				schema.Field("status", schema.WithDefault(schema.Integer(), 200)),
				schema.Field("headers", schema.Nullable(schema.Record(schema.String(), schema.SkipSanitize(schema.String())))),
				schema.Field("body", schema.Any()),
			),
		)),
	)
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func (Service) Map(cfg map[string]any) (*datasource.Fields, error) {
	raw, _ := cfg["responses"].(map[string]any)
	responses := make(map[string]response, len(raw))
	for key, v := range raw {
		m, _ := v.(map[string]any)
		r := response{header: http.Header{"Content-Type": {"application/json"}}}
		r.status, _ = schema.ToInt(m["status"])
		if h, ok := m["headers"].(map[string]any); ok {
			for k, hv := range h {
				s, _ := hv.(string)
				r.header.Set(k, s)
			}
		}
		switch b := m["body"].(type) {
		case nil:
		case string:
			r.body = []byte(b)
		default:
			enc, err := json.Marshal(b)
			if err != nil {
				return nil, err
			}
			r.body = enc
		}
		responses[key] = r
	}
	name, _ := cfg["display_name"].(string)
	endpoint, _ := cfg["endpoint"].(string)
	return &datasource.Fields{
		DisplayName: name,
		Endpoint:    endpoint,
		Sender:      sender(responses),
	}, nil
}

// sender matches "<METHOD> <path?query>" first and then "<METHOD> <path>".
func sender(responses map[string]response) transport.Sender {
	return transport.SenderFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		u, err := url.Parse(req.URL)
		if err != nil {
			return nil, err
		}
		r, ok := responses[req.Method+" "+u.RequestURI()]
		if !ok {
			r, ok = responses[req.Method+" "+u.EscapedPath()]
		}
		if !ok {
			return &transport.Response{
				StatusCode: http.StatusNotFound,
				Header:     http.Header{"Content-Type": {"application/json"}},
				Body:       []byte(`{"error":"no mock response"}`),
			}, nil
		}
		return &transport.Response{StatusCode: r.status, Header: r.header.Clone(), Body: r.body}, nil
	})
}
