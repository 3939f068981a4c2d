// Package graphql is the data source service for GraphQL endpoints. It
// shares the generic HTTP config shape.
package graphql

import (
	"github.com/winhowes/RemoteData/app/datasource"
	"github.com/winhowes/RemoteData/app/datasource/services/generichttp"
	"github.com/winhowes/RemoteData/app/schema"
	"github.com/winhowes/RemoteData/app/transport"
)

const Name = "graphql"

type Service struct {
	HTTP3 func() transport.Sender
}

func (Service) Name() string { return Name }

func (Service) ConfigSchema() *schema.Type { return generichttp.Schema() }

func (s Service) Map(cfg map[string]any) (*datasource.Fields, error) {
	f, err := generichttp.Map(cfg, s.HTTP3)
	if err != nil {
		return nil, err
	}
	if f.Headers == nil {
		f.Headers = map[string]string{}
	}
	if _, ok := f.Headers["Content-Type"]; !ok {
		f.Headers["Content-Type"] = "application/json"
	}
	return f, nil
}
