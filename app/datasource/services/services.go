// Package services assembles the built-in data source services.
package services

import (
	_ "github.com/winhowes/RemoteData/app/auth/plugins"
	"github.com/winhowes/RemoteData/app/datasource"
	"github.com/winhowes/RemoteData/app/datasource/services/airtable"
	"github.com/winhowes/RemoteData/app/datasource/services/generichttp"
	"github.com/winhowes/RemoteData/app/datasource/services/github"
	"github.com/winhowes/RemoteData/app/datasource/services/googlesheets"
	"github.com/winhowes/RemoteData/app/datasource/services/graphql"
	"github.com/winhowes/RemoteData/app/datasource/services/mock"
	"github.com/winhowes/RemoteData/app/datasource/services/shopify"
	"github.com/winhowes/RemoteData/app/query"
	_ "github.com/winhowes/RemoteData/app/secrets/plugins"
	"github.com/winhowes/RemoteData/app/transport"
)

// Options configure the built-in services.
type Options struct {
	// HTTP3 builds the sender for sources that set http3.
	HTTP3 func() transport.Sender
}

// NewRegistry returns a registry holding every built-in service.
func NewRegistry(opts Options) *datasource.Registry {
	return datasource.NewRegistry(
		generichttp.Service{HTTP3: opts.HTTP3},
		graphql.Service{HTTP3: opts.HTTP3},
		github.Service{},
		shopify.Service{},
		airtable.Service{},
		googlesheets.Service{},
		mock.Service{},
	)
}

// Queries returns the prebuilt queries of ds, if its service has any.
func Queries(r *datasource.Registry, ds *datasource.DataSource) ([]query.Query, error) {
	svc, ok := r.Lookup(ds.Service())
	if !ok {
		return nil, datasource.ErrUnknownService
	}
	p, ok := svc.(query.Provider)
	if !ok {
		return nil, nil
	}
	return p.Queries(ds)
}
