// Package query binds a data source to the shape of one request. A Query
// turns input variables into an endpoint, headers and body, declares how
// long its response may be cached, and describes the fields the runner
// extracts from the response.
package query

import (
	"context"
	"net/http"

	"github.com/winhowes/RemoteData/app/datasource"
)

// Variables are the user-supplied inputs for one execution.
type Variables map[string]any

// Query is a parameterized request definition bound to a data source.
type Query interface {
	Name() string
	DataSource() *datasource.DataSource
	Endpoint(vars Variables) (string, error)
	Method() string
	RequestHeaders(ctx context.Context, vars Variables) (http.Header, error)
	RequestBody(vars Variables) (any, error)
	// CacheTTL returns seconds to cache the response. Negative values
	// mean never cache; zero defers to the cache default.
	CacheTTL(vars Variables) int
	PreprocessResponse(raw any, vars Variables) (any, error)
	InputSchema() InputSchema
	OutputSchema() *OutputSchema
	PaginationSchema() *PaginationSchema
}

// Provider is implemented by services that ship prebuilt queries.
type Provider interface {
	Queries(ds *datasource.DataSource) ([]Query, error)
}
