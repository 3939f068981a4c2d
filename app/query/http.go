package query

import (
	"context"
	"net/http"

	"github.com/winhowes/RemoteData/app/cache"
	"github.com/winhowes/RemoteData/app/datasource"
)

// HTTPQuery is a REST request against a data source. Path is a template
// with {key} placeholders resolved against the data source endpoint. The
// optional hooks replace the template behavior for prebuilt queries.
type HTTPQuery struct {
	QueryName    string
	Source       *datasource.DataSource
	HTTPMethod   string
	Path         string
	Headers      map[string]string
	BodyTemplate any
	Inputs       InputSchema
	Output       *OutputSchema
	Paging       *PaginationSchema
	// TTL overrides the method default when set.
	TTL *int

	EndpointFunc   func(vars Variables) (string, error)
	BodyFunc       func(vars Variables) (any, error)
	PreprocessFunc func(raw any, vars Variables) (any, error)
}

func (q *HTTPQuery) Name() string                        { return q.QueryName }
func (q *HTTPQuery) DataSource() *datasource.DataSource  { return q.Source }
func (q *HTTPQuery) InputSchema() InputSchema            { return q.Inputs }
func (q *HTTPQuery) OutputSchema() *OutputSchema         { return q.Output }
func (q *HTTPQuery) PaginationSchema() *PaginationSchema { return q.Paging }

// Method defaults to GET.
func (q *HTTPQuery) Method() string {
	if q.HTTPMethod == "" {
		return http.MethodGet
	}
	return q.HTTPMethod
}

func (q *HTTPQuery) Endpoint(vars Variables) (string, error) {
	if q.EndpointFunc != nil {
		return q.EndpointFunc(vars)
	}
	path, err := expandURL(q.Path, vars)
	if err != nil {
		return "", err
	}
	return q.Source.Resolve(path), nil
}

func (q *HTTPQuery) RequestHeaders(ctx context.Context, vars Variables) (http.Header, error) {
	h, err := q.Source.RequestHeaders(ctx)
	if err != nil {
		return nil, err
	}
	for k, tmpl := range q.Headers {
		v, err := expandString(tmpl, vars)
		if err != nil {
			return nil, err
		}
		h.Set(k, v)
	}
	return h, nil
}

func (q *HTTPQuery) RequestBody(vars Variables) (any, error) {
	if q.BodyFunc != nil {
		return q.BodyFunc(vars)
	}
	if q.BodyTemplate == nil {
		return nil, nil
	}
	return expandBody(q.BodyTemplate, vars)
}

// CacheTTL returns the configured TTL, or the method default: GET responses
// are cached for cache.DefaultLifetime and everything else is not cached.
func (q *HTTPQuery) CacheTTL(Variables) int {
	if q.TTL != nil {
		return normalizeTTL(*q.TTL)
	}
	if q.Method() == http.MethodGet {
		return cache.DefaultLifetime
	}
	return cache.NoStore
}

func (q *HTTPQuery) PreprocessResponse(raw any, vars Variables) (any, error) {
	if q.PreprocessFunc != nil {
		return q.PreprocessFunc(raw, vars)
	}
	return raw, nil
}

// normalizeTTL maps every non-positive configured TTL to NoStore. A
// configured zero means "do not cache", not "use the default".
func normalizeTTL(ttl int) int {
	if ttl <= 0 {
		return cache.NoStore
	}
	return ttl
}
