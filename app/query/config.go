package query

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/winhowes/RemoteData/app/datasource"
	"github.com/winhowes/RemoteData/app/schema"
)

// Query kinds accepted in Config.Kind.
const (
	KindHTTP            = "http"
	KindGraphQL         = "graphql"
	KindGraphQLMutation = "graphql_mutation"
)

// Config is the serialized form of a query.
type Config struct {
	Name             string            `json:"name" yaml:"name"`
	DataSource       string            `json:"data_source" yaml:"data_source"`
	Kind             string            `json:"kind,omitempty" yaml:"kind,omitempty"`
	Method           string            `json:"method,omitempty" yaml:"method,omitempty"`
	Endpoint         string            `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Headers          map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body             any               `json:"body,omitempty" yaml:"body,omitempty"`
	GraphQLQuery     string            `json:"graphql_query,omitempty" yaml:"graphql_query,omitempty"`
	InputSchema      InputSchema       `json:"input_schema,omitempty" yaml:"input_schema,omitempty"`
	OutputSchema     *OutputSchema     `json:"output_schema" yaml:"output_schema"`
	PaginationSchema *PaginationSchema `json:"pagination_schema,omitempty" yaml:"pagination_schema,omitempty"`
	CacheTTL         *int              `json:"cache_ttl,omitempty" yaml:"cache_ttl,omitempty"`
}

// Validate checks cfg without binding it to a data source.
func (cfg Config) Validate() error {
	v := schema.Validator{Entity: "query " + cfg.Name}
	fail := func(path, msg string) error {
		return &schema.ValidationError{Entity: v.Entity, Path: path, Message: msg}
	}
	if cfg.Name == "" {
		return fail("$.name", "is required")
	}
	if cfg.DataSource == "" {
		return fail("$.data_source", "is required")
	}
	switch cfg.Kind {
	case "", KindHTTP:
		switch strings.ToUpper(cfg.Method) {
		case "", http.MethodGet, http.MethodPost:
		default:
			return fail("$.method", "must be GET or POST")
		}
		if cfg.GraphQLQuery != "" {
			return fail("$.graphql_query", "is only valid for graphql queries")
		}
	case KindGraphQL, KindGraphQLMutation:
		if cfg.GraphQLQuery == "" {
			return fail("$.graphql_query", "is required")
		}
		if _, err := IsMutation(cfg.GraphQLQuery); err != nil {
			return fail("$.graphql_query", err.Error())
		}
		if cfg.Body != nil {
			return fail("$.body", "is not valid for graphql queries")
		}
	default:
		return fail("$.kind", fmt.Sprintf("must be one of %s, %s, %s", KindHTTP, KindGraphQL, KindGraphQLMutation))
	}
	if err := cfg.InputSchema.Validate(schema.Validator{Entity: v.Entity, Root: "$.input_schema"}); err != nil {
		return err
	}
	if err := cfg.OutputSchema.Validate(schema.Validator{Entity: v.Entity, Root: "$.output_schema"}); err != nil {
		return err
	}
	return cfg.PaginationSchema.Validate(schema.Validator{Entity: v.Entity, Root: "$.pagination_schema"})
}

// Build validates cfg and binds it to ds.
func Build(cfg Config, ds *datasource.DataSource) (Query, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base := HTTPQuery{
		QueryName:    cfg.Name,
		Source:       ds,
		HTTPMethod:   strings.ToUpper(cfg.Method),
		Path:         cfg.Endpoint,
		Headers:      cfg.Headers,
		BodyTemplate: cfg.Body,
		Inputs:       cfg.InputSchema,
		Output:       cfg.OutputSchema,
		Paging:       cfg.PaginationSchema,
		TTL:          cfg.CacheTTL,
	}
	switch cfg.Kind {
	case KindGraphQL, KindGraphQLMutation:
		q, err := NewGraphQL(base, cfg.GraphQLQuery)
		if err != nil {
			return nil, err
		}
		if _, ok := q.(*GraphQLMutation); !ok && cfg.Kind == KindGraphQLMutation {
			return nil, &schema.ValidationError{Entity: "query " + cfg.Name, Path: "$.graphql_query", Message: "declares no mutation"}
		}
		return q, nil
	}
	return &base, nil
}
