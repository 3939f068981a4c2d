package query

import (
	"fmt"
	"net/http"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/winhowes/RemoteData/app/cache"
)

// GraphQLQuery posts a stored document with the input variables. Unlike
// plain POST requests its responses are cacheable.
type GraphQLQuery struct {
	HTTPQuery
	Document string
	// VariablesFunc reshapes the input variables before they are sent.
	VariablesFunc func(vars Variables) (map[string]any, error)
}

// GraphQLMutation is a GraphQL operation with side effects. It is never
// cached.
type GraphQLMutation struct {
	GraphQLQuery
}

// NewGraphQL parses document and returns a *GraphQLMutation when any of
// its operations is a mutation, and a *GraphQLQuery otherwise.
func NewGraphQL(base HTTPQuery, document string) (Query, error) {
	mutation, err := IsMutation(document)
	if err != nil {
		return nil, err
	}
	q := GraphQLQuery{HTTPQuery: base, Document: document}
	if mutation {
		return &GraphQLMutation{GraphQLQuery: q}, nil
	}
	return &q, nil
}

// IsMutation reports whether document contains a mutation operation.
func IsMutation(document string) (bool, error) {
	doc, err := parser.ParseQuery(&ast.Source{Name: "query", Input: document})
	if err != nil {
		return false, fmt.Errorf("parse graphql document: %w", err)
	}
	if len(doc.Operations) == 0 {
		return false, fmt.Errorf("graphql document has no operations")
	}
	for _, op := range doc.Operations {
		if op.Operation == ast.Mutation {
			return true, nil
		}
	}
	return false, nil
}

func (q *GraphQLQuery) Method() string { return http.MethodPost }

func (q *GraphQLQuery) RequestBody(vars Variables) (any, error) {
	variables := map[string]any(vars)
	if q.VariablesFunc != nil {
		v, err := q.VariablesFunc(vars)
		if err != nil {
			return nil, err
		}
		variables = v
	}
	if variables == nil {
		variables = map[string]any{}
	}
	return map[string]any{"query": q.Document, "variables": variables}, nil
}

func (q *GraphQLQuery) CacheTTL(Variables) int {
	if q.TTL != nil {
		return normalizeTTL(*q.TTL)
	}
	return cache.DefaultLifetime
}

func (q *GraphQLMutation) CacheTTL(Variables) int { return cache.NoStore }
