// Package shopify is the data source service for the Shopify Storefront
// GraphQL API.
package shopify

import (
	"fmt"
	"net/url"

	authplugins "github.com/winhowes/RemoteData/app/auth"
	"github.com/winhowes/RemoteData/app/datasource"
	"github.com/winhowes/RemoteData/app/query"
	"github.com/winhowes/RemoteData/app/schema"
)

const (
	Name       = "shopify"
	APIVersion = "2024-04"
	// TokenHeader carries the Storefront access token.
	TokenHeader = "X-Shopify-Storefront-Access-Token"
)

// StoreURL formats the storefront base URL for a store. It can be swapped
// in tests.
var StoreURL = func(store string) string { return fmt.Sprintf("https://%s.myshopify.com", store) }

type Service struct{}

func (Service) Name() string { return Name }

func (Service) ConfigSchema() *schema.Type {
	return schema.Object(
		schema.Field("store_name", schema.Matching(`^[A-Za-z0-9][A-Za-z0-9-]*$`)),
		schema.Field("access_token", schema.SkipSanitize(schema.String())),
		schema.Field("display_name", schema.Nullable(schema.String())),
	)
}

func (Service) Map(cfg map[string]any) (*datasource.Fields, error) {
	store, _ := cfg["store_name"].(string)
	token, _ := cfg["access_token"].(string)
	name, _ := cfg["display_name"].(string)
	if name == "" {
		name = store
	}
	return &datasource.Fields{
		DisplayName: name,
		Endpoint:    fmt.Sprintf("%s/api/%s/graphql.json", StoreURL(store), APIVersion),
		ImageURL:    "https://cdn.shopify.com/static/shopify-favicon.png",
		Headers:     map[string]string{"Content-Type": "application/json"},
		Auth: []authplugins.Config{{Type: "api_key", Params: map[string]interface{}{
			"key": TokenHeader, "value": token, "add_to": "header",
		}}},
		Extra: map[string]any{"store_name": store},
	}, nil
}

const productFields = `
      id
      title
      handle
      descriptionHtml
      featuredImage { url altText }
      priceRange { maxVariantPrice { amount currencyCode } }`

const getProduct = `query GetProduct($id: ID!) {
  product(id: $id) {` + productFields + `
  }
}`

const searchProducts = `query SearchProducts($search: String, $first: Int, $last: Int, $after: String, $before: String) {
  products(first: $first, last: $last, after: $after, before: $before, query: $search, sortKey: BEST_SELLING) {
    edges {
      cursor
      node {` + productFields + `
      }
    }
    pageInfo { hasNextPage hasPreviousPage startCursor endCursor }
  }
}`

func productOutput(store string) []query.OutputField {
	return []query.OutputField{
		{Key: "id", Name: "Product ID", Type: schema.KindID},
		{Key: "title", Name: "Title", Type: schema.KindTitle},
		{Key: "description", Name: "Product description", Path: "$.descriptionHtml", Type: schema.KindHTML},
		{Key: "image_url", Name: "Item image URL", Path: "$.featuredImage.url", Type: schema.KindImageURL},
		{Key: "image_alt_text", Name: "Item image alt text", Path: "$.featuredImage.altText", Type: schema.KindImageAlt},
		{Key: "price", Name: "Item price", Path: "$.priceRange.maxVariantPrice.amount", Type: schema.KindCurrency},
		{Key: "currency_code", Name: "Currency", Path: "$.priceRange.maxVariantPrice.currencyCode", Type: schema.KindString},
		{Key: "details_button_url", Name: "Details URL", Type: schema.KindButtonURL, Generate: func(item any) any {
			m, _ := item.(map[string]any)
			handle, _ := m["handle"].(string)
			if handle == "" {
				return nil
			}
			return StoreURL(store) + "/products/" + url.PathEscape(handle)
		}},
	}
}

func (Service) Queries(ds *datasource.DataSource) ([]query.Query, error) {
	store, _ := ds.Extra("store_name").(string)
	get, err := query.NewGraphQL(query.HTTPQuery{
		QueryName: "shopify_get_product",
		Source:    ds,
		Inputs: query.InputSchema{
			{Key: "id", Name: "Product ID", Type: query.InputID, Required: true},
		},
		Output: &query.OutputSchema{Path: "$.data.product", Fields: productOutput(store)},
	}, getProduct)
	if err != nil {
		return nil, err
	}

	base := query.HTTPQuery{
		QueryName: "shopify_search_products",
		Source:    ds,
		Inputs: query.InputSchema{
			{Key: "search", Name: "Search terms", Type: query.InputSearch, DefaultValue: ""},
			{Key: "per_page", Name: "Items per page", Type: query.InputPerPage, DefaultValue: 10},
			{Key: "cursor_next", Name: "Next page cursor", Type: query.InputCursorNext},
			{Key: "cursor_previous", Name: "Previous page cursor", Type: query.InputCursorPrevious},
		},
		Output: &query.OutputSchema{
			IsCollection: true,
			Path:         "$.data.products.edges[*].node",
			Fields:       productOutput(store),
		},
		Paging: &query.PaginationSchema{Fields: []query.OutputField{
			{Key: query.PageCursorNext, Path: "$.data.products.pageInfo.endCursor", Type: schema.KindString},
			{Key: query.PageCursorPrevious, Path: "$.data.products.pageInfo.startCursor", Type: schema.KindString},
			{Key: query.PageHasNextPage, Path: "$.data.products.pageInfo.hasNextPage", Type: schema.KindBoolean},
		}},
		PreprocessFunc: trimCursors,
	}
	search, err := query.NewGraphQL(base, searchProducts)
	if err != nil {
		return nil, err
	}
	search.(*query.GraphQLQuery).VariablesFunc = searchVariables
	return []query.Query{get, search}, nil
}

// searchVariables pages forward with first/after unless a previous cursor
// was given.
func searchVariables(vars query.Variables) (map[string]any, error) {
	out := map[string]any{"search": vars["search"]}
	perPage := vars["per_page"]
	if before, ok := vars["cursor_previous"].(string); ok && before != "" {
		out["last"] = perPage
		out["before"] = before
		return out, nil
	}
	out["first"] = perPage
	if after, ok := vars["cursor_next"].(string); ok && after != "" {
		out["after"] = after
	}
	return out, nil
}

// trimCursors drops cursors for pages that do not exist.
func trimCursors(raw any, _ query.Variables) (any, error) {
	root, ok := raw.(map[string]any)
	if !ok {
		return raw, nil
	}
	data, _ := root["data"].(map[string]any)
	products, _ := data["products"].(map[string]any)
	info, _ := products["pageInfo"].(map[string]any)
	if info == nil {
		return raw, nil
	}
	if next, _ := info["hasNextPage"].(bool); !next {
		info["endCursor"] = nil
	}
	if prev, _ := info["hasPreviousPage"].(bool); !prev {
		info["startCursor"] = nil
	}
	return raw, nil
}
