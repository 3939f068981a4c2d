package runner_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/winhowes/RemoteData/app/cache"
	"github.com/winhowes/RemoteData/app/datasource"
	"github.com/winhowes/RemoteData/app/datasource/services"
	"github.com/winhowes/RemoteData/app/query"
	"github.com/winhowes/RemoteData/app/runner"
	"github.com/winhowes/RemoteData/app/schema"
	"github.com/winhowes/RemoteData/app/transport"
)

// fakeSender answers every request with handler and records what it saw.
type fakeSender struct {
	mu      sync.Mutex
	reqs    []*transport.Request
	handler func(req *transport.Request) (*transport.Response, error)
}

func (f *fakeSender) Send(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	return f.handler(req)
}

func (f *fakeSender) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

func jsonResponse(body string) func(*transport.Request) (*transport.Response, error) {
	return func(*transport.Request) (*transport.Response, error) {
		return &transport.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": {"application/json"}},
			Body:       []byte(body),
		}, nil
	}
}

func source(t *testing.T, endpoint string) *datasource.DataSource {
	t.Helper()
	ds, err := services.NewRegistry(services.Options{}).FromConfig(datasource.Config{
		Service: "generic-http",
		ServiceConfig: map[string]any{
			"display_name": "API",
			"endpoint":     endpoint,
			"auth":         map[string]any{"type": "bearer", "value": "secret-token"},
		},
	})
	if err != nil {
		t.Fatalf("data source: %v", err)
	}
	return ds
}

func buildQuery(t *testing.T, cfg query.Config) query.Query {
	t.Helper()
	if cfg.Name == "" {
		cfg.Name = "products"
	}
	cfg.DataSource = "api"
	if cfg.OutputSchema == nil {
		cfg.OutputSchema = &query.OutputSchema{
			IsCollection: true,
			Path:         "$.items",
			Fields: []query.OutputField{
				{Key: "id", Name: "ID", Type: schema.KindID},
				{Key: "title", Name: "Title", Type: schema.KindTitle},
				{Key: "price", Name: "Price", Type: schema.KindNumber},
				{Key: "stock", Name: "Stock", Path: "$.inventory.count", Type: schema.KindInteger},
				{Key: "active", Name: "Active", Type: schema.KindBoolean},
			},
		}
	}
	q, err := query.Build(cfg, source(t, "https://api.example.com"))
	if err != nil {
		t.Fatalf("build query: %v", err)
	}
	return q
}

const itemsBody = `{"items":[
	{"id":1,"title":"Mug","price":9.5,"inventory":{"count":3},"active":true,"extra":"ignored"},
	{"id":"p2","title":"Cap","inventory":{}}
]}`

func TestExecuteNormalizesResults(t *testing.T) {
	f := &fakeSender{handler: jsonResponse(itemsBody)}
	r := runner.New(runner.Options{Sender: f})
	q := buildQuery(t, query.Config{Endpoint: "/products"})

	res, err := r.Execute(context.Background(), q, nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	want := []runner.Result{
		{Result: map[string]runner.FieldDescriptor{
			"id":     {Name: "ID", Type: "id", Value: "1"},
			"title":  {Name: "Title", Type: "title", Value: "Mug"},
			"price":  {Name: "Price", Type: "number", Value: 9.5},
			"stock":  {Name: "Stock", Type: "integer", Value: int64(3)},
			"active": {Name: "Active", Type: "boolean", Value: true},
		}},
		{Result: map[string]runner.FieldDescriptor{
			"id":     {Name: "ID", Type: "id", Value: "p2"},
			"title":  {Name: "Title", Type: "title", Value: "Cap"},
			"price":  {Name: "Price", Type: "number", Value: nil},
			"stock":  {Name: "Stock", Type: "integer", Value: nil},
			"active": {Name: "Active", Type: "boolean", Value: nil},
		}},
	}
	if diff := cmp.Diff(want, res.Results); diff != "" {
		t.Fatalf("results mismatch (-want +got):\n%s", diff)
	}
	if res.Metadata[runner.MetaTotalCount].Value != int64(2) {
		t.Fatalf("total_count = %v", res.Metadata[runner.MetaTotalCount])
	}
	if res.Pagination != nil {
		t.Fatalf("unexpected pagination %+v", res.Pagination)
	}

	req := f.reqs[0]
	if req.Method != http.MethodGet || req.URL != "https://api.example.com/products" {
		t.Fatalf("request = %s %s", req.Method, req.URL)
	}
	if req.Header.Get("Authorization") != "Bearer secret-token" || req.Header.Get("Accept") != "application/json" {
		t.Fatalf("headers = %v", req.Header)
	}
}

func TestExecuteMissingFieldIsNull(t *testing.T) {
	f := &fakeSender{handler: jsonResponse(`{"items":[{"id":"a","title":"No price"}]}`)}
	q := buildQuery(t, query.Config{Endpoint: "/p"})
	res, err := runner.New(runner.Options{Sender: f}).Execute(context.Background(), q, nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	got := res.Results[0].Result["price"]
	if diff := cmp.Diff(runner.FieldDescriptor{Name: "Price", Type: "number", Value: nil}, got); diff != "" {
		t.Fatal(diff)
	}
}

func TestExecuteEmptyCollection(t *testing.T) {
	f := &fakeSender{handler: jsonResponse(`{"items":[]}`)}
	q := buildQuery(t, query.Config{Endpoint: "/p"})
	res, err := runner.New(runner.Options{Sender: f}).Execute(context.Background(), q, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Results == nil || len(res.Results) != 0 {
		t.Fatalf("expected empty non-nil results, got %#v", res.Results)
	}
}

func TestExecuteNoContent(t *testing.T) {
	f := &fakeSender{handler: func(*transport.Request) (*transport.Response, error) {
		return &transport.Response{StatusCode: http.StatusNoContent}, nil
	}}
	q := buildQuery(t, query.Config{Endpoint: "/p"})
	res, err := runner.New(runner.Options{Sender: f}).Execute(context.Background(), q, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Results != nil {
		t.Fatalf("expected nil results, got %v", res.Results)
	}
	b, _ := json.Marshal(res)
	if !strings.Contains(string(b), `"results":null`) {
		t.Fatalf("json = %s", b)
	}
}

func TestExecuteSingleItemMissingRoot(t *testing.T) {
	f := &fakeSender{handler: jsonResponse(`{"other":true}`)}
	q := buildQuery(t, query.Config{Endpoint: "/p", OutputSchema: &query.OutputSchema{
		Path:   "$.product",
		Fields: []query.OutputField{{Key: "title", Type: schema.KindString}},
	}})
	res, err := runner.New(runner.Options{Sender: f}).Execute(context.Background(), q, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Results) != 1 || res.Results[0].Result["title"].Value != nil {
		t.Fatalf("results = %+v", res.Results)
	}
}

func TestExecuteErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("status", func(t *testing.T) {
		f := &fakeSender{handler: func(*transport.Request) (*transport.Response, error) {
			return &transport.Response{StatusCode: http.StatusBadGateway, Body: []byte("upstream down")}, nil
		}}
		_, err := runner.New(runner.Options{Sender: f}).Execute(ctx, buildQuery(t, query.Config{Endpoint: "/p"}), nil)
		var terr *transport.Error
		if !errors.As(err, &terr) || terr.StatusCode != http.StatusBadGateway {
			t.Fatalf("expected 502 transport error, got %v", err)
		}
	})

	t.Run("network", func(t *testing.T) {
		f := &fakeSender{handler: func(*transport.Request) (*transport.Response, error) {
			return nil, errors.New("connection refused")
		}}
		_, err := runner.New(runner.Options{Sender: f}).Execute(ctx, buildQuery(t, query.Config{Endpoint: "/p"}), nil)
		var terr *transport.Error
		if !errors.As(err, &terr) || terr.StatusCode != 0 {
			t.Fatalf("expected network transport error, got %v", err)
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		f := &fakeSender{handler: jsonResponse(`{"items": [`)}
		_, err := runner.New(runner.Options{Sender: f}).Execute(ctx, buildQuery(t, query.Config{Endpoint: "/p"}), nil)
		var derr *runner.DeserializationError
		if !errors.As(err, &derr) {
			t.Fatalf("expected DeserializationError, got %v", err)
		}
	})

	t.Run("missing required", func(t *testing.T) {
		f := &fakeSender{handler: jsonResponse(itemsBody)}
		q := buildQuery(t, query.Config{Endpoint: "/p/{id}", InputSchema: query.InputSchema{{Key: "id", Type: query.InputID, Required: true}}})
		_, err := runner.New(runner.Options{Sender: f}).Execute(ctx, q, query.Variables{})
		var berr *runner.RequestBuildError
		if !errors.As(err, &berr) || !strings.Contains(err.Error(), "missing required input variable: id") {
			t.Fatalf("expected RequestBuildError, got %v", err)
		}
		if f.calls() != 0 {
			t.Fatal("transport called for invalid input")
		}
	})

	t.Run("scheme", func(t *testing.T) {
		f := &fakeSender{handler: jsonResponse(itemsBody)}
		q := buildQuery(t, query.Config{Endpoint: "http://insecure.example.com/p"})
		_, err := runner.New(runner.Options{Sender: f}).Execute(ctx, q, nil)
		var berr *runner.RequestBuildError
		if !errors.As(err, &berr) {
			t.Fatalf("expected RequestBuildError, got %v", err)
		}
		_, err = runner.New(runner.Options{Sender: f, AllowedSchemes: []string{"http", "https"}}).Execute(ctx, q, nil)
		if err != nil {
			t.Fatalf("http should be allowed: %v", err)
		}
	})
}

func newCache(t *testing.T) *cache.Middleware {
	t.Helper()
	m, err := cache.New(cache.NewMemoryStore(), cache.Options{})
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestCachedQueryHitsTransportOnce(t *testing.T) {
	f := &fakeSender{handler: jsonResponse(itemsBody)}
	ttl := 300
	q := buildQuery(t, query.Config{Method: "POST", Endpoint: "/search", Body: map[string]any{"q": "{q}"}, CacheTTL: &ttl,
		InputSchema: query.InputSchema{{Key: "q", Type: query.InputString}}})
	r := runner.New(runner.Options{Sender: f, Cache: newCache(t)})

	first, err := r.Execute(context.Background(), q, query.Variables{"q": "mug"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.Execute(context.Background(), q, query.Variables{"q": "mug"})
	if err != nil {
		t.Fatal(err)
	}
	if f.calls() != 1 {
		t.Fatalf("expected one transport call, got %d", f.calls())
	}
	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Fatalf("cache hit changed result:\n%s\n%s", a, b)
	}

	if _, err := r.Execute(context.Background(), q, query.Variables{"q": "cap"}); err != nil {
		t.Fatal(err)
	}
	if f.calls() != 2 {
		t.Fatalf("different input should miss, calls = %d", f.calls())
	}
}

func TestUncachedPostAlwaysSent(t *testing.T) {
	f := &fakeSender{handler: jsonResponse(itemsBody)}
	q := buildQuery(t, query.Config{Method: "POST", Endpoint: "/search"})
	r := runner.New(runner.Options{Sender: f, Cache: newCache(t)})
	for i := 0; i < 2; i++ {
		if _, err := r.Execute(context.Background(), q, nil); err != nil {
			t.Fatal(err)
		}
	}
	if f.calls() != 2 {
		t.Fatalf("expected two transport calls, got %d", f.calls())
	}
}

func TestExecutionResultRoundTrip(t *testing.T) {
	f := &fakeSender{handler: jsonResponse(`{"items":[{"id":1,"title":"Mug","price":3,"inventory":{"count":2},"active":false}],"total":7}`)}
	q := buildQuery(t, query.Config{
		Endpoint: "/p?offset={offset}",
		InputSchema: query.InputSchema{
			{Key: "offset", Type: query.InputOffset, DefaultValue: 0},
			{Key: "per_page", Type: query.InputPerPage, DefaultValue: 1},
		},
		PaginationSchema: &query.PaginationSchema{Fields: []query.OutputField{
			{Key: query.PageTotalItems, Path: "$.total", Type: schema.KindInteger},
		}},
	})
	res, err := runner.New(runner.Options{Sender: f}).Execute(context.Background(), q, nil)
	if err != nil {
		t.Fatal(err)
	}
	assertRoundTrip(t, res)
}

func TestCurrencyFields(t *testing.T) {
	f := &fakeSender{handler: jsonResponse(`{"items":[{"price":12.5,"was":"14.00"},{"price":"call us"}]}`)}
	q := buildQuery(t, query.Config{
		OutputSchema: &query.OutputSchema{
			IsCollection: true,
			Path:         "$.items",
			Fields: []query.OutputField{
				{Key: "price", Type: schema.KindCurrency},
				{Key: "was", Type: schema.KindCurrency},
			},
		},
	})
	res, err := runner.New(runner.Options{Sender: f}).Execute(context.Background(), q, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []any{12.5, 14.0, "call us", nil}
	got := []any{
		res.Results[0].Result["price"].Value,
		res.Results[0].Result["was"].Value,
		res.Results[1].Result["price"].Value,
		res.Results[1].Result["was"].Value,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("currency values mismatch (-want +got):\n%s", diff)
	}
	assertRoundTrip(t, res)
}

func assertRoundTrip(t *testing.T, res *runner.ExecutionResult) {
	t.Helper()
	b, err := json.Marshal(res)
	if err != nil {
		t.Fatal(err)
	}
	var back runner.ExecutionResult
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(res, &back); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestPagination(t *testing.T) {
	tests := []struct {
		name     string
		inputs   query.InputSchema
		vars     query.Variables
		body     string
		paging   []query.OutputField
		typ      string
		next     map[string]any
		previous map[string]any
	}{
		{
			name:   "offset with total",
			inputs: query.InputSchema{{Key: "offset", Type: query.InputOffset}, {Key: "limit", Type: query.InputPerPage, DefaultValue: 2}},
			vars:   query.Variables{"offset": 2},
			body:   `{"items":[{"id":"a"},{"id":"b"}],"total":5}`,
			paging: []query.OutputField{{Key: query.PageTotalItems, Path: "$.total", Type: schema.KindInteger}},
			typ:    runner.PaginationOffset,
			next:   map[string]any{"offset": json.Number("4"), "limit": json.Number("2")},
			previous: map[string]any{
				"offset": json.Number("0"), "limit": json.Number("2"),
			},
		},
		{
			name:   "offset last page",
			inputs: query.InputSchema{{Key: "offset", Type: query.InputOffset}, {Key: "limit", Type: query.InputPerPage, DefaultValue: 2}},
			vars:   query.Variables{"offset": 4},
			body:   `{"items":[{"id":"e"}],"total":5}`,
			paging: []query.OutputField{{Key: query.PageTotalItems, Path: "$.total", Type: schema.KindInteger}},
			typ:    runner.PaginationOffset,
			previous: map[string]any{
				"offset": json.Number("2"), "limit": json.Number("2"),
			},
		},
		{
			name:   "page with has_next flag",
			inputs: query.InputSchema{{Key: "page", Type: query.InputPage}},
			body:   `{"items":[{"id":"a"}],"more":true}`,
			paging: []query.OutputField{{Key: query.PageHasNextPage, Path: "$.more", Type: schema.KindBoolean}},
			typ:    runner.PaginationPage,
			next:   map[string]any{"page": json.Number("2")},
		},
		{
			name:     "page full page implies more",
			inputs:   query.InputSchema{{Key: "page", Type: query.InputPage}, {Key: "n", Type: query.InputPerPage, DefaultValue: 1}},
			vars:     query.Variables{"page": "3"},
			body:     `{"items":[{"id":"a"}]}`,
			typ:      runner.PaginationPage,
			next:     map[string]any{"page": json.Number("4"), "n": json.Number("1")},
			previous: map[string]any{"page": json.Number("2"), "n": json.Number("1")},
		},
		{
			name:   "cursor simple",
			inputs: query.InputSchema{{Key: "cursor", Type: query.InputCursor}},
			body:   `{"items":[{"id":"a"}],"next":"abc"}`,
			paging: []query.OutputField{{Key: query.PageCursorNext, Path: "$.next", Type: schema.KindString}},
			typ:    runner.PaginationCursorSimple,
			next:   map[string]any{"cursor": "abc"},
		},
		{
			name: "cursor",
			inputs: query.InputSchema{
				{Key: "after", Type: query.InputCursorNext},
				{Key: "before", Type: query.InputCursorPrevious},
			},
			vars: query.Variables{"after": "p1"},
			body: `{"items":[{"id":"a"}],"page":{"end":"p2","start":"p0"}}`,
			paging: []query.OutputField{
				{Key: query.PageCursorNext, Path: "$.page.end", Type: schema.KindString},
				{Key: query.PageCursorPrevious, Path: "$.page.start", Type: schema.KindString},
			},
			typ:      runner.PaginationCursor,
			next:     map[string]any{"after": "p2"},
			previous: map[string]any{"before": "p0"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeSender{handler: jsonResponse(tt.body)}
			cfg := query.Config{Endpoint: "/p", InputSchema: tt.inputs, OutputSchema: &query.OutputSchema{
				IsCollection: true, Path: "$.items",
				Fields: []query.OutputField{{Key: "id", Type: schema.KindID}},
			}}
			if tt.paging != nil {
				cfg.PaginationSchema = &query.PaginationSchema{Fields: tt.paging}
			}
			res, err := runner.New(runner.Options{Sender: f}).Execute(context.Background(), buildQuery(t, cfg), tt.vars)
			if err != nil {
				t.Fatal(err)
			}
			p := res.Pagination
			if p == nil || p.Type != tt.typ {
				t.Fatalf("pagination = %+v", p)
			}
			if diff := cmp.Diff(tt.next, p.Next); diff != "" {
				t.Errorf("next mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.previous, p.Previous); diff != "" {
				t.Errorf("previous mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExecuteBatchEmpty(t *testing.T) {
	f := &fakeSender{handler: jsonResponse(itemsBody)}
	res, err := runner.New(runner.Options{Sender: f}).ExecuteBatch(context.Background(), buildQuery(t, query.Config{Endpoint: "/p"}), nil)
	if err != nil {
		t.Fatal(err)
	}
	if f.calls() != 0 {
		t.Fatalf("empty batch issued %d calls", f.calls())
	}
	if len(res.Metadata) != 0 || res.Results == nil || len(res.Results) != 0 {
		t.Fatalf("result = %+v", res)
	}
}

func batchQuery(t *testing.T) query.Query {
	return buildQuery(t, query.Config{
		Endpoint:    "/p/{id}",
		InputSchema: query.InputSchema{{Key: "id", Type: query.InputID, Required: true}, {Key: "lang", Type: query.InputString}},
		OutputSchema: &query.OutputSchema{Fields: []query.OutputField{
			{Key: "id", Type: schema.KindID},
		}},
	})
}

func echoID(req *transport.Request) (*transport.Response, error) {
	id := req.URL[strings.LastIndex(req.URL, "/")+1:]
	if id == "boom" {
		return &transport.Response{StatusCode: http.StatusInternalServerError}, nil
	}
	return &transport.Response{StatusCode: http.StatusOK, Body: []byte(`{"id":"` + id + `"}`)}, nil
}

func TestExecuteBatchPreservesOrder(t *testing.T) {
	for _, conc := range []int{0, 4} {
		f := &fakeSender{handler: func(req *transport.Request) (*transport.Response, error) {
			if strings.HasSuffix(req.URL, "/a") {
				time.Sleep(20 * time.Millisecond)
			}
			return echoID(req)
		}}
		r := runner.New(runner.Options{Sender: f, BatchConcurrency: conc})
		res, err := r.ExecuteBatch(context.Background(), batchQuery(t), []query.Variables{{"id": "a"}, {"id": "b"}, {"id": "c"}})
		if err != nil {
			t.Fatalf("concurrency %d: %v", conc, err)
		}
		var ids []any
		for _, r := range res.Results {
			ids = append(ids, r.Result["id"].Value)
		}
		if diff := cmp.Diff([]any{"a", "b", "c"}, ids); diff != "" {
			t.Fatalf("concurrency %d order mismatch: %s", conc, diff)
		}
		if len(res.QueryInputs) != 3 || res.Pagination != nil {
			t.Fatalf("merged result = %+v", res)
		}
		if res.Metadata[runner.MetaTotalCount].Value != int64(3) {
			t.Fatalf("total = %v", res.Metadata[runner.MetaTotalCount])
		}
	}
}

func TestExecuteBatchFailsWhole(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	for _, conc := range []int{0, 2} {
		f := &fakeSender{handler: echoID}
		r := runner.New(runner.Options{Sender: f, BatchConcurrency: conc})
		res, err := r.ExecuteBatch(context.Background(), batchQuery(t), []query.Variables{{"id": "a"}, {"id": "boom"}, {"id": "c"}})
		var terr *transport.Error
		if !errors.As(err, &terr) || res != nil {
			t.Fatalf("concurrency %d: expected transport error, got %v %v", conc, res, err)
		}
	}
}

type recordingObserver struct {
	mu    sync.Mutex
	names []string
	errs  int
}

func (o *recordingObserver) ObserveQuery(name string, _ time.Duration, _ bool, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.names = append(o.names, name)
	if err != nil {
		o.errs++
	}
}

func TestObserver(t *testing.T) {
	obs := &recordingObserver{}
	f := &fakeSender{handler: echoID}
	r := runner.New(runner.Options{Sender: f, Observer: obs})
	r.Execute(context.Background(), batchQuery(t), query.Variables{"id": "a"})
	r.Execute(context.Background(), batchQuery(t), query.Variables{"id": "boom"})
	if len(obs.names) != 2 || obs.errs != 1 {
		t.Fatalf("observer saw %v with %d errors", obs.names, obs.errs)
	}
}
