// Package runner executes queries: it builds the request, sends it through
// the cache middleware and transport, and normalizes the response into an
// ExecutionResult.
package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/winhowes/RemoteData/app/cache"
	"github.com/winhowes/RemoteData/app/query"
	"github.com/winhowes/RemoteData/app/schema"
	"github.com/winhowes/RemoteData/app/transport"
)

// Observer receives one call per executed query.
type Observer interface {
	ObserveQuery(name string, d time.Duration, cacheHit bool, err error)
}

// Options configure a Runner.
type Options struct {
	// Sender is used for data sources without their own transport.
	Sender transport.Sender
	// Cache is optional; nil sends every request to the origin.
	Cache *cache.Middleware
	// AllowedSchemes defaults to https only.
	AllowedSchemes []string
	// BatchConcurrency above one dispatches batch members in parallel.
	BatchConcurrency int
	Logger           *zap.Logger
	Observer         Observer
	Now              func() time.Time
}

// Runner executes queries. It is safe for concurrent use.
type Runner struct {
	opts    Options
	schemes map[string]bool
	logger  *zap.Logger
}

// New returns a Runner.
func New(opts Options) *Runner {
	if len(opts.AllowedSchemes) == 0 {
		opts.AllowedSchemes = []string{"https"}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	r := &Runner{opts: opts, schemes: make(map[string]bool), logger: opts.Logger}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	for _, s := range opts.AllowedSchemes {
		r.schemes[strings.ToLower(s)] = true
	}
	return r
}

// Execute runs q once with vars.
func (r *Runner) Execute(ctx context.Context, q query.Query, vars query.Variables) (*ExecutionResult, error) {
	start := time.Now()
	res, hit, err := r.execute(ctx, q, vars)
	d := time.Since(start)
	if r.opts.Observer != nil {
		r.opts.Observer.ObserveQuery(q.Name(), d, hit, err)
	}
	if err != nil {
		r.logger.Warn("query failed", zap.String("query", q.Name()), zap.Duration("duration", d), zap.Error(err))
		return nil, err
	}
	r.logger.Debug("query executed",
		zap.String("query", q.Name()),
		zap.Bool("cache_hit", hit),
		zap.Int("results", len(res.Results)),
		zap.Duration("duration", d),
	)
	return res, nil
}

// ExecuteBatch runs q for every entry of batch and merges the results in
// order. The first failure fails the whole batch. Queries with exactly one
// id:list input are consolidated into a single request.
func (r *Runner) ExecuteBatch(ctx context.Context, q query.Query, batch []query.Variables) (*ExecutionResult, error) {
	if len(batch) == 0 {
		return &ExecutionResult{
			QueryName:   q.Name(),
			Metadata:    map[string]FieldDescriptor{},
			Results:     []Result{},
			QueryInputs: []map[string]any{},
		}, nil
	}
	in := q.InputSchema()
	if in.Count(query.InputIDList) == 1 {
		merged, err := mergeIDs(q, batch)
		if err != nil {
			return nil, err
		}
		return r.Execute(ctx, q, merged)
	}
	if len(batch) == 1 {
		return r.Execute(ctx, q, batch[0])
	}

	results := make([]*ExecutionResult, len(batch))
	if r.opts.BatchConcurrency > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.opts.BatchConcurrency)
		for i, vars := range batch {
			g.Go(func() error {
				res, err := r.Execute(gctx, q, vars)
				if err != nil {
					return err
				}
				results[i] = res
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i, vars := range batch {
			res, err := r.Execute(ctx, q, vars)
			if err != nil {
				return nil, err
			}
			results[i] = res
		}
	}
	return merge(q.Name(), results), nil
}

func mergeIDs(q query.Query, batch []query.Variables) (query.Variables, error) {
	in := q.InputSchema()
	list, _ := in.Find(query.InputIDList)
	ids := []string{}
	for _, vars := range batch {
		prepared, err := in.Prepare(vars)
		if err != nil {
			return nil, &RequestBuildError{Query: q.Name(), Err: err}
		}
		l, _ := prepared[list.Key].([]string)
		ids = append(ids, l...)
	}
	merged := make(query.Variables, len(batch[0]))
	for k, v := range batch[0] {
		merged[k] = v
	}
	merged[list.Key] = ids
	return merged, nil
}

func merge(name string, parts []*ExecutionResult) *ExecutionResult {
	out := &ExecutionResult{QueryName: name, Metadata: map[string]FieldDescriptor{}}
	var total int64
	sawResults := false
	for _, p := range parts {
		if p.Results != nil {
			sawResults = true
			out.Results = append(out.Results, p.Results...)
		}
		out.QueryInputs = append(out.QueryInputs, p.QueryInputs...)
		if n, ok := p.Metadata[MetaTotalCount].Value.(int64); ok {
			total += n
		}
	}
	if sawResults && out.Results == nil {
		out.Results = []Result{}
	}
	if lu, ok := parts[0].Metadata[MetaLastUpdated]; ok {
		out.Metadata[MetaLastUpdated] = lu
	}
	out.Metadata[MetaTotalCount] = FieldDescriptor{Name: "Total count", Type: string(schema.KindInteger), Value: total}
	return out
}

func (r *Runner) execute(ctx context.Context, q query.Query, vars query.Variables) (*ExecutionResult, bool, error) {
	if q.OutputSchema() == nil {
		return nil, false, &RequestBuildError{Query: q.Name(), Err: errors.New("query has no output schema")}
	}
	input, err := q.InputSchema().Prepare(vars)
	if err != nil {
		return nil, false, &RequestBuildError{Query: q.Name(), Err: err}
	}
	req, err := r.request(ctx, q, input)
	if err != nil {
		return nil, false, &RequestBuildError{Query: q.Name(), Err: err}
	}

	resp, err := r.send(ctx, q, req, q.CacheTTL(input))
	if err != nil {
		var te *transport.Error
		if errors.As(err, &te) {
			return nil, false, err
		}
		return nil, false, &transport.Error{URL: req.URL, Err: err}
	}
	if !resp.OK() {
		return nil, false, &transport.Error{StatusCode: resp.StatusCode, URL: req.URL, Body: resp.Body}
	}
	res, err := r.result(q, input, resp)
	return res, resp.CacheHit, err
}

func (r *Runner) request(ctx context.Context, q query.Query, vars query.Variables) (*transport.Request, error) {
	endpoint, err := q.Endpoint(vars)
	if err != nil {
		return nil, fmt.Errorf("endpoint: %w", err)
	}
	if err := r.checkURL(endpoint); err != nil {
		return nil, err
	}
	header, err := q.RequestHeaders(ctx, vars)
	if err != nil {
		return nil, fmt.Errorf("headers: %w", err)
	}
	if header == nil {
		header = http.Header{}
	}
	body, err := q.RequestBody(vars)
	if err != nil {
		return nil, fmt.Errorf("body: %w", err)
	}
	req := &transport.Request{Method: q.Method(), URL: endpoint, Header: header}
	if body != nil {
		if req.Body, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("body: %w", err)
		}
		if header.Get("Content-Type") == "" {
			header.Set("Content-Type", "application/json")
		}
	}
	if header.Get("Accept") == "" {
		header.Set("Accept", "application/json")
	}
	if err := q.DataSource().Authorize(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

func (r *Runner) checkURL(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	if !r.schemes[strings.ToLower(u.Scheme)] {
		return fmt.Errorf("endpoint %q: scheme %q is not allowed", endpoint, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("endpoint %q has no host", endpoint)
	}
	return nil
}

func (r *Runner) send(ctx context.Context, q query.Query, req *transport.Request, ttl int) (*transport.Response, error) {
	sender := q.DataSource().Sender()
	if sender == nil {
		sender = r.opts.Sender
	}
	if sender == nil {
		return nil, errors.New("no transport configured")
	}
	if r.opts.Cache == nil {
		return sender.Send(ctx, req)
	}
	return r.opts.Cache.Fetch(ctx, sender, req, ttl)
}

func (r *Runner) result(q query.Query, vars query.Variables, resp *transport.Response) (*ExecutionResult, error) {
	inputs, err := canonical(vars)
	if err != nil {
		return nil, &RequestBuildError{Query: q.Name(), Err: err}
	}
	res := &ExecutionResult{QueryName: q.Name(), QueryInputs: []map[string]any{inputs}}
	if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(resp.Body)) == 0 {
		res.Metadata = r.metadata(resp, 0)
		return res, nil
	}

	var raw any
	if err := json.Unmarshal(resp.Body, &raw); err != nil {
		return nil, &DeserializationError{Query: q.Name(), Err: err}
	}
	data, err := q.PreprocessResponse(raw, vars)
	if err != nil {
		return nil, &DeserializationError{Query: q.Name(), Err: err}
	}
	out := q.OutputSchema()
	list, err := items(data, out)
	if err != nil {
		return nil, &DeserializationError{Query: q.Name(), Err: err}
	}
	res.Results = make([]Result, 0, len(list))
	for _, item := range list {
		fields, err := extract(item, out.Fields)
		if err != nil {
			return nil, &DeserializationError{Query: q.Name(), Err: err}
		}
		res.Results = append(res.Results, Result{Result: fields})
	}
	if res.Pagination, err = paginate(q, vars, data, len(list)); err != nil {
		return nil, &DeserializationError{Query: q.Name(), Err: err}
	}
	res.Metadata = r.metadata(resp, len(res.Results))
	return res, nil
}

// Metadata keys.
const (
	MetaLastUpdated = "last_updated"
	MetaTotalCount  = "total_count"
)

func (r *Runner) metadata(resp *transport.Response, count int) map[string]FieldDescriptor {
	at := resp.StoredAt
	if at.IsZero() {
		if d, err := http.ParseTime(resp.Header.Get("Date")); err == nil {
			at = d
		} else {
			at = r.opts.Now()
		}
	}
	return map[string]FieldDescriptor{
		MetaLastUpdated: {Name: "Last updated", Type: string(schema.KindString), Value: at.UTC().Format(time.DateTime)},
		MetaTotalCount:  {Name: "Total count", Type: string(schema.KindInteger), Value: int64(count)},
	}
}
