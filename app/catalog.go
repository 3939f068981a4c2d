package main

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/winhowes/RemoteData/app/datasource"
	"github.com/winhowes/RemoteData/app/datasource/services"
	"github.com/winhowes/RemoteData/app/query"
	"github.com/winhowes/RemoteData/app/store"
)

// catalog is the immutable set of data sources and queries served by one
// runtime. Data sources are addressable by name and by UUID. Prebuilt
// service queries are named "<data source>.<query>".
type catalog struct {
	sources map[string]*datasource.DataSource
	names   map[string]string
	queries map[string]query.Query
}

func (c *catalog) source(ref string) (*datasource.DataSource, bool) {
	ds, ok := c.sources[ref]
	return ds, ok
}

func (c *catalog) query(name string) (query.Query, bool) {
	q, ok := c.queries[name]
	return q, ok
}

func (c *catalog) queryNames() []string {
	out := make([]string, 0, len(c.queries))
	for n := range c.queries {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// sourceName returns the configured name of ds, or its UUID for sources
// that only exist in storage.
func (c *catalog) sourceName(ds *datasource.DataSource) string {
	if n, ok := c.names[ds.UUID()]; ok {
		return n
	}
	return ds.UUID()
}

func buildCatalog(ctx context.Context, cfg *Config, reg *datasource.Registry, st store.Store, logger *zap.Logger) (*catalog, error) {
	c := &catalog{
		sources: make(map[string]*datasource.DataSource),
		names:   make(map[string]string),
		queries: make(map[string]query.Query),
	}
	for _, e := range cfg.DataSources {
		c.names[e.UUID] = e.Name
	}

	recs, err := st.List(ctx, store.Filter{})
	if err != nil {
		return nil, fmt.Errorf("list data sources: %w", err)
	}
	for _, r := range recs {
		ds, err := reg.FromConfig(r.Config)
		if err != nil {
			if r.Origin == store.OriginFile {
				return nil, err
			}
			logger.Warn("skipping invalid stored data source", zap.String("uuid", r.Config.UUID), zap.Error(err))
			continue
		}
		name := c.sourceName(ds)
		c.sources[ds.UUID()] = ds
		c.sources[name] = ds

		prebuilt, err := services.Queries(reg, ds)
		if err != nil {
			return nil, fmt.Errorf("data source %s: %w", name, err)
		}
		for _, q := range prebuilt {
			c.queries[name+"."+q.Name()] = q
		}
	}

	for _, qc := range cfg.Queries {
		ds, ok := c.source(qc.DataSource)
		if !ok {
			return nil, fmt.Errorf("query %s: unknown data source %s", qc.Name, qc.DataSource)
		}
		q, err := query.Build(qc, ds)
		if err != nil {
			return nil, err
		}
		c.queries[qc.Name] = q
	}
	return c, nil
}
