package main

import (
	"strings"
	"testing"

	"github.com/winhowes/RemoteData/app/datasource"
	"github.com/winhowes/RemoteData/app/query"
	"github.com/winhowes/RemoteData/app/sqldb"
)

func validConfig() Config {
	ttl := 60
	return Config{
		DataSources: []DataSourceConfig{{Name: "shop", Config: datasource.Config{Service: "generic-http"}}},
		Queries:     []query.Config{{Name: "products", DataSource: "shop", CacheTTL: &ttl}},
	}
}

func TestValidateConfig(t *testing.T) {
	good := validConfig()
	if err := validateConfig(&good); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ttl := func(v int) *int { return &v }
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing data source name", func(c *Config) { c.DataSources[0].Name = "" }, "missing name"},
		{"invalid data source name", func(c *Config) { c.DataSources[0].Name = "a b" }, "invalid name"},
		{"duplicate data source", func(c *Config) {
			c.DataSources = append(c.DataSources, DataSourceConfig{Name: "SHOP", Config: datasource.Config{Service: "mock"}})
		}, "duplicate data source"},
		{"missing service", func(c *Config) { c.DataSources[0].Service = "" }, "missing service"},
		{"bad uuid", func(c *Config) { c.DataSources[0].UUID = "nope" }, "invalid uuid"},
		{"missing query name", func(c *Config) { c.Queries[0].Name = "" }, "missing name"},
		{"invalid query name", func(c *Config) { c.Queries[0].Name = "a.b" }, "invalid name"},
		{"duplicate query", func(c *Config) { c.Queries = append(c.Queries, c.Queries[0]) }, "duplicate query"},
		{"missing query data source", func(c *Config) { c.Queries[0].DataSource = "" }, "missing data_source"},
		{"cache ttl below -1", func(c *Config) { c.Queries[0].CacheTTL = ttl(-2) }, "cache_ttl"},
		{"unknown cache backend", func(c *Config) { c.Cache.Backend = "disk" }, "cache backend"},
		{"sql cache without storage", func(c *Config) { c.Cache.Backend = "sql" }, "requires storage"},
		{"negative default ttl", func(c *Config) { c.Cache.DefaultTTL = -5 }, "default_ttl"},
		{"bad sweep interval", func(c *Config) { c.Cache.SweepInterval = "soon" }, "sweep_interval"},
		{"bad storage type", func(c *Config) { c.Storage = &sqldb.Config{Type: "mysql"} }, "storage type"},
		{"bad timeout", func(c *Config) { c.Transport.Timeout = "-1s" }, "timeout"},
		{"bad host window", func(c *Config) { c.Transport.HostRateLimitWindow = "x" }, "host_rate_limit_window"},
		{"negative host limit", func(c *Config) { c.Transport.HostRateLimit = -1 }, "host_rate_limit"},
		{"negative concurrency", func(c *Config) { c.Transport.BatchConcurrency = -1 }, "batch_concurrency"},
		{"bad scheme", func(c *Config) { c.Transport.AllowedSchemes = []string{"ftp"} }, "allowed scheme"},
		{"negative rate limit", func(c *Config) { c.RateLimit.Requests = -1 }, "rate_limit requests"},
		{"bad rate window", func(c *Config) { c.RateLimit.Window = "0s" }, "rate_limit window"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := validateConfig(&cfg)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestValidateConfigAccepts(t *testing.T) {
	cfg := validConfig()
	cfg.Queries[0].CacheTTL = nil
	cfg.Cache = CacheConfig{Backend: "sql", DefaultTTL: -1, SweepInterval: "30s"}
	cfg.Storage = &sqldb.Config{Type: "postgres", DSN: "postgres://localhost/db"}
	cfg.Transport = TransportConfig{Timeout: "5s", AllowedSchemes: []string{"HTTP", "https"}, BatchConcurrency: 4}
	cfg.RateLimit = RateLimitConfig{Requests: 10, Window: "1m"}
	if err := validateConfig(&cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
