package main

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var configNameRegexp = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// validateConfig ensures the Config contains sane values before use. Service
// configs and query shapes are validated against their schemas when the
// catalog is built.
func validateConfig(c *Config) error {
	sources := make(map[string]struct{})
	for idx := range c.DataSources {
		ds := &c.DataSources[idx]
		if ds.Name == "" {
			return fmt.Errorf("data source at index %d missing name", idx)
		}
		lower := strings.ToLower(ds.Name)
		if !configNameRegexp.MatchString(lower) {
			return fmt.Errorf("data source %s has invalid name", ds.Name)
		}
		if _, dup := sources[lower]; dup {
			return fmt.Errorf("duplicate data source name %s", ds.Name)
		}
		sources[lower] = struct{}{}
		if ds.Service == "" {
			return fmt.Errorf("data source %s missing service", ds.Name)
		}
		if ds.UUID != "" {
			if _, err := uuid.Parse(ds.UUID); err != nil {
				return fmt.Errorf("data source %s has invalid uuid", ds.Name)
			}
		}
	}

	queries := make(map[string]struct{})
	for idx := range c.Queries {
		q := &c.Queries[idx]
		if q.Name == "" {
			return fmt.Errorf("query at index %d missing name", idx)
		}
		if !configNameRegexp.MatchString(q.Name) {
			return fmt.Errorf("query %s has invalid name", q.Name)
		}
		if _, dup := queries[q.Name]; dup {
			return fmt.Errorf("duplicate query name %s", q.Name)
		}
		queries[q.Name] = struct{}{}
		if q.DataSource == "" {
			return fmt.Errorf("query %s missing data_source", q.Name)
		}
		if q.CacheTTL != nil && *q.CacheTTL < -1 {
			return fmt.Errorf("query %s has invalid cache_ttl; use -1 to disable caching", q.Name)
		}
	}

	switch c.Cache.Backend {
	case "", "memory", "redis", "none":
	case "sql":
		if c.Storage == nil {
			return fmt.Errorf("cache backend sql requires storage")
		}
	default:
		return fmt.Errorf("invalid cache backend %s", c.Cache.Backend)
	}
	if c.Cache.DefaultTTL < -1 {
		return fmt.Errorf("invalid cache default_ttl %d", c.Cache.DefaultTTL)
	}
	if err := checkDuration("cache sweep_interval", c.Cache.SweepInterval); err != nil {
		return err
	}

	if c.Storage != nil {
		switch strings.ToLower(c.Storage.Type) {
		case "", "sqlite", "sqlite3", "postgres", "postgresql":
		default:
			return fmt.Errorf("invalid storage type %s", c.Storage.Type)
		}
	}

	t := c.Transport
	if err := checkDuration("transport timeout", t.Timeout); err != nil {
		return err
	}
	if err := checkDuration("transport host_rate_limit_window", t.HostRateLimitWindow); err != nil {
		return err
	}
	if t.HostRateLimit < 0 {
		return fmt.Errorf("invalid transport host_rate_limit")
	}
	if t.BatchConcurrency < 0 {
		return fmt.Errorf("invalid transport batch_concurrency")
	}
	for _, s := range t.AllowedSchemes {
		switch strings.ToLower(s) {
		case "http", "https":
		default:
			return fmt.Errorf("invalid transport allowed scheme %s", s)
		}
	}

	if c.RateLimit.Requests < 0 {
		return fmt.Errorf("invalid rate_limit requests")
	}
	return checkDuration("rate_limit window", c.RateLimit.Window)
}

func checkDuration(name, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fmt.Errorf("invalid %s", name)
	}
	return nil
}
