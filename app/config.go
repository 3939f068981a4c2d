package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	yaml "gopkg.in/yaml.v3"

	"github.com/winhowes/RemoteData/app/datasource"
	"github.com/winhowes/RemoteData/app/format"
	"github.com/winhowes/RemoteData/app/query"
	"github.com/winhowes/RemoteData/app/sqldb"
)

// Config is the server configuration file.
type Config struct {
	DataSources []DataSourceConfig `json:"data_sources" yaml:"data_sources"`
	Queries     []query.Config     `json:"queries" yaml:"queries"`
	Cache       CacheConfig        `json:"cache" yaml:"cache"`
	Storage     *sqldb.Config      `json:"storage,omitempty" yaml:"storage,omitempty"`
	Transport   TransportConfig    `json:"transport" yaml:"transport"`
	RateLimit   RateLimitConfig    `json:"rate_limit" yaml:"rate_limit"`
	Format      FormatConfig       `json:"format" yaml:"format"`
}

// DataSourceConfig names a data source so queries can refer to it.
type DataSourceConfig struct {
	Name              string `json:"name" yaml:"name"`
	datasource.Config `yaml:",inline"`
}

// CacheConfig selects the response cache backend.
type CacheConfig struct {
	// Backend is memory (default), redis, sql or none.
	Backend string `json:"backend,omitempty" yaml:"backend,omitempty"`
	// DefaultTTL in seconds applies to requests with a TTL of zero.
	DefaultTTL    int    `json:"default_ttl,omitempty" yaml:"default_ttl,omitempty"`
	Coalesce      bool   `json:"coalesce,omitempty" yaml:"coalesce,omitempty"`
	SweepInterval string `json:"sweep_interval,omitempty" yaml:"sweep_interval,omitempty"`
}

// TransportConfig tunes outgoing requests.
type TransportConfig struct {
	Timeout          string   `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	MaxRetries       int      `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
	MaxBodySize      int64    `json:"max_body_size,omitempty" yaml:"max_body_size,omitempty"`
	UserAgent        string   `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`
	AllowedSchemes   []string `json:"allowed_schemes,omitempty" yaml:"allowed_schemes,omitempty"`
	BatchConcurrency int      `json:"batch_concurrency,omitempty" yaml:"batch_concurrency,omitempty"`
	// HostRateLimit caps requests per upstream host per HostRateLimitWindow.
	HostRateLimit       int    `json:"host_rate_limit,omitempty" yaml:"host_rate_limit,omitempty"`
	HostRateLimitWindow string `json:"host_rate_limit_window,omitempty" yaml:"host_rate_limit_window,omitempty"`
}

// RateLimitConfig caps inbound query requests per client address.
type RateLimitConfig struct {
	Requests int    `json:"requests,omitempty" yaml:"requests,omitempty"`
	Window   string `json:"window,omitempty" yaml:"window,omitempty"`
}

// FormatConfig holds the defaults for formatted query responses.
type FormatConfig struct {
	Locale     string `json:"locale,omitempty" yaml:"locale,omitempty"`
	Currency   string `json:"currency,omitempty" yaml:"currency,omitempty"`
	DateLayout string `json:"date_layout,omitempty" yaml:"date_layout,omitempty"`
}

func (f FormatConfig) options() format.Options {
	return format.Options{Locale: f.Locale, Currency: f.Currency, DateLayout: f.DateLayout}
}

// merge overlays the non-empty fields of o on f.
func (f FormatConfig) merge(o *FormatConfig) FormatConfig {
	if o == nil {
		return f
	}
	if o.Locale != "" {
		f.Locale = o.Locale
	}
	if o.Currency != "" {
		f.Currency = o.Currency
	}
	if o.DateLayout != "" {
		f.DateLayout = o.DateLayout
	}
	return f
}

// loadConfig reads a YAML file, or a JSON file with comments when the name
// ends in .json or .jsonc, and validates it.
func loadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	config, err := decodeConfig(filename, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

func decodeConfig(filename string, data []byte) (*Config, error) {
	var config Config
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json", ".jsonc":
		dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&config); err != nil {
			return nil, err
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
	}
	return &config, nil
}
