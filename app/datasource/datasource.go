// Package datasource describes how to reach one external API. A DataSource
// is built from a serialized Config by the named service, which validates
// the service-specific settings and maps them onto the generic fields every
// query needs.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	authplugins "github.com/winhowes/RemoteData/app/auth"
	"github.com/winhowes/RemoteData/app/schema"
	"github.com/winhowes/RemoteData/app/transport"
)

var (
	// ErrUnknownService is returned for a service name nobody registered.
	ErrUnknownService = errors.New("unknown service")
	// ErrNotFound is returned by loaders for a missing UUID.
	ErrNotFound = errors.New("data source not found")
)

// Config is the serialized form of a data source.
type Config struct {
	UUID          string                 `json:"uuid,omitempty" yaml:"uuid,omitempty"`
	Service       string                 `json:"service" yaml:"service"`
	ServiceConfig map[string]interface{} `json:"service_config" yaml:"service_config"`
}

// Fields is the generic shape a service maps its configuration onto.
type Fields struct {
	DisplayName string
	Endpoint    string
	ImageURL    string
	Headers     map[string]string
	// HeaderFunc computes headers per request, for values that change over
	// time such as short-lived tokens.
	HeaderFunc func(ctx context.Context) (http.Header, error)
	Auth       []authplugins.Config
	// Sender replaces the shared transport for this source.
	Sender transport.Sender
	// Extra carries service-specific settings that prebuilt queries use.
	Extra map[string]interface{}
}

// Service maps one external API's configuration onto Fields.
type Service interface {
	Name() string
	ConfigSchema() *schema.Type
	Map(cfg map[string]interface{}) (*Fields, error)
}

// DataSource is an immutable, validated data source.
type DataSource struct {
	id      string
	service string
	config  map[string]interface{}
	fields  Fields
}

// Loader fetches serialized configs by UUID.
type Loader interface {
	Load(ctx context.Context, uuid string) (*Config, error)
}

// FromConfig validates cfg against the service schema in r and maps it.
func (r *Registry) FromConfig(cfg Config) (*DataSource, error) {
	svc, ok := r.Lookup(cfg.Service)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownService, cfg.Service)
	}
	raw := cfg.ServiceConfig
	if raw == nil {
		raw = map[string]interface{}{}
	}
	v := schema.Validator{Entity: cfg.Service, Root: "$.service_config"}
	sanitized, err := v.Check(raw, svc.ConfigSchema())
	if err != nil {
		return nil, err
	}
	m, _ := sanitized.(map[string]interface{})
	fields, err := svc.Map(m)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Service, err)
	}
	if err := (schema.Validator{Entity: cfg.Service, Root: "$.endpoint"}).Validate(fields.Endpoint, schema.URL()); err != nil {
		return nil, err
	}
	for i := range fields.Auth {
		if err := fields.Auth[i].Prepare(); err != nil {
			return nil, fmt.Errorf("%s: %w", cfg.Service, err)
		}
	}

	id := cfg.UUID
	if id == "" {
		id = uuid.NewSHA1(uuid.NameSpaceURL, []byte(cfg.Service+":"+fields.DisplayName+":"+fields.Endpoint)).String()
	} else if _, err := uuid.Parse(id); err != nil {
		return nil, &schema.ValidationError{Entity: cfg.Service, Path: "$.uuid", Message: "must be a UUID"}
	}
	return &DataSource{id: id, service: svc.Name(), config: m, fields: *fields}, nil
}

// FromSerialized loads the config for id through loader and builds it.
func (r *Registry) FromSerialized(ctx context.Context, loader Loader, id string) (*DataSource, error) {
	cfg, err := loader.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if cfg.UUID == "" {
		cfg.UUID = id
	}
	return r.FromConfig(*cfg)
}

func (d *DataSource) UUID() string        { return d.id }
func (d *DataSource) Service() string     { return d.service }
func (d *DataSource) DisplayName() string { return d.fields.DisplayName }
func (d *DataSource) Endpoint() string    { return d.fields.Endpoint }
func (d *DataSource) ImageURL() string    { return d.fields.ImageURL }

// Sender returns the per-source transport, or nil to use the shared one.
func (d *DataSource) Sender() transport.Sender { return d.fields.Sender }

// Extra returns a service-specific setting.
func (d *DataSource) Extra(key string) interface{} { return d.fields.Extra[key] }

// Config returns the sanitized serialized form.
func (d *DataSource) Config() Config {
	return Config{UUID: d.id, Service: d.service, ServiceConfig: d.config}
}

// RequestHeaders returns the headers every request to this source carries.
func (d *DataSource) RequestHeaders(ctx context.Context) (http.Header, error) {
	h := http.Header{}
	for k, v := range d.fields.Headers {
		h.Set(k, v)
	}
	if d.fields.HeaderFunc != nil {
		dyn, err := d.fields.HeaderFunc(ctx)
		if err != nil {
			return nil, err
		}
		for k, vals := range dyn {
			h[http.CanonicalHeaderKey(k)] = vals
		}
	}
	return h, nil
}

// Authorize applies the configured auth plugins to req.
func (d *DataSource) Authorize(ctx context.Context, req *transport.Request) error {
	for i := range d.fields.Auth {
		if err := d.fields.Auth[i].Apply(ctx, req); err != nil {
			return fmt.Errorf("auth %s: %w", d.fields.Auth[i].Type, err)
		}
	}
	return nil
}

// Resolve joins a relative path onto the source endpoint. Absolute URLs are
// returned unchanged.
func (d *DataSource) Resolve(path string) string {
	if path == "" {
		return d.fields.Endpoint
	}
	if strings.Contains(path, "://") {
		return path
	}
	if strings.HasPrefix(path, "?") {
		return d.fields.Endpoint + path
	}
	return strings.TrimRight(d.fields.Endpoint, "/") + "/" + strings.TrimLeft(path, "/")
}
