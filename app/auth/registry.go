// Package authplugins applies outgoing credentials to data source requests.
// Plugins register by name; data source configs reference them as
// {type, params}.
package authplugins

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/winhowes/RemoteData/app/secrets"
	"github.com/winhowes/RemoteData/app/transport"
)

// Plugin adds authentication to outbound requests. ParseParams validates
// the raw parameter map and converts it into the plugin's own config.
type Plugin interface {
	Name() string
	ParseParams(map[string]interface{}) (interface{}, error)
	AddAuth(ctx context.Context, req *transport.Request, params interface{}) error
	RequiredParams() []string
	OptionalParams() []string
}

var (
	mu       sync.RWMutex
	registry = map[string]Plugin{}
)

// Register adds p to the registry, replacing any plugin with the same name.
func Register(p Plugin) {
	mu.Lock()
	defer mu.Unlock()
	registry[p.Name()] = p
}

// Get retrieves a plugin by name.
func Get(name string) Plugin {
	mu.RLock()
	defer mu.RUnlock()
	return registry[name]
}

// Names lists registered plugins in sorted order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// ParseParams decodes m into T, rejecting unknown fields.
func ParseParams[T any](m map[string]interface{}) (*T, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	var out T
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Resolve returns the secret behind ref when it names a registered secret
// source, and ref itself otherwise.
func Resolve(ctx context.Context, ref string) (string, error) {
	if !secrets.IsReference(ref) {
		return ref, nil
	}
	return secrets.LoadSecret(ctx, ref)
}

// Config references a plugin from a data source definition.
type Config struct {
	Type   string                 `json:"type" yaml:"type"`
	Params map[string]interface{} `json:"params,omitempty" yaml:"params,omitempty"`

	plugin Plugin
	parsed interface{}
}

// Prepare looks up the plugin and parses its parameters.
func (c *Config) Prepare() error {
	p := Get(c.Type)
	if p == nil {
		return fmt.Errorf("unknown auth type %q", c.Type)
	}
	params := c.Params
	if params == nil {
		params = map[string]interface{}{}
	}
	for _, req := range p.RequiredParams() {
		if _, ok := params[req]; !ok {
			return fmt.Errorf("auth %s: missing required param %q", c.Type, req)
		}
	}
	parsed, err := p.ParseParams(params)
	if err != nil {
		return fmt.Errorf("auth %s: %w", c.Type, err)
	}
	c.plugin, c.parsed = p, parsed
	return nil
}

// Apply adds credentials to req. Prepare must have succeeded.
func (c *Config) Apply(ctx context.Context, req *transport.Request) error {
	if c.plugin == nil {
		if err := c.Prepare(); err != nil {
			return err
		}
	}
	return c.plugin.AddAuth(ctx, req, c.parsed)
}
