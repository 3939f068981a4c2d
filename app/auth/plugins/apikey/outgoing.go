package apikey

import (
	"context"
	"fmt"
	"net/url"

	authplugins "github.com/winhowes/RemoteData/app/auth"
	"github.com/winhowes/RemoteData/app/transport"
)

type params struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	AddTo string `json:"add_to"`
}

// APIKey adds a named key either as a header or as a query parameter.
type APIKey struct{}

func (APIKey) Name() string             { return "api_key" }
func (APIKey) RequiredParams() []string { return []string{"key", "value"} }
func (APIKey) OptionalParams() []string { return []string{"add_to"} }

func (APIKey) ParseParams(m map[string]interface{}) (interface{}, error) {
	p, err := authplugins.ParseParams[params](m)
	if err != nil {
		return nil, err
	}
	if p.Key == "" {
		return nil, fmt.Errorf("missing key")
	}
	switch p.AddTo {
	case "":
		p.AddTo = "header"
	case "header", "query":
	default:
		return nil, fmt.Errorf("add_to must be header or query, got %q", p.AddTo)
	}
	return p, nil
}

func (APIKey) AddAuth(ctx context.Context, r *transport.Request, cfg interface{}) error {
	p, ok := cfg.(*params)
	if !ok {
		return fmt.Errorf("invalid config")
	}
	val, err := authplugins.Resolve(ctx, p.Value)
	if err != nil {
		return err
	}
	if p.AddTo == "header" {
		r.Header.Set(p.Key, val)
		return nil
	}
	u, err := url.Parse(r.URL)
	if err != nil {
		return err
	}
	q := u.Query()
	q.Set(p.Key, val)
	u.RawQuery = q.Encode()
	r.URL = u.String()
	return nil
}

func init() { authplugins.Register(APIKey{}) }
