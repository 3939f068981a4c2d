package bearer

import (
	"context"
	"fmt"

	authplugins "github.com/winhowes/RemoteData/app/auth"
	"github.com/winhowes/RemoteData/app/transport"
)

type params struct {
	Token  string `json:"token"`
	Header string `json:"header"`
	Prefix string `json:"prefix"`
}

// BearerAuth sends a static token, by default as "Authorization: Bearer".
type BearerAuth struct{}

func (BearerAuth) Name() string             { return "bearer" }
func (BearerAuth) RequiredParams() []string { return []string{"token"} }
func (BearerAuth) OptionalParams() []string { return []string{"header", "prefix"} }

func (BearerAuth) ParseParams(m map[string]interface{}) (interface{}, error) {
	p, err := authplugins.ParseParams[params](m)
	if err != nil {
		return nil, err
	}
	if p.Token == "" {
		return nil, fmt.Errorf("missing token")
	}
	if p.Header == "" {
		p.Header = "Authorization"
		if p.Prefix == "" {
			p.Prefix = "Bearer "
		}
	}
	return p, nil
}

func (BearerAuth) AddAuth(ctx context.Context, r *transport.Request, cfg interface{}) error {
	p, ok := cfg.(*params)
	if !ok {
		return fmt.Errorf("invalid config")
	}
	tok, err := authplugins.Resolve(ctx, p.Token)
	if err != nil {
		return err
	}
	r.Header.Set(p.Header, p.Prefix+tok)
	return nil
}

func init() { authplugins.Register(BearerAuth{}) }
