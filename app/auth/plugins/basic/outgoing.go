package basic

import (
	"context"
	"encoding/base64"
	"fmt"

	authplugins "github.com/winhowes/RemoteData/app/auth"
	"github.com/winhowes/RemoteData/app/transport"
)

type params struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Header   string `json:"header"`
}

// BasicAuth sets HTTP Basic credentials. The password may be a secret
// reference.
type BasicAuth struct{}

func (BasicAuth) Name() string             { return "basic" }
func (BasicAuth) RequiredParams() []string { return []string{"username", "password"} }
func (BasicAuth) OptionalParams() []string { return []string{"header"} }

func (BasicAuth) ParseParams(m map[string]interface{}) (interface{}, error) {
	p, err := authplugins.ParseParams[params](m)
	if err != nil {
		return nil, err
	}
	if p.Username == "" {
		return nil, fmt.Errorf("missing username")
	}
	if p.Header == "" {
		p.Header = "Authorization"
	}
	return p, nil
}

func (BasicAuth) AddAuth(ctx context.Context, r *transport.Request, cfg interface{}) error {
	p, ok := cfg.(*params)
	if !ok {
		return fmt.Errorf("invalid config")
	}
	pass, err := authplugins.Resolve(ctx, p.Password)
	if err != nil {
		return err
	}
	enc := base64.StdEncoding.EncodeToString([]byte(p.Username + ":" + pass))
	r.Header.Set(p.Header, "Basic "+enc)
	return nil
}

func init() { authplugins.Register(BasicAuth{}) }
