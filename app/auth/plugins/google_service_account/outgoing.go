package googlesa

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	authplugins "github.com/winhowes/RemoteData/app/auth"
	"github.com/winhowes/RemoteData/app/transport"
)

// DefaultScope grants read access to Google Sheets.
const DefaultScope = "https://www.googleapis.com/auth/spreadsheets.readonly"

// HTTPClient performs token requests. It can be swapped in tests.
var HTTPClient = &http.Client{Timeout: 10 * time.Second}

type params struct {
	Credentials string   `json:"credentials"`
	Scopes      []string `json:"scopes"`
}

var (
	mu      sync.Mutex
	sources = map[string]oauth2.TokenSource{}
)

// ServiceAccount mints OAuth access tokens from a Google service account key
// and sends them in the Authorization header.
type ServiceAccount struct{}

func (ServiceAccount) Name() string             { return "google_service_account" }
func (ServiceAccount) RequiredParams() []string { return []string{"credentials"} }
func (ServiceAccount) OptionalParams() []string { return []string{"scopes"} }

func (ServiceAccount) ParseParams(m map[string]interface{}) (interface{}, error) {
	p, err := authplugins.ParseParams[params](m)
	if err != nil {
		return nil, err
	}
	if p.Credentials == "" {
		return nil, fmt.Errorf("missing credentials")
	}
	if len(p.Scopes) == 0 {
		p.Scopes = []string{DefaultScope}
	}
	return p, nil
}

func (ServiceAccount) AddAuth(ctx context.Context, r *transport.Request, cfg interface{}) error {
	p, ok := cfg.(*params)
	if !ok {
		return fmt.Errorf("invalid config")
	}
	raw, err := authplugins.Resolve(ctx, p.Credentials)
	if err != nil {
		return err
	}
	ts, err := tokenSource(raw, p.Scopes)
	if err != nil {
		return err
	}
	tok, err := ts.Token()
	if err != nil {
		return fmt.Errorf("google token: %w", err)
	}
	r.Header.Set("Authorization", tok.Type()+" "+tok.AccessToken)
	return nil
}

// tokenSource returns the shared source for one key and scope set so tokens
// are reused until they expire.
func tokenSource(creds string, scopes []string) (oauth2.TokenSource, error) {
	key := creds + "|" + strings.Join(scopes, " ")
	mu.Lock()
	defer mu.Unlock()
	if ts, ok := sources[key]; ok {
		return ts, nil
	}
	conf, err := google.JWTConfigFromJSON([]byte(creds), scopes...)
	if err != nil {
		return nil, err
	}
	// Sources outlive any single request, so they get their own context.
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, HTTPClient)
	ts := oauth2.ReuseTokenSource(nil, conf.TokenSource(ctx))
	sources[key] = ts
	return ts, nil
}

func init() { authplugins.Register(ServiceAccount{}) }
