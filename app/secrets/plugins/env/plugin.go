package plugins

import (
	"context"
	"fmt"
	"os"

	"github.com/winhowes/RemoteData/app/secrets"
)

// envPlugin loads secrets from environment variables.
type envPlugin struct{}

func (envPlugin) Prefix() string { return "env" }

func (envPlugin) Load(ctx context.Context, id string) (string, error) {
	v, ok := os.LookupEnv(id)
	if !ok {
		return "", fmt.Errorf("environment variable %s not set", id)
	}
	return v, nil
}

func init() { secrets.Register(envPlugin{}) }
