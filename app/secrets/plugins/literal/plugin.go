package plugins

import (
	"context"

	"github.com/winhowes/RemoteData/app/secrets"
)

// literalPlugin echoes the identifier. Intended for local development and
// mock data sources; the value is stored in the config in plain text.
type literalPlugin struct{}

func (literalPlugin) Prefix() string { return "literal" }

func (literalPlugin) Load(ctx context.Context, id string) (string, error) {
	return id, nil
}

func init() { secrets.Register(literalPlugin{}) }
