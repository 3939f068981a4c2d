// Package plugins registers the built-in secret sources.
package plugins

import (
	_ "github.com/winhowes/RemoteData/app/secrets/plugins/age"
	_ "github.com/winhowes/RemoteData/app/secrets/plugins/env"
	_ "github.com/winhowes/RemoteData/app/secrets/plugins/file"
	_ "github.com/winhowes/RemoteData/app/secrets/plugins/literal"
)
