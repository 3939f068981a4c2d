// Package plugins registers the built-in outgoing auth plugins.
package plugins

import (
	_ "github.com/winhowes/RemoteData/app/auth/plugins/apikey"
	_ "github.com/winhowes/RemoteData/app/auth/plugins/basic"
	_ "github.com/winhowes/RemoteData/app/auth/plugins/bearer"
	_ "github.com/winhowes/RemoteData/app/auth/plugins/google_service_account"
)
