// Command datasources builds data source entries for the RemoteData
// server, validates config files and manages data sources of a running
// server.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
