package plugins

import "github.com/winhowes/RemoteData/app/datasource"

// Entry mirrors one data_sources entry of the server config file.
type Entry struct {
	Name              string `json:"name" yaml:"name"`
	datasource.Config `yaml:",inline"`
}
