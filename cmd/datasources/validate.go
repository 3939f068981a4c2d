package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tidwall/jsonc"
	yaml "gopkg.in/yaml.v3"

	"github.com/winhowes/RemoteData/app/datasource"
	"github.com/winhowes/RemoteData/app/query"
	"github.com/winhowes/RemoteData/cmd/datasources/plugins"
)

// configFile is the part of the server config this command checks. Other
// sections are ignored.
type configFile struct {
	DataSources []plugins.Entry `json:"data_sources" yaml:"data_sources"`
	Queries     []query.Config  `json:"queries" yaml:"queries"`
}

func readConfigFile(name string) (*configFile, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	var cfg configFile
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".jsonc":
		err = json.Unmarshal(jsonc.ToJSON(data), &cfg)
	default:
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &cfg, nil
}

// validateFile builds every data source and query in the file and reports
// each one on w. It returns an error if any failed.
func validateFile(w io.Writer, reg *datasource.Registry, name string) error {
	cfg, err := readConfigFile(name)
	if err != nil {
		return err
	}
	failed := 0
	sources := make(map[string]*datasource.DataSource)
	for _, e := range cfg.DataSources {
		ds, err := reg.FromConfig(e.Config)
		if err != nil {
			failed++
			fmt.Fprintf(w, "data source %s: %v\n", e.Name, err)
			continue
		}
		sources[e.Name] = ds
		sources[ds.UUID()] = ds
		fmt.Fprintf(w, "data source %s: ok (%s)\n", e.Name, ds.UUID())
	}
	for _, qc := range cfg.Queries {
		ds, ok := sources[qc.DataSource]
		if !ok {
			failed++
			fmt.Fprintf(w, "query %s: unknown data source %s\n", qc.Name, qc.DataSource)
			continue
		}
		if _, err := query.Build(qc, ds); err != nil {
			failed++
			fmt.Fprintf(w, "query %s: %v\n", qc.Name, err)
			continue
		}
		fmt.Fprintf(w, "query %s: ok\n", qc.Name)
	}
	if failed > 0 {
		return fmt.Errorf("%d invalid entries in %s", failed, name)
	}
	return nil
}

func validateCmd(reg *datasource.Registry) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config file>",
		Short: "Check the data sources and queries of a server config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateFile(cmd.OutOrStdout(), reg, args[0])
		},
	}
}
