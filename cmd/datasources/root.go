package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	yaml "gopkg.in/yaml.v3"

	"github.com/winhowes/RemoteData/app/datasource"
	"github.com/winhowes/RemoteData/app/datasource/services"
	"github.com/winhowes/RemoteData/app/schema"
	"github.com/winhowes/RemoteData/app/store"
	"github.com/winhowes/RemoteData/app/transport"
	"github.com/winhowes/RemoteData/cmd/datasources/plugins"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// newRootCmd wires the per-service builders and the server commands. The
// server address comes from --server or RDB_SERVER.
func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("RDB")
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:          "datasources",
		Short:        "Build and manage RemoteData data sources",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("server", "http://localhost:8080", "RemoteData server address")
	v.BindPFlag("server", root.PersistentFlags().Lookup("server"))

	reg := cliRegistry()
	for _, name := range plugins.List() {
		root.AddCommand(builderCmd(v, reg, name, plugins.Get(name)))
	}
	root.AddCommand(validateCmd(reg), listCmd(v), servicesCmd(reg))
	return root
}

// cliRegistry only validates configs, so HTTP/3 sources get no transport.
func cliRegistry() *datasource.Registry {
	return services.NewRegistry(services.Options{HTTP3: func() transport.Sender { return nil }})
}

func serviceName(plugin string) string {
	if plugin == "http" {
		return "generic-http"
	}
	return plugin
}

func builderCmd(v *viper.Viper, reg *datasource.Registry, name string, b plugins.Builder) *cobra.Command {
	cmd := &cobra.Command{
		Use:   name,
		Short: fmt.Sprintf("Build a %s data source", name),
		Args:  cobra.NoArgs,
	}
	if svc, ok := reg.Lookup(serviceName(name)); ok {
		cmd.Long = fmt.Sprintf("Build a %s data source.\n\nservice_config schema:\n%s", name, schema.Describe(svc.ConfigSchema()))
	}
	build := b(cmd.Flags())
	apply := cmd.Flags().Bool("apply", false, "POST the data source to the server instead of printing it")
	output := cmd.Flags().StringP("output", "o", "yaml", "output format: yaml or json")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		e, err := build()
		if err != nil {
			return err
		}
		ds, err := reg.FromConfig(e.Config)
		if err != nil {
			return err
		}
		if *apply {
			return postDataSource(cmd.OutOrStdout(), v.GetString("server"), e.Config)
		}
		e.UUID = ds.UUID()
		return printEntry(cmd.OutOrStdout(), *output, e)
	}
	return cmd
}

func printEntry(w io.Writer, format string, e plugins.Entry) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(e)
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode([]plugins.Entry{e}); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown output format %s", format)
}

func serverURL(server, path string) string {
	return strings.TrimRight(server, "/") + path
}

func serverError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("server error: %s\n%s", resp.Status, strings.TrimSpace(string(body)))
}

func postDataSource(w io.Writer, server string, cfg datasource.Config) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	resp, err := httpClient.Post(serverURL(server, "/data-sources"), "application/json", bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return serverError(resp)
	}
	var created datasource.Config
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return err
	}
	fmt.Fprintf(w, "data source %s added\n", created.UUID)
	return nil
}

func listCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the data sources of a running server",
		Args:  cobra.NoArgs,
	}
	service := cmd.Flags().String("service", "", "only list data sources of this service")
	origin := cmd.Flags().String("origin", "", "only list data sources from file or storage")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		u := serverURL(v.GetString("server"), "/data-sources")
		req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		q := req.URL.Query()
		if *service != "" {
			q.Set("service", *service)
		}
		if *origin != "" {
			q.Set("origin", *origin)
		}
		req.URL.RawQuery = q.Encode()
		resp, err := httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return serverError(resp)
		}
		var recs []store.Record
		if err := json.NewDecoder(resp.Body).Decode(&recs); err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "UUID\tSERVICE\tORIGIN")
		for _, r := range recs {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Config.UUID, r.Config.Service, r.Origin)
		}
		return tw.Flush()
	}
	return cmd
}

func servicesCmd(reg *datasource.Registry) *cobra.Command {
	return &cobra.Command{
		Use:   "services",
		Short: "Describe the config schema of every service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, n := range reg.Services() {
				svc, _ := reg.Lookup(n)
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\n", n, schema.Describe(svc.ConfigSchema()))
			}
			return nil
		},
	}
}
