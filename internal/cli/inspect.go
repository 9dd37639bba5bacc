package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/koustreak/pgedit/internal/config"
	"github.com/koustreak/pgedit/internal/schema"
)

type inspectOptions struct {
	connection string
	schema     string
	table      string
}

func newInspectCmd(a *app) *cobra.Command {
	opts := &inspectOptions{}
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show table metadata as JSON, or list tables when --table is omitted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.inspect(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.connection, "connection", config.DefaultConnectionID, "Connection id")
	cmd.Flags().StringVar(&opts.schema, "schema", "public", "Schema name")
	cmd.Flags().StringVar(&opts.table, "table", "", "Table name")
	return cmd
}

func (a *app) inspect(cmd *cobra.Command, opts *inspectOptions) error {
	conns, err := a.connections()
	if err != nil {
		return err
	}
	defer conns.Close()

	fetcher := schema.NewFetcher(conns, a.log)
	ctx := cmd.Context()

	var out any
	if opts.table == "" {
		tables, err := fetcher.ListTables(ctx, opts.connection, opts.schema)
		if err != nil {
			return err
		}
		out = tables
	} else {
		md, err := fetcher.Fetch(ctx, opts.connection, opts.schema, opts.table)
		if err != nil {
			return err
		}
		out = md
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
