package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/koustreak/pgedit/internal/changeset"
)

type previewOptions struct {
	schema string
	table  string
	file   string
}

func newPreviewCmd(a *app) *cobra.Command {
	opts := &previewOptions{}
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Print the SQL a change-set file would run",
		Long: `Reads a JSON array of changes and prints one statement per change with
values inlined. Nothing is validated and no database is contacted. Use
--file - to read from stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPreview(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.schema, "schema", "public", "Schema of the target table")
	cmd.Flags().StringVar(&opts.table, "table", "", "Target table (required)")
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "Change-set JSON file (required)")
	_ = cmd.MarkFlagRequired("table")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runPreview(cmd *cobra.Command, opts *previewOptions) error {
	var data []byte
	var err error
	if opts.file == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(opts.file)
	}
	if err != nil {
		return fmt.Errorf("failed to read change-set: %w", err)
	}

	cs, err := changeset.Decode(data)
	if err != nil {
		return err
	}
	stmts, err := changeset.GenerateAll(opts.schema, opts.table, cs)
	if err != nil {
		return err
	}
	if len(stmts) == 0 {
		return nil
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), changeset.Preview(stmts))
	return err
}
