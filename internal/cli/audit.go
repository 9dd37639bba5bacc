package cli

import (
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/koustreak/pgedit/internal/audit"
)

func newAuditCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Read execution records from the audit store",
	}

	var day string
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List execution records, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withAuditStore(cmd, func(s *audit.ObjectSink) error {
				recs, err := s.List(cmd.Context(), day, limit)
				if err != nil {
					return err
				}
				return writeIndented(cmd, recs)
			})
		},
	}
	list.Flags().StringVar(&day, "day", "", "Only records from this day (YYYY/MM/DD)")
	list.Flags().IntVar(&limit, "limit", 100, "Maximum number of records")

	var getDay string
	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one execution record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return err
			}
			return a.withAuditStore(cmd, func(s *audit.ObjectSink) error {
				rec, err := s.Get(cmd.Context(), getDay, id)
				if err != nil {
					return err
				}
				return writeIndented(cmd, rec)
			})
		},
	}
	get.Flags().StringVar(&getDay, "day", "", "Day the record was written (YYYY/MM/DD, required)")
	_ = get.MarkFlagRequired("day")

	cmd.AddCommand(list, get)
	return cmd
}

func (a *app) withAuditStore(cmd *cobra.Command, fn func(*audit.ObjectSink) error) error {
	store, closeStore, err := a.auditStore(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore()
	if store == nil {
		return errors.New("audit storage is disabled; set audit.enabled")
	}
	return fn(store)
}

func writeIndented(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
