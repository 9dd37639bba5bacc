// Package cli holds the pgedit commands.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/koustreak/pgedit/internal/audit"
	"github.com/koustreak/pgedit/internal/config"
	"github.com/koustreak/pgedit/internal/database/postgres"
	"github.com/koustreak/pgedit/internal/filestore/minio"
	"github.com/koustreak/pgedit/internal/logger"
)

// app is the state shared by every command after flags are parsed.
type app struct {
	configPath string
	debug      bool

	cfg *config.Config
	log *logger.Logger

	// dialer replaces the pgxpool dialer when set.
	dialer postgres.Dialer
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{})
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "pgedit",
		Short: "Browse and edit PostgreSQL tables through validated, transactional change-sets",
		Long: `pgedit serves a paged, filterable grid over PostgreSQL tables and applies
edits as change-sets: validated against the live schema, then executed in a
single transaction.

Commands:
  serve     Start the HTTP server
  preview   Print the SQL a change-set file would run
  inspect   Show table metadata or list tables
  audit     Read stored execution records`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "pgedit.yaml", "Config file (optional; env vars override it)")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging")

	root.AddCommand(newServeCmd(a), newPreviewCmd(a), newInspectCmd(a), newAuditCmd(a))
	return root
}

func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	lc := cfg.Logger()
	if a.debug {
		lc.Level = "debug"
	}
	lc.Output = cmd.ErrOrStderr()
	a.cfg = cfg
	a.log = logger.New(lc)
	return nil
}

// connections registers every configured connection with a new manager.
func (a *app) connections() (*postgres.ConnectionManager, error) {
	var opts []postgres.ManagerOption
	if a.dialer != nil {
		opts = append(opts, postgres.WithDialer(a.dialer))
	}
	m := postgres.NewConnectionManager(a.log, opts...)
	for _, c := range a.cfg.Connections {
		if err := m.Register(c.ID, a.cfg.Database(c)); err != nil {
			m.Close()
			return nil, err
		}
	}
	return m, nil
}

// auditStore opens the object-store sink. It returns nil when audit
// storage is disabled.
func (a *app) auditStore(ctx context.Context) (*audit.ObjectSink, func(), error) {
	if !a.cfg.Audit.Enabled {
		return nil, func() {}, nil
	}
	fc := a.cfg.FileStore()
	drv, err := minio.New(ctx, fc)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open audit store: %w", err)
	}
	if err := drv.EnsureBucket(ctx, fc.Bucket); err != nil {
		_ = drv.Close()
		return nil, nil, fmt.Errorf("failed to prepare audit bucket: %w", err)
	}
	return audit.NewObjectSink(drv, fc.Bucket, a.cfg.Audit.Prefix), func() { _ = drv.Close() }, nil
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
