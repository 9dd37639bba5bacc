package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/koustreak/pgedit/internal/audit"
	"github.com/koustreak/pgedit/internal/executor"
	"github.com/koustreak/pgedit/internal/prefs"
	"github.com/koustreak/pgedit/internal/schema"
	"github.com/koustreak/pgedit/internal/server"
	"github.com/koustreak/pgedit/internal/session"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd)
		},
	}
}

func (a *app) serve(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conns, err := a.connections()
	if err != nil {
		return err
	}
	defer conns.Close()

	sinks := audit.Multi{audit.NewLogSink(a.log)}
	store, closeStore, err := a.auditStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()
	if store != nil {
		sinks = append(sinks, store)
	}

	fetcher := schema.NewFetcher(conns, a.log)
	exec := executor.New(conns, fetcher,
		executor.WithAudit(sinks),
		executor.WithLogger(a.log),
		executor.WithTxTimeout(a.cfg.Pool.TxTimeout),
	)
	views := session.NewManager(conns, fetcher, exec,
		session.WithPageSize(a.cfg.Grid.PageSize),
		session.WithLogger(a.log),
	)
	defer views.CloseAll()

	preferences, err := prefs.Open(a.cfg.Preferences.Path, a.log)
	if err != nil {
		return err
	}

	a.log.With().
		Int("connections", len(a.cfg.Connections)).
		Bool("audit_store", store != nil).
		Logger().Info("pgedit starting")

	srv := server.New(views, fetcher, preferences, a.log)
	return srv.ListenAndServe(ctx, a.cfg.Server.Addr(), a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout)
}
