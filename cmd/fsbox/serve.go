package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nuln/fsbox/internal/server"
)

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve objects of schemes that have a base URL over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(a.stack.Store, server.Options{
				Addr:    a.cfg.Server.Addr,
				Schemes: a.stack.Servable,
				Metrics: a.metrics.Handler(),
				Logger:  a.log,
			})
			if err := srv.Start(ctx); err != nil {
				return err
			}
			a.log.Info("File server stopped")
			return nil
		},
	}

	cmd.Flags().String("addr", "", "listen address (default :8080)")
	return cmd
}
