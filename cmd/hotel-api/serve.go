package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	auth "github.com/mavi3006/hotel-auth"
	"github.com/mavi3006/hotel-auth/internal/server"
)

func serveCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.PingContext(ctx); err != nil {
				return auth.DependencyError(err, "database unreachable")
			}

			if cfg.Database.Migrate {
				if err := auth.Migrate(ctx, db, logger); err != nil {
					return err
				}
			}

			srv, err := server.New(cfg, db, logger)
			if err != nil {
				return err
			}

			errc := make(chan error, 1)
			go func() {
				errc <- srv.Listen()
			}()

			select {
			case err := <-errc:
				srv.Close()
				return err
			case <-ctx.Done():
			}

			logger.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout)

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
				return err
			}

			logger.Info("stopped")
			return nil
		},
	}
}
