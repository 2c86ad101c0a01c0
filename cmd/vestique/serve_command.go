package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/erazemk/vestique/internal/api"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := ctx.openSession(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()

			if addr == "" {
				addr = s.cfg.Server.Bind
			}
			secret, ttl, err := claimSettings(cmd.Context(), s)
			if err != nil {
				return err
			}

			handler := api.NewRouter(s.tracker, api.ClaimSettings{Secret: secret, TTL: ttl}, s.logger)
			server := &http.Server{
				Addr:              addr,
				Handler:           handler,
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       30 * time.Second,
				WriteTimeout:      120 * time.Second,
				IdleTimeout:       120 * time.Second,
			}

			// Graceful shutdown on SIGINT/SIGTERM.
			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(quit)

			go func() {
				sig := <-quit
				s.logger.Info("shutdown signal received", "signal", sig.String())

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					s.logger.Error("server forced to shutdown", "error", err)
				}
			}()

			s.logger.Info("server started",
				"addr", addr,
				"catalog", s.cfg.Paths.Catalog,
				"backend", s.cfg.Paths.Backend,
				"backbone", s.cfg.Recognition.Backbone,
			)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error("server error", "error", err)
				return err
			}

			s.logger.Info("server stopped, closing catalog")
			return nil
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from config)")
	return cmd
}
