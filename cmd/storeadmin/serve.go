package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	adapthttp "storeadmin/internal/adapter/http"
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the admin console over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := build(ctx, cfg, logger, withStderr(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer rt.close()

			if err := rt.auth.Init(ctx); err != nil {
				return fmt.Errorf("init auth state: %w", err)
			}

			opts := []adapthttp.Option{
				adapthttp.WithMetrics(rt.metrics),
				adapthttp.WithSecureCookies(cfg.SecureCookies),
			}
			if rt.pg != nil {
				opts = append(opts, adapthttp.WithHealthCheck("postgres", rt.pg.Ping))
			}
			if cfg.SSOEnabled() {
				sso, err := adapthttp.NewOIDC(ctx, cfg.OIDCIssuer, cfg.OIDCClientID, cfg.OIDCClientSecret, cfg.OIDCRedirectURL)
				if err != nil {
					return err
				}
				opts = append(opts, adapthttp.WithOIDC(sso))
				logger.Info("sso enabled", "issuer", cfg.OIDCIssuer)
			}

			api := adapthttp.New(rt.auth, rt.services(), cfg.WebDir, logger, opts...)
			defer api.Close()

			srv := &http.Server{
				Addr:              cfg.Addr,
				Handler:           api.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				logger.Info("listening", "addr", cfg.Addr, "backend", cfg.Backend, "session_store", cfg.SessionStore)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides ADDR)")
	return cmd
}
