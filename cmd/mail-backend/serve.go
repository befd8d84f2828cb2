package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/imfrisiv/mail-backend/app"
	"github.com/imfrisiv/mail-backend/config"
	"github.com/imfrisiv/mail-backend/internal/observability"
	"github.com/imfrisiv/mail-backend/routes"
)

type serveOptions struct {
	port      int
	noTLS     bool
	checkKeys bool
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP(S) API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runServe(ctx, opts)
		},
	}

	cmd.Flags().IntVar(&opts.port, "port", 0, "Listen port. Overrides PORT/SERVER_PORT.")
	cmd.Flags().BoolVar(&opts.noTLS, "no-tls", false, "Serve plain HTTP even when TLS_ENABLED is set")
	cmd.Flags().BoolVar(&opts.checkKeys, "check-keys", false, "Verify provider API keys at startup. Can also use KEY_CHECK_ON_STARTUP env var.")

	return cmd
}

func loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// initLogger builds the process logger; empty values fall back to info/json
func initLogger(level, format string) (*zap.Logger, error) {
	if level == "" {
		level = "info"
	}
	if format == "" {
		format = "json"
	}
	return observability.NewLogger(level, format)
}

func applyServeOptions(cfg *config.Config, opts serveOptions) {
	if opts.port != 0 {
		cfg.Server.Port = opts.port
	}
	if opts.noTLS {
		cfg.Server.TLS.Enabled = false
	}
	if opts.checkKeys {
		cfg.Compose.KeyCheckOnStartup = true
	}
}

func runServe(ctx context.Context, opts serveOptions) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	applyServeOptions(cfg, opts)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := initLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		return err
	}

	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize dependencies", zap.Error(err))
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := deps.Close(closeCtx); err != nil {
			logger.Error("failed to close dependencies", zap.Error(err))
		}
	}()

	if cfg.Compose.KeyCheckOnStartup {
		go deps.CheckKeys(ctx)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           routes.SetupRoutes(deps),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      max(cfg.Server.WriteTimeout, deps.ComposeDeadline()+10*time.Second),
	}

	return serve(ctx, srv, cfg, logger)
}

// serve runs srv until ctx is done, then shuts it down gracefully
func serve(ctx context.Context, srv *http.Server, cfg *config.Config, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if cfg.Server.TLS.Enabled {
			logger.Info("server listening", zap.String("addr", "https://"+srv.Addr))
			err = srv.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
		} else {
			logger.Info("server listening", zap.String("addr", "http://"+srv.Addr))
			err = srv.ListenAndServe()
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
