package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"sheetbridge/internal/core/security"
	v1 "sheetbridge/internal/infrastructure/http/v1"
	"sheetbridge/internal/infrastructure/http/v1/middleware"
	"sheetbridge/pkg/logger"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve pack, unpack, validate and enrich over HTTP",
		Long: `Environment: APP_PORT (8080), LOG_LEVEL (info), APP_ENV (development),
JWT_SECRET (enables bearer auth on /api/v1), SERVER_LEVELS (header rows),
SHUTDOWN_TIMEOUT (30s).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := logger.New(logger.Config{
				Level:       getEnv("LOG_LEVEL", "info"),
				Development: getEnv("APP_ENV", "development") == "development",
			})
			if err != nil {
				return err
			}
			a.log = log

			if addr == "" {
				addr = ":" + getEnv("APP_PORT", "8080")
			}
			server, err := a.newServer(addr)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				log.Infow("server starting", "addr", addr, "auth", getEnv("JWT_SECRET", "") != "")
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			log.Info("shutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second))
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return err
			}
			log.Info("server stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default :$APP_PORT)")
	return cmd
}

// newServer builds the HTTP server from the loaded config and the environment.
func (a *app) newServer(addr string) (*http.Server, error) {
	if levels := getEnvInt("SERVER_LEVELS", 0); levels != 0 {
		a.cfg.Defaults.Levels = levels
		if err := a.cfg.Validate(); err != nil {
			return nil, err
		}
	}
	engine, err := a.engine()
	if err != nil {
		return nil, err
	}

	var tokens middleware.TokenValidator
	if secret := getEnv("JWT_SECRET", ""); secret != "" {
		tokens = security.NewTokenService(security.DefaultTokenConfig(secret))
	}

	router := v1.NewRouter(v1.RouterConfig{
		Engine:         engine,
		Logger:         a.log,
		TokenValidator: tokens,
		Version:        version,
		Debug:          a.debug,
	})
	return &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, nil
}

