package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/patientdata/internal/config"
	"github.com/ehr/patientdata/internal/domain/patient"
	"github.com/ehr/patientdata/internal/platform/auth"
	"github.com/ehr/patientdata/internal/platform/db"
	"github.com/ehr/patientdata/internal/platform/middleware"
)

func serveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the read-only patient API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.ValidateServe(); err != nil {
				return err
			}
			e, err := newServer(a.cfg, a.logger)
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), e, a.cfg.Port, a.logger)
		},
	}
}

func newServer(cfg *config.Config, logger zerolog.Logger) (*echo.Echo, error) {
	connector := db.NewConnector(cfg.Credentials(), logger)
	dialect, err := connector.Dialect()
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))

	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			SigningKey: []byte(cfg.AuthSigningKey),
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			Skipper:    auth.AuthSkipper,
		}))
	}

	e.Use(middleware.Audit(logger))

	e.GET("/health", db.HealthHandler(connector))

	open := func(ctx context.Context) (patient.Conn, error) {
		h, err := connector.Open(ctx)
		if err != nil {
			return nil, err
		}
		return h, nil
	}
	patient.NewHandler(open, dialect, logger).RegisterRoutes(e.Group("/api/v1"))

	return e, nil
}

func runServer(ctx context.Context, e *echo.Echo, port string, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
