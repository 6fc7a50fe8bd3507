package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, *configPath)
		},
	}
}

func serve(ctx context.Context, configPath string) error {
	cfg, logger, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			logger.Error("failed to close backends", "error", cerr)
		}
	}()

	if err := a.store.Migrate(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	if err := a.bootstrap(ctx); err != nil {
		return err
	}

	if cfg.Booking.ReconcileInterval > 0 {
		go runReconciler(ctx, a, cfg.Booking.ReconcileInterval)
	}

	gin.SetMode(gin.ReleaseMode)
	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           a.router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("booking API listening", "addr", server.Addr, "storage", cfg.Storage.Driver, "time_zone", cfg.Booking.TimeZone)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	logger.Info("shutting down")
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// runReconciler persists lazily derived statuses every interval until ctx ends.
func runReconciler(ctx context.Context, a *app, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reconcileOnce(ctx, a, a.logger)
		}
	}
}

func reconcileOnce(ctx context.Context, a *app, logger *slog.Logger) {
	result, err := a.bookings.Reconcile(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "reconcile failed", "error", err)
		return
	}
	if result.Completed > 0 || result.Lapsed > 0 {
		logger.InfoContext(ctx, "reconciled bookings", "completed", result.Completed, "lapsed", result.Lapsed)
	}
}
