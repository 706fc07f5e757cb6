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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/tendant/simple-publish/pkg/simplepublish/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Start the publishing HTTP API.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("port", "", "HTTP server port (env: PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	rt, err := cfg.BuildService(ctx, slog.Default(), reg)
	if err != nil {
		return fmt.Errorf("build service: %w", err)
	}
	defer rt.Close()

	dbKind, _, _ := cfg.Database()
	storageKind, _, _ := cfg.Storage()
	slog.Info("service ready",
		"database", dbKind,
		"storage", storageKind,
		"slug_lock", cfg.RedisURL != "",
		"env", cfg.Environment,
	)

	handler := api.NewHandler(rt.Service, api.Config{
		Logger:         slog.Default(),
		MaxUploadBytes: cfg.MaxUploadBytes,
		Assets:         rt.Assets,
		AssetsPath:     cfg.AssetsPath,
		Health:         rt,
		Gatherer:       reg,
		CORSOrigins:    cfg.CORSOrigins,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}
