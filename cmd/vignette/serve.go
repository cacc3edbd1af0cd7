package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/vignette/internal/api"
	"github.com/MikeSquared-Agency/vignette/internal/config"
	"github.com/MikeSquared-Agency/vignette/internal/hermes"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service the survey platform calls each turn",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("vignette starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := build(ctx, cfg, slog.Default())
	if err != nil {
		slog.Error("startup failed", "error", err)
		return err
	}
	defer a.Close()

	srv := api.NewServer(cfg.Port, a.service, api.Status{
		Script:    a.script.Name,
		Questions: a.script.Len(),
		JudgeMode: cfg.JudgeMode,
		Provider:  cfg.Provider,
	}, cfg.AllowedOrigins, slog.Default())

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if a.hermes != nil {
		if err := a.hermes.Publish(hermes.SubjectRegistered, map[string]any{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"port":      cfg.Port,
			"script":    a.script.Name,
		}); err != nil {
			slog.Warn("failed to publish registration", "error", err)
		}
	}

	slog.Info("vignette ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case err := <-errCh:
		slog.Error("HTTP server error", "error", err)
		return err
	}

	slog.Info("shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("shutdown incomplete", "error", err)
	}
	slog.Info("vignette stopped")
	return nil
}
