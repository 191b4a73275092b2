package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"groupplay/internal/config"
	"groupplay/internal/store"
	"groupplay/internal/store/memory"
	"groupplay/internal/store/postgres"
	httpTransport "groupplay/internal/transport/http"
)

const releaseVersion = "0.1.0"

func main() {
	log.SetFlags(0)
	cobra.CheckErr(newCmd().Execute())
}

func newCmd() *cobra.Command {
	v := config.NewViper()

	cmd := &cobra.Command{
		Use:     "groupplay-server",
		Short:   "Room store and websocket relay for pass-the-phone party games.",
		Args:    cobra.ExactArgs(0),
		Version: releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load(v)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()
	config.AddFlags(fs, config.ServerFlags...)
	config.BindFlags(v, fs)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	logger.Info("starting groupplay server",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"store", cfg.Store.Driver,
	)

	backend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	// Create HTTP server
	server := httpTransport.NewServer(cfg, backend, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server stopped")
	return nil
}

func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Backend, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()

		s, err := postgres.New(connectCtx, cfg.Store.DatabaseURL, logger, postgres.Options{
			StaleTimeout:    cfg.Game.StaleRoomTimeout,
			CleanupInterval: cfg.Game.CleanupInterval,
		})
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return s, nil
	default:
		return memory.New(logger, memory.Options{
			StaleTimeout:    cfg.Game.StaleRoomTimeout,
			CleanupInterval: cfg.Game.CleanupInterval,
		}), nil
	}
}
