package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/guatepass/tolling/internal/api"
	"github.com/guatepass/tolling/internal/app"
	"github.com/guatepass/tolling/internal/config"
	"github.com/guatepass/tolling/internal/logging"
)

func main() {
	var configPath string
	rootCmd := &cobra.Command{
		Use:          "server",
		Short:        "server - GuatePass toll settlement HTTP service",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	rootCmd.Flags().StringVarP(&configPath, "config", "c", os.Getenv("CONFIG_PATH"), "path to a YAML config file")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(cfg.Logging)

	stack, err := app.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("build settlement stack: %w", err)
	}
	defer stack.Close()

	count, err := stack.Users.Count(context.Background())
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count == 0 {
		logger.Warn("user directory is empty, import clientes.csv via POST /api/v1/users/import")
	}

	busCtx, stopBus := context.WithCancel(context.Background())
	defer stopBus()
	bus := stack.NewBus()
	bus.Start(busCtx)

	router := api.NewRouter(api.Dependencies{
		Ingestion: stack.Ingestion(bus),
		Users:     stack.Users,
		Tags:      stack.Tags,
		History:   stack.History,
		Bus:       bus,
	}, logger)

	srv := api.NewServer(logger, cfg.HTTP, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			logger.Error("server stopped unexpectedly", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	// Stop accepting events first, then let queued crossings settle.
	if err := bus.Shutdown(shutdownCtx); err != nil {
		logger.Error("event bus drain incomplete", "error", err, "stats", bus.Stats())
	}
	return nil
}
