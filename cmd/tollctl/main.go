package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/guatepass/tolling/internal/app"
	"github.com/guatepass/tolling/internal/config"
	"github.com/guatepass/tolling/internal/logging"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:          "tollctl",
		Short:        "tollctl - operate the GuatePass settlement ledger",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("CONFIG_PATH"), "path to a YAML config file")

	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(crossingCmd())
	rootCmd.AddCommand(historyCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openStack loads the config and wires the stack. Logs go to stderr so that
// stdout carries only command output.
func openStack() (*app.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return app.New(cfg, logging.NewWithWriter(cfg.Logging, os.Stderr))
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
