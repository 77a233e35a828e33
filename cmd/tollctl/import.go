package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [clientes.csv]",
		Short: "Load user profiles from a CSV file into the directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer f.Close()

			stack, err := openStack()
			if err != nil {
				return err
			}
			defer stack.Close()

			// Import never publishes crossings.
			result, err := stack.Ingestion(nil).ImportUsers(cmd.Context(), f)
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}
}
