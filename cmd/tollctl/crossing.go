package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/guatepass/tolling/internal/app"
	"github.com/guatepass/tolling/internal/ingestion"
)

func crossingCmd() *cobra.Command {
	var (
		plate string
		toll  string
		tag   string
		at    string
		file  string
	)

	cmd := &cobra.Command{
		Use:   "crossing",
		Short: "Settle toll crossings synchronously",
		Long: `Settle one crossing given by flags, or every crossing in a JSON file
holding an array of webhook bodies. Each crossing runs the full pipeline
before the command moves on.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var hooks []ingestion.TollWebhook
			switch {
			case file != "":
				raw, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("read %s: %w", file, err)
				}
				if err := json.Unmarshal(raw, &hooks); err != nil {
					return fmt.Errorf("parse %s: %w", file, err)
				}
			case plate != "":
				hook := ingestion.TollWebhook{Placa: plate, PeajeID: toll, Timestamp: at}
				if tag != "" {
					hook.TagID = &tag
				}
				if hook.Timestamp == "" {
					hook.Timestamp = time.Now().UTC().Format(time.RFC3339)
				}
				hooks = append(hooks, hook)
			default:
				return fmt.Errorf("either --plate or --file is required")
			}

			stack, err := openStack()
			if err != nil {
				return err
			}
			defer stack.Close()

			publisher := &app.SyncPublisher{Pipeline: stack.Pipeline}
			svc := stack.Ingestion(publisher)

			failed := 0
			for i, hook := range hooks {
				if _, err := svc.IngestCrossing(cmd.Context(), hook); err != nil {
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "crossing %d: %v\n", i+1, err)
				}
			}
			if err := printJSON(cmd, publisher.Results); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d crossings failed", failed, len(hooks))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&plate, "plate", "p", "", "vehicle plate")
	cmd.Flags().StringVarP(&toll, "toll", "t", "", "toll point id")
	cmd.Flags().StringVar(&tag, "tag", "", "tag id read at the lane, if any")
	cmd.Flags().StringVar(&at, "at", "", "crossing timestamp (RFC 3339), defaults to now")
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file with an array of crossings")

	return cmd
}
