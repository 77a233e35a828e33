package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/guatepass/tolling/internal/domain"
)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Query per-plate invoices and payments",
	}
	cmd.AddCommand(invoicesCmd())
	cmd.AddCommand(paymentsCmd())
	return cmd
}

func invoicesCmd() *cobra.Command {
	var (
		status string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "invoices [plate]",
		Short: "List a plate's invoices, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stack, err := openStack()
			if err != nil {
				return err
			}
			defer stack.Close()

			result, err := stack.History.Invoices(cmd.Context(), args[0], domain.InvoiceStatus(status), limit)
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}
	cmd.Flags().StringVarP(&status, "status", "s", "", "filter by status (pendiente, pagada)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum invoices")
	return cmd
}

func paymentsCmd() *cobra.Command {
	var (
		from  string
		to    string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "payments [plate]",
		Short: "List a plate's toll transactions, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fromT, err := parseDate(from, false)
			if err != nil {
				return err
			}
			toT, err := parseDate(to, true)
			if err != nil {
				return err
			}

			stack, err := openStack()
			if err != nil {
				return err
			}
			defer stack.Close()

			result, err := stack.History.Transactions(cmd.Context(), args[0], fromT, toT, limit)
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "earliest crossing (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "latest crossing (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum transactions")
	return cmd
}

// parseDate accepts RFC 3339 or a bare date. With endOfDay a bare date
// covers the whole day.
func parseDate(s string, endOfDay bool) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q", s)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Microsecond)
	}
	return &t, nil
}
