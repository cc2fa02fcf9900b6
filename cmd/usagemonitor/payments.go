package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ImagingSolutions/UsageMonitor/domain/ledger"
)

func newPaymentsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "payments",
		Aliases: []string{"payment"},
		Short:   "Manage prepaid capacity",
		Long: `Record payments and inspect their utilization.

Examples:
  usagemonitor payments add --amount 5 --unit-price 0.01
  usagemonitor payments list
  usagemonitor payments show 2 -o json`,
	}

	cmd.AddCommand(newPaymentsAddCmd(c), newPaymentsListCmd(c), newPaymentsShowCmd(c))
	return cmd
}

func newPaymentsAddCmd(c *cli) *cobra.Command {
	var amount, unitPrice string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a payment for the account",
		RunE: func(cmd *cobra.Command, args []string) error {
			amt, price, err := parseMoney(amount, unitPrice)
			if err != nil {
				return err
			}

			ctx := commandContext(cmd)
			svc, err := c.openServices(ctx)
			if err != nil {
				return err
			}
			defer svc.Store.Close()

			acct, err := svc.Directory.GetAccount(ctx)
			if err != nil {
				return err
			}
			entry, err := svc.Directory.AddLedgerEntry(ctx, acct.ID, amt, price)
			if err != nil {
				return fmt.Errorf("failed to add payment: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s Added payment %d: %s at %s = %d requests\n",
				checkMark, entry.ID, entry.Amount, entry.UnitPrice, entry.TotalRequests())
			return nil
		},
	}

	cmd.Flags().StringVar(&amount, "amount", "", "payment amount (required)")
	cmd.Flags().StringVar(&unitPrice, "unit-price", "", "price of one request (required)")
	cmd.MarkFlagRequired("amount")
	cmd.MarkFlagRequired("unit-price")
	return cmd
}

func newPaymentsListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List payments, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			svc, err := c.openServices(ctx)
			if err != nil {
				return err
			}
			defer svc.Store.Close()

			acct, err := svc.Directory.GetAccount(ctx)
			if err != nil {
				return err
			}
			entries, err := svc.Usage.GetAllLedgerEntries(ctx, acct.ID)
			if err != nil {
				return err
			}

			return render(cmd.OutOrStdout(), c.output, entries, func(w io.Writer) {
				if len(entries) == 0 {
					fmt.Fprintln(w, "No payments found.")
					return
				}
				fmt.Fprintln(w, "ID\tAMOUNT\tUNIT PRICE\tUSED\tTOTAL\tREMAINING\tCREATED")
				fmt.Fprintln(w, "--\t------\t----------\t----\t-----\t---------\t-------")
				for _, e := range entries {
					writeStatsRow(w, e)
				}
			})
		},
	}
}

func newPaymentsShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid payment id %q", args[0])
			}

			ctx := commandContext(cmd)
			svc, err := c.openServices(ctx)
			if err != nil {
				return err
			}
			defer svc.Store.Close()

			stats, err := svc.Usage.GetLedgerEntry(ctx, id)
			if err != nil {
				return fmt.Errorf("payment %d: %w", id, err)
			}

			return render(cmd.OutOrStdout(), c.output, stats, func(w io.Writer) {
				fmt.Fprintln(w, "ID\tAMOUNT\tUNIT PRICE\tUSED\tTOTAL\tREMAINING\tCREATED")
				writeStatsRow(w, stats)
			})
		},
	}
}

func writeStatsRow(w io.Writer, s ledger.Stats) {
	fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%d\t%s\n",
		s.ID, s.Amount, s.UnitPrice, s.UsedRequests, s.TotalRequests, s.RemainingRequests, formatTime(s.CreatedAt))
}
