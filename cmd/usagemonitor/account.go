package main

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/ImagingSolutions/UsageMonitor/domain/account"
	"github.com/ImagingSolutions/UsageMonitor/domain/ledger"
)

type accountView struct {
	Account account.Account `json:"account"`
	Balance ledger.Balance  `json:"balance"`
}

func newAccountCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage the metered account",
		Long: `Manage the single metered account.

Creating the account records its first payment; the payment buys
amount / unit_price requests.

Examples:
  usagemonitor account show
  usagemonitor account create --name "Acme" --email ops@acme.test --amount 10 --unit-price 0.01
  usagemonitor account update --name "Acme Corp" --email billing@acme.test`,
	}

	cmd.AddCommand(newAccountShowCmd(c), newAccountCreateCmd(c), newAccountUpdateCmd(c))
	return cmd
}

func newAccountShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the account and its balance",
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
			balance, err := svc.Usage.GetBalance(ctx, acct.ID)
			if err != nil {
				return err
			}

			view := accountView{Account: acct, Balance: balance}
			return render(cmd.OutOrStdout(), c.output, view, func(w io.Writer) {
				fmt.Fprintf(w, "ID:\t%d\n", acct.ID)
				fmt.Fprintf(w, "Name:\t%s\n", acct.Name)
				fmt.Fprintf(w, "Email:\t%s\n", acct.Email)
				fmt.Fprintf(w, "Created:\t%s\n", formatTime(acct.CreatedAt))
				fmt.Fprintf(w, "Payments:\t%d (%d with capacity)\n", balance.Entries, balance.ActiveEntries)
				fmt.Fprintf(w, "Paid:\t%s\n", balance.TotalAmount)
				fmt.Fprintf(w, "Requests:\t%d used of %d, %d remaining\n", balance.UsedRequests, balance.TotalRequests, balance.RemainingRequests)
			})
		},
	}
}

func newAccountCreateCmd(c *cli) *cobra.Command {
	var name, email, amount, unitPrice string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Provision the account with its first payment",
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

			acct, entry, err := svc.Directory.CreateAccount(ctx, name, email, amt, price)
			if err != nil {
				return fmt.Errorf("failed to create account: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s Created account: %d\n", checkMark, acct.ID)
			fmt.Fprintf(out, "   Name:     %s\n", acct.Name)
			fmt.Fprintf(out, "   Email:    %s\n", acct.Email)
			fmt.Fprintf(out, "   Payment:  %d (%s at %s = %d requests)\n", entry.ID, entry.Amount, entry.UnitPrice, entry.TotalRequests())
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "account name (required)")
	cmd.Flags().StringVar(&email, "email", "", "account email (required)")
	cmd.Flags().StringVar(&amount, "amount", "", "first payment amount (required)")
	cmd.Flags().StringVar(&unitPrice, "unit-price", "", "price of one request (required)")
	for _, f := range []string{"name", "email", "amount", "unit-price"} {
		cmd.MarkFlagRequired(f)
	}
	return cmd
}

func newAccountUpdateCmd(c *cli) *cobra.Command {
	var name, email string

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change the account name and email",
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
			if !cmd.Flags().Changed("name") {
				name = acct.Name
			}
			if !cmd.Flags().Changed("email") {
				email = acct.Email
			}

			acct, err = svc.Directory.UpdateAccount(ctx, acct.ID, name, email)
			if err != nil {
				return fmt.Errorf("failed to update account: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Updated account: %s <%s>\n", checkMark, acct.Name, acct.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "new account name")
	cmd.Flags().StringVar(&email, "email", "", "new account email")
	return cmd
}

func parseMoney(amount, unitPrice string) (decimal.Decimal, decimal.Decimal, error) {
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, fmt.Errorf("invalid --amount %q", amount)
	}
	price, err := decimal.NewFromString(unitPrice)
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, fmt.Errorf("invalid --unit-price %q", unitPrice)
	}
	return amt, price, nil
}
