package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ImagingSolutions/UsageMonitor/app"
)

func newReportCmd(c *cli) *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print a usage report",
		Long: `Print a usage report for the account: traffic summary, balance,
payments and daily request counts.

The range covers the days from --from to --to inclusive. It defaults to
the current month up to today.

Examples:
  usagemonitor report
  usagemonitor report --from 2024-03-01 --to 2024-03-31
  usagemonitor report -o json > report.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			fromT, err := parseDate(from)
			if err != nil {
				return err
			}
			toT, err := parseDate(to)
			if err != nil {
				return err
			}

			ctx := commandContext(cmd)
			svc, err := c.openServices(ctx)
			if err != nil {
				return err
			}
			defer svc.Store.Close()

			report, err := svc.Usage.GetReport(ctx, fromT, toT)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), c.output, report, func(w io.Writer) { writeReport(w, report) })
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "first day (YYYY-MM-DD), default start of month")
	cmd.Flags().StringVar(&to, "to", "", "last day (YYYY-MM-DD), default today")
	return cmd
}

func writeReport(w io.Writer, r app.Report) {
	fmt.Fprintf(w, "Usage report for %s <%s>\n", r.Account.Name, r.Account.Email)
	fmt.Fprintf(w, "Period:\t%s to %s\n", r.From.Format("2006-01-02"), r.To.AddDate(0, 0, -1).Format("2006-01-02"))
	fmt.Fprintf(w, "Generated:\t%s\n\n", formatTime(r.GeneratedAt))

	writeOverview(w, r.Overview)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Paid:\t%s\n", r.Balance.TotalAmount)
	fmt.Fprintf(w, "Capacity:\t%d used of %d, %d remaining\n\n", r.Balance.UsedRequests, r.Balance.TotalRequests, r.Balance.RemainingRequests)

	if len(r.Payments) > 0 {
		fmt.Fprintln(w, "ID\tAMOUNT\tUNIT PRICE\tUSED\tTOTAL\tREMAINING\tCREATED")
		for _, p := range r.Payments {
			writeStatsRow(w, p)
		}
		fmt.Fprintln(w)
	}

	writeTimeline(w, r.Daily)
}
