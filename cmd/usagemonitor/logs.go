package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ImagingSolutions/UsageMonitor/domain/usage"
)

type logPage struct {
	Logs     []usage.LogEntry `json:"logs"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

func newLogsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Browse request logs",
		Long: `Browse metered request logs, most recent first.

Examples:
  usagemonitor logs list --page-size 50
  usagemonitor logs list --from 2024-03-01 --to 2024-03-15
  usagemonitor logs errors -o json`,
	}

	cmd.AddCommand(
		newLogsQueryCmd(c, "list", "List request logs", false),
		newLogsQueryCmd(c, "errors", "List requests that ended with status 400 or above", true),
	)
	return cmd
}

func newLogsQueryCmd(c *cli, use, short string, errorsOnly bool) *cobra.Command {
	var from, to string
	var page, pageSize int

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := usage.Filter{ErrorsOnly: errorsOnly, Page: page, PageSize: pageSize}
			if t, err := parseDate(from); err != nil {
				return err
			} else if !t.IsZero() {
				f.From = &t
			}
			if t, err := parseEndDate(to); err != nil {
				return err
			} else if !t.IsZero() {
				f.To = &t
			}
			f = f.Normalize()

			ctx := commandContext(cmd)
			svc, err := c.openServices(ctx)
			if err != nil {
				return err
			}
			defer svc.Store.Close()

			logs, total, err := svc.Usage.GetLogs(ctx, f)
			if err != nil {
				return err
			}

			result := logPage{Logs: logs, Total: total, Page: f.Page, PageSize: f.PageSize}
			return render(cmd.OutOrStdout(), c.output, result, func(w io.Writer) {
				if len(logs) == 0 {
					fmt.Fprintln(w, "No requests found.")
					return
				}
				fmt.Fprintln(w, "TIME\tMETHOD\tPATH\tSTATUS\tDURATION\tPAYMENT")
				fmt.Fprintln(w, "----\t------\t----\t------\t--------\t-------")
				for _, l := range logs {
					payment := "-"
					if l.LedgerEntryID != nil {
						payment = fmt.Sprint(*l.LedgerEntryID)
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.3fs\t%s\n",
						formatTime(l.RequestTime), l.Method, l.Path, l.StatusCode, l.Duration, payment)
				}
				fmt.Fprintf(w, "\nPage %d, %d of %d requests\n", f.Page, len(logs), total)
			})
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "earliest request time (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVar(&to, "to", "", "last day (YYYY-MM-DD) or exclusive end time (RFC 3339)")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", usage.DefaultPageSize, fmt.Sprintf("rows per page (max %d)", usage.MaxPageSize))
	return cmd
}
