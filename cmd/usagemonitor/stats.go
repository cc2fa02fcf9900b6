package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ImagingSolutions/UsageMonitor/app"
	"github.com/ImagingSolutions/UsageMonitor/bootstrap"
	"github.com/ImagingSolutions/UsageMonitor/domain/usage"
)

func newStatsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show usage analytics",
		Long: `Show usage analytics computed from the request logs.

Windows are whole UTC days ending today.

Examples:
  usagemonitor stats overview --days 30
  usagemonitor stats timeline
  usagemonitor stats endpoints --limit 5
  usagemonitor stats response-times -o json
  usagemonitor stats usage
  usagemonitor stats errors
  usagemonitor stats dashboard -o yaml`,
	}

	cmd.AddCommand(
		statsCmd(c, "overview", "Summarize requests over the window", true, func(ctx context.Context, svc *bootstrap.Services, days, _ int) (any, func(io.Writer), error) {
			o, err := svc.Usage.GetOverview(ctx, days)
			return o, func(w io.Writer) { writeOverview(w, o) }, err
		}),
		statsCmd(c, "timeline", "Daily request counts", true, func(ctx context.Context, svc *bootstrap.Services, days, _ int) (any, func(io.Writer), error) {
			tl, err := svc.Usage.GetTimeline(ctx, days)
			return tl, func(w io.Writer) { writeTimeline(w, tl) }, err
		}),
		statsCmd(c, "endpoints", "Busiest endpoints", false, func(ctx context.Context, svc *bootstrap.Services, _, limit int) (any, func(io.Writer), error) {
			eps, err := svc.Usage.GetTopEndpoints(ctx, limit)
			return eps, func(w io.Writer) {
				fmt.Fprintln(w, "PATH\tREQUESTS\tERRORS\tSUCCESS\tAVG")
				for _, e := range eps {
					fmt.Fprintf(w, "%s\t%d\t%d\t%.1f%%\t%.3fs\n", e.Path, e.Requests, e.Errors, 100*e.SuccessRate, e.AvgDuration)
				}
			}, err
		}),
		statsCmd(c, "response-times", "Daily response time percentiles", true, func(ctx context.Context, svc *bootstrap.Services, days, _ int) (any, func(io.Writer), error) {
			pts, err := svc.Usage.GetResponseTimeSeries(ctx, days)
			return pts, func(w io.Writer) {
				fmt.Fprintln(w, "DATE\tREQUESTS\tAVG\tP50\tP95\tP99\tMAX")
				for _, p := range pts {
					fmt.Fprintf(w, "%s\t%d\t%.3f\t%.3f\t%.3f\t%.3f\t%.3f\n",
						p.Date.Format("2006-01-02"), p.Requests, p.Avg, p.P50, p.P95, p.P99, p.Max)
				}
			}, err
		}),
		statsCmd(c, "usage", "Requests per day of the current month", false, func(ctx context.Context, svc *bootstrap.Services, _, _ int) (any, func(io.Writer), error) {
			days, err := svc.Usage.GetMonthlyUsage(ctx)
			return days, func(w io.Writer) {
				fmt.Fprintln(w, "DAY\tREQUESTS")
				for _, d := range days {
					fmt.Fprintf(w, "%d\t%d\n", d.Day, d.Requests)
				}
			}, err
		}),
		statsCmd(c, "errors", "Error rates per path", true, func(ctx context.Context, svc *bootstrap.Services, days, _ int) (any, func(io.Writer), error) {
			rates, err := svc.Usage.GetErrorRates(ctx, days)
			return rates, func(w io.Writer) {
				fmt.Fprintln(w, "PATH\tREQUESTS\tERRORS\tRATE")
				for _, r := range rates {
					fmt.Fprintf(w, "%s\t%d\t%d\t%.1f%%\n", r.Path, r.Requests, r.Errors, 100*r.ErrorRate)
				}
			}, err
		}),
		statsCmd(c, "dashboard", "Overview, timeline, top endpoints and balance", true, func(ctx context.Context, svc *bootstrap.Services, days, limit int) (any, func(io.Writer), error) {
			d, err := svc.Usage.GetDashboard(ctx, days, limit)
			return d, func(w io.Writer) { writeDashboard(w, d) }, err
		}),
	)
	return cmd
}

type statsFunc func(ctx context.Context, svc *bootstrap.Services, days, limit int) (any, func(io.Writer), error)

func statsCmd(c *cli, use, short string, windowed bool, fn statsFunc) *cobra.Command {
	var days, limit int

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			svc, err := c.openServices(ctx)
			if err != nil {
				return err
			}
			defer svc.Store.Close()

			v, table, err := fn(ctx, svc, days, limit)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), c.output, v, table)
		},
	}

	if windowed {
		cmd.Flags().IntVar(&days, "days", app.DefaultWindowDays, "window length in days")
	}
	if use == "endpoints" || use == "dashboard" {
		cmd.Flags().IntVar(&limit, "limit", 10, "number of endpoints")
	}
	return cmd
}

func writeOverview(w io.Writer, o usage.Overview) {
	fmt.Fprintf(w, "Window:\t%s to %s\n", o.From.Format("2006-01-02"), o.To.AddDate(0, 0, -1).Format("2006-01-02"))
	fmt.Fprintf(w, "Requests:\t%d (%d charged)\n", o.TotalRequests, o.ChargedRequests)
	fmt.Fprintf(w, "Successful:\t%d (%.1f%%)\n", o.SuccessCount, 100*o.SuccessRate)
	fmt.Fprintf(w, "Client errors:\t%d\n", o.ClientErrorCount)
	fmt.Fprintf(w, "Server errors:\t%d\n", o.ServerErrorCount)
	fmt.Fprintf(w, "Error rate:\t%.1f%%\n", 100*o.ErrorRate)
	fmt.Fprintf(w, "Avg duration:\t%.3fs\n", o.AvgDuration)
}

func writeTimeline(w io.Writer, tl []usage.DayCount) {
	fmt.Fprintln(w, "DATE\tTOTAL\tSUCCESSFUL\tFAILED")
	for _, d := range tl {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", d.Date.Format("2006-01-02"), d.Total, d.Successful, d.Failed)
	}
}

func writeDashboard(w io.Writer, d app.Dashboard) {
	writeOverview(w, d.Overview)
	if d.Balance != nil {
		fmt.Fprintf(w, "Remaining:\t%d of %d requests\n", d.Balance.RemainingRequests, d.Balance.TotalRequests)
	}
	fmt.Fprintln(w)
	writeTimeline(w, d.Timeline)
	if len(d.TopEndpoints) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "PATH\tREQUESTS\tERRORS")
		for _, e := range d.TopEndpoints {
			fmt.Fprintf(w, "%s\t%d\t%d\n", e.Path, e.Requests, e.Errors)
		}
	}
}
