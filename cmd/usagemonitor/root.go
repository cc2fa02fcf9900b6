package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ImagingSolutions/UsageMonitor/adapters/clock"
	"github.com/ImagingSolutions/UsageMonitor/bootstrap"
	"github.com/ImagingSolutions/UsageMonitor/config"
)

var (
	// Set via ldflags at build time
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

// cli holds the global flags.
type cli struct {
	cfgFile string
	output  string
}

// newRootCmd builds the command tree. Each call returns fresh flag state.
func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "usagemonitor",
		Short: "Prepaid API usage metering",
		Long: `UsageMonitor meters requests to your API against prepaid capacity.

Each payment buys amount / unit_price requests. Metered requests are
charged oldest payment first and logged; requests beyond the remaining
capacity are refused with 402 Payment Required.

Quick start:
  usagemonitor admin setup --username admin
  usagemonitor account create --name "Acme" --email ops@acme.test --amount 10 --unit-price 0.01
  usagemonitor serve

Reporting:
  usagemonitor stats overview --days 30
  usagemonitor report --from 2024-03-01 --to 2024-03-31 -o yaml`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return validateFormat(c.output)
		},
	}

	root.PersistentFlags().StringVarP(&c.cfgFile, "config", "c", "usagemonitor.yaml", "config file path")
	root.PersistentFlags().StringVarP(&c.output, "output", "o", formatTable, "output format: table, json or yaml")

	root.AddCommand(
		newServeCmd(c),
		newValidateCmd(c),
		newVersionCmd(),
		newAdminCmd(c),
		newAccountCmd(c),
		newPaymentsCmd(c),
		newLogsCmd(c),
		newStatsCmd(c),
		newReportCmd(c),
	)
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openServices loads configuration and opens the configured store for a
// one-shot management command. The caller closes the store.
func (c *cli) openServices(ctx context.Context) (*bootstrap.Services, error) {
	cfg, err := config.LoadWithFallback(c.cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	store, err := bootstrap.OpenStore(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	logger := zerolog.New(os.Stderr).Level(zerolog.WarnLevel).With().Timestamp().Logger()
	return bootstrap.NewServices(store, cfg, clock.Real{}, logger, nil), nil
}
