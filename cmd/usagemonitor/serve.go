package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ImagingSolutions/UsageMonitor/bootstrap"
	"github.com/ImagingSolutions/UsageMonitor/config"
)

func newServeCmd(c *cli) *cobra.Command {
	var hotReload bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the metering server",
		Long: `Start the UsageMonitor server.

The server will:
  - Load configuration from usagemonitor.yaml (or --config)
  - Or load configuration from USAGEMONITOR_* environment variables
  - Open and migrate the database
  - Serve the management API under /api/usage-monitor
  - Meter the configured path prefixes and proxy them to the upstream API

Environment variables (for Docker deployments):
  USAGEMONITOR_DATABASE_DRIVER       - sqlite, postgres or memory
  USAGEMONITOR_DATABASE_DSN          - Database path or connection string
  USAGEMONITOR_SERVER_PORT           - Server port (default: 8080)
  USAGEMONITOR_MONITOR_PATHS         - Comma-separated metered path prefixes
  USAGEMONITOR_MONITOR_UPSTREAM_URL  - Upstream API URL
  USAGEMONITOR_LOG_LEVEL             - Log level: debug, info, warn, error

Examples:
  usagemonitor serve
  usagemonitor serve --config /etc/usagemonitor/config.yaml
  usagemonitor serve --hot-reload=false`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), c, hotReload)
		},
	}

	cmd.Flags().BoolVar(&hotReload, "hot-reload", true, "enable hot reload of configuration")
	return cmd
}

func runServe(ctx context.Context, c *cli, hotReload bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	hasConfigFile := false
	if _, err := os.Stat(c.cfgFile); err == nil {
		hasConfigFile = true
	}

	var (
		cfg    *config.Config
		holder *config.Holder
		err    error
	)
	if hasConfigFile && hotReload {
		// Hot reload only works with config file
		logger := zerolog.New(os.Stdout).With().Timestamp().Str("component", "config").Logger()
		holder, err = config.NewHolder(c.cfgFile, logger)
		if err != nil {
			return fmt.Errorf("error loading config: %w", err)
		}
		cfg = holder.Get()
	} else {
		cfg, err = config.LoadWithFallback(c.cfgFile)
		if err != nil {
			return fmt.Errorf("error loading config: %w", err)
		}
		if !hasConfigFile {
			fmt.Fprintln(os.Stderr, "Running with environment variables (no config file)")
		}
	}

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Version: version,
		Holder:  holder,
	})
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	// Run (blocks until shutdown)
	return app.Run()
}
