package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ImagingSolutions/UsageMonitor/bootstrap"
	"github.com/ImagingSolutions/UsageMonitor/config"
)

func newValidateCmd(c *cli) *cobra.Command {
	var checkUpstream, checkDatabase bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration before deployment",
		Long: `Validate the UsageMonitor configuration file.

Checks:
  - YAML syntax is valid
  - Settings are usable
  - Upstream is reachable (optional)
  - Database opens and migrates (optional)

Examples:
  usagemonitor validate
  usagemonitor validate --config /etc/usagemonitor/config.yaml --check-database`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Validating %s...\n\n", c.cfgFile)

			if _, err := os.Stat(c.cfgFile); os.IsNotExist(err) {
				fmt.Fprintf(out, "  %s Config file exists\n", crossMark)
				return fmt.Errorf("config file not found: %s", c.cfgFile)
			}
			fmt.Fprintf(out, "  %s Config file exists\n", checkMark)

			cfg, err := config.Load(c.cfgFile)
			if err != nil {
				fmt.Fprintf(out, "  %s Config valid\n", crossMark)
				return fmt.Errorf("config error: %w", err)
			}
			fmt.Fprintf(out, "  %s Config valid\n", checkMark)

			fmt.Fprintf(out, "  %s Database: %s\n", checkMark, cfg.Database.Driver)
			if len(cfg.Monitor.Paths) > 0 {
				fmt.Fprintf(out, "  %s Metered paths: %s\n", checkMark, strings.Join(cfg.Monitor.Paths, ", "))
				fmt.Fprintf(out, "  %s Upstream: %s\n", checkMark, cfg.Monitor.UpstreamURL)
			} else {
				fmt.Fprintf(out, "  %s No metered paths configured\n", checkMark)
			}

			if checkUpstream && cfg.Monitor.UpstreamURL != "" {
				if err := checkUpstreamReachable(cmd.Context(), cfg.Monitor.UpstreamURL); err != nil {
					fmt.Fprintf(out, "  %s Upstream reachable\n", crossMark)
					fmt.Fprintf(out, "      Error: %v\n", err)
				} else {
					fmt.Fprintf(out, "  %s Upstream reachable\n", checkMark)
				}
			}

			if checkDatabase {
				if err := checkDatabaseUsable(cmd.Context(), cfg.Database); err != nil {
					fmt.Fprintf(out, "  %s Database usable\n", crossMark)
					fmt.Fprintf(out, "      Error: %v\n", err)
				} else {
					fmt.Fprintf(out, "  %s Database usable\n", checkMark)
				}
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, "Configuration is valid.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&checkUpstream, "check-upstream", false, "check if upstream is reachable")
	cmd.Flags().BoolVar(&checkDatabase, "check-database", false, "check if database opens and migrates")
	return cmd
}

func checkUpstreamReachable(ctx context.Context, url string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func checkDatabaseUsable(ctx context.Context, cfg config.DatabaseConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Ping(ctx)
}
