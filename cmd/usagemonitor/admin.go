package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newAdminCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage the administrator",
		Long: `Manage the single administrator of the management API.

Examples:
  usagemonitor admin exists
  usagemonitor admin setup --username admin`,
	}

	cmd.AddCommand(newAdminExistsCmd(c), newAdminSetupCmd(c))
	return cmd
}

func newAdminExistsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "exists",
		Short: "Report whether the administrator has been created",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			svc, err := c.openServices(ctx)
			if err != nil {
				return err
			}
			defer svc.Store.Close()

			exists, err := svc.Directory.HasAdminAccount(ctx)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), c.output, map[string]bool{"exists": exists}, func(w io.Writer) {
				fmt.Fprintf(w, "Administrator exists: %v\n", exists)
			})
		},
	}
}

func newAdminSetupCmd(c *cli) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Create the administrator",
		Long: `Create the administrator. Only one can exist; once it does, setup
does nothing.

The password is prompted for when --password is not given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			svc, err := c.openServices(ctx)
			if err != nil {
				return err
			}
			defer svc.Store.Close()

			if password == "" {
				password, err = promptPassword(cmd.ErrOrStderr(), "Password: ")
				if err != nil {
					return err
				}
			}

			created, err := svc.Directory.CreateAdminAccount(ctx, username, password)
			if err != nil {
				return fmt.Errorf("failed to create administrator: %w", err)
			}
			if !created {
				return errors.New("an administrator already exists")
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s Created administrator: %s\n", checkMark, username)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "administrator username (required)")
	cmd.Flags().StringVar(&password, "password", "", "administrator password (prompted when empty)")
	cmd.MarkFlagRequired("username")
	return cmd
}

func promptPassword(w io.Writer, prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("--password is required when stdin is not a terminal")
	}
	fmt.Fprint(w, prompt)
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(w) // Print newline after password input
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(password), nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
