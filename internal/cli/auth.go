package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/fastertools/ghdevice/internal/auth"
)

func newAuthCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage authentication",
		Long:  `Manage the GitHub token cached by ghdevice.`,
	}

	// Add subcommands
	cmd.AddCommand(
		newAuthLoginCmd(opts),
		newAuthLogoutCmd(opts),
		newAuthStatusCmd(opts),
	)

	return cmd
}

func newAuthLoginCmd(opts *rootOptions) *cobra.Command {
	var noBrowser bool
	var force bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login to GitHub",
		Long: `Authenticate with GitHub using the OAuth device flow.

A short code is shown; enter it on the verification page from any device.
The resulting token is saved in the credential store.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer cancel()

			notifier := newTerminalNotifier(cmd.ErrOrStderr(), noBrowser, isInteractive(os.Stderr))
			manager, store, err := opts.openManager(ctx, force, notifier)
			if err != nil {
				return err
			}

			// Check if already logged in
			if !force {
				if status := manager.Status(ctx); status.LoggedIn {
					Success("Already logged in as %s", color.CyanString(status.Identity))
					fmt.Println()
					fmt.Printf("Use %s to force re-authentication\n", color.CyanString("ghdevice auth login --force"))
					return nil
				}
			}

			fmt.Println("→ Logging in to GitHub")
			fmt.Println()

			token, err := manager.ObtainToken(ctx)
			if token == "" {
				return fmt.Errorf("login failed: %w", err)
			}
			if err != nil {
				Warn("Logged in, but the token could not be saved: %v", err)
				return nil
			}

			identity := store.CurrentIdentity()
			if identity == "" {
				Warn("Logged in, but the account name could not be resolved; the token was not saved")
				return nil
			}
			Success("Logged in as %s", color.CyanString(identity))
			Debug("Token stored in %s", store.BackendName())
			return nil
		},
	}

	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Don't offer to open the browser")
	cmd.Flags().BoolVar(&force, "force", false, "Force re-authentication even if already logged in")

	return cmd
}

func newAuthLogoutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Logout from GitHub",
		Long:  `Remove the stored token of the current user.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, _, err := opts.openManager(cmd.Context(), false, nil)
			if err != nil {
				return err
			}

			if err := manager.Logout(cmd.Context()); err != nil {
				if errors.Is(err, auth.ErrNotLoggedIn) {
					Warn("Not logged in")
					return nil
				}
				return fmt.Errorf("logout failed: %w", err)
			}

			Success("Successfully logged out")
			return nil
		},
	}
}

func newAuthStatusCmd(opts *rootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show authentication status",
		Long:  `Display the current user, the credential backend and whether a token is cached.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dw, err := NewDataWriter(cmd.OutOrStdout(), output)
			if err != nil {
				return err
			}

			manager, store, err := opts.openManager(cmd.Context(), false, nil)
			if err != nil {
				return err
			}
			status := manager.Status(cmd.Context())

			var statusErr string
			if status.Error != nil {
				statusErr = status.Error.Error()
			}

			if err := NewKeyValueBuilder("→ Authentication Status").
				Add("logged_in", status.LoggedIn).
				Add("identity", status.Identity).
				Add("backend", status.Backend).
				Add("service", store.Service()).
				AddIf(statusErr != "", "error", statusErr).
				Write(dw); err != nil {
				return err
			}

			if !status.LoggedIn && output != string(OutputFormatJSON) {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Run %s to authenticate\n", color.CyanString("ghdevice auth login"))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format (table, json)")
	return cmd
}
