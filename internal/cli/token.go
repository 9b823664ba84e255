package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"

	"github.com/fastertools/ghdevice/internal/auth"
)

// tokenEnv holds the environment variables that bypass the device flow
type tokenEnv struct {
	GHToken    string `envconfig:"GH_TOKEN"`
	GitHubAuth string `envconfig:"GITHUB_AUTH"`
}

// resolveTokenOverride returns a token supplied outside the store and where it came from.
// The flag wins over GH_TOKEN, which wins over GITHUB_AUTH.
func resolveTokenOverride(flagValue string) (token, source string, err error) {
	if flagValue != "" {
		return flagValue, "--token flag", nil
	}

	var env tokenEnv
	if err := envconfig.Process("", &env); err != nil {
		return "", "", fmt.Errorf("failed to read token environment: %w", err)
	}
	switch {
	case env.GHToken != "":
		return env.GHToken, "GH_TOKEN", nil
	case env.GitHubAuth != "":
		return env.GitHubAuth, "GITHUB_AUTH", nil
	}
	return "", "", nil
}

func newTokenCmd(opts *rootOptions) *cobra.Command {
	var flagToken string
	var force bool
	var noBrowser bool

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a GitHub access token",
		Long: `Print a usable GitHub access token on stdout.

The token is taken from, in order:
  1. the --token flag
  2. the GH_TOKEN environment variable
  3. the GITHUB_AUTH environment variable
  4. the credential store
  5. a new device flow, when stderr is a terminal`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, source, err := resolveTokenOverride(flagToken)
			if err != nil {
				return err
			}
			if token != "" {
				Debug("Using token from %s", source)
				_, err := fmt.Fprintln(cmd.OutOrStdout(), token)
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer cancel()

			interactive := isInteractive(os.Stderr)
			notifier := newTerminalNotifier(cmd.ErrOrStderr(), noBrowser, interactive)
			manager, _, err := opts.openManager(ctx, force, notifier)
			if err != nil {
				return err
			}
			if !interactive && (force || !manager.Status(ctx).LoggedIn) {
				return errNoTerminal
			}

			token, err = manager.ObtainToken(ctx)
			if token == "" {
				return err
			}
			if errors.Is(err, auth.ErrStoreUnavailable) {
				Warn("Token could not be saved: %v", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVar(&flagToken, "token", "", "Use this token instead of the store or the device flow")
	cmd.Flags().BoolVar(&force, "force", false, "Ignore the cached token and run the device flow")
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Don't offer to open the browser")

	return cmd
}
