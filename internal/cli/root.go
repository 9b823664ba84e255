package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/fastertools/ghdevice/internal/config"
)

var (
	// Version information
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"

	// verboseOutput enables Debug messages; set from --verbose before each run
	verboseOutput bool

	// Colors
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	infoColor    = color.New(color.FgCyan)
	warnColor    = color.New(color.FgYellow)
	codeColor    = color.New(color.FgYellow, color.Bold)

	// For testing - allows redirecting output
	colorOutput io.Writer = os.Stdout
	errorOutput io.Writer = os.Stderr
)

// rootOptions holds the global flags and everything derived from them
type rootOptions struct {
	cfgFile string
	verbose bool
	noColor bool
	profile string
	store   string

	v        *viper.Viper
	settings config.Settings
	logger   *zap.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{v: viper.New(), logger: zap.NewNop()}

	cmd := &cobra.Command{
		Use:   "ghdevice",
		Short: "ghdevice - GitHub access tokens via the OAuth device flow",
		Long: `ghdevice obtains a GitHub access token using the OAuth 2.0 Device
Authorization Grant. The token is cached in a secret store (the OS keyring
when available) and reused on later runs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.noColor {
				color.NoColor = true
			}
			verboseOutput = opts.verbose
			return opts.initConfig()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = opts.logger.Sync()
		},
		Version: versionString(),
	}

	// Global flags
	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.cfgFile, "config", "", "settings file (default is ./ghdevice.yaml)")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	pf.BoolVar(&opts.noColor, "no-color", false, "disable colored output")
	pf.StringVar(&opts.profile, "profile", "", "settings profile: production or debug")
	pf.StringVar(&opts.store, "store", "", "credential backend: auto, keyring, secret-tool, file, redis or memory")

	// Bind flags to viper
	_ = opts.v.BindPFlag("verbose", pf.Lookup("verbose"))
	_ = opts.v.BindPFlag("profile", pf.Lookup("profile"))
	_ = opts.v.BindPFlag("store.backend", pf.Lookup("store"))

	cmd.AddCommand(
		newTokenCmd(opts),
		newAuthCmd(opts),
	)

	return cmd
}

// Execute runs the root command
func Execute() error {
	if err := newRootCmd().Execute(); err != nil {
		Error("%v", err)
		return err
	}
	return nil
}

// SetVersion sets the version information
func SetVersion(v, c, b string) {
	version = v
	commit = c
	buildDate = b
}

func versionString() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate)
}

// initConfig reads the settings file and GHDEVICE_* variables, then builds the logger
func (o *rootOptions) initConfig() error {
	config.SetDefaults(o.v)

	settingsFile := o.cfgFile
	if settingsFile == "" {
		dirs := []string{"."}
		if p, err := config.Path(); err == nil {
			dirs = append(dirs, filepath.Dir(p))
		}
		found, err := config.FindSettingsFile(dirs...)
		if err != nil {
			return err
		}
		if found != nil {
			settingsFile = found.Path
			o.v.SetConfigType(found.Format)
		}
	}

	o.v.SetEnvPrefix("GHDEVICE")
	o.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	o.v.AutomaticEnv()

	if settingsFile != "" {
		o.v.SetConfigFile(settingsFile)
		if err := o.v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read settings file %s: %w", settingsFile, err)
		}
		Debug("Using settings file: %s", o.v.ConfigFileUsed())
	}

	settings, err := config.LoadSettings(o.v)
	if err != nil {
		return err
	}
	o.settings = settings

	logger, err := newLogger(o.verbose)
	if err != nil {
		return err
	}
	o.logger = logger.With(zap.String("profile", settings.Profile))
	return nil
}

// Helper functions for consistent output

// Success prints a success message
func Success(format string, args ...interface{}) {
	_, _ = fmt.Fprintln(colorOutput, successColor.Sprintf("✓ "+format, args...))
}

// Error prints an error message
func Error(format string, args ...interface{}) {
	_, _ = fmt.Fprintln(errorOutput, errorColor.Sprintf("✗ "+format, args...))
}

// Info prints an info message
func Info(format string, args ...interface{}) {
	_, _ = fmt.Fprintln(colorOutput, infoColor.Sprintf("ℹ "+format, args...))
}

// Warn prints a warning message
func Warn(format string, args ...interface{}) {
	_, _ = fmt.Fprintln(errorOutput, warnColor.Sprintf("⚠ "+format, args...))
}

// Debug prints a debug message if verbose mode is enabled
func Debug(format string, args ...interface{}) {
	if verboseOutput {
		_, _ = fmt.Fprintln(errorOutput, color.New(color.FgMagenta).Sprintf("» "+format, args...))
	}
}
