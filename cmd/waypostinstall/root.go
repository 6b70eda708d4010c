// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/wayposthq/waypost-installer/internal/config"
	"github.com/wayposthq/waypost-installer/internal/release"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// verbose enables debug logging
	verbose bool
	// cfgFile allows specifying a custom config file
	cfgFile string
	// checkOnly reports availability without installing
	checkOnly bool
	// force reinstalls even when already up to date
	force bool
	// pathStrategy overrides the configured PATH integration strategy
	pathStrategy string
	// installDir overrides the configured installation directory
	installDir string

	// rootCmd represents the base command; running it performs the install.
	rootCmd = &cobra.Command{
		Use:   "waypost-install",
		Short: "Install or upgrade waypost on this machine",
		Long: TitleStyle.Render("waypost-install") + SubtitleStyle.Render(" - installer and upgrader for waypost") + `

waypost-install downloads the latest waypost release for your platform,
installs or upgrades it in place while preserving your database and local
settings, prepares its runtimes and dependencies, and puts the waypost
command on your PATH.

` + SubtitleStyle.Render("Examples:") + `
  waypost-install                      Install or upgrade to the latest release
  waypost-install --check              Report whether an update is available
  waypost-install --force              Reinstall the current version
  waypost-install --path-strategy shellrc
                                       Use a shell rc PATH block instead of a symlink`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true

			cfg, err := loadConfig(cmd.Context())
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), ErrorStyle.Render("Error: ")+formatInstallError(err, verbose))
				return &ExitError{Code: ExitGeneric, Err: err}
			}

			p := installParams{
				stdout: cmd.OutOrStdout(),
				stderr: cmd.ErrOrStderr(),
				logger: newLogger(cfg.Verbose || verbose),
				cfg:    cfg,
				client: newReleaseClient(cfg),
				check:  checkOnly,
				force:  force,
			}

			if err := runInstall(cmd.Context(), p); err != nil {
				fmt.Fprintln(p.stderr, ErrorStyle.Render("Error: ")+formatInstallError(err, verbose))
				return &ExitError{Code: classifyExitCode(err), Err: err}
			}

			return nil
		},
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/waypost-install/config.cue)")

	rootCmd.Flags().BoolVar(&checkOnly, "check", false, "check for an available update without installing")
	rootCmd.Flags().BoolVar(&force, "force", false, "reinstall even when already up to date")
	rootCmd.Flags().StringVar(&pathStrategy, "path-strategy", "", "how to expose the binary on PATH (symlink or shellrc)")
	rootCmd.Flags().StringVar(&installDir, "install-dir", "", "installation directory (default is $HOME/.waypost/app)")

	rootCmd.AddCommand(newConfigCommand())
}

// loadConfig resolves configuration and layers command-line overrides on
// top, then re-validates the result.
func loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.NewProvider().Load(ctx, config.LoadOptions{ConfigFilePath: cfgFile})
	if err != nil {
		return nil, err
	}

	if installDir != "" {
		cfg.InstallDir = installDir
	}
	if pathStrategy != "" {
		cfg.PathStrategy = pathStrategy
	}
	if verbose {
		cfg.Verbose = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the structured logger all stages share.
func newLogger(debug bool) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Prefix: config.AppName,
	})
	if debug {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

// newReleaseClient builds the GitHub release client, adding a token when
// available for higher rate limits (5000/hour vs 60/hour unauthenticated).
func newReleaseClient(cfg *config.Config) *release.Client {
	opts := []release.ClientOption{
		release.WithRepo(cfg.Repo.Owner, cfg.Repo.Name),
		release.WithUserAgent(config.AppName + "/" + Version),
	}
	if cfg.GitHubToken != "" {
		opts = append(opts, release.WithToken(cfg.GitHubToken))
	}
	return release.NewClient(opts...)
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the root command. This is called by main.main().
func Execute() {
	// Use fang.Execute for enhanced Cobra styling
	// Pass version via fang.WithVersion() since fang overrides rootCmd.Version
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
