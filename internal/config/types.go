// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// ProductName is the name of the application bundle being installed. It
	// doubles as the binary name inside the bundle's bin directory.
	ProductName = "waypost"

	// DefaultRepoOwner is the GitHub organization publishing releases.
	DefaultRepoOwner = "wayposthq"
	// DefaultRepoName is the GitHub repository publishing releases.
	DefaultRepoName = "waypost"

	// DefaultSetupPort is the port the setup wizard listens on when the
	// bundle's .env.local does not say otherwise.
	DefaultSetupPort = 4664

	// StrategySymlink links the binary into a well-known bin directory.
	StrategySymlink = "symlink"
	// StrategyShellRC appends a PATH export block to the user's shell rc.
	StrategyShellRC = "shellrc"
)

var (
	// ErrInvalidPathStrategy is returned when a path_strategy value is not recognized.
	ErrInvalidPathStrategy = errors.New("invalid path strategy")
	// ErrInvalidRepo is returned when the repo owner or name is empty or whitespace-only.
	ErrInvalidRepo = errors.New("invalid repository")
	// ErrInvalidInstallDir is returned when install_dir is whitespace-only.
	ErrInvalidInstallDir = errors.New("invalid install directory")
	// ErrInvalidSetupPort is returned when setup_port is outside the valid range.
	ErrInvalidSetupPort = errors.New("invalid setup port")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// Repo identifies the GitHub repository releases are fetched from.
	Repo struct {
		Owner string `mapstructure:"owner" json:"owner"`
		Name  string `mapstructure:"name" json:"name"`
	}

	// Config is the installer's resolved configuration.
	Config struct {
		// InstallDir is where the application bundle lives. Empty means
		// $HOME/.waypost/app, resolved at load time.
		InstallDir string `mapstructure:"install_dir" json:"install_dir"`

		// Repo is the GitHub repository to install from.
		Repo Repo `mapstructure:"repo" json:"repo"`

		// PathStrategy selects how the binary is exposed on PATH.
		PathStrategy string `mapstructure:"path_strategy" json:"path_strategy"`

		// LinkDir is where the symlink strategy places the link.
		LinkDir string `mapstructure:"link_dir" json:"link_dir"`

		// BunInstall overrides where the bun installer puts bun (the
		// BUN_INSTALL convention). Empty keeps the installer default.
		BunInstall string `mapstructure:"bun_install" json:"bun_install"`

		// GitHubToken authenticates release API requests, raising the rate
		// limit. Normally supplied via the GITHUB_TOKEN environment variable.
		GitHubToken string `mapstructure:"github_token" json:"github_token"`

		// SetupPort is the fallback port for the setup URL printed after a
		// fresh install, used when the bundle's .env.local sets no PORT.
		SetupPort int `mapstructure:"setup_port" json:"setup_port"`

		// Verbose enables debug logging.
		Verbose bool `mapstructure:"verbose" json:"verbose"`
	}

	// InvalidConfigError wraps a field-level validation failure with the
	// field's config path. It wraps ErrInvalidConfig for errors.Is().
	InvalidConfigError struct {
		Field string
		Err   error
	}
)

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

// Unwrap returns the underlying field error; errors.Is also matches
// ErrInvalidConfig via the chain below.
func (e *InvalidConfigError) Unwrap() error { return e.Err }

// Is reports whether target is ErrInvalidConfig, so both the sentinel and
// the field error match.
func (e *InvalidConfigError) Is(target error) bool { return target == ErrInvalidConfig }

// DefaultConfig returns the built-in defaults. InstallDir is left empty so
// the loader can resolve it against the live home directory.
func DefaultConfig() *Config {
	return &Config{
		Repo:         Repo{Owner: DefaultRepoOwner, Name: DefaultRepoName},
		PathStrategy: StrategySymlink,
		LinkDir:      "/usr/local/bin",
		SetupPort:    DefaultSetupPort,
	}
}

// Validate checks constraints the CUE schema cannot fully express and
// normalizes nothing: values are validated exactly as loaded.
func (c *Config) Validate() error {
	switch c.PathStrategy {
	case StrategySymlink, StrategyShellRC:
	default:
		return &InvalidConfigError{
			Field: "path_strategy",
			Err:   fmt.Errorf("%w: %q (valid: %s, %s)", ErrInvalidPathStrategy, c.PathStrategy, StrategySymlink, StrategyShellRC),
		}
	}

	if strings.TrimSpace(c.Repo.Owner) == "" || strings.TrimSpace(c.Repo.Name) == "" {
		return &InvalidConfigError{
			Field: "repo",
			Err:   fmt.Errorf("%w: owner and name must be non-empty", ErrInvalidRepo),
		}
	}

	if c.InstallDir != "" && strings.TrimSpace(c.InstallDir) == "" {
		return &InvalidConfigError{
			Field: "install_dir",
			Err:   fmt.Errorf("%w: must not be whitespace-only", ErrInvalidInstallDir),
		}
	}

	if c.SetupPort < 1 || c.SetupPort > 65535 {
		return &InvalidConfigError{
			Field: "setup_port",
			Err:   fmt.Errorf("%w: %d not in 1..65535", ErrInvalidSetupPort, c.SetupPort),
		}
	}

	return nil
}

// RepoSlug returns "owner/name" for log output and WAYPOST_REPO parsing
// symmetry.
func (c *Config) RepoSlug() string {
	return c.Repo.Owner + "/" + c.Repo.Name
}
