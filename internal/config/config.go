// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"github.com/wayposthq/waypost-installer/internal/cueutil"
	"github.com/wayposthq/waypost-installer/internal/issue"
)

const (
	// AppName is the installer's name, used for the config directory.
	AppName = "waypost-install"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the installer configuration directory using
// platform-specific conventions: macOS uses ~/Library/Application Support,
// Linux and others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	// Allow tests to override the config directory
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// DefaultInstallDir returns $HOME/.waypost/app, the install location used
// when neither the config file nor WAYPOST_INSTALL_DIR sets one.
func DefaultInstallDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, "."+ProductName, "app"), nil
}

// loadWithOptions performs option-driven config loading without mutating
// package-level state. Defaults, file values, and environment overrides are
// applied in that order.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("install_dir", defaults.InstallDir)
	v.SetDefault("repo.owner", defaults.Repo.Owner)
	v.SetDefault("repo.name", defaults.Repo.Name)
	v.SetDefault("path_strategy", defaults.PathStrategy)
	v.SetDefault("link_dir", defaults.LinkDir)
	v.SetDefault("bun_install", defaults.BunInstall)
	v.SetDefault("setup_port", defaults.SetupPort)
	v.SetDefault("verbose", defaults.Verbose)

	resolvedPath := ""

	// If a custom config file path is set via --config flag, use it exclusively.
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Check that the file exists and is readable").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		if err := loadCUEIntoViper(v, opts.ConfigFilePath); err != nil {
			return nil, "", configParseError(opts.ConfigFilePath, err)
		}
		resolvedPath = opts.ConfigFilePath
	} else {
		cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
		if err != nil {
			return nil, "", err
		}

		cuePath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)
		if fileExists(cuePath) {
			if err := loadCUEIntoViper(v, cuePath); err != nil {
				return nil, "", configParseError(cuePath, err)
			}
			resolvedPath = cuePath
		}
		// If no config file found, use defaults (no error)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnvOverrides(&cfg)

	if cfg.InstallDir == "" {
		dir, err := DefaultInstallDir()
		if err != nil {
			return nil, "", err
		}
		cfg.InstallDir = dir
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Fix the offending field in the config file, or remove it to use the default").
			Wrap(err).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

// applyEnvOverrides layers environment variables on top of file values.
// WAYPOST_REPO takes "owner/name" form; malformed values are ignored in
// favor of the configured repo.
func applyEnvOverrides(cfg *Config) {
	if dir := os.Getenv("WAYPOST_INSTALL_DIR"); dir != "" {
		cfg.InstallDir = dir
	}
	if repo := os.Getenv("WAYPOST_REPO"); repo != "" {
		if owner, name, ok := strings.Cut(repo, "/"); ok && owner != "" && name != "" {
			cfg.Repo = Repo{Owner: owner, Name: name}
		}
	}
	if dir := os.Getenv("BUN_INSTALL"); dir != "" {
		cfg.BunInstall = dir
	}
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		cfg.GitHubToken = token
	}
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}

	return ConfigDir()
}

func configParseError(path string, err error) error {
	return issue.NewErrorContext().
		WithOperation("load configuration").
		WithResource(path).
		WithSuggestion("Check that the file contains valid CUE syntax").
		WithSuggestion("Verify the configuration values match the expected schema").
		Wrap(err).
		BuildError()
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper. Decoding to a map rather than a struct
// lets Viper keep its defaults for anything the file leaves unset; concrete
// validation is off because every schema field is optional.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	res, err := cueutil.ParseAndDecode[map[string]any](
		[]byte(configSchema), data, "#Config",
		cueutil.WithConcrete(false),
		cueutil.WithFilename(path),
	)
	if err != nil {
		return err
	}

	if err := v.MergeConfigMap(*res.Value); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}

	return nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// EnsureConfigDir creates the config directory if it doesn't exist
func EnsureConfigDir() error {
	cfgDir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(cfgDir, 0o755)
}

// CreateDefaultConfig creates a default config file if it doesn't exist
func CreateDefaultConfig() error {
	cfgDir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	cfgPath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)

	if _, err := os.Stat(cfgPath); err == nil {
		return nil // File exists
	}

	defaults := DefaultConfig()
	cueContent := GenerateCUE(defaults)

	if err := os.WriteFile(cfgPath, []byte(cueContent), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GenerateCUE generates a CUE representation of the configuration. The
// GitHub token is deliberately never written to disk.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// waypost-install configuration file\n")
	sb.WriteString("// See https://github.com/wayposthq/waypost for documentation.\n\n")

	if cfg.InstallDir != "" {
		sb.WriteString(fmt.Sprintf("install_dir: %q\n", cfg.InstallDir))
	}

	sb.WriteString("\nrepo: {\n")
	sb.WriteString(fmt.Sprintf("\towner: %q\n", cfg.Repo.Owner))
	sb.WriteString(fmt.Sprintf("\tname:  %q\n", cfg.Repo.Name))
	sb.WriteString("}\n\n")

	sb.WriteString(fmt.Sprintf("path_strategy: %q\n", cfg.PathStrategy))
	sb.WriteString(fmt.Sprintf("link_dir: %q\n", cfg.LinkDir))
	if cfg.BunInstall != "" {
		sb.WriteString(fmt.Sprintf("bun_install: %q\n", cfg.BunInstall))
	}
	sb.WriteString(fmt.Sprintf("setup_port: %d\n", cfg.SetupPort))
	sb.WriteString(fmt.Sprintf("verbose: %v\n", cfg.Verbose))

	return sb.String()
}
