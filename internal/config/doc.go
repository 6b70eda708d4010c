// SPDX-License-Identifier: MPL-2.0

// Package config handles installer configuration using Viper with CUE as the
// file format.
//
// Configuration is loaded from ~/.config/waypost-install/config.cue (or XDG
// equivalent on Linux, ~/Library/Application Support/waypost-install/config.cue
// on macOS). Every setting has a sensible default, so a missing config file is
// not an error; environment variables (WAYPOST_INSTALL_DIR, WAYPOST_REPO,
// BUN_INSTALL, GITHUB_TOKEN) override file values.
//
// Configuration validation is performed against a CUE schema
// (config_schema.cue) to ensure type safety and provide clear error messages
// for invalid configurations.
package config
