// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the CLI surface of waypost-install. The root command
// performs the install or upgrade; flags select check-only mode, force
// reinstalls, and the PATH integration strategy.
package cmd
