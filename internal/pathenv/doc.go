// SPDX-License-Identifier: MPL-2.0

// Package pathenv makes the installed product binary reachable from the
// user's shell. Two strategies are supported: a symlink in a well-known bin
// directory (the default, with a sudo fallback when that directory is not
// writable), and an idempotent PATH export block appended to the user's
// shell rc file.
package pathenv
