// SPDX-License-Identifier: MPL-2.0

// Package install implements the upgrade transaction: detect an existing
// installation, snapshot its preserved state into the scratch workspace,
// swap the installation tree for the freshly extracted one, and restore the
// preserved state into the new tree.
//
// The order is deliberate. Preserved files are copied out before the old
// tree is removed, so user data exists independently of both trees during
// the swap; if the swap itself fails the installation directory is absent
// and a re-run performs a fresh install, but nothing the user owns is lost.
//
// A per-installation advisory lock serializes runs: the backup/remove/swap
// sequence is not safe under concurrent execution, so a second run against
// the same installation directory fails fast instead of corrupting it.
package install
