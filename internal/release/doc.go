// SPDX-License-Identifier: MPL-2.0

// Package release resolves the latest published waypost version from the
// GitHub Releases index and streams release assets. It deliberately has no
// cache and no pinning mechanism: every run installs whatever the index
// reports as latest at that moment.
package release
