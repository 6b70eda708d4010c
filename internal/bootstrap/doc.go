// SPDX-License-Identifier: MPL-2.0

// Package bootstrap prepares a freshly installed or upgraded application
// tree for first run: it makes sure the bun and node runtimes are present
// (installing bun via its upstream installer when it is missing), installs
// the bundle's production dependencies, applies database migrations, and
// seeds the database when it has no users yet.
//
// All external processes go through the Runner seam so the whole sequence
// is testable without bun, node, or sqlite3 on the machine running the
// tests.
package bootstrap
