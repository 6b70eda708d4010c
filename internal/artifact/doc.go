// SPDX-License-Identifier: MPL-2.0

// Package artifact downloads and unpacks waypost release archives into a
// scratch workspace. The workspace is a scoped resource: it is created once
// per run and removed on every exit path, so a failed or interrupted run
// never leaves staging data behind.
//
// The package is organized into four concerns:
//   - workspace.go: scratch workspace lifecycle
//   - fetch.go: asset download and optional checksum verification
//   - extract.go: tar.gz extraction and product directory detection
//   - checksum.go: checksums.txt parsing and SHA256 file verification
package artifact
