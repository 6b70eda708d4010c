// SPDX-License-Identifier: MPL-2.0

// Package issue provides user-facing error machinery for the installer:
// ActionableError carries what operation failed, which resource was
// involved, and concrete suggestions for fixing it, while the markdown
// renderer turns longer remediation texts (for example, how to install a
// missing runtime by hand) into styled terminal output.
package issue
