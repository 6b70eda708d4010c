// SPDX-License-Identifier: MPL-2.0

package install

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

// versionMarkerName is the file inside the installation tree that records
// which version the tree contains. Written after restore completes, so its
// presence implies a fully finished run.
const versionMarkerName = ".install-version"

var (
	// ErrSwapFailed is the sentinel error wrapped by SwapError.
	ErrSwapFailed = errors.New("installation swap failed")

	// ErrRestoreFailed is the sentinel error wrapped by RestoreError.
	ErrRestoreFailed = errors.New("preserved state restore failed")

	// DefaultPreservedPaths lists the relative paths that belong to the user
	// rather than to any installed version and must survive an upgrade: the
	// SQLite database with its WAL/shared-memory side files, and the local
	// environment override file.
	DefaultPreservedPaths = []string{
		"data/waypost.db",
		"data/waypost.db-wal",
		"data/waypost.db-shm",
		".env.local",
	}
)

type (
	// Transaction performs one DETECT -> PRESERVE -> SWAP -> RESTORE run
	// against a fixed installation directory. It is single-use.
	Transaction struct {
		installDir string
		product    string
		preserved  []string
		backupDir  string
		logger     *log.Logger
		backedUp   []string // relative paths actually copied into backupDir
	}

	// TransactionOption configures a Transaction during construction.
	TransactionOption func(*Transaction)

	// Result summarizes a completed transaction.
	Result struct {
		Upgraded        bool     // true when an existing installation was replaced
		PreviousVersion string   // version marker of the replaced tree, if any
		Restored        []string // relative paths restored into the new tree
	}

	// SwapError reports a failure while replacing the installation tree.
	// After a failed swap the installation directory is absent: that state
	// is recoverable by re-running the installer, and the error message says
	// so instead of leaving the user to guess. Wraps ErrSwapFailed.
	SwapError struct {
		InstallDir string
		Err        error
	}

	// RestoreError reports a failure to copy a preserved item back into the
	// new tree. A partial restore is fatal, never a warning. Wraps
	// ErrRestoreFailed.
	RestoreError struct {
		Path string
		Err  error
	}
)

// Error implements the error interface.
func (e *SwapError) Error() string {
	return fmt.Sprintf("installing new tree at %s: %v (the directory is now absent; preserved data is safe in the scratch backup and re-running waypost-install will retry from a clean state)", e.InstallDir, e.Err)
}

// Unwrap returns ErrSwapFailed so callers can use errors.Is.
func (e *SwapError) Unwrap() error { return ErrSwapFailed }

// Error implements the error interface.
func (e *RestoreError) Error() string {
	return fmt.Sprintf("restoring preserved file %s: %v", e.Path, e.Err)
}

// Unwrap returns ErrRestoreFailed so callers can use errors.Is.
func (e *RestoreError) Unwrap() error { return ErrRestoreFailed }

// WithPreservedPaths overrides the preserved-state path list.
func WithPreservedPaths(paths []string) TransactionOption {
	return func(t *Transaction) {
		t.preserved = paths
	}
}

// NewTransaction creates a Transaction for installDir. backupDir must live
// inside the run's scratch workspace so preserved state shares the
// workspace's lifetime guarantees.
func NewTransaction(installDir, product, backupDir string, logger *log.Logger, opts ...TransactionOption) *Transaction {
	t := &Transaction{
		installDir: installDir,
		product:    product,
		preserved:  DefaultPreservedPaths,
		backupDir:  backupDir,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// DetectExisting reports whether an installation is present at the fixed path.
func (t *Transaction) DetectExisting() bool {
	info, err := os.Stat(t.installDir)
	return err == nil && info.IsDir()
}

// Run executes the transaction: stagedDir is the extracted product tree in
// the scratch workspace, version the resolved release version recorded in
// the new tree's marker after restore completes.
func (t *Transaction) Run(stagedDir, version string) (*Result, error) {
	res := &Result{}

	if t.DetectExisting() {
		res.Upgraded = true
		res.PreviousVersion = InstalledVersion(t.installDir)

		if err := t.preserveState(); err != nil {
			return nil, err
		}

		t.logger.Debug("removing previous installation", "dir", t.installDir)
		if err := os.RemoveAll(t.installDir); err != nil {
			return nil, fmt.Errorf("removing previous installation %s: %w", t.installDir, err)
		}
	}

	if err := t.swap(stagedDir); err != nil {
		return nil, err
	}

	if err := t.restoreState(); err != nil {
		return nil, err
	}
	res.Restored = t.backedUp

	if err := t.writeVersionMarker(version); err != nil {
		return nil, err
	}

	return res, nil
}

// InstalledVersion returns the version recorded in the installation tree's
// marker file, or "" when the marker is absent or unreadable.
func InstalledVersion(installDir string) string {
	data, err := os.ReadFile(filepath.Join(installDir, versionMarkerName))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// preserveState copies every preserved path that currently exists from the
// installation into the backup directory, keeping relative structure.
// Missing items are skipped: a fresh database or an older layout simply has
// fewer files to carry over.
func (t *Transaction) preserveState() error {
	for _, rel := range t.preserved {
		src := filepath.Join(t.installDir, rel)
		if _, err := os.Stat(src); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				t.logger.Debug("preserved path absent, skipping", "path", rel)
				continue
			}
			return fmt.Errorf("inspecting preserved file %s: %w", rel, err)
		}

		dst := filepath.Join(t.backupDir, rel)
		if err := copyFile(src, dst); err != nil {
			return fmt.Errorf("backing up %s: %w", rel, err)
		}
		t.logger.Debug("preserved", "path", rel)
		t.backedUp = append(t.backedUp, rel)
	}
	return nil
}

// swap moves the staged tree to the installation path and marks the entry
// point executable. A plain rename is attempted first; when the scratch
// workspace sits on a different filesystem the move degrades to a copy
// followed by removal of the staged tree.
func (t *Transaction) swap(stagedDir string) error {
	if err := os.MkdirAll(filepath.Dir(t.installDir), 0o755); err != nil {
		return &SwapError{InstallDir: t.installDir, Err: err}
	}

	if err := os.Rename(stagedDir, t.installDir); err != nil {
		t.logger.Debug("rename failed, copying tree instead", "error", err)
		if copyErr := copyTree(stagedDir, t.installDir); copyErr != nil {
			// Leave no partially written tree behind: absent is the
			// documented recoverable state, a half-copy is not.
			_ = os.RemoveAll(t.installDir)
			return &SwapError{InstallDir: t.installDir, Err: copyErr}
		}
		_ = os.RemoveAll(stagedDir)
	}

	binary := filepath.Join(t.installDir, "bin", t.product)
	if err := os.Chmod(binary, 0o755); err != nil {
		return &SwapError{InstallDir: t.installDir, Err: fmt.Errorf("marking %s executable: %w", binary, err)}
	}

	return nil
}

// restoreState copies every backed-up item into the new tree at its original
// relative path. Any failure here is fatal: success is only reported when
// every preserved file is back in place.
func (t *Transaction) restoreState() error {
	for _, rel := range t.backedUp {
		src := filepath.Join(t.backupDir, rel)
		dst := filepath.Join(t.installDir, rel)
		if err := copyFile(src, dst); err != nil {
			return &RestoreError{Path: rel, Err: err}
		}
		t.logger.Debug("restored", "path", rel)
	}
	return nil
}

// writeVersionMarker records the installed version in the new tree.
func (t *Transaction) writeVersionMarker(version string) error {
	path := filepath.Join(t.installDir, versionMarkerName)
	if err := os.WriteFile(path, []byte(version+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing version marker: %w", err)
	}
	return nil
}

// copyFile copies src to dst byte-for-byte, creating parent directories and
// carrying over the source file mode.
func copyFile(src, dst string) (err error) {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }() // read-only file handle

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copying %s: %w", src, err)
	}
	return nil
}

// copyTree recursively copies the directory tree at src to dst, preserving
// file modes and symlinks.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.IsDir():
			info, err := d.Info()
			if err != nil {
				return err
			}
			return os.MkdirAll(target, info.Mode().Perm()|0o700)

		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)

		default:
			return copyFile(path, target)
		}
	})
}
