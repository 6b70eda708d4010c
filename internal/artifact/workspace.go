// SPDX-License-Identifier: MPL-2.0

package artifact

import (
	"fmt"
	"os"
	"path/filepath"
)

// Workspace is the per-run scratch area for downloads, extraction, and the
// preserved-state backup. Exactly one orchestrator run owns a Workspace;
// Cleanup must run on every exit path and is safe to call more than once.
type Workspace struct {
	root string
}

// NewWorkspace creates a fresh scratch directory under the system temp dir.
func NewWorkspace() (*Workspace, error) {
	root, err := os.MkdirTemp("", "waypost-install-*")
	if err != nil {
		return nil, fmt.Errorf("creating scratch workspace: %w", err)
	}
	return &Workspace{root: root}, nil
}

// Root returns the workspace root directory.
func (w *Workspace) Root() string { return w.root }

// Path joins the given elements onto the workspace root.
func (w *Workspace) Path(elem ...string) string {
	return filepath.Join(append([]string{w.root}, elem...)...)
}

// BackupDir returns the directory that holds preserved state snapshotted
// from an existing installation, creating it on first use.
func (w *Workspace) BackupDir() (string, error) {
	dir := w.Path("preserved")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating backup dir: %w", err)
	}
	return dir, nil
}

// ExtractDir returns the directory archives are unpacked into, creating it
// on first use.
func (w *Workspace) ExtractDir() (string, error) {
	dir := w.Path("extract")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating extract dir: %w", err)
	}
	return dir, nil
}

// Cleanup removes the workspace tree. Removal is best-effort and idempotent;
// an already-removed workspace is not an error.
func (w *Workspace) Cleanup() {
	if w == nil || w.root == "" {
		return
	}
	_ = os.RemoveAll(w.root)
	w.root = ""
}
