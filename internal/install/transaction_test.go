// SPDX-License-Identifier: MPL-2.0

package install

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
)

// stageTree writes a minimal extracted product tree and returns its path.
func stageTree(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "waypost")
	for rel, content := range files {
		path := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir for %s: %v", rel, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("writing %s: %v", rel, err)
		}
	}
	return dir
}

func minimalStage(t *testing.T) string {
	t.Helper()
	return stageTree(t, map[string]string{
		"bin/waypost":  "#!/bin/sh\necho waypost\n",
		"package.json": `{"name":"waypost"}`,
	})
}

func testTransaction(t *testing.T, installDir string) *Transaction {
	t.Helper()
	return NewTransaction(installDir, "waypost", t.TempDir(), log.New(io.Discard))
}

func TestRun_FreshInstall(t *testing.T) {
	t.Parallel()

	installDir := filepath.Join(t.TempDir(), "app")
	tx := testTransaction(t, installDir)

	res, err := tx.Run(minimalStage(t), "1.0.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Upgraded {
		t.Error("fresh install reported as upgrade")
	}
	if len(res.Restored) != 0 {
		t.Errorf("fresh install restored %v", res.Restored)
	}

	// Entry point present and executable.
	info, err := os.Stat(filepath.Join(installDir, "bin", "waypost"))
	if err != nil {
		t.Fatalf("installed binary missing: %v", err)
	}
	if info.Mode().Perm()&0o111 == 0 {
		t.Error("installed binary is not executable")
	}

	if got := InstalledVersion(installDir); got != "1.0.0" {
		t.Errorf("InstalledVersion: got %q, want %q", got, "1.0.0")
	}
}

func TestRun_UpgradePreservesStateByteIdentical(t *testing.T) {
	t.Parallel()

	installDir := filepath.Join(t.TempDir(), "app")

	// First install.
	if _, err := testTransaction(t, installDir).Run(minimalStage(t), "1.0.0"); err != nil {
		t.Fatalf("initial install: %v", err)
	}

	// Simulate user state accumulated between runs.
	dbContent := []byte("sqlite-bytes\x00\x01\x02 user rows")
	envContent := []byte("PORT=5005\nWAYPOST_API_KEY=secret\n")
	mustWrite(t, filepath.Join(installDir, "data", "waypost.db"), dbContent)
	mustWrite(t, filepath.Join(installDir, "data", "waypost.db-wal"), []byte("wal"))
	mustWrite(t, filepath.Join(installDir, ".env.local"), envContent)

	// Upgrade.
	res, err := testTransaction(t, installDir).Run(minimalStage(t), "1.1.0")
	if err != nil {
		t.Fatalf("upgrade: %v", err)
	}

	if !res.Upgraded {
		t.Error("upgrade not detected")
	}
	if res.PreviousVersion != "1.0.0" {
		t.Errorf("PreviousVersion: got %q, want %q", res.PreviousVersion, "1.0.0")
	}
	if len(res.Restored) != 3 {
		t.Errorf("Restored: got %v, want 3 entries", res.Restored)
	}

	for path, want := range map[string][]byte{
		filepath.Join(installDir, "data", "waypost.db"): dbContent,
		filepath.Join(installDir, ".env.local"):         envContent,
	} {
		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("reading %s after upgrade: %v", path, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("%s not byte-identical after upgrade", path)
		}
	}

	if got := InstalledVersion(installDir); got != "1.1.0" {
		t.Errorf("InstalledVersion: got %q, want %q", got, "1.1.0")
	}
}

func TestRun_MissingDatabaseIsSkippedNotCreated(t *testing.T) {
	t.Parallel()

	installDir := filepath.Join(t.TempDir(), "app")
	if _, err := testTransaction(t, installDir).Run(minimalStage(t), "1.0.0"); err != nil {
		t.Fatalf("initial install: %v", err)
	}

	// Only the env override exists; no database files at all.
	mustWrite(t, filepath.Join(installDir, ".env.local"), []byte("PORT=4664\n"))

	res, err := testTransaction(t, installDir).Run(minimalStage(t), "1.1.0")
	if err != nil {
		t.Fatalf("upgrade: %v", err)
	}

	if len(res.Restored) != 1 || res.Restored[0] != ".env.local" {
		t.Errorf("Restored: got %v, want [.env.local]", res.Restored)
	}

	// The restore step must not have conjured an empty database file.
	if _, err := os.Stat(filepath.Join(installDir, "data", "waypost.db")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("database file should not exist after upgrade, stat err=%v", err)
	}
}

func TestRun_SwapFailureLeavesRecoverableState(t *testing.T) {
	t.Parallel()

	installDir := filepath.Join(t.TempDir(), "app")
	// Stage a tree without bin/waypost: the chmod at the end of swap fails.
	staged := stageTree(t, map[string]string{"package.json": "{}"})

	_, err := testTransaction(t, installDir).Run(staged, "1.0.0")
	if !errors.Is(err, ErrSwapFailed) {
		t.Fatalf("expected ErrSwapFailed, got %v", err)
	}

	var swapErr *SwapError
	if !errors.As(err, &swapErr) {
		t.Fatalf("expected *SwapError, got %T", err)
	}
}

func TestDetectExisting(t *testing.T) {
	t.Parallel()

	installDir := filepath.Join(t.TempDir(), "app")
	tx := testTransaction(t, installDir)

	if tx.DetectExisting() {
		t.Error("DetectExisting true for absent dir")
	}
	if err := os.MkdirAll(installDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if !tx.DetectExisting() {
		t.Error("DetectExisting false for present dir")
	}
}

func TestInstalledVersion_AbsentMarker(t *testing.T) {
	t.Parallel()

	if got := InstalledVersion(t.TempDir()); got != "" {
		t.Errorf("InstalledVersion of markerless dir: got %q, want empty", got)
	}
}

func TestWithPreservedPaths(t *testing.T) {
	t.Parallel()

	installDir := filepath.Join(t.TempDir(), "app")
	if _, err := testTransaction(t, installDir).Run(minimalStage(t), "1.0.0"); err != nil {
		t.Fatalf("initial install: %v", err)
	}
	mustWrite(t, filepath.Join(installDir, "custom.cfg"), []byte("keep me"))

	tx := NewTransaction(installDir, "waypost", t.TempDir(), log.New(io.Discard),
		WithPreservedPaths([]string{"custom.cfg"}))
	res, err := tx.Run(minimalStage(t), "1.1.0")
	if err != nil {
		t.Fatalf("upgrade: %v", err)
	}

	if len(res.Restored) != 1 || res.Restored[0] != "custom.cfg" {
		t.Errorf("Restored: got %v, want [custom.cfg]", res.Restored)
	}
}

func mustWrite(t *testing.T, path string, content []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}
