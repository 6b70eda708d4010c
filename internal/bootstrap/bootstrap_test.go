// SPDX-License-Identifier: MPL-2.0

package bootstrap

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

// fakeRunner scripts tool availability and command outcomes while recording
// every invocation.
type fakeRunner struct {
	lookPath func(name string) (string, error)
	run      func(cmd Command) error
	capture  func(cmd Command) (string, error)

	runs []Command
}

func (f *fakeRunner) Run(_ context.Context, cmd Command) error {
	f.runs = append(f.runs, cmd)
	if f.run != nil {
		return f.run(cmd)
	}
	return nil
}

func (f *fakeRunner) Capture(_ context.Context, cmd Command) (string, error) {
	if f.capture != nil {
		return f.capture(cmd)
	}
	return "", errors.New("no capture scripted")
}

func (f *fakeRunner) LookPath(name string) (string, error) {
	if f.lookPath != nil {
		return f.lookPath(name)
	}
	return "", errors.New("not found")
}

// toolsOnPath builds a lookPath function that resolves exactly the given
// tools.
func toolsOnPath(tools ...string) func(string) (string, error) {
	return func(name string) (string, error) {
		for _, tool := range tools {
			if name == tool {
				return "/usr/bin/" + name, nil
			}
		}
		return "", errors.New(name + " not found")
	}
}

func testBootstrapper(t *testing.T, runner Runner, opts ...Option) *Bootstrapper {
	t.Helper()
	opts = append([]Option{WithRunner(runner)}, opts...)
	return NewBootstrapper(t.TempDir(), "waypost", log.New(io.Discard), opts...)
}

func TestEnsureBunAlreadyInstalled(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{lookPath: toolsOnPath("bun")}
	b := testBootstrapper(t, runner)

	path, err := b.EnsureBun(context.Background())
	if err != nil {
		t.Fatalf("EnsureBun() error = %v", err)
	}
	if path != "/usr/bin/bun" {
		t.Errorf("path = %q", path)
	}
	if len(runner.runs) != 0 {
		t.Errorf("expected no commands, got %v", runner.runs)
	}
}

func TestEnsureBunRunsInstaller(t *testing.T) {
	t.Parallel()

	bunInstall := t.TempDir()
	binDir := filepath.Join(bunInstall, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatal(err)
	}

	runner := &fakeRunner{
		lookPath: toolsOnPath("curl"),
		run: func(cmd Command) error {
			// Simulate the installer dropping the binary in place.
			return os.WriteFile(filepath.Join(binDir, "bun"), []byte("#!/bin/sh\n"), 0o755)
		},
	}
	b := testBootstrapper(t, runner, WithBunInstall(bunInstall))

	path, err := b.EnsureBun(context.Background())
	if err != nil {
		t.Fatalf("EnsureBun() error = %v", err)
	}
	if want := filepath.Join(binDir, "bun"); path != want {
		t.Errorf("path = %q, want %q", path, want)
	}

	if len(runner.runs) != 1 {
		t.Fatalf("expected one command, got %v", runner.runs)
	}
	installer := runner.runs[0]
	if installer.Name != "bash" {
		t.Errorf("installer ran via %q", installer.Name)
	}
	if len(installer.Args) != 2 || !strings.Contains(installer.Args[1], bunInstallURL) {
		t.Errorf("installer args = %v", installer.Args)
	}
	if len(installer.Env) != 1 || installer.Env[0] != "BUN_INSTALL="+bunInstall {
		t.Errorf("installer env = %v", installer.Env)
	}
}

func TestEnsureBunMissingCurl(t *testing.T) {
	t.Parallel()

	b := testBootstrapper(t, &fakeRunner{})

	_, err := b.EnsureBun(context.Background())
	if !errors.Is(err, ErrDependencyMissing) {
		t.Fatalf("error = %v, want ErrDependencyMissing", err)
	}

	var depErr *DependencyError
	if !errors.As(err, &depErr) || depErr.Tool != "curl" {
		t.Errorf("expected curl DependencyError, got %v", err)
	}
}

func TestEnsureBunInstallerDidNotProduceBun(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{lookPath: toolsOnPath("curl")}
	b := testBootstrapper(t, runner, WithBunInstall(t.TempDir()))

	_, err := b.EnsureBun(context.Background())
	var depErr *DependencyError
	if !errors.As(err, &depErr) || depErr.Tool != "bun" {
		t.Fatalf("expected bun DependencyError, got %v", err)
	}
}

func TestEnsureNode(t *testing.T) {
	t.Parallel()

	t.Run("present", func(t *testing.T) {
		t.Parallel()
		b := testBootstrapper(t, &fakeRunner{lookPath: toolsOnPath("node")})
		path, err := b.EnsureNode()
		if err != nil {
			t.Fatalf("EnsureNode() error = %v", err)
		}
		if path != "/usr/bin/node" {
			t.Errorf("path = %q", path)
		}
	})

	t.Run("missing is fatal with remediation", func(t *testing.T) {
		t.Parallel()
		b := testBootstrapper(t, &fakeRunner{})
		_, err := b.EnsureNode()
		if !errors.Is(err, ErrDependencyMissing) {
			t.Fatalf("error = %v, want ErrDependencyMissing", err)
		}
		var depErr *DependencyError
		if !errors.As(err, &depErr) {
			t.Fatal("expected DependencyError")
		}
		if depErr.Tool != "node" || depErr.Remediation == "" {
			t.Errorf("DependencyError = %+v", depErr)
		}
	})
}

func TestInstallDependenciesFallsBackToFullInstall(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{
		lookPath: toolsOnPath("bun"),
		run: func(cmd Command) error {
			if len(cmd.Args) > 1 && cmd.Args[1] == "--production" {
				return errors.New("missing dev tooling")
			}
			return nil
		},
	}
	b := testBootstrapper(t, runner)

	if err := b.InstallDependencies(context.Background()); err != nil {
		t.Fatalf("InstallDependencies() error = %v", err)
	}

	if len(runner.runs) != 2 {
		t.Fatalf("expected two install attempts, got %v", runner.runs)
	}
	if got := runner.runs[0].Args; len(got) != 2 || got[1] != "--production" {
		t.Errorf("first attempt args = %v", got)
	}
	if got := runner.runs[1].Args; len(got) != 1 || got[0] != "install" {
		t.Errorf("fallback args = %v", got)
	}
	if runner.runs[0].Dir != b.installDir {
		t.Errorf("install ran in %q, want %q", runner.runs[0].Dir, b.installDir)
	}
}

func TestInstallDependenciesBothAttemptsFail(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{
		run: func(Command) error { return errors.New("registry down") },
	}
	b := testBootstrapper(t, runner)

	err := b.InstallDependencies(context.Background())
	if !errors.Is(err, ErrDependencyMissing) {
		t.Fatalf("error = %v, want ErrDependencyMissing", err)
	}
}

func TestMigrate(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		runner := &fakeRunner{}
		b := testBootstrapper(t, runner)
		if err := b.Migrate(context.Background()); err != nil {
			t.Fatalf("Migrate() error = %v", err)
		}
		if len(runner.runs) != 1 {
			t.Fatalf("runs = %v", runner.runs)
		}
		if got := runner.runs[0].Args; len(got) != 2 || got[0] != "run" || got[1] != "db:migrate" {
			t.Errorf("args = %v", got)
		}
	})

	t.Run("failure", func(t *testing.T) {
		t.Parallel()
		runner := &fakeRunner{run: func(Command) error { return errors.New("exit status 1") }}
		b := testBootstrapper(t, runner)
		err := b.Migrate(context.Background())
		if !errors.Is(err, ErrMigrationFailed) {
			t.Fatalf("error = %v, want ErrMigrationFailed", err)
		}
	})
}

func TestSeedSkipsWhenUsersExist(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{
		lookPath: toolsOnPath("sqlite3"),
		capture:  func(Command) (string, error) { return "3", nil },
	}
	b := testBootstrapper(t, runner)
	writeTestDatabase(t, b.installDir)

	if err := b.Seed(context.Background()); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if len(runner.runs) != 0 {
		t.Errorf("expected no seed run, got %v", runner.runs)
	}
}

func TestSeedRunsWhenDatabaseEmpty(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{
		lookPath: toolsOnPath("sqlite3"),
		capture:  func(Command) (string, error) { return "0", nil },
	}
	b := testBootstrapper(t, runner)
	writeTestDatabase(t, b.installDir)

	if err := b.Seed(context.Background()); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if len(runner.runs) != 1 {
		t.Fatalf("expected one seed run, got %v", runner.runs)
	}
	if got := runner.runs[0].Args; len(got) != 2 || got[1] != "db:seed" {
		t.Errorf("args = %v", got)
	}
}

func TestSeedUnconditionalWithoutSQLite(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	b := testBootstrapper(t, runner)

	if err := b.Seed(context.Background()); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if len(runner.runs) != 1 {
		t.Errorf("expected seed to run, got %v", runner.runs)
	}
}

func TestSeedUnconditionalWhenCountQueryFails(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{
		lookPath: toolsOnPath("sqlite3"),
		capture:  func(Command) (string, error) { return "", errors.New("no such table: users") },
	}
	b := testBootstrapper(t, runner)
	writeTestDatabase(t, b.installDir)

	if err := b.Seed(context.Background()); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if len(runner.runs) != 1 {
		t.Errorf("expected seed to run, got %v", runner.runs)
	}
}

func TestSeedFailureIsSeedError(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{
		run: func(Command) error { return errors.New("seed script crashed") },
	}
	b := testBootstrapper(t, runner)

	err := b.Seed(context.Background())
	if !errors.Is(err, ErrSeedFailed) {
		t.Fatalf("error = %v, want ErrSeedFailed", err)
	}
}

func writeTestDatabase(t *testing.T, installDir string) {
	t.Helper()
	dataDir := filepath.Join(installDir, "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dataDir, "waypost.db"), []byte("stub"), 0o644); err != nil {
		t.Fatal(err)
	}
}
