// SPDX-License-Identifier: MPL-2.0

package pathenv

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestShellRCAppendsToEveryExistingCandidate(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	mustWriteFile(t, filepath.Join(home, ".bashrc"), "alias ll='ls -l'\n")
	mustWriteFile(t, filepath.Join(home, ".profile"), "")

	i := NewIntegrator(t.TempDir(), "waypost", log.New(io.Discard), WithHomeDir(home))
	res, err := i.ShellRC()
	if err != nil {
		t.Fatalf("ShellRC() error = %v", err)
	}

	binDir := filepath.Join(i.installDir, "bin")
	for _, name := range []string{".bashrc", ".profile"} {
		content := readFile(t, filepath.Join(home, name))
		if !strings.Contains(content, blockBegin) || !strings.Contains(content, blockEnd) {
			t.Errorf("%s missing block markers:\n%s", name, content)
		}
		if !strings.Contains(content, binDir) {
			t.Errorf("%s block does not mention %q:\n%s", name, binDir, content)
		}
		if !strings.Contains(content, `:"$PATH"`) {
			t.Errorf("%s block does not preserve existing PATH:\n%s", name, content)
		}
		if !strings.Contains(res.Target, filepath.Join(home, name)) {
			t.Errorf("Target %q does not list %s", res.Target, name)
		}
	}

	content := readFile(t, filepath.Join(home, ".bashrc"))
	if !strings.Contains(content, "alias ll='ls -l'") {
		t.Error("existing rc content was lost")
	}

	// Candidates that do not exist are not created.
	if _, err := os.Stat(filepath.Join(home, ".zshrc")); !os.IsNotExist(err) {
		t.Error(".zshrc was created")
	}
}

func TestShellRCCreatesProfileWhenNoRCExists(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	i := NewIntegrator(t.TempDir(), "waypost", log.New(io.Discard), WithHomeDir(home))

	res, err := i.ShellRC()
	if err != nil {
		t.Fatalf("ShellRC() error = %v", err)
	}
	if want := filepath.Join(home, ".profile"); res.Target != want {
		t.Errorf("Target = %q, want %q", res.Target, want)
	}
	if !strings.Contains(readFile(t, res.Target), blockBegin) {
		t.Error("created .profile has no block")
	}
}

func TestShellRCIsIdempotent(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	mustWriteFile(t, filepath.Join(home, ".bashrc"), "")
	mustWriteFile(t, filepath.Join(home, ".zshrc"), "")

	i := NewIntegrator(t.TempDir(), "waypost", log.New(io.Discard), WithHomeDir(home))
	for range 3 {
		if _, err := i.ShellRC(); err != nil {
			t.Fatalf("ShellRC() error = %v", err)
		}
	}

	for _, name := range []string{".bashrc", ".zshrc"} {
		content := readFile(t, filepath.Join(home, name))
		if got := strings.Count(content, blockBegin); got != 1 {
			t.Errorf("block appears %d times in %s, want 1:\n%s", got, name, content)
		}
	}
}

func TestShellRCSkipsFileThatAlreadyMentionsBinDir(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	i := NewIntegrator(t.TempDir(), "waypost", log.New(io.Discard), WithHomeDir(home))
	binDir := filepath.Join(i.installDir, "bin")

	// The user put the bin dir on PATH by hand, without the markers.
	mustWriteFile(t, filepath.Join(home, ".bashrc"), "export PATH="+binDir+":$PATH\n")
	mustWriteFile(t, filepath.Join(home, ".profile"), "")

	if _, err := i.ShellRC(); err != nil {
		t.Fatalf("ShellRC() error = %v", err)
	}

	bashrc := readFile(t, filepath.Join(home, ".bashrc"))
	if strings.Contains(bashrc, blockBegin) {
		t.Errorf(".bashrc already had the bin dir but got a second entry:\n%s", bashrc)
	}
	if got := strings.Count(bashrc, binDir); got != 1 {
		t.Errorf("bin dir appears %d times in .bashrc, want 1:\n%s", got, bashrc)
	}

	// Files without the bin dir still get the block.
	if !strings.Contains(readFile(t, filepath.Join(home, ".profile")), blockBegin) {
		t.Error(".profile did not get the PATH block")
	}
}

func TestShellRCQuotesInstallDirWithSpaces(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	installDir := filepath.Join(t.TempDir(), "My Apps", "waypost")
	if err := os.MkdirAll(installDir, 0o755); err != nil {
		t.Fatal(err)
	}

	i := NewIntegrator(installDir, "waypost", log.New(io.Discard), WithHomeDir(home))
	res, err := i.ShellRC()
	if err != nil {
		t.Fatalf("ShellRC() error = %v", err)
	}

	content := readFile(t, res.Target)
	if strings.Contains(content, "export PATH="+filepath.Join(installDir, "bin")+":") {
		t.Errorf("bin dir with spaces left unquoted:\n%s", content)
	}

	// Re-running must still detect the quoted form.
	if _, err := i.ShellRC(); err != nil {
		t.Fatalf("ShellRC() error = %v", err)
	}
	content = readFile(t, res.Target)
	if got := strings.Count(content, blockBegin); got != 1 {
		t.Errorf("block appears %d times, want 1:\n%s", got, content)
	}
}

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}
