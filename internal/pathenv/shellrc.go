// SPDX-License-Identifier: MPL-2.0

package pathenv

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// rcCandidates are the shell startup files the shellrc strategy manages.
// Every candidate that exists receives the PATH block, so the bin directory
// is on PATH whichever shell the user logs in with.
var rcCandidates = []string{".zshrc", ".bashrc", ".bash_profile", ".profile"}

// blockMarkers bracket the managed PATH block so a reader can tell which
// lines the installer owns.
const (
	blockBegin = "# >>> waypost-install >>>"
	blockEnd   = "# <<< waypost-install <<<"
)

// ShellRC appends an export block putting the installed bin directory on
// PATH to every shell startup file that exists among the candidates,
// creating ~/.profile when none do. A file that already mentions the bin
// directory is left alone, whether the installer or the user put it there.
func (i *Integrator) ShellRC() (*Result, error) {
	targets, err := i.rcFiles()
	if err != nil {
		return nil, err
	}

	binDir := filepath.Join(i.installDir, "bin")
	block, quoted := i.pathBlock(binDir)
	for _, rcPath := range targets {
		if err := i.appendPathBlock(rcPath, block, binDir, quoted); err != nil {
			return nil, err
		}
	}

	return &Result{
		Strategy:     StrategyShellRC,
		Target:       strings.Join(targets, ", "),
		Instructions: reloadInstructions(targets),
	}, nil
}

// appendPathBlock adds the block to one rc file unless the file already
// references the bin directory in raw or quoted form.
func (i *Integrator) appendPathBlock(rcPath, block, binDir, quoted string) error {
	existing, err := os.ReadFile(rcPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reading %s: %w", rcPath, err)
	}

	if strings.Contains(string(existing), binDir) || strings.Contains(string(existing), quoted) {
		i.logger.Debug("rc file already puts the bin directory on PATH", "file", rcPath)
		return nil
	}

	f, err := os.OpenFile(rcPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return &PermissionDeniedError{Path: rcPath, Err: err}
		}
		return fmt.Errorf("opening %s: %w", rcPath, err)
	}
	defer func() { _ = f.Close() }() // write error is what matters

	prefix := "\n"
	if len(existing) == 0 || existing[len(existing)-1] == '\n' {
		prefix = ""
	}
	if _, err := f.WriteString(prefix + block); err != nil {
		return fmt.Errorf("writing %s: %w", rcPath, err)
	}

	i.logger.Info("added PATH block to shell rc", "file", rcPath)
	return nil
}

// rcFiles returns every candidate that already exists, or ~/.profile alone
// (created on append) when none do.
func (i *Integrator) rcFiles() ([]string, error) {
	if i.homeDir == "" {
		return nil, errors.New("cannot locate home directory for shell rc files")
	}

	var targets []string
	for _, name := range rcCandidates {
		candidate := filepath.Join(i.homeDir, name)
		if _, err := os.Stat(candidate); err == nil {
			targets = append(targets, candidate)
		}
	}
	if len(targets) == 0 {
		targets = append(targets, filepath.Join(i.homeDir, ".profile"))
	}
	return targets, nil
}

// pathBlock renders the managed block. The bin directory is shell-quoted so
// an install dir with spaces still produces a valid export; the quoted form
// is returned alongside for containment checks.
func (i *Integrator) pathBlock(binDir string) (block, quoted string) {
	quoted, err := syntax.Quote(binDir, syntax.LangBash)
	if err != nil {
		quoted = fmt.Sprintf("%q", binDir)
	}
	return fmt.Sprintf("%s\nexport PATH=%s:\"$PATH\"\n%s\n", blockBegin, quoted, blockEnd), quoted
}

func reloadInstructions(rcPaths []string) string {
	if len(rcPaths) == 1 {
		return fmt.Sprintf("Restart your shell (or run `source %s`) to pick up the new PATH.", rcPaths[0])
	}
	return "Restart your shell to pick up the new PATH."
}
