// SPDX-License-Identifier: MPL-2.0

package pathenv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// Test seams for the link and sudo escalation paths.
var (
	lookPath = exec.LookPath

	replaceLink = replaceSymlink

	runSudoLink = func(ctx context.Context, target, link string) error {
		cmd := exec.CommandContext(ctx, "sudo", "ln", "-sf", target, link)
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		return cmd.Run()
	}
)

// Symlink links the installed binary into the link directory, replacing any
// existing link so upgrades repoint it. A link directory that is not
// writable triggers a sudo fallback when sudo is available; without sudo
// the result carries manual instructions instead of failing the install.
func (i *Integrator) Symlink(ctx context.Context) (*Result, error) {
	target := filepath.Join(i.installDir, "bin", i.product)
	link := filepath.Join(i.linkDir, i.product)

	err := replaceLink(target, link)
	if err == nil {
		i.logger.Info("linked binary", "link", link, "target", target)
		return &Result{Strategy: StrategySymlink, Target: link}, nil
	}
	if !errors.Is(err, os.ErrPermission) {
		return nil, fmt.Errorf("linking %s: %w", link, err)
	}

	manual := fmt.Sprintf("sudo ln -sf %s %s", target, link)

	if _, lookErr := lookPath("sudo"); lookErr != nil {
		i.logger.Warn("no permission to write link and sudo is unavailable", "link", link)
		return &Result{
			Strategy:             StrategySymlink,
			Target:               link,
			ManualActionRequired: true,
			Instructions:         fmt.Sprintf("Run this yourself to put %s on your PATH:\n\n    %s", i.product, manual),
		}, nil
	}

	i.logger.Info("link directory needs elevated permissions", "link", link)
	if sudoErr := runSudoLink(ctx, target, link); sudoErr != nil {
		return nil, &PermissionDeniedError{Path: link, Err: sudoErr}
	}

	i.logger.Info("linked binary via sudo", "link", link, "target", target)
	return &Result{Strategy: StrategySymlink, Target: link}, nil
}

// replaceSymlink atomically-enough swaps the link: remove then create. A
// stale regular file at the link path is replaced the same way.
func replaceSymlink(target, link string) error {
	if err := os.Remove(link); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return os.Symlink(target, link)
}
