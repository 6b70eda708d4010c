// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/wayposthq/waypost-installer/internal/artifact"
	"github.com/wayposthq/waypost-installer/internal/bootstrap"
	"github.com/wayposthq/waypost-installer/internal/config"
	"github.com/wayposthq/waypost-installer/internal/envfile"
	"github.com/wayposthq/waypost-installer/internal/install"
	"github.com/wayposthq/waypost-installer/internal/issue"
	"github.com/wayposthq/waypost-installer/internal/pathenv"
	"github.com/wayposthq/waypost-installer/internal/platform"
	"github.com/wayposthq/waypost-installer/internal/release"
)

// installParams bundles the dependencies and flags for the install run,
// enabling the core logic in runInstall to be tested without a real Cobra
// command, live GitHub API calls, or the real bun/node toolchain.
type installParams struct {
	stdout io.Writer
	stderr io.Writer
	logger *log.Logger
	cfg    *config.Config
	client *release.Client

	// runner substitutes the bootstrap process runner in tests. Nil uses
	// the real one.
	runner bootstrap.Runner

	// homeDir overrides shell rc discovery in tests. Empty uses the real
	// home directory.
	homeDir string

	check bool // --check mode: report availability without installing
	force bool // --force flag: reinstall even when up to date
}

// runInstall is the core install logic, separated from Cobra for testability.
// All user-facing output goes through p.stdout and p.stderr.
//
// Flow:
//  1. Take the single-run lock for the install directory.
//  2. Resolve the host platform and the latest published release.
//  3. If --check, report and return; if already up to date, return.
//  4. Download, verify, and extract the release into a scratch workspace.
//  5. Swap the install directory, carrying user state across.
//  6. Bootstrap runtimes, dependencies, migrations, and seed data.
//  7. Put the binary on PATH and print completion guidance.
func runInstall(ctx context.Context, p installParams) error {
	lock, err := install.AcquireLock(p.cfg.InstallDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	plat, err := platform.Current()
	if err != nil {
		return err
	}
	p.logger.Debug("resolved platform", "platform", plat)

	rel, err := p.client.Latest(ctx)
	if err != nil {
		return fmt.Errorf("resolving latest release of %s: %w", p.cfg.RepoSlug(), err)
	}
	latest := rel.Version()
	current := install.InstalledVersion(p.cfg.InstallDir)

	if p.check {
		reportCheck(p, current, latest)
		return nil
	}

	if current == latest && !p.force {
		fmt.Fprintf(p.stdout, "%s %s is already the latest version.\n", config.ProductName, current)
		fmt.Fprintln(p.stdout, SubtitleStyle.Render("Use --force to reinstall."))
		return nil
	}

	ws, err := artifact.NewWorkspace()
	if err != nil {
		return err
	}
	defer ws.Cleanup()

	backupDir, err := ws.BackupDir()
	if err != nil {
		return err
	}

	fmt.Fprintf(p.stdout, "Downloading %s %s for %s...\n", config.ProductName, latest, plat)
	fetcher := artifact.NewFetcher(p.client, config.ProductName, p.logger)
	staged, err := fetcher.Fetch(ctx, ws, rel, plat)
	if err != nil {
		return err
	}

	txn := install.NewTransaction(p.cfg.InstallDir, config.ProductName, backupDir, p.logger)
	if txn.DetectExisting() {
		fmt.Fprintf(p.stdout, "Upgrading existing installation at %s...\n", p.cfg.InstallDir)
	} else {
		fmt.Fprintf(p.stdout, "Installing to %s...\n", p.cfg.InstallDir)
	}
	result, err := txn.Run(staged, latest)
	if err != nil {
		return err
	}

	bootOpts := []bootstrap.Option{bootstrap.WithBunInstall(p.cfg.BunInstall)}
	if p.runner != nil {
		bootOpts = append(bootOpts, bootstrap.WithRunner(p.runner))
	}
	boot := bootstrap.NewBootstrapper(p.cfg.InstallDir, config.ProductName, p.logger, bootOpts...)
	if err := boot.Run(ctx); err != nil {
		return err
	}

	strategy, err := pathenv.ParseStrategy(p.cfg.PathStrategy)
	if err != nil {
		return err
	}
	integOpts := []pathenv.Option{pathenv.WithLinkDir(p.cfg.LinkDir)}
	if p.homeDir != "" {
		integOpts = append(integOpts, pathenv.WithHomeDir(p.homeDir))
	}
	integ := pathenv.NewIntegrator(p.cfg.InstallDir, config.ProductName, p.logger, integOpts...)
	pathRes, err := integ.Integrate(ctx, strategy)
	if err != nil {
		return err
	}

	printCompletion(p, result, pathRes, latest)
	return nil
}

// reportCheck prints version availability without installing.
func reportCheck(p installParams, current, latest string) {
	if current == "" {
		current = "none"
	}
	fmt.Fprintf(p.stdout, "Installed version: %s\n", current)
	fmt.Fprintf(p.stdout, "Latest version:    %s\n", latest)

	if current == latest {
		fmt.Fprintln(p.stdout, "\nAlready up to date.")
		return
	}
	fmt.Fprintf(p.stdout, "\nAn update is available. Run %s to install it.\n", CmdStyle.Render("waypost-install"))
}

// printCompletion summarizes what happened and tells the user what to do
// next. A fresh install points at the setup wizard; the port comes from the
// bundle's .env.local when it sets one.
func printCompletion(p installParams, result *install.Result, pathRes *pathenv.Result, version string) {
	fmt.Fprintln(p.stdout)
	if result.Upgraded {
		fmt.Fprintln(p.stdout, SuccessStyle.Render(fmt.Sprintf("Successfully upgraded %s %s → %s", config.ProductName, result.PreviousVersion, version)))
	} else {
		fmt.Fprintln(p.stdout, SuccessStyle.Render(fmt.Sprintf("Successfully installed %s %s", config.ProductName, version)))
	}
	fmt.Fprintf(p.stdout, "Location: %s\n", p.cfg.InstallDir)

	switch {
	case pathRes.ManualActionRequired:
		fmt.Fprintf(p.stdout, "\n%s\n%s\n", WarningStyle.Render("PATH setup needs one manual step:"), pathRes.Instructions)
	case pathRes.Instructions != "":
		fmt.Fprintf(p.stdout, "\n%s\n", pathRes.Instructions)
	}

	if !result.Upgraded {
		port := setupPort(p.cfg)
		url := fmt.Sprintf("http://localhost:%d/setup", port)
		fmt.Fprintf(p.stdout, "\nFinish setup in your browser: %s\n", CmdStyle.Render(url))
	}
}

// setupPort reads PORT from the installed bundle's .env.local, falling back
// to the configured default.
func setupPort(cfg *config.Config) int {
	env, err := envfile.Load(filepath.Join(cfg.InstallDir, ".env.local"))
	if err != nil {
		return cfg.SetupPort
	}
	if _, ok := env["PORT"]; ok {
		return envfile.Port(env)
	}
	return cfg.SetupPort
}

// formatInstallError produces a user-friendly error message with actionable
// remediation guidance tailored to the specific error type.
func formatInstallError(err error, verboseMode bool) string {
	var depErr *bootstrap.DependencyError
	if errors.As(err, &depErr) && depErr.Remediation != "" {
		return depErr.Error() + "\n\n" + issue.RenderMarkdown(depErr.Remediation)
	}

	var rateLimitErr *release.RateLimitError
	if errors.As(err, &rateLimitErr) {
		return fmt.Sprintf("%s\n\nTo increase your rate limit, set a GitHub token:\n  export GITHUB_TOKEN=ghp_...\nThen retry: waypost-install", rateLimitErr.Error())
	}

	var checksumErr *artifact.ChecksumError
	if errors.As(err, &checksumErr) {
		return fmt.Sprintf("%s\n\nThe download may be corrupted. Please try again.\nIf this persists, report at https://github.com/wayposthq/waypost/issues", checksumErr.Error())
	}

	var swapErr *install.SwapError
	if errors.As(err, &swapErr) {
		return fmt.Sprintf("%s\n\nYour data was preserved in a backup. Re-run waypost-install to complete the installation.", swapErr.Error())
	}

	if errors.Is(err, install.ErrLockHeld) {
		return err.Error() + "\n\nWait for the other run to finish, then retry."
	}

	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}

	if errors.Is(err, release.ErrIndexUnreachable) {
		return err.Error() + "\n\nCheck your network connection and try again.\nIf behind a firewall, set GITHUB_TOKEN for authenticated access."
	}

	return err.Error()
}
