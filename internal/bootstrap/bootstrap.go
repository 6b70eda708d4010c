// SPDX-License-Identifier: MPL-2.0

package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/log"
)

// bunInstallURL is the upstream bun installer script.
const bunInstallURL = "https://bun.sh/install"

// nodeRemediation is shown (rendered as markdown) when node is missing.
// bun can be installed automatically, node cannot: its installation method
// varies too much across machines to pick one on the user's behalf.
const nodeRemediation = `# Node.js is required

waypost needs the ` + "`node`" + ` runtime for its background workers, and it
was not found on your PATH.

## Install it with your package manager

- macOS: ` + "`brew install node`" + `
- Debian/Ubuntu: ` + "`sudo apt install nodejs`" + `
- Fedora: ` + "`sudo dnf install nodejs`" + `

Or download an installer from https://nodejs.org.

Then re-run ` + "`waypost-install`" + `.`

// Sentinel errors for exit-code classification.
var (
	ErrDependencyMissing = errors.New("required dependency missing")
	ErrMigrationFailed   = errors.New("database migration failed")
	ErrSeedFailed        = errors.New("database seeding failed")
)

type (
	// DependencyError reports a required tool that could not be found or
	// installed. Remediation, when set, holds markdown instructions for
	// installing the tool manually.
	DependencyError struct {
		Tool        string
		Remediation string
		Err         error
	}

	// MigrationError wraps a failed migration run.
	MigrationError struct {
		Err error
	}

	// SeedError wraps a failed seeding run.
	SeedError struct {
		Err error
	}

	// Bootstrapper drives the post-install preparation of an application
	// tree.
	Bootstrapper struct {
		runner     Runner
		installDir string
		product    string
		bunInstall string
		logger     *log.Logger

		// bunPath is set by EnsureBun; later steps fall back to "bun" on
		// PATH when it is empty.
		bunPath string
	}

	// Option configures a Bootstrapper.
	Option func(*Bootstrapper)
)

// Error implements the error interface.
func (e *DependencyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dependency %s unavailable: %v", e.Tool, e.Err)
	}
	return fmt.Sprintf("dependency %s unavailable", e.Tool)
}

// Unwrap returns ErrDependencyMissing so callers can use errors.Is.
func (e *DependencyError) Unwrap() error { return ErrDependencyMissing }

// Error implements the error interface.
func (e *MigrationError) Error() string {
	return fmt.Sprintf("running database migrations: %v", e.Err)
}

// Unwrap returns ErrMigrationFailed so callers can use errors.Is.
func (e *MigrationError) Unwrap() error { return ErrMigrationFailed }

// Error implements the error interface.
func (e *SeedError) Error() string {
	return fmt.Sprintf("seeding database: %v", e.Err)
}

// Unwrap returns ErrSeedFailed so callers can use errors.Is.
func (e *SeedError) Unwrap() error { return ErrSeedFailed }

// WithRunner substitutes the process runner. Used by tests.
func WithRunner(r Runner) Option {
	return func(b *Bootstrapper) { b.runner = r }
}

// WithBunInstall sets the directory the bun installer should install into
// (the BUN_INSTALL convention). Empty keeps the installer's default of
// ~/.bun.
func WithBunInstall(dir string) Option {
	return func(b *Bootstrapper) { b.bunInstall = dir }
}

// NewBootstrapper creates a Bootstrapper operating on the installed product
// tree at installDir.
func NewBootstrapper(installDir, product string, logger *log.Logger, opts ...Option) *Bootstrapper {
	b := &Bootstrapper{
		runner:     NewRunner(),
		installDir: installDir,
		product:    product,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run executes the whole bootstrap sequence: runtimes, dependencies,
// migrations, seeding.
func (b *Bootstrapper) Run(ctx context.Context) error {
	if _, err := b.EnsureBun(ctx); err != nil {
		return err
	}
	if _, err := b.EnsureNode(); err != nil {
		return err
	}
	if err := b.InstallDependencies(ctx); err != nil {
		return err
	}
	if err := b.Migrate(ctx); err != nil {
		return err
	}
	return b.Seed(ctx)
}

// EnsureBun resolves the bun runtime, installing it via the upstream
// installer script when it is missing. The returned path is used for all
// subsequent bun invocations, so a bun installed outside PATH still works
// within this process.
func (b *Bootstrapper) EnsureBun(ctx context.Context) (string, error) {
	if path, err := b.runner.LookPath("bun"); err == nil {
		b.bunPath = path
		b.logger.Debug("bun found", "path", path)
		return path, nil
	}

	// The installer script is fetched with curl, so curl missing means we
	// cannot install bun either.
	if _, err := b.runner.LookPath("curl"); err != nil {
		return "", &DependencyError{Tool: "curl", Err: err}
	}

	b.logger.Info("bun not found, installing", "url", bunInstallURL)

	cmd := Command{
		Name: "bash",
		Args: []string{"-c", fmt.Sprintf("curl -fsSL %s | bash", bunInstallURL)},
	}
	if b.bunInstall != "" {
		cmd.Env = []string{"BUN_INSTALL=" + b.bunInstall}
	}
	if err := b.runner.Run(ctx, cmd); err != nil {
		return "", &DependencyError{Tool: "bun", Err: fmt.Errorf("installer script: %w", err)}
	}

	path, err := b.resolveBun()
	if err != nil {
		return "", &DependencyError{Tool: "bun", Err: err}
	}
	b.bunPath = path
	b.logger.Info("bun installed", "path", path)
	return path, nil
}

// resolveBun locates bun after the installer ran. The installer modifies
// shell rc files, not this process's PATH, so the conventional install
// locations are probed directly.
func (b *Bootstrapper) resolveBun() (string, error) {
	if path, err := b.runner.LookPath("bun"); err == nil {
		return path, nil
	}

	candidates := make([]string, 0, 2)
	if b.bunInstall != "" {
		candidates = append(candidates, filepath.Join(b.bunInstall, "bin", "bun"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".bun", "bin", "bun"))
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", errors.New("bun not found after running the installer")
}

// EnsureNode verifies the node runtime is present. There is no automatic
// installation path for node; a missing node is fatal and the returned
// DependencyError carries manual remediation instructions.
func (b *Bootstrapper) EnsureNode() (string, error) {
	path, err := b.runner.LookPath("node")
	if err != nil {
		return "", &DependencyError{Tool: "node", Remediation: nodeRemediation, Err: err}
	}
	b.logger.Debug("node found", "path", path)
	return path, nil
}

// ProbeSQLite looks for the optional sqlite3 CLI, used only to decide
// whether the database needs seeding.
func (b *Bootstrapper) ProbeSQLite() (string, bool) {
	path, err := b.runner.LookPath("sqlite3")
	if err != nil {
		return "", false
	}
	return path, true
}

// InstallDependencies installs the bundle's JavaScript dependencies. The
// production-only install is preferred; some bundles ship migration tooling
// in devDependencies, so a failed production install falls back to a full
// one.
func (b *Bootstrapper) InstallDependencies(ctx context.Context) error {
	b.logger.Info("installing dependencies")

	err := b.runner.Run(ctx, b.bunCommand("install", "--production"))
	if err == nil {
		return nil
	}

	b.logger.Warn("production install failed, retrying with full install", "error", err)
	if err := b.runner.Run(ctx, b.bunCommand("install")); err != nil {
		return &DependencyError{Tool: "bun install", Err: err}
	}
	return nil
}

// Migrate applies pending database migrations.
func (b *Bootstrapper) Migrate(ctx context.Context) error {
	b.logger.Info("applying database migrations")
	if err := b.runner.Run(ctx, b.bunCommand("run", "db:migrate")); err != nil {
		return &MigrationError{Err: err}
	}
	return nil
}

// Seed populates the database with initial data when it has no users yet.
// Without sqlite3, or when the user count cannot be read, seeding runs
// unconditionally and relies on the seed script being idempotent.
func (b *Bootstrapper) Seed(ctx context.Context) error {
	if !b.needsSeed(ctx) {
		b.logger.Info("database already has users, skipping seed")
		return nil
	}

	b.logger.Info("seeding database")
	if err := b.runner.Run(ctx, b.bunCommand("run", "db:seed")); err != nil {
		return &SeedError{Err: err}
	}
	return nil
}

// needsSeed reports whether the seed script should run, by counting rows in
// the users table when sqlite3 is available.
func (b *Bootstrapper) needsSeed(ctx context.Context) bool {
	sqlite, ok := b.ProbeSQLite()
	if !ok {
		b.logger.Debug("sqlite3 not available, seeding unconditionally")
		return true
	}

	dbPath := filepath.Join(b.installDir, "data", b.product+".db")
	if _, err := os.Stat(dbPath); err != nil {
		return true
	}

	out, err := b.runner.Capture(ctx, Command{
		Name: sqlite,
		Args: []string{dbPath, "SELECT COUNT(*) FROM users;"},
	})
	if err != nil {
		b.logger.Warn("could not query user count, seeding unconditionally", "error", err)
		return true
	}

	count, err := strconv.Atoi(out)
	if err != nil {
		b.logger.Warn("unexpected user count output, seeding unconditionally", "output", out)
		return true
	}

	return count == 0
}

// bunCommand builds a bun invocation rooted at the install directory.
func (b *Bootstrapper) bunCommand(args ...string) Command {
	name := b.bunPath
	if name == "" {
		name = "bun"
	}
	return Command{Name: name, Args: args, Dir: b.installDir}
}
