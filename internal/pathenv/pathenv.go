// SPDX-License-Identifier: MPL-2.0

package pathenv

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
)

// DefaultLinkDir is where the symlink strategy places the product link.
const DefaultLinkDir = "/usr/local/bin"

// ErrPermissionDenied is the sentinel error wrapped by PermissionDeniedError.
var ErrPermissionDenied = errors.New("permission denied")

type (
	// Strategy selects how the binary is exposed on the user's PATH.
	Strategy string

	// PermissionDeniedError reports a PATH integration step that failed for
	// lack of filesystem permissions even after escalation was attempted.
	PermissionDeniedError struct {
		Path string
		Err  error
	}

	// Result describes what the integration did. When ManualActionRequired
	// is set the integration could not complete on its own and Instructions
	// tells the user what to run; this is a degraded success, not an error.
	Result struct {
		Strategy Strategy

		// Target is what was created or modified: the symlink for
		// StrategySymlink, the managed rc files (comma separated) for
		// StrategyShellRC.
		Target string

		ManualActionRequired bool
		Instructions         string
	}

	// Integrator applies a PATH integration strategy for an installed
	// product tree.
	Integrator struct {
		installDir string
		product    string
		linkDir    string
		homeDir    string
		logger     *log.Logger
	}

	// Option configures an Integrator.
	Option func(*Integrator)
)

const (
	// StrategySymlink links the binary into a well-known bin directory.
	StrategySymlink Strategy = "symlink"

	// StrategyShellRC appends a PATH export block to the user's shell rc.
	StrategyShellRC Strategy = "shellrc"
)

// ParseStrategy validates a strategy name from configuration or a flag.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategySymlink, StrategyShellRC:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("unknown path strategy %q (valid: %s, %s)", s, StrategySymlink, StrategyShellRC)
	}
}

// Error implements the error interface.
func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("no permission to modify %s: %v", e.Path, e.Err)
}

// Unwrap returns ErrPermissionDenied so callers can use errors.Is.
func (e *PermissionDeniedError) Unwrap() error { return ErrPermissionDenied }

// WithLinkDir overrides the symlink directory. Used by tests and by the
// link-dir config setting.
func WithLinkDir(dir string) Option {
	return func(i *Integrator) { i.linkDir = dir }
}

// WithHomeDir overrides the home directory used to locate shell rc files.
func WithHomeDir(dir string) Option {
	return func(i *Integrator) { i.homeDir = dir }
}

// NewIntegrator creates an Integrator for the product installed at
// installDir.
func NewIntegrator(installDir, product string, logger *log.Logger, opts ...Option) *Integrator {
	i := &Integrator{
		installDir: installDir,
		product:    product,
		linkDir:    DefaultLinkDir,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.homeDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			i.homeDir = home
		}
	}
	return i
}

// Integrate applies the given strategy.
func (i *Integrator) Integrate(ctx context.Context, strategy Strategy) (*Result, error) {
	switch strategy {
	case StrategySymlink:
		return i.Symlink(ctx)
	case StrategyShellRC:
		return i.ShellRC()
	default:
		return nil, fmt.Errorf("unknown path strategy %q", strategy)
	}
}
