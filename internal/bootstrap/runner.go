// SPDX-License-Identifier: MPL-2.0

package bootstrap

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
)

type (
	// Command describes a single external process invocation.
	Command struct {
		// Name is the executable to run, either a bare name resolved via
		// PATH or an absolute path.
		Name string

		// Args are the arguments passed to the executable.
		Args []string

		// Dir is the working directory. Empty means the current directory.
		Dir string

		// Env holds extra environment variables in KEY=VALUE form, appended
		// to the parent environment.
		Env []string
	}

	// Runner executes external processes. The production implementation
	// shells out with os/exec; tests substitute a fake to script tool
	// availability and command outcomes.
	Runner interface {
		// Run executes the command, streaming its output to the parent's
		// stdout and stderr.
		Run(ctx context.Context, cmd Command) error

		// Capture executes the command and returns its combined output,
		// trimmed of trailing whitespace.
		Capture(ctx context.Context, cmd Command) (string, error)

		// LookPath resolves an executable name against PATH.
		LookPath(name string) (string, error)
	}

	execRunner struct{}
)

// NewRunner returns the Runner used outside of tests.
func NewRunner() Runner {
	return execRunner{}
}

func (execRunner) Run(ctx context.Context, cmd Command) error {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = append(os.Environ(), cmd.Env...)
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	return c.Run()
}

func (execRunner) Capture(ctx context.Context, cmd Command) (string, error) {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = append(os.Environ(), cmd.Env...)

	var buf bytes.Buffer
	c.Stdout = &buf
	c.Stderr = &buf

	err := c.Run()
	return strings.TrimSpace(buf.String()), err
}

func (execRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}
