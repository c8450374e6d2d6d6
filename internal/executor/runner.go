// Package executor runs the external tools the pipeline orchestrates (the
// build tool and the feed installer) through one injectable CommandRunner so
// tests never need the real binaries.
package executor

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
)

// Command describes a single external tool invocation.
type Command struct {
	Dir    string
	Name   string
	Args   []string
	Env    []string // appended to the process environment
	Stdout io.Writer
	Stderr io.Writer
}

// CommandRunner executes external commands. The returned error is the
// command's own failure (typically *exec.ExitError); use ExitCode to recover
// the process exit status.
type CommandRunner interface {
	Run(ctx context.Context, cmd Command) error
}

type execRunner struct{}

// NewCommandRunner returns a CommandRunner backed by os/exec.
func NewCommandRunner() CommandRunner { return execRunner{} }

func (execRunner) Run(ctx context.Context, spec Command) error {
	cmd := exec.CommandContext(ctx, spec.Name, spec.Args...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	cmd.Stdout = spec.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = spec.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	return cmd.Run()
}

// ExitCode extracts the process exit status from a CommandRunner error.
// Returns 0 for nil, the real exit code for *exec.ExitError, and -1 when the
// command never produced an exit status (start failure, context cancellation).
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
