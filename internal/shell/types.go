// Package shell provides elevated command execution on an Android device.
// Every privileged file operation in rvkernel-mcp is funnelled through a
// Runner, either a persistent local su session or an SSH connection to the
// device.
package shell

import (
	"context"
	"errors"
	"strings"
)

// ErrShellClosed is returned by Run after the underlying session has exited
// or been closed.
var ErrShellClosed = errors.New("shell: session closed")

// Result is the outcome of a single command executed by a Runner.
type Result struct {
	// ExitStatus is the command's exit code. Zero means success.
	ExitStatus int

	// Stdout holds the command's standard output split into lines, without
	// trailing newlines.
	Stdout []string

	// Stderr holds the command's standard error split into lines.
	Stderr []string
}

// Success reports whether the command exited with status zero.
func (r Result) Success() bool {
	return r.ExitStatus == 0
}

// Output returns the stdout lines joined with newlines and trimmed of
// surrounding whitespace.
func (r Result) Output() string {
	return strings.TrimSpace(strings.Join(r.Stdout, "\n"))
}

// Runner executes shell commands with elevated privileges.
//
// A non-nil error means the command could not be dispatched or its result
// could not be collected; a command that ran and failed is reported through
// Result.ExitStatus with a nil error.
type Runner interface {
	Run(ctx context.Context, command string) (Result, error)
}

// Session is a Runner that owns a connection or process and must be closed.
type Session interface {
	Runner
	Close() error
}
