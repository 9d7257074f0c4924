// Package sysfs reads and writes privileged kernel nodes through an elevated
// shell. Failures never surface as errors: reads collapse to an empty string
// and writes to false, and callers decide what that means.
package sysfs

import (
	"context"
	"os"
	"strings"

	"github.com/rvkernel/rvkernel-mcp/internal/shell"
)

// NotAvailable is displayed in place of a value that could not be read.
const NotAvailable = "N/A"

// ReadResult is a value read from a node.
type ReadResult struct {
	Value string
	OK    bool
}

// String returns the value, or NotAvailable when the read failed or the
// node is empty.
func (r ReadResult) String() string {
	if !r.OK || r.Value == "" {
		return NotAvailable
	}
	return r.Value
}

// Accessor performs existence checks, reads and writes on kernel nodes.
type Accessor struct {
	runner shell.Runner
	stat   func(string) (os.FileInfo, error)
	guard  Guard
}

// NewAccessor returns an Accessor that consults only the elevated shell.
// Use it when the shell runs on another host.
func NewAccessor(runner shell.Runner) *Accessor {
	return &Accessor{runner: runner}
}

// NewLocalAccessor returns an Accessor that tries a direct stat before
// falling back to the elevated shell. Use it when the shell runs on this
// host.
func NewLocalAccessor(runner shell.Runner) *Accessor {
	return &Accessor{runner: runner, stat: os.Stat}
}

// Exists reports whether path is a file visible either to this process or
// to root.
func (a *Accessor) Exists(ctx context.Context, path string) bool {
	if !shell.ValidPath(path) {
		return false
	}
	if a.stat != nil {
		if _, err := a.stat(path); err == nil {
			return true
		}
	}
	return a.run(ctx, "test -f "+shell.Quote(path)).Success()
}

// Read returns the trimmed content of path, or "" on any failure.
func (a *Accessor) Read(ctx context.Context, path string) string {
	return a.ReadResult(ctx, path).Value
}

// ReadResult reads path and reports whether the read succeeded.
func (a *Accessor) ReadResult(ctx context.Context, path string) ReadResult {
	if !shell.ValidPath(path) {
		return ReadResult{}
	}
	res := a.run(ctx, "cat "+shell.Quote(path))
	if !res.Success() {
		return ReadResult{}
	}
	return ReadResult{Value: res.Output(), OK: true}
}

// Write stores value in path. It returns true only if the shell reported
// success; the node is not read back.
func (a *Accessor) Write(ctx context.Context, path, value string) bool {
	if !shell.ValidPath(path) {
		return false
	}
	return a.run(ctx, "echo "+shell.Quote(value)+" > "+shell.Quote(path)).Success()
}

// SetPermissions changes the mode of path. The outcome is not reported.
func (a *Accessor) SetPermissions(ctx context.Context, mode, path string) {
	if !shell.ValidMode(mode) || !shell.ValidPath(path) {
		return
	}
	a.run(ctx, "chmod "+mode+" "+shell.Quote(path))
}

// WithWritable applies unlockMode to path, runs fn and then applies
// relockMode. The relock runs on every exit path, including a panic in fn
// and a cancelled ctx.
func (a *Accessor) WithWritable(ctx context.Context, path, unlockMode, relockMode string, fn func(ctx context.Context) error) error {
	a.SetPermissions(ctx, unlockMode, path)
	defer a.SetPermissions(context.WithoutCancel(ctx), relockMode, path)
	return fn(ctx)
}

// WriteLocked writes value to a node that is read-only by default, unlocking
// it for the duration of the write.
func (a *Accessor) WriteLocked(ctx context.Context, path, value, unlockMode, relockMode string) bool {
	var ok bool
	_ = a.WithWritable(ctx, path, unlockMode, relockMode, func(ctx context.Context) error {
		ok = a.Write(ctx, path, value)
		return nil
	})
	return ok
}

// CommandOutput runs name with quoted args and returns its trimmed output.
func (a *Accessor) CommandOutput(ctx context.Context, name string, args ...string) ReadResult {
	res := a.run(ctx, commandLine(name, args))
	if !res.Success() {
		return ReadResult{}
	}
	return ReadResult{Value: res.Output(), OK: true}
}

// List returns the entry names of directory dir, or nil on failure.
func (a *Accessor) List(ctx context.Context, dir string) []string {
	if !shell.ValidPath(dir) {
		return nil
	}
	res := a.run(ctx, "ls "+shell.Quote(dir))
	if !res.Success() {
		return nil
	}
	var names []string
	for _, line := range res.Stdout {
		if name := strings.TrimSpace(line); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// Command runs name with quoted args and reports whether it exited zero.
func (a *Accessor) Command(ctx context.Context, name string, args ...string) bool {
	return a.run(ctx, commandLine(name, args)).Success()
}

func commandLine(name string, args []string) string {
	var b strings.Builder
	b.WriteString(name)
	for _, arg := range args {
		b.WriteByte(' ')
		b.WriteString(shell.Quote(arg))
	}
	return b.String()
}

// run executes command and folds a dispatch error into a failed Result.
func (a *Accessor) run(ctx context.Context, command string) shell.Result {
	res, err := a.runner.Run(ctx, command)
	if err != nil {
		return shell.Result{ExitStatus: -1, Stderr: []string{err.Error()}}
	}
	return res
}
