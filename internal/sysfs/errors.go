package sysfs

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrWriteFailed means the shell rejected a write.
	ErrWriteFailed = errors.New("write failed")

	// ErrDenied means the write guard refused the node.
	ErrDenied = errors.New("write denied by policy")

	// ErrUnsupported means the node does not exist on this device.
	ErrUnsupported = errors.New("not supported on this device")

	// ErrInvalidValue means a requested value is outside what the node
	// accepts.
	ErrInvalidValue = errors.New("invalid value")
)

// Guard decides whether a node may be written.
type Guard func(path string) bool

// WithGuard returns a copy of a whose Apply methods consult g first.
func (a *Accessor) WithGuard(g Guard) *Accessor {
	c := *a
	c.guard = g
	return &c
}

// Allowed reports whether the guard permits writing path.
func (a *Accessor) Allowed(path string) bool {
	return a.guard == nil || a.guard(path)
}

// Apply writes value to path and turns a refused or failed write into an
// error wrapping ErrDenied or ErrWriteFailed.
func (a *Accessor) Apply(ctx context.Context, path, value string) error {
	if !a.Allowed(path) {
		return fmt.Errorf("%s: %w", path, ErrDenied)
	}
	if !a.Write(ctx, path, value) {
		return fmt.Errorf("%s <- %q: %w", path, value, ErrWriteFailed)
	}
	return nil
}

// ApplyLocked is Apply for a node that is read-only by default.
func (a *Accessor) ApplyLocked(ctx context.Context, path, value, unlockMode, relockMode string) error {
	if !a.Allowed(path) {
		return fmt.Errorf("%s: %w", path, ErrDenied)
	}
	if !a.WriteLocked(ctx, path, value, unlockMode, relockMode) {
		return fmt.Errorf("%s <- %q: %w", path, value, ErrWriteFailed)
	}
	return nil
}
