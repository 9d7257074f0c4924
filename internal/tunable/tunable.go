// Package tunable gives generic access to every node in the path registry
// by name.
package tunable

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rvkernel/rvkernel-mcp/internal/paths"
	"github.com/rvkernel/rvkernel-mcp/internal/sysfs"
	"github.com/rvkernel/rvkernel-mcp/internal/transform"
)

// ErrUnknownTunable is returned for a name missing from the registry.
var ErrUnknownTunable = errors.New("unknown tunable")

// Reading is the value of one tunable.
type Reading struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Group       string `json:"group"`
	Description string `json:"description"`
	Supported   bool   `json:"supported"`
	Value       string `json:"value"`

	// MHz is set for frequency nodes.
	MHz string `json:"mhz,omitempty"`
}

// Entry is a registry entry with its availability on this device.
type Entry struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Group       string `json:"group"`
	Description string `json:"description"`
	Supported   *bool  `json:"supported,omitempty"`
}

// Service reads and writes registry tunables.
type Service struct {
	fs *sysfs.Accessor
}

// NewService returns a Service using fs.
func NewService(fs *sysfs.Accessor) *Service {
	return &Service{fs: fs}
}

// Read returns the current value of the named tunable.
func (s *Service) Read(ctx context.Context, name string) (Reading, error) {
	tp, ok := paths.Lookup(name)
	if !ok {
		return Reading{}, fmt.Errorf("tunable read %q: %w", name, ErrUnknownTunable)
	}

	r := Reading{
		Name:        tp.Name,
		Path:        tp.Path,
		Group:       string(tp.Group),
		Description: tp.Description,
		Supported:   s.fs.Exists(ctx, tp.Path),
		Value:       transform.NotAvailable,
	}
	if r.Supported {
		raw := s.fs.Read(ctx, tp.Path)
		r.Value = sysfs.ReadResult{Value: raw, OK: true}.String()
		if tp.Unit != paths.UnitNone && !strings.ContainsAny(raw, " \t\n") {
			r.MHz = transform.ToMHz(tp.Unit, raw)
		}
	}
	return r, ctx.Err()
}

// List returns registry entries, optionally limited to group. With
// checkExists each entry records whether its node exists.
func (s *Service) List(ctx context.Context, group string, checkExists bool) []Entry {
	var tps []paths.TunablePath
	if group == "" {
		tps = paths.All()
	} else {
		tps = paths.ByGroup(paths.Group(group))
	}

	out := make([]Entry, 0, len(tps))
	for _, tp := range tps {
		e := Entry{Name: tp.Name, Path: tp.Path, Group: string(tp.Group), Description: tp.Description}
		if checkExists {
			ok := s.fs.Exists(ctx, tp.Path)
			e.Supported = &ok
		}
		out = append(out, e)
	}
	return out
}

// Write stores value in the named tunable and returns the value read back.
func (s *Service) Write(ctx context.Context, name, value string) (Reading, error) {
	tp, ok := paths.Lookup(name)
	if !ok {
		return Reading{}, fmt.Errorf("tunable write %q: %w", name, ErrUnknownTunable)
	}
	if value == "" || strings.ContainsAny(value, "\n\r") {
		return Reading{}, fmt.Errorf("tunable write %s: value must be a single non-empty line: %w", name, sysfs.ErrInvalidValue)
	}
	if !s.fs.Exists(ctx, tp.Path) {
		return Reading{}, fmt.Errorf("tunable write %s: %w", name, sysfs.ErrUnsupported)
	}
	var err error
	if tp.Locked() {
		err = s.fs.ApplyLocked(ctx, tp.Path, value, tp.UnlockMode, tp.RelockMode)
	} else {
		err = s.fs.Apply(ctx, tp.Path, value)
	}
	if err != nil {
		return Reading{}, fmt.Errorf("tunable write %s: %w", name, err)
	}
	return s.Read(ctx, name)
}
