// Package safety guards writes to kernel tunables: a glob filter over
// tunable names and paths, single-use confirmation tokens for sensitive
// writes, and an NDJSON audit log of every tool call.
package safety

import (
	"path"

	"github.com/rvkernel/rvkernel-mcp/internal/paths"
)

// Filter allows or denies tunables by glob pattern (path.Match syntax).
// The deny list wins; a non-empty allow list must match for a tunable to
// pass. Patterns are tried against both the registry name and the node
// path, so "gpu_*" and "/proc/sys/kernel/*" both work.
type Filter struct {
	allowlist []string
	denylist  []string
}

// NewFilter returns a Filter. Empty lists allow everything.
func NewFilter(allowlist, denylist []string) *Filter {
	return &Filter{allowlist: allowlist, denylist: denylist}
}

// IsAllowed reports whether any of names passes the filter.
func (f *Filter) IsAllowed(names ...string) bool {
	if f == nil {
		return true
	}
	for _, n := range names {
		if matchAny(f.denylist, n) {
			return false
		}
	}
	if len(f.allowlist) == 0 {
		return true
	}
	for _, n := range names {
		if matchAny(f.allowlist, n) {
			return true
		}
	}
	return false
}

// AllowsPath reports whether the node at p may be written. Registered
// nodes are also matched by name.
func (f *Filter) AllowsPath(p string) bool {
	if tp, ok := paths.LookupPath(p); ok {
		return f.IsAllowed(tp.Name, p)
	}
	return f.IsAllowed(p)
}

func matchAny(patterns []string, name string) bool {
	for _, pattern := range patterns {
		if ok, err := path.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}
