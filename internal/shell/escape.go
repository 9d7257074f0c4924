package shell

import "strings"

// Quote wraps s in single quotes for safe interpolation into a POSIX shell
// command. Embedded single quotes are closed, escaped and reopened.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// ValidPath reports whether path is an absolute sysfs/procfs style path made
// of characters that appear in kernel node names. Directory traversal is
// rejected.
func ValidPath(path string) bool {
	if path == "" || path[0] != '/' {
		return false
	}
	if strings.Contains(path, "..") {
		return false
	}
	for _, c := range path {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-' || c == '_' || c == '/' || c == '.' || c == ',' || c == ':' || c == '+' || c == '@':
		default:
			return false
		}
	}
	return true
}

// ValidMode reports whether mode is an octal chmod mode such as "644" or
// "0444".
func ValidMode(mode string) bool {
	if len(mode) < 3 || len(mode) > 4 {
		return false
	}
	for _, c := range mode {
		if c < '0' || c > '7' {
			return false
		}
	}
	return true
}
