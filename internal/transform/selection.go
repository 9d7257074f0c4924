package transform

import "strings"

// ParseCurrentSelection returns the bracketed token of a kernel choice list
// such as "lz4 [zstd] lzo", or "" when no token is marked.
func ParseCurrentSelection(s string) string {
	for _, tok := range strings.Fields(s) {
		if len(tok) > 2 && strings.HasPrefix(tok, "[") && strings.HasSuffix(tok, "]") {
			return tok[1 : len(tok)-1]
		}
	}
	return ""
}

// ParseAvailable returns every token of a choice list with brackets
// removed.
func ParseAvailable(s string) []string {
	fields := strings.Fields(s)
	out := make([]string, 0, len(fields))
	for _, tok := range fields {
		tok = strings.Trim(tok, "[]")
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// Contains reports whether value is one of the tokens of a choice list.
func Contains(list, value string) bool {
	for _, tok := range ParseAvailable(list) {
		if tok == value {
			return true
		}
	}
	return false
}
