package upload

import (
	"path"
	"strings"
)

// SanitizeFilename reduces a client-supplied filename to a safe basename.
//
// Windows-style separators are normalized first, then everything up to the
// last path separator is dropped, so "../../etc/passwd" becomes "passwd"
// rather than a stripped-down traversal. The remaining name is filtered to
// [A-Za-z0-9._-]; anything else is removed.
//
// Returns "" when nothing safe is left (empty input, dot-only names, names
// made entirely of rejected characters).
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}

	out := b.String()
	if out == "" || strings.Trim(out, ".") == "" {
		return ""
	}
	return out
}
