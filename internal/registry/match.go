package registry

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// MatchAny reports whether relPath matches any pattern. Patterns use doublestar syntax
// and are also tried against the base name, so "*.md" matches "docs/a.md".
func MatchAny(relPath string, patterns []string) bool {
	normalized := filepath.ToSlash(relPath)
	base := path.Base(normalized)
	for _, pattern := range patterns {
		pattern = filepath.ToSlash(pattern)
		if ok, err := doublestar.Match(pattern, normalized); err == nil && ok {
			return true
		}
		if ok, err := doublestar.Match(pattern, base); err == nil && ok {
			return true
		}
	}
	return false
}

// ExtensionSet extracts the file extensions named by the last segment of pattern:
// "**/*.{go,py}" gives [".go" ".py"], "**/*.md" gives [".md"]. Patterns whose last
// segment is not of the form "*.ext" or "*.{a,b}" give nil, meaning no fast filter.
func ExtensionSet(pattern string) []string {
	last := pattern
	if i := strings.LastIndex(pattern, "/"); i >= 0 {
		last = pattern[i+1:]
	}
	rest, ok := strings.CutPrefix(last, "*.")
	if !ok || rest == "" {
		return nil
	}
	if strings.HasPrefix(rest, "{") && strings.HasSuffix(rest, "}") {
		var exts []string
		for _, e := range strings.Split(rest[1:len(rest)-1], ",") {
			e = strings.TrimSpace(e)
			if e == "" || strings.ContainsAny(e, "*?[{") {
				return nil
			}
			exts = append(exts, "."+strings.ToLower(e))
		}
		return exts
	}
	if strings.ContainsAny(rest, "*?[{}") {
		return nil
	}
	return []string{"." + strings.ToLower(rest)}
}
