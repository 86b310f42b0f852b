package indexer

import (
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

const archivedMarker = "<!-- archived -->"

// IsArchived reports whether a file's chunks should be hidden from default queries.
// A file is archived when a directory in its path is named "archive" or "archived",
// when its YAML front matter sets `archived: true` or `status: archived`, or when it
// contains an <!-- archived --> marker.
func IsArchived(relPath, text string) bool {
	dir := path.Dir(strings.ReplaceAll(relPath, "\\", "/"))
	for _, seg := range strings.Split(dir, "/") {
		if strings.EqualFold(seg, "archive") || strings.EqualFold(seg, "archived") {
			return true
		}
	}
	if fm, ok := frontMatter(text); ok {
		var meta struct {
			Archived bool   `yaml:"archived"`
			Status   string `yaml:"status"`
		}
		if err := yaml.Unmarshal([]byte(fm), &meta); err == nil {
			if meta.Archived || strings.EqualFold(strings.TrimSpace(meta.Status), "archived") {
				return true
			}
		}
	}
	return strings.Contains(strings.ToLower(text), archivedMarker)
}

// frontMatter returns the body of a leading "---" delimited block.
func frontMatter(text string) (string, bool) {
	rest, ok := strings.CutPrefix(text, "---\n")
	if !ok {
		return "", false
	}
	if body, _, found := strings.Cut(rest, "\n---"); found {
		return body, true
	}
	return "", false
}
