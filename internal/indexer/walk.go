package indexer

import (
	"context"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/hyperjump/semindex/internal/registry"
)

// enumerate returns the slash-separated paths under root that match pattern and no
// ignore glob, sorted. Directories matched by an ignore glob are not descended into.
func enumerate(ctx context.Context, root, pattern string, ignore []string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			// unreadable subtree: skip it and keep walking
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			// probe with a child path so "**/node_modules/**" prunes the directory itself
			if registry.MatchAny(rel+"/_", ignore) {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if registry.MatchAny(rel, []string{pattern}) && !registry.MatchAny(rel, ignore) {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
