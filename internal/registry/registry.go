// Package registry resolves the named indexes of a project from its config and the
// built-in presets, and decides which indexes claim a given file.
package registry

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/hyperjump/semindex/internal/config"
)

// ErrUnknownIndex is returned when a name does not match any configured index.
var ErrUnknownIndex = errors.New("unknown index")

// Index is one resolved index definition.
type Index struct {
	Name        string
	Pattern     string
	Ignore      []string
	Description string
	Enabled     bool
	Extensions  []string
}

// Matches reports whether relPath belongs to the index: it has a listed extension,
// matches the pattern, and matches none of the ignore globs.
func (ix *Index) Matches(relPath string) bool {
	rel := filepath.ToSlash(relPath)
	if len(ix.Extensions) > 0 {
		ext := strings.ToLower(path.Ext(rel))
		found := false
		for _, e := range ix.Extensions {
			if e == ext {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return MatchAny(rel, []string{ix.Pattern}) && !MatchAny(rel, ix.Ignore)
}

// Registry holds the indexes of one project.
type Registry struct {
	mu      sync.RWMutex
	indexes map[string]*Index
	names   []string
	exclude []string
}

// New resolves indexes from cfg. When cfg names no indexes, the built-in presets are used.
// A configured index with an empty pattern inherits the pattern of the preset of the same name.
func New(cfg *config.Config) (*Registry, error) {
	presets := Presets()
	defs := cfg.Indexes
	if len(defs) == 0 {
		defs = presets
	}
	r := &Registry{
		indexes: make(map[string]*Index, len(defs)),
		exclude: append([]string(nil), cfg.Exclude...),
	}
	for name, def := range defs {
		if strings.EqualFold(name, "all") || name == "" {
			return nil, fmt.Errorf("invalid index name %q", name)
		}
		preset, hasPreset := presets[name]
		if def.Pattern == "" {
			if !hasPreset {
				return nil, fmt.Errorf("index %q: pattern is required", name)
			}
			def.Pattern = preset.Pattern
			if def.Ignore == nil {
				def.Ignore = preset.Ignore
			}
		}
		if def.Description == "" && hasPreset {
			def.Description = preset.Description
		}
		if !doublestar.ValidatePattern(def.Pattern) {
			return nil, fmt.Errorf("index %q: bad pattern %q", name, def.Pattern)
		}
		r.indexes[name] = &Index{
			Name:        name,
			Pattern:     def.Pattern,
			Ignore:      append([]string(nil), def.Ignore...),
			Description: def.Description,
			Enabled:     def.EnabledOrDefault() && cfg.EnabledOrDefault(),
			Extensions:  ExtensionSet(def.Pattern),
		}
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)
	return r, nil
}

// Names returns every index name in sorted order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Get returns the named index.
func (r *Registry) Get(name string) (*Index, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ix, ok := r.indexes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIndex, name)
	}
	return ix, nil
}

// Enabled returns enabled indexes in name order.
func (r *Registry) Enabled() []*Index {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Index
	for _, n := range r.names {
		if ix := r.indexes[n]; ix.Enabled {
			out = append(out, ix)
		}
	}
	return out
}

// IsEnabled reports whether name is a known, enabled index.
func (r *Registry) IsEnabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ix, ok := r.indexes[name]
	return ok && ix.Enabled
}

// Resolve returns the enabled indexes for "all" (or ""), otherwise the single named index.
func (r *Registry) Resolve(nameOrAll string) ([]*Index, error) {
	if nameOrAll == "" || nameOrAll == "all" {
		return r.Enabled(), nil
	}
	ix, err := r.Get(nameOrAll)
	if err != nil {
		return nil, err
	}
	return []*Index{ix}, nil
}

// SetEnabled toggles an index at runtime.
func (r *Registry) SetEnabled(name string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ix, ok := r.indexes[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownIndex, name)
	}
	ix.Enabled = enabled
	return nil
}

// Exclude returns the project-wide exclude globs.
func (r *Registry) Exclude() []string {
	return append([]string(nil), r.exclude...)
}

// Excluded reports whether relPath matches a project-wide exclude glob.
func (r *Registry) Excluded(relPath string) bool {
	return MatchAny(relPath, r.exclude)
}

// Claim returns the names of enabled indexes that relPath belongs to, in name order.
func (r *Registry) Claim(relPath string) []string {
	if r.Excluded(relPath) {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for _, n := range r.names {
		ix := r.indexes[n]
		if ix.Enabled && ix.Matches(relPath) {
			out = append(out, n)
		}
	}
	return out
}
