package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/semindex/internal/config"
)

func boolPtr(b bool) *bool { return &b }

func TestExtensionSet(t *testing.T) {
	tests := []struct {
		pattern string
		want    []string
	}{
		{"**/*.{go,ts,PY}", []string{".go", ".ts", ".py"}},
		{"**/*.md", []string{".md"}},
		{"*.txt", []string{".txt"}},
		{"docs/**", nil},
		{"**/Makefile", nil},
		{"**/*.{go,*}", nil},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtensionSet(tt.pattern))
		})
	}
}

func TestMatchAny(t *testing.T) {
	assert.True(t, MatchAny("src/pkg/main.go", []string{"**/*.go"}))
	assert.True(t, MatchAny("main.go", []string{"**/*.go"}))
	assert.True(t, MatchAny("docs/guide/a.md", []string{"*.md"}), "base name fallback")
	assert.True(t, MatchAny("node_modules/x/index.js", []string{"**/node_modules/**"}))
	assert.False(t, MatchAny("src/main.go", []string{"**/*.py", "**/vendor/**"}))
	assert.False(t, MatchAny("a.go", nil))
}

func TestNew_presetsWhenNoneConfigured(t *testing.T) {
	r, err := New(config.Default(t.TempDir()))
	require.NoError(t, err)
	assert.Equal(t, []string{PresetCode, PresetConfig, PresetDocs}, r.Names())
	enabled := r.Enabled()
	require.Len(t, enabled, 2, "config preset starts disabled")
	assert.Equal(t, PresetCode, enabled[0].Name)
	assert.Equal(t, PresetDocs, enabled[1].Name)

	docs, err := r.Get(PresetDocs)
	require.NoError(t, err)
	assert.Equal(t, "Documentation and notes", docs.Description)
	assert.Contains(t, docs.Extensions, ".md")
}

func TestNew_configuredIndexes(t *testing.T) {
	cfg := config.Default(t.TempDir())
	cfg.Indexes = map[string]config.IndexConfig{
		"code":  {},
		"notes": {Pattern: "notes/**/*.txt", Description: "Notes"},
		"off":   {Pattern: "**/*.log", Enabled: boolPtr(false)},
	}
	r, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"code", "notes", "off"}, r.Names())

	code, err := r.Get("code")
	require.NoError(t, err)
	assert.Equal(t, Presets()[PresetCode].Pattern, code.Pattern, "empty pattern inherits preset")

	enabled := r.Enabled()
	require.Len(t, enabled, 2)
	assert.Equal(t, "code", enabled[0].Name)
	assert.Equal(t, "notes", enabled[1].Name)
}

func TestNew_errors(t *testing.T) {
	cfg := config.Default(t.TempDir())
	cfg.Indexes = map[string]config.IndexConfig{"custom": {}}
	_, err := New(cfg)
	assert.Error(t, err, "custom index without pattern")

	cfg.Indexes = map[string]config.IndexConfig{"all": {Pattern: "**/*"}}
	_, err = New(cfg)
	assert.Error(t, err, "reserved name")

	cfg.Indexes = map[string]config.IndexConfig{"bad": {Pattern: "**/*.{go"}}
	_, err = New(cfg)
	assert.Error(t, err, "unbalanced brace")
}

func TestNew_globalDisable(t *testing.T) {
	cfg := config.Default(t.TempDir())
	cfg.Enabled = boolPtr(false)
	r, err := New(cfg)
	require.NoError(t, err)
	assert.Empty(t, r.Enabled())
}

func TestClaim(t *testing.T) {
	cfg := config.Default(t.TempDir())
	r, err := New(cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{PresetCode}, r.Claim("internal/queue/queue.go"))
	assert.Equal(t, []string{PresetDocs}, r.Claim("README.md"))
	assert.Empty(t, r.Claim("deploy/values.yaml"), "config preset is disabled")
	require.NoError(t, r.SetEnabled(PresetConfig, true))
	assert.Equal(t, []string{PresetConfig}, r.Claim("deploy/values.yaml"))
	assert.Empty(t, r.Claim("vendor/lib/x.go"), "preset ignore glob")
	assert.Empty(t, r.Claim("node_modules/pkg/index.js"), "project exclude glob")
	assert.Empty(t, r.Claim(".semindex/code/hashes.json"), "state dir is excluded")
	assert.Empty(t, r.Claim("image.png"), "no index claims png")

	require.NoError(t, r.SetEnabled(PresetCode, false))
	assert.Empty(t, r.Claim("main.go"))
	assert.ErrorIs(t, r.SetEnabled("nope", true), ErrUnknownIndex)
}

func TestResolve(t *testing.T) {
	r, err := New(config.Default(t.TempDir()))
	require.NoError(t, err)

	all, err := r.Resolve("all")
	require.NoError(t, err)
	require.Len(t, all, 2, "all covers enabled indexes only")
	assert.Equal(t, PresetCode, all[0].Name)
	assert.Equal(t, PresetDocs, all[1].Name)
	assert.Equal(t, []string{PresetCode, PresetConfig, PresetDocs}, r.Names())

	assert.True(t, r.IsEnabled(PresetDocs))
	assert.False(t, r.IsEnabled(PresetConfig))
	assert.False(t, r.IsEnabled("missing"))
	require.NoError(t, r.SetEnabled(PresetConfig, true))
	all, err = r.Resolve("all")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	one, err := r.Resolve("docs")
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "docs", one[0].Name)

	_, err = r.Resolve("missing")
	assert.True(t, errors.Is(err, ErrUnknownIndex))
}
