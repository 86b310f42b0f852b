package registry

import "github.com/hyperjump/semindex/internal/config"

// Built-in index names.
const (
	PresetCode   = "code"
	PresetDocs   = "docs"
	PresetConfig = "config"
)

// Presets returns the built-in index definitions used when the project config names none.
// The config preset starts disabled.
func Presets() map[string]config.IndexConfig {
	off := false
	return map[string]config.IndexConfig{
		PresetCode: {
			Pattern:     "**/*.{go,ts,tsx,js,jsx,mjs,py,rs,java,kt,rb,c,h,cc,cpp,hpp,cs,swift,php,lua,sh}",
			Ignore:      []string{"**/vendor/**", "**/*.min.js", "**/*.pb.go"},
			Description: "Source code",
		},
		PresetDocs: {
			Pattern:     "**/*.{md,mdx,txt,rst,adoc,org,pdf,docx,xlsx}",
			Ignore:      []string{"**/CHANGELOG.md"},
			Description: "Documentation and notes",
		},
		PresetConfig: {
			Pattern:     "**/*.{yaml,yml,json,toml,ini,conf,cfg}",
			Ignore:      []string{"**/package-lock.json", "**/*.lock", "**/.semindex.yaml"},
			Description: "Structured configuration",
			Enabled:     &off,
		},
	}
}
