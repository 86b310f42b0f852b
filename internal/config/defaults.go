package config

// DefaultExclude lists globs ignored by every index and by the change queue.
var DefaultExclude = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/.semindex/**",
	"**/dist/**",
	"**/build/**",
	"**/.venv/**",
}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.DebounceMS == 0 {
		cfg.DebounceMS = 2000
	}
	if cfg.StateRoot == "" {
		cfg.StateRoot = ".semindex"
	}
	if cfg.ChunkMaxChars == 0 {
		cfg.ChunkMaxChars = 1500
	}
	if cfg.Exclude == nil {
		cfg.Exclude = append([]string(nil), DefaultExclude...)
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "onnx"
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "~/.semindex/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1000
	}
	if cfg.Vector.Backend == "" {
		cfg.Vector.Backend = "chromem"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8765
	}
}
