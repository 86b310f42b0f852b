// Package config provides configuration loading and structs for semindex.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"go.uber.org/zap"
	yamlv3 "gopkg.in/yaml.v3"
)

// FileName is the per-project configuration file looked up in the project root.
const FileName = ".semindex.yaml"

// EnvPrefix prefixes environment overrides. Nested keys use a double underscore,
// e.g. SEMINDEX_EMBEDDING__PROVIDER=ollama.
const EnvPrefix = "SEMINDEX_"

// Config holds all configuration for one project.
type Config struct {
	// Root is the project root; set by Load, never read from the file.
	Root string `yaml:"-" koanf:"-"`

	Debug         bool                   `yaml:"debug" koanf:"debug"`
	Enabled       *bool                  `yaml:"enabled,omitempty" koanf:"enabled"`
	AutoIndex     *bool                  `yaml:"auto_index,omitempty" koanf:"auto_index"`
	DebounceMS    int                    `yaml:"debounce_ms" koanf:"debounce_ms"`
	StateRoot     string                 `yaml:"state_root" koanf:"state_root"`
	ChunkMaxChars int                    `yaml:"chunk_max_chars" koanf:"chunk_max_chars"`
	Exclude       []string               `yaml:"exclude" koanf:"exclude"`
	Indexes       map[string]IndexConfig `yaml:"indexes,omitempty" koanf:"indexes"`
	Embedding     EmbeddingConfig        `yaml:"embedding" koanf:"embedding"`
	Vector        VectorConfig           `yaml:"vector" koanf:"vector"`
	Server        ServerConfig           `yaml:"server" koanf:"server"`
}

// IndexConfig overrides or defines one named index.
type IndexConfig struct {
	Enabled     *bool    `yaml:"enabled,omitempty" koanf:"enabled"`
	Pattern     string   `yaml:"pattern" koanf:"pattern"`
	Ignore      []string `yaml:"ignore,omitempty" koanf:"ignore"`
	Description string   `yaml:"description,omitempty" koanf:"description"`
}

// EnabledOrDefault returns whether the index is enabled; defaults to true when unset.
func (c IndexConfig) EnabledOrDefault() bool {
	if c.Enabled != nil {
		return *c.Enabled
	}
	return true
}

// EmbeddingConfig selects and configures the embedding backend.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider" koanf:"provider"` // onnx, ollama, openai, mock
	Model      string `yaml:"model,omitempty" koanf:"model"`
	ModelPath  string `yaml:"model_path,omitempty" koanf:"model_path"`
	BaseURL    string `yaml:"base_url,omitempty" koanf:"base_url"`
	APIKey     string `yaml:"-" koanf:"api_key"`
	Dimensions int    `yaml:"dimensions" koanf:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens" koanf:"max_tokens"`
	CacheSize  int    `yaml:"cache_size" koanf:"cache_size"`
}

// VectorConfig selects the vector table backend.
type VectorConfig struct {
	Backend string `yaml:"backend" koanf:"backend"` // chromem, sqlite, memory
}

// ServerConfig holds HTTP server settings for the watch daemon.
type ServerConfig struct {
	Host string `yaml:"host" koanf:"host"`
	Port int    `yaml:"port" koanf:"port"`
}

// EnabledOrDefault returns whether semantic indexing is enabled; defaults to true when unset.
func (c *Config) EnabledOrDefault() bool {
	if c.Enabled != nil {
		return *c.Enabled
	}
	return true
}

// AutoIndexOrDefault returns whether file changes trigger reindexing; defaults to true when unset.
func (c *Config) AutoIndexOrDefault() bool {
	if c.AutoIndex != nil {
		return *c.AutoIndex
	}
	return true
}

// Debounce returns the change-queue quiet period.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// StateDir returns the absolute directory holding every index's state.
func (c *Config) StateDir() string {
	return expandPath(c.StateRoot, c.Root)
}

// Load reads root/.semindex.yaml when present, overlays SEMINDEX_* environment variables,
// applies defaults, and resolves relative paths against root.
func Load(root string) (*Config, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("absolute root: %w", err)
	}
	k := koanf.New(".")

	path := filepath.Join(absRoot, FileName)
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env overrides: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Root = absRoot
	ApplyDefaults(&cfg)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, absRoot)
	return &cfg, nil
}

// LoadOrDefault loads the project config. A missing or malformed file is not fatal:
// the error is logged and built-in defaults are returned instead.
func LoadOrDefault(root string, logger *zap.Logger) *Config {
	cfg, err := Load(root)
	if err == nil {
		return cfg
	}
	if logger != nil {
		logger.Warn("config load failed, using defaults", zap.String("root", root), zap.Error(err))
	}
	return Default(root)
}

// Default returns the built-in configuration for root.
func Default(root string) *Config {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		absRoot = root
	}
	cfg := &Config{Root: absRoot}
	ApplyDefaults(cfg)
	return cfg
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yamlv3.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts path to absolute. "~/" is relative to the home directory;
// other relative paths are relative to base.
func expandPath(path, base string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return filepath.Join(base, path)
}
