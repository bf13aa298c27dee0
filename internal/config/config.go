// Package config provides configuration loading and structs for the Umekomi engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the engine.
type Config struct {
	Debug     bool        `yaml:"debug"`
	Cache     CacheConfig `yaml:"cache"`
	Hub       HubConfig   `yaml:"hub"`
	Embedding ModelConfig `yaml:"embedding"`
	Reranker  ModelConfig `yaml:"reranker"`
	Batch     BatchConfig `yaml:"batch"`
}

// CacheConfig holds the model artifact cache settings.
type CacheConfig struct {
	Dir string `yaml:"dir"`
}

// HubConfig holds artifact download settings. When Offline is set the engine
// never touches the network; a cache miss fails resolution instead.
type HubConfig struct {
	Endpoint string `yaml:"endpoint"`
	Offline  bool   `yaml:"offline"`
}

// ModelConfig holds per-role model settings. Zero values fall back to the
// built-in catalog entry for the role.
type ModelConfig struct {
	Repo         string `yaml:"repo"`
	Quantization string `yaml:"quantization"`
	Dimension    int    `yaml:"dimension"`
	MaxTokens    int    `yaml:"max_tokens"`
	CacheSize    int    `yaml:"cache_size"`
}

// BatchConfig holds batching settings for the inference pipeline.
type BatchConfig struct {
	MaxSize   int `yaml:"max_size"`
	MaxWaitMS int `yaml:"max_wait_ms"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Cache.Dir = expandPath(cfg.Cache.Dir, configDir)

	return &cfg, nil
}

// Default returns a config with all defaults applied, without reading a file.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return &cfg
}

// DefaultCacheDir returns the per-user model cache directory. The
// UMEKOMI_CACHE_DIR environment variable overrides it.
func DefaultCacheDir() string {
	if dir := os.Getenv("UMEKOMI_CACHE_DIR"); dir != "" {
		return dir
	}
	if base, err := os.UserCacheDir(); err == nil {
		return filepath.Join(base, "umekomi", "models")
	}
	return filepath.Join(".", "umekomi-models")
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
