package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)

	if cfg.Cache.Dir == "" {
		t.Error("Cache.Dir should have a default")
	}
	if cfg.Hub.Endpoint != DefaultHubEndpoint {
		t.Errorf("Hub.Endpoint = %q", cfg.Hub.Endpoint)
	}
	if cfg.Embedding.CacheSize != 10000 {
		t.Errorf("Embedding.CacheSize = %d", cfg.Embedding.CacheSize)
	}
	if cfg.Batch.MaxSize != 32 {
		t.Errorf("Batch.MaxSize = %d", cfg.Batch.MaxSize)
	}
	if cfg.Batch.MaxWait() != 2*time.Millisecond {
		t.Errorf("Batch.MaxWait() = %v", cfg.Batch.MaxWait())
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
debug: true
cache:
  dir: ./models
hub:
  offline: true
embedding:
  quantization: q8
  max_tokens: 512
batch:
  max_size: 8
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if !cfg.Debug {
		t.Error("Debug should be true")
	}
	if !cfg.Hub.Offline {
		t.Error("Hub.Offline should be true")
	}
	if cfg.Cache.Dir != filepath.Join(dir, "models") {
		t.Errorf("Cache.Dir = %q, want relative to config dir", cfg.Cache.Dir)
	}
	if cfg.Embedding.Quantization != "q8" {
		t.Errorf("Embedding.Quantization = %q", cfg.Embedding.Quantization)
	}
	if cfg.Embedding.MaxTokens != 512 {
		t.Errorf("Embedding.MaxTokens = %d", cfg.Embedding.MaxTokens)
	}
	if cfg.Batch.MaxSize != 8 {
		t.Errorf("Batch.MaxSize = %d", cfg.Batch.MaxSize)
	}
	// Defaults still applied for unset keys.
	if cfg.Hub.Endpoint != DefaultHubEndpoint {
		t.Errorf("Hub.Endpoint = %q", cfg.Hub.Endpoint)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestDefaultCacheDirEnvOverride(t *testing.T) {
	t.Setenv("UMEKOMI_CACHE_DIR", "/tmp/umekomi-test-cache")
	if got := DefaultCacheDir(); got != "/tmp/umekomi-test-cache" {
		t.Errorf("DefaultCacheDir = %q", got)
	}
}
