package config

import "time"

// DefaultHubEndpoint is the artifact host used when no endpoint is configured.
const DefaultHubEndpoint = "https://huggingface.co"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = DefaultCacheDir()
	}
	if cfg.Hub.Endpoint == "" {
		cfg.Hub.Endpoint = DefaultHubEndpoint
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Batch.MaxSize == 0 {
		cfg.Batch.MaxSize = 32
	}
	if cfg.Batch.MaxWaitMS == 0 {
		cfg.Batch.MaxWaitMS = 2
	}
}

// MaxWait returns the batch accumulation wait bound as a duration.
func (b BatchConfig) MaxWait() time.Duration {
	return time.Duration(b.MaxWaitMS) * time.Millisecond
}
