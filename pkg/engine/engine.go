// Package engine exposes the embedding and reranking pipeline to calling code.
package engine

import (
	"go.uber.org/zap"

	"github.com/hyperjump/umekomi/internal/backend"
	"github.com/hyperjump/umekomi/internal/cache"
	"github.com/hyperjump/umekomi/internal/config"
	"github.com/hyperjump/umekomi/internal/hub"
	"github.com/hyperjump/umekomi/internal/infer"
	"github.com/hyperjump/umekomi/internal/model"
	"github.com/hyperjump/umekomi/pkg/utils"
)

// Error identities surfaced to binding layers. Test with errors.Is.
var (
	ErrModelUnavailable = model.ErrModelUnavailable
	ErrStorage          = cache.ErrStorage
	ErrInference        = infer.ErrInference
)

// Quantization hints accepted by NewEmbedder. Empty selects the balanced
// default variant.
const (
	QuantFP32  = model.QuantFP32
	QuantFP16  = model.QuantFP16
	QuantQ4    = model.QuantQ4
	QuantQ4F16 = model.QuantQ4F16
	QuantQ8    = model.QuantQ8
)

// Engine owns the model registry and shared pipeline state. One instance is
// safe to share across concurrent requests.
type Engine struct {
	cfg      *config.Config
	log      *zap.Logger
	registry *model.Registry
	executor *infer.Executor
}

// New creates an engine backed by ONNX Runtime, downloading model artifacts
// on first use and caching them under the configured cache directory.
func New(cfg *config.Config, log *zap.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = utils.NewNopLogger()
	}
	fetcher := hub.NewHTTPFetcher(cfg.Hub.Endpoint, log)
	return newEngine(cfg, log, backend.NewONNXBackend("", log), fetcher)
}

// newEngine wires the pipeline over an arbitrary backend and fetcher.
func newEngine(cfg *config.Config, log *zap.Logger, be backend.Backend, fetcher hub.Fetcher) (*Engine, error) {
	store, err := cache.NewStore(cfg.Cache.Dir, log)
	if err != nil {
		return nil, err
	}
	catalog := model.NewCatalog(cfg)
	resolver := model.NewResolver(catalog, store, fetcher, cfg.Hub.Offline, log)

	return &Engine{
		cfg:      cfg,
		log:      log,
		registry: model.NewRegistry(resolver, be, log),
		executor: infer.NewExecutor(log),
	}, nil
}

// Close shuts the engine down, unloading every model graph. Outstanding
// Embedder and Reranker handles become unusable.
func (e *Engine) Close() error {
	return e.registry.Close()
}
