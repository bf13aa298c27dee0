package model

import (
	"fmt"

	"github.com/hyperjump/umekomi/internal/config"
)

// Built-in model catalog. The embedding default is the multilingual
// EmbeddingGemma-300M export; the reranker default is BGE-Reranker-V2-M3.
const (
	DefaultEmbeddingRepo      = "onnx-community/embeddinggemma-300m-ONNX"
	DefaultEmbeddingDimension = 768
	DefaultEmbeddingMaxSeqLen = 2048

	DefaultRerankerRepo      = "onnx-community/bge-reranker-v2-m3-ONNX"
	DefaultRerankerMaxSeqLen = 8192
)

// DefaultQuantization returns the size/speed-balanced variant chosen when the
// caller gives no precision hint.
func DefaultQuantization(role Role) Quantization {
	if role == RoleEmbedding {
		return QuantQ4F16
	}
	return QuantFP32
}

// Catalog builds descriptors from built-in defaults plus config overrides.
type Catalog struct {
	embedding config.ModelConfig
	reranker  config.ModelConfig
}

// NewCatalog creates a catalog applying the given per-role overrides.
func NewCatalog(cfg *config.Config) *Catalog {
	return &Catalog{embedding: cfg.Embedding, reranker: cfg.Reranker}
}

// Describe returns the descriptor for (role, hint). An empty hint selects the
// role's default variant. Repeated calls with the same arguments return
// structurally identical descriptors.
func (c *Catalog) Describe(role Role, hint Quantization) (*Descriptor, error) {
	if hint == "" {
		// An explicit caller hint wins; otherwise the configured variant,
		// then the role default.
		mc := c.embedding
		if role == RoleReranker {
			mc = c.reranker
		}
		if mc.Quantization != "" {
			hint = Quantization(mc.Quantization)
		} else {
			hint = DefaultQuantization(role)
		}
	}
	if !hint.Valid() {
		return nil, fmt.Errorf("%w: unknown quantization %q", ErrModelUnavailable, hint)
	}

	switch role {
	case RoleEmbedding:
		d := &Descriptor{
			ID:           DefaultEmbeddingRepo,
			Role:         RoleEmbedding,
			Quantization: hint,
			Dimension:    DefaultEmbeddingDimension,
			MaxSeqLen:    DefaultEmbeddingMaxSeqLen,
		}
		applyOverrides(d, c.embedding)
		return d, nil
	case RoleReranker:
		d := &Descriptor{
			ID:           DefaultRerankerRepo,
			Role:         RoleReranker,
			Quantization: hint,
			MaxSeqLen:    DefaultRerankerMaxSeqLen,
		}
		applyOverrides(d, c.reranker)
		return d, nil
	default:
		return nil, fmt.Errorf("%w: unknown role %q", ErrModelUnavailable, role)
	}
}

func applyOverrides(d *Descriptor, mc config.ModelConfig) {
	if mc.Repo != "" {
		d.ID = mc.Repo
	}
	if mc.Dimension != 0 {
		d.Dimension = mc.Dimension
	}
	if mc.MaxTokens != 0 {
		d.MaxSeqLen = mc.MaxTokens
	}
}
