// Package model defines model descriptors and resolves them to cached artifacts.
package model

import "github.com/hyperjump/umekomi/internal/cache"

// Role selects between the embedding and reranker code paths. The role is
// fixed at resolution time and never re-checked per call.
type Role string

const (
	RoleEmbedding Role = "embedding"
	RoleReranker  Role = "reranker"
)

// Quantization identifies a precision variant of an exported model.
type Quantization string

const (
	QuantFP32  Quantization = "fp32"
	QuantFP16  Quantization = "fp16"
	QuantQ4    Quantization = "q4"
	QuantQ4F16 Quantization = "q4f16"
	QuantQ8    Quantization = "q8"
)

// ModelFilename returns the ONNX graph filename for this variant.
func (q Quantization) ModelFilename() string {
	switch q {
	case QuantFP16:
		return "model_fp16.onnx"
	case QuantQ4:
		return "model_q4.onnx"
	case QuantQ4F16:
		return "model_q4f16.onnx"
	case QuantQ8:
		return "model_quantized.onnx"
	default:
		return "model.onnx"
	}
}

// DataFilename returns the external-data companion filename for this variant.
func (q Quantization) DataFilename() string {
	switch q {
	case QuantFP16:
		return "model_fp16.onnx_data"
	case QuantQ4:
		return "model_q4.onnx_data"
	case QuantQ4F16:
		return "model_q4f16.onnx_data"
	case QuantQ8:
		return "model_quantized.onnx_data"
	default:
		return "model.onnx_data"
	}
}

// HasExternalData reports whether the variant ships weights in a companion
// .onnx_data file. The quantized exports embed their weights in the graph.
func (q Quantization) HasExternalData() bool {
	return q == QuantFP32 || q == QuantFP16
}

// Valid reports whether q names a known variant.
func (q Quantization) Valid() bool {
	switch q {
	case QuantFP32, QuantFP16, QuantQ4, QuantQ4F16, QuantQ8:
		return true
	}
	return false
}

// VocabFilename is the tokenizer vocabulary asset cached with every model.
const VocabFilename = "vocab.txt"

// Descriptor is a fully-resolved model variant. Immutable once created.
type Descriptor struct {
	ID           string
	Role         Role
	Quantization Quantization
	Dimension    int
	MaxSeqLen    int
}

// Slot returns the cache slot holding this descriptor's artifacts.
func (d *Descriptor) Slot() cache.Slot {
	return cache.Slot{Repo: d.ID, Variant: string(d.Quantization)}
}

// Files lists every artifact file the descriptor needs on disk: the graph,
// its external data when the variant carries one, and the tokenizer assets.
func (d *Descriptor) Files() []string {
	files := []string{d.Quantization.ModelFilename()}
	if d.Quantization.HasExternalData() {
		files = append(files, d.Quantization.DataFilename())
	}
	return append(files, VocabFilename)
}
