// Package pooling reduces per-token hidden states to fixed-dimension embeddings.
package pooling

import (
	"github.com/hyperjump/umekomi/internal/batch"
	"github.com/hyperjump/umekomi/internal/infer"
	"github.com/hyperjump/umekomi/pkg/utils"
)

// MeanPool averages the hidden vectors of positions with attention mask 1.
// tokens is a SeqLen*hidden block; the result has length hidden. With no
// valid positions (fully-padded input) the result is the zero vector.
func MeanPool(tokens []float32, mask []int64, hidden int) []float32 {
	out := make([]float32, hidden)
	var valid int
	for t, m := range mask {
		if m == 0 {
			continue
		}
		valid++
		base := t * hidden
		for j := 0; j < hidden; j++ {
			out[j] += tokens[base+j]
		}
	}
	if valid == 0 {
		return out
	}
	inv := 1.0 / float32(valid)
	for j := range out {
		out[j] *= inv
	}
	return out
}

// PoolBatch mean-pools and L2-normalizes every row of a batch's hidden
// states. Normalizing the degenerate zero vector leaves it zero rather than
// dividing by zero. Pure and deterministic given its inputs.
func PoolBatch(h *infer.HiddenStates, b batch.Batch) [][]float32 {
	out := make([][]float32, h.BatchSize)
	for row := 0; row < h.BatchSize; row++ {
		v := MeanPool(h.Sequence(row), b.MaskRow(row), h.Hidden)
		utils.NormalizeL2(v)
		out[row] = v
	}
	return out
}
