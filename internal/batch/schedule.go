// Package batch groups encoded inputs into padded batches for inference.
package batch

import (
	"github.com/hyperjump/umekomi/internal/backend"
	"github.com/hyperjump/umekomi/internal/tokenize"
)

// Batch is one padded group of sequences ready for a single inference call.
// Tensors are row-major [BatchSize][SeqLen]; Indices maps each row back to
// the caller's original position so outputs can be unscrambled.
type Batch struct {
	IDs     []int64
	Mask    []int64
	TypeIDs []int64

	Indices   []int
	BatchSize int
	SeqLen    int
}

// Request returns the batch in the backend's tensor layout.
func (b *Batch) Request() backend.Request {
	return backend.Request{
		InputIDs:      b.IDs,
		AttentionMask: b.Mask,
		TypeIDs:       b.TypeIDs,
		BatchSize:     b.BatchSize,
		SeqLen:        b.SeqLen,
	}
}

// MaskRow returns the attention mask of one row.
func (b *Batch) MaskRow(row int) []int64 {
	return b.Mask[row*b.SeqLen : (row+1)*b.SeqLen]
}

// Schedule groups inputs into batches of up to maxBatch sequences, each
// right-padded with padID to its own longest member; pad positions carry
// attention mask 0. A pure transform: no numeric work, and an empty input
// set yields an empty batch sequence.
func Schedule(inputs []tokenize.EncodedInput, maxBatch int, padID int64) []Batch {
	if len(inputs) == 0 {
		return nil
	}
	if maxBatch <= 0 {
		maxBatch = 1
	}

	batches := make([]Batch, 0, (len(inputs)+maxBatch-1)/maxBatch)
	for start := 0; start < len(inputs); start += maxBatch {
		end := start + maxBatch
		if end > len(inputs) {
			end = len(inputs)
		}
		batches = append(batches, pad(inputs[start:end], padID))
	}
	return batches
}

func pad(group []tokenize.EncodedInput, padID int64) Batch {
	seqLen := 0
	for _, in := range group {
		if len(in.IDs) > seqLen {
			seqLen = len(in.IDs)
		}
	}

	n := len(group)
	b := Batch{
		IDs:       make([]int64, n*seqLen),
		Mask:      make([]int64, n*seqLen),
		TypeIDs:   make([]int64, n*seqLen),
		Indices:   make([]int, n),
		BatchSize: n,
		SeqLen:    seqLen,
	}
	for row, in := range group {
		b.Indices[row] = in.Index
		base := row * seqLen
		copy(b.IDs[base:], in.IDs)
		copy(b.Mask[base:], in.Mask)
		copy(b.TypeIDs[base:], in.TypeIDs)
		for i := len(in.IDs); i < seqLen; i++ {
			b.IDs[base+i] = padID
		}
	}
	return b
}
