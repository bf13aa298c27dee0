// Package infer drives the inference backend over padded batches.
package infer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/umekomi/internal/backend"
	"github.com/hyperjump/umekomi/internal/batch"
)

// ErrInference indicates the backend rejected the input shape or hit a
// runtime fault. Fatal to the request and never silently retried: the
// inputs would not change.
var ErrInference = errors.New("inference failure")

// HiddenStates is the raw per-token output of an embedding graph for one batch.
type HiddenStates struct {
	Data      []float32
	BatchSize int
	SeqLen    int
	Hidden    int
}

// Sequence returns the SeqLen*Hidden block for one row.
func (h *HiddenStates) Sequence(row int) []float32 {
	stride := h.SeqLen * h.Hidden
	return h.Data[row*stride : (row+1)*stride]
}

// Executor is a thin adapter between padded batches and the backend's tensor
// layout. It performs no pooling or scoring itself.
type Executor struct {
	log *zap.Logger
}

// NewExecutor creates an executor.
func NewExecutor(log *zap.Logger) *Executor {
	return &Executor{log: log}
}

// RunEmbedding executes an embedding graph over b and returns per-token
// hidden states of the given width.
func (x *Executor) RunEmbedding(ctx context.Context, g backend.Graph, b batch.Batch, hidden int) (*HiddenStates, error) {
	out, err := g.Execute(ctx, b.Request())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInference, err)
	}
	want := b.BatchSize * b.SeqLen * hidden
	if len(out) != want {
		return nil, fmt.Errorf("%w: embedding output has %d values, want %d (%dx%dx%d)",
			ErrInference, len(out), want, b.BatchSize, b.SeqLen, hidden)
	}
	return &HiddenStates{
		Data:      out,
		BatchSize: b.BatchSize,
		SeqLen:    b.SeqLen,
		Hidden:    hidden,
	}, nil
}

// RunReranker executes a reranker graph over b and returns one logit per row.
func (x *Executor) RunReranker(ctx context.Context, g backend.Graph, b batch.Batch) ([]float32, error) {
	out, err := g.Execute(ctx, b.Request())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInference, err)
	}
	if len(out) != b.BatchSize {
		return nil, fmt.Errorf("%w: reranker output has %d logits, want %d",
			ErrInference, len(out), b.BatchSize)
	}
	return out, nil
}
