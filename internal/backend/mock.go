package backend

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
)

// MockBackend is a deterministic in-process backend for tests. Outputs are a
// pure function of token ids and the attention mask, so co-batched sequences
// and padding cannot influence each other's results.
type MockBackend struct {
	// Loads and Closes count graph lifecycle events for refcount tests.
	Loads  atomic.Int64
	Closes atomic.Int64
	// FailExecute makes every Execute return an error.
	FailExecute bool
}

// NewMockBackend returns a mock backend.
func NewMockBackend() *MockBackend {
	return &MockBackend{}
}

// Load returns a deterministic graph for the spec. The model file is not read.
func (m *MockBackend) Load(modelPath string, spec Spec) (Graph, error) {
	m.Loads.Add(1)
	return &mockGraph{backend: m, spec: spec}, nil
}

type mockGraph struct {
	backend *MockBackend
	spec    Spec
	closed  atomic.Bool
}

func (g *mockGraph) Execute(ctx context.Context, req Request) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if g.closed.Load() {
		return nil, errors.New("mock graph is closed")
	}
	if g.backend.FailExecute {
		return nil, errors.New("mock execution fault")
	}
	if len(req.InputIDs) != req.BatchSize*req.SeqLen || len(req.AttentionMask) != len(req.InputIDs) {
		return nil, errors.New("input shape mismatch")
	}

	if g.spec.Kind == KindLogits {
		out := make([]float32, req.BatchSize)
		for b := 0; b < req.BatchSize; b++ {
			out[b] = mockLogit(req, b)
		}
		return out, nil
	}

	hidden := g.spec.Hidden
	out := make([]float32, req.BatchSize*req.SeqLen*hidden)
	for b := 0; b < req.BatchSize; b++ {
		for t := 0; t < req.SeqLen; t++ {
			id := req.InputIDs[b*req.SeqLen+t]
			for j := 0; j < hidden; j++ {
				out[(b*req.SeqLen+t)*hidden+j] = mockActivation(id, j)
			}
		}
	}
	return out, nil
}

func (g *mockGraph) Close() error {
	if g.closed.CompareAndSwap(false, true) {
		g.backend.Closes.Add(1)
	}
	return nil
}

// mockActivation derives a per-token hidden value from the token id and the
// dimension index only, so a token embeds identically wherever it appears.
func mockActivation(id int64, dim int) float32 {
	return float32(math.Sin(float64(id)*float64(dim+1))*0.1 + 0.01)
}

// mockLogit hashes the non-pad token ids of one row into [-4, 4).
func mockLogit(req Request, row int) float32 {
	var h int64
	for t := 0; t < req.SeqLen; t++ {
		if req.AttentionMask[row*req.SeqLen+t] == 0 {
			continue
		}
		h = 31*h + req.InputIDs[row*req.SeqLen+t]
	}
	if h < 0 {
		h = -h
	}
	return float32(h%1000)/125.0 - 4.0
}
