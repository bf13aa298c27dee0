package pooling

import (
	"context"
	"math"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/umekomi/internal/backend"
	"github.com/hyperjump/umekomi/internal/batch"
	"github.com/hyperjump/umekomi/internal/infer"
	"github.com/hyperjump/umekomi/internal/tokenize"
	"github.com/hyperjump/umekomi/pkg/utils"
)

func TestMeanPoolMasked(t *testing.T) {
	// Two valid tokens and one pad position that must not contribute.
	tokens := []float32{
		1, 2, // t0
		3, 4, // t1
		100, 100, // t2 (pad)
	}
	got := MeanPool(tokens, []int64{1, 1, 0}, 2)
	if got[0] != 2 || got[1] != 3 {
		t.Errorf("MeanPool = %v, want [2 3]", got)
	}
}

func TestMeanPoolAllPadded(t *testing.T) {
	got := MeanPool([]float32{5, 5, 5, 5}, []int64{0, 0}, 2)
	for i, x := range got {
		if x != 0 {
			t.Errorf("got[%d] = %v, want defined zero vector", i, x)
		}
	}
}

func TestPoolBatchUnitNorm(t *testing.T) {
	inputs := []tokenize.EncodedInput{
		{IDs: []int64{101, 7, 9, 102}, Mask: []int64{1, 1, 1, 1}, TypeIDs: make([]int64, 4), Index: 0},
		{IDs: []int64{101, 102}, Mask: []int64{1, 1}, TypeIDs: make([]int64, 2), Index: 1},
	}
	b := batch.Schedule(inputs, 4, 0)[0]

	be := backend.NewMockBackend()
	g, err := be.Load("model.onnx", backend.Spec{Kind: backend.KindHiddenStates, Hidden: 8})
	if err != nil {
		t.Fatal(err)
	}
	h, err := infer.NewExecutor(zap.NewNop()).RunEmbedding(context.Background(), g, b, 8)
	if err != nil {
		t.Fatal(err)
	}

	vecs := PoolBatch(h, b)
	if len(vecs) != 2 {
		t.Fatalf("got %d vectors", len(vecs))
	}
	for i, v := range vecs {
		if len(v) != 8 {
			t.Errorf("vector %d has dimension %d", i, len(v))
		}
		if math.Abs(utils.L2Norm(v)-1.0) > 1e-5 {
			t.Errorf("vector %d norm = %v, want 1", i, utils.L2Norm(v))
		}
	}
}

func TestPoolBatchPaddingIndependence(t *testing.T) {
	// The same sequence pooled alone and co-batched with a longer peer must
	// produce identical vectors: padding is masked out.
	short := tokenize.EncodedInput{
		IDs: []int64{101, 7, 102}, Mask: []int64{1, 1, 1}, TypeIDs: make([]int64, 3), Index: 0,
	}
	long := tokenize.EncodedInput{
		IDs: []int64{101, 8, 9, 10, 102}, Mask: []int64{1, 1, 1, 1, 1}, TypeIDs: make([]int64, 5), Index: 1,
	}

	be := backend.NewMockBackend()
	g, err := be.Load("model.onnx", backend.Spec{Kind: backend.KindHiddenStates, Hidden: 6})
	if err != nil {
		t.Fatal(err)
	}
	x := infer.NewExecutor(zap.NewNop())

	alone := batch.Schedule([]tokenize.EncodedInput{short}, 4, 0)[0]
	hAlone, err := x.RunEmbedding(context.Background(), g, alone, 6)
	if err != nil {
		t.Fatal(err)
	}
	vAlone := PoolBatch(hAlone, alone)[0]

	together := batch.Schedule([]tokenize.EncodedInput{short, long}, 4, 0)[0]
	hTogether, err := x.RunEmbedding(context.Background(), g, together, 6)
	if err != nil {
		t.Fatal(err)
	}
	vTogether := PoolBatch(hTogether, together)[0]

	for j := range vAlone {
		if vAlone[j] != vTogether[j] {
			t.Fatalf("dimension %d differs: alone %v vs batched %v", j, vAlone[j], vTogether[j])
		}
	}
}
