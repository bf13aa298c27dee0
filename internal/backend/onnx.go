//go:build cgo
// +build cgo

// ONNX Runtime backend (requires CGO and the onnxruntime shared library).

package backend

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
)

var (
	ortInitOnce sync.Once
	ortInitErr  error
)

// ONNXBackend runs graphs through ONNX Runtime. The runtime environment is
// initialized once per process on first Load and kept for the process
// lifetime; onnxruntime selects available execution providers itself.
type ONNXBackend struct {
	libraryPath string
	log         *zap.Logger
}

// NewONNXBackend creates the backend. libraryPath optionally points at the
// onnxruntime shared library; empty uses the platform default lookup.
func NewONNXBackend(libraryPath string, log *zap.Logger) *ONNXBackend {
	return &ONNXBackend{libraryPath: libraryPath, log: log}
}

// Load creates a session for the graph at modelPath.
func (b *ONNXBackend) Load(modelPath string, spec Spec) (Graph, error) {
	ortInitOnce.Do(func() {
		if b.libraryPath != "" {
			ort.SetSharedLibraryPath(b.libraryPath)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", ortInitErr)
	}

	inputNames := []string{"input_ids", "attention_mask"}
	if spec.WithTypeIDs {
		inputNames = append(inputNames, "token_type_ids")
	}
	outputName := spec.DefaultOutputName()

	session, err := ort.NewDynamicAdvancedSession(modelPath, inputNames, []string{outputName}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session for %s: %w", modelPath, err)
	}

	b.log.Info("loaded model graph",
		zap.String("path", modelPath),
		zap.String("output", outputName))
	return &onnxGraph{session: session, spec: spec}, nil
}

type onnxGraph struct {
	session *ort.DynamicAdvancedSession
	spec    Spec
	// Sessions are driven one batch at a time.
	mu sync.Mutex
}

func (g *onnxGraph) Execute(ctx context.Context, req Request) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	inputShape := ort.NewShape(int64(req.BatchSize), int64(req.SeqLen))
	idsTensor, err := ort.NewTensor(inputShape, req.InputIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	defer idsTensor.Destroy()
	maskTensor, err := ort.NewTensor(inputShape, req.AttentionMask)
	if err != nil {
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()

	inputs := []ort.ArbitraryTensor{idsTensor, maskTensor}
	if g.spec.WithTypeIDs {
		typeIDs := req.TypeIDs
		if typeIDs == nil {
			typeIDs = make([]int64, req.BatchSize*req.SeqLen)
		}
		typeTensor, err := ort.NewTensor(inputShape, typeIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to create token_type_ids tensor: %w", err)
		}
		defer typeTensor.Destroy()
		inputs = append(inputs, typeTensor)
	}

	var outputShape ort.Shape
	if g.spec.Kind == KindLogits {
		outputShape = ort.NewShape(int64(req.BatchSize), 1)
	} else {
		outputShape = ort.NewShape(int64(req.BatchSize), int64(req.SeqLen), int64(g.spec.Hidden))
	}
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	if err := g.session.Run(inputs, []ort.ArbitraryTensor{outputTensor}); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	data := outputTensor.GetData()
	out := make([]float32, len(data))
	copy(out, data)
	return out, nil
}

func (g *onnxGraph) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.session != nil {
		err := g.session.Destroy()
		g.session = nil
		return err
	}
	return nil
}
