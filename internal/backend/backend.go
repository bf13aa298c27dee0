// Package backend abstracts the numeric execution engine that runs model graphs.
package backend

import "context"

// Kind selects the output layout a graph produces.
type Kind int

const (
	// KindHiddenStates graphs emit per-token hidden states, shape
	// [batch, seq, hidden]. Used by embedding models.
	KindHiddenStates Kind = iota
	// KindLogits graphs emit one scalar logit per sequence, shape
	// [batch, 1]. Used by cross-encoder rerankers.
	KindLogits
)

// Spec describes how to drive a graph: its inputs, output and shape.
type Spec struct {
	Kind Kind
	// Hidden is the per-token vector width for KindHiddenStates graphs.
	Hidden int
	// WithTypeIDs adds the token_type_ids input expected by BERT-family exports.
	WithTypeIDs bool
	// OutputName overrides the default output tensor name
	// ("last_hidden_state" for hidden states, "logits" for logits).
	OutputName string
}

// DefaultOutputName returns the output tensor name for the spec.
func (s Spec) DefaultOutputName() string {
	if s.OutputName != "" {
		return s.OutputName
	}
	if s.Kind == KindLogits {
		return "logits"
	}
	return "last_hidden_state"
}

// Request carries one padded batch in the row-major layout graphs expect.
// All three slices have length BatchSize*SeqLen; TypeIDs is nil when the
// graph takes no token_type_ids input.
type Request struct {
	InputIDs      []int64
	AttentionMask []int64
	TypeIDs       []int64
	BatchSize     int
	SeqLen        int
}

// Graph is a loaded model ready to execute. Execute returns the flat output
// tensor: BatchSize*SeqLen*Hidden floats for hidden-state graphs, BatchSize
// floats for logit graphs. Implementations serialize Execute internally, so
// a Graph is safe for concurrent use.
type Graph interface {
	Execute(ctx context.Context, req Request) ([]float32, error)
	Close() error
}

// Backend loads model graphs from disk. Hardware selection is the backend's
// concern; callers pass only model-level configuration.
type Backend interface {
	Load(modelPath string, spec Spec) (Graph, error)
}
