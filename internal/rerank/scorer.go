// Package rerank scores (query, document) pairs with a cross-encoder and sorts them.
package rerank

import (
	"context"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/hyperjump/umekomi/internal/backend"
	"github.com/hyperjump/umekomi/internal/batch"
	"github.com/hyperjump/umekomi/internal/infer"
	"github.com/hyperjump/umekomi/internal/tokenize"
	"github.com/hyperjump/umekomi/pkg/utils"
)

// Result is one scored document. Index is the document's position in the
// caller's original sequence.
type Result struct {
	Document string  `json:"document"`
	Score    float32 `json:"score"`
	Index    int     `json:"index"`
}

// Scorer runs a reranker graph over query/document pairs.
type Scorer struct {
	encoder  *tokenize.Encoder
	executor *infer.Executor
	graph    backend.Graph
	maxBatch int
	log      *zap.Logger
}

// NewScorer creates a scorer over a loaded reranker graph.
func NewScorer(encoder *tokenize.Encoder, executor *infer.Executor, graph backend.Graph, maxBatch int, log *zap.Logger) *Scorer {
	if maxBatch <= 0 {
		maxBatch = 1
	}
	return &Scorer{
		encoder:  encoder,
		executor: executor,
		graph:    graph,
		maxBatch: maxBatch,
		log:      log,
	}
}

// Score ranks documents against query. Every original index appears exactly
// once; results are sorted by score descending, ties broken by ascending
// original index so repeated calls yield identical sequences. Documents are
// batched to amortize inference cost; attention masking keeps co-batched
// scores independent, so batching never changes a score.
func (s *Scorer) Score(ctx context.Context, query string, documents []string) ([]Result, error) {
	if len(documents) == 0 {
		return []Result{}, nil
	}

	inputs := make([]tokenize.EncodedInput, len(documents))
	for i, doc := range documents {
		in := s.encoder.EncodePair(query, doc)
		in.Index = i
		if in.Truncated {
			s.log.Debug("reranker pair truncated",
				zap.Int("index", i),
				zap.String("document", utils.Truncate(doc, 80)))
		}
		inputs[i] = in
	}

	scores := make([]float32, len(documents))
	for _, b := range batch.Schedule(inputs, s.maxBatch, s.encoder.PadID()) {
		logits, err := s.executor.RunReranker(ctx, s.graph, b)
		if err != nil {
			return nil, err
		}
		for row, original := range b.Indices {
			scores[original] = sigmoid(logits[row])
		}
	}

	results := make([]Result, len(documents))
	for i, doc := range documents {
		results[i] = Result{Document: doc, Score: scores[i], Index: i}
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Index < results[j].Index
	})
	return results, nil
}

// sigmoid maps a raw logit to (0, 1). Strictly monotonic, so score ordering
// equals logit ordering.
func sigmoid(x float32) float32 {
	return float32(1.0 / (1.0 + math.Exp(-float64(x))))
}
