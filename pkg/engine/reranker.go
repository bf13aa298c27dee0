package engine

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/umekomi/internal/model"
	"github.com/hyperjump/umekomi/internal/rerank"
	"github.com/hyperjump/umekomi/internal/tokenize"
)

// Reranker scores documents against a query with the cross-encoder model.
// Safe for concurrent use.
type Reranker struct {
	handle    *model.Handle
	scorer    *rerank.Scorer
	closeOnce sync.Once
}

// NewReranker resolves the reranker model at its default precision and
// returns a ready reranker.
func (e *Engine) NewReranker(ctx context.Context) (*Reranker, error) {
	handle, err := e.registry.Acquire(ctx, model.RoleReranker, "")
	if err != nil {
		return nil, err
	}

	vocab, err := tokenize.LoadVocab(handle.Resolved.Artifact.Path(model.VocabFilename))
	if err != nil {
		handle.Release()
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	encoder := tokenize.NewEncoder(vocab, handle.Resolved.Descriptor.MaxSeqLen)
	scorer := rerank.NewScorer(encoder, e.executor, handle.Graph, e.cfg.Batch.MaxSize, e.log)

	e.log.Info("reranker ready",
		zap.String("model", handle.Resolved.Descriptor.ID))
	return &Reranker{handle: handle, scorer: scorer}, nil
}

// Rerank scores every document against query and returns them sorted by
// descending relevance, ties broken by ascending original index. Every
// original index appears exactly once.
func (r *Reranker) Rerank(ctx context.Context, query string, documents []string) ([]rerank.Result, error) {
	return r.scorer.Score(ctx, query, documents)
}

// Close releases the model reference.
func (r *Reranker) Close() {
	r.closeOnce.Do(func() {
		r.handle.Release()
	})
}
