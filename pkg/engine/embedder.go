package engine

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/umekomi/internal/batch"
	"github.com/hyperjump/umekomi/internal/model"
	"github.com/hyperjump/umekomi/internal/pooling"
	"github.com/hyperjump/umekomi/internal/tokenize"
)

// Embedder turns texts into L2-normalized fixed-dimension vectors. Safe for
// concurrent use; concurrent calls coalesce into shared batches.
type Embedder struct {
	engine  *Engine
	handle  *model.Handle
	encoder *tokenize.Encoder
	coal    *batch.Coalescer
	vectors *VectorCache

	mu      sync.Mutex
	notices []tokenize.TruncationNotice

	closeOnce sync.Once
}

// NewEmbedder resolves the embedding model at the hinted precision (empty
// hint selects the balanced default) and returns a ready embedder.
func (e *Engine) NewEmbedder(ctx context.Context, hint model.Quantization) (*Embedder, error) {
	handle, err := e.registry.Acquire(ctx, model.RoleEmbedding, hint)
	if err != nil {
		return nil, err
	}

	vocab, err := tokenize.LoadVocab(handle.Resolved.Artifact.Path(model.VocabFilename))
	if err != nil {
		handle.Release()
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	em := &Embedder{
		engine:  e,
		handle:  handle,
		encoder: tokenize.NewEncoder(vocab, handle.Resolved.Descriptor.MaxSeqLen),
		vectors: NewVectorCache(e.cfg.Embedding.CacheSize),
	}
	em.coal = batch.NewCoalescer(e.cfg.Batch.MaxSize, e.cfg.Batch.MaxWait(), em.dispatch)

	e.log.Info("embedder ready",
		zap.String("model", handle.Resolved.Descriptor.ID),
		zap.String("quantization", string(handle.Resolved.Descriptor.Quantization)),
		zap.Int("dimension", em.Dimension()))
	return em, nil
}

// Dimension returns the fixed embedding dimension.
func (em *Embedder) Dimension() int {
	return em.handle.Resolved.Descriptor.Dimension
}

// Embed returns one vector per input text, same length and order as the
// input, each L2-normalized. Identical texts always produce identical
// vectors regardless of batching. Errors from the pipeline propagate
// unmodified; no placeholder vectors are ever substituted.
func (em *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	if len(texts) == 0 {
		return out, nil
	}

	var notices []tokenize.TruncationNotice
	chans := make([]<-chan batch.Result, len(texts))
	for i, text := range texts {
		if vec, ok := em.vectors.Get(text); ok {
			out[i] = vec
			continue
		}
		in := em.encoder.Encode(text)
		if in.Truncated {
			notices = append(notices, tokenize.TruncationNotice{Index: i, Limit: em.encoder.MaxSeqLen()})
		}
		ch, err := em.coal.Submit(ctx, in)
		if err != nil {
			return nil, err
		}
		chans[i] = ch
	}

	var firstErr error
	for i, ch := range chans {
		if ch == nil {
			continue
		}
		res := <-ch
		if res.Err != nil {
			if firstErr == nil {
				firstErr = res.Err
			}
			continue
		}
		out[i] = res.Vector
		em.vectors.Set(texts[i], res.Vector)
	}
	if firstErr != nil {
		return nil, firstErr
	}

	em.mu.Lock()
	em.notices = notices
	em.mu.Unlock()
	return out, nil
}

// EmbedOne embeds a single text.
func (em *Embedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := em.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// Truncations returns the truncation notices from the most recent Embed
// call, indexed by input position. Empty when nothing was truncated.
func (em *Embedder) Truncations() []tokenize.TruncationNotice {
	em.mu.Lock()
	defer em.mu.Unlock()
	notices := make([]tokenize.TruncationNotice, len(em.notices))
	copy(notices, em.notices)
	return notices
}

// Close releases the model reference and stops the batch coalescer.
func (em *Embedder) Close() {
	em.closeOnce.Do(func() {
		em.coal.Close()
		em.handle.Release()
	})
}

// dispatch runs one coalesced group through the graph and delivers pooled,
// normalized vectors. Row indices are local to the group; the original
// caller positions live with each pending request.
func (em *Embedder) dispatch(pend []*batch.Pending) {
	inputs := make([]tokenize.EncodedInput, len(pend))
	for i, p := range pend {
		inputs[i] = p.Input
		inputs[i].Index = i
	}
	b := batch.Schedule(inputs, len(inputs), em.encoder.PadID())[0]

	h, err := em.engine.executor.RunEmbedding(context.Background(), em.handle.Graph, b, em.Dimension())
	if err != nil {
		for _, p := range pend {
			p.Finish(nil, err)
		}
		return
	}

	vecs := pooling.PoolBatch(h, b)
	for row, local := range b.Indices {
		pend[local].Finish(vecs[row], nil)
	}
}
