package search

import (
	"context"
	"log/slog"
	"time"

	"github.com/patchrag/patchrag/internal/embed"
	apperrors "github.com/patchrag/patchrag/internal/errors"
	"github.com/patchrag/patchrag/internal/store"
)

// DefaultEmbedTimeout bounds a query embedding call. A slow backend
// degrades this one query's embedding contribution, never the fused
// query as a whole.
const DefaultEmbedTimeout = 10 * time.Second

// EmbeddingRetriever ranks chunks by cosine similarity between the
// query embedding and pre-built chunk embeddings. The external embedding
// call is the only latency/failure surface in retrieval, so it runs
// behind a deadline and a circuit breaker; any failure yields an empty
// list rather than an error.
type EmbeddingRetriever struct {
	embedder embed.Embedder
	vectors  *store.VectorStore
	breaker  *apperrors.CircuitBreaker
	timeout  time.Duration
	logger   *slog.Logger
}

// NewEmbeddingRetriever creates a retriever over a populated vector
// store.
func NewEmbeddingRetriever(embedder embed.Embedder, vectors *store.VectorStore, timeout time.Duration, logger *slog.Logger) *EmbeddingRetriever {
	if timeout <= 0 {
		timeout = DefaultEmbedTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EmbeddingRetriever{
		embedder: embedder,
		vectors:  vectors,
		breaker:  apperrors.NewCircuitBreaker("embedding"),
		timeout:  timeout,
		logger:   logger,
	}
}

// Name returns the strategy name.
func (r *EmbeddingRetriever) Name() string {
	return StrategyEmbedding
}

// Retrieve embeds the query and returns the k nearest chunks. Timeouts,
// backend failures, and an open circuit all degrade to an empty list.
func (r *EmbeddingRetriever) Retrieve(ctx context.Context, query string, k int) (RankedList, error) {
	if k <= 0 || r.vectors.Count() == 0 {
		return nil, nil
	}

	embedCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	vec, err := apperrors.CircuitExecuteWithResult(r.breaker,
		func() ([]float32, error) { return r.embedder.Embed(embedCtx, query) },
		func() ([]float32, error) { return nil, nil },
	)
	if err != nil || vec == nil {
		if err != nil {
			r.logger.Warn("embedding strategy degraded",
				slog.String("reason", err.Error()))
		}
		return nil, nil
	}

	hits, err := r.vectors.Search(ctx, vec, k)
	if err != nil {
		r.logger.Warn("vector search degraded", slog.String("reason", err.Error()))
		return nil, nil
	}

	results := make(RankedList, len(hits))
	for i, h := range hits {
		results[i] = RetrievalResult{ChunkID: h.ID, Score: float64(h.Score), Rank: i + 1}
	}
	return results, nil
}
