package search

import (
	"context"

	"github.com/patchrag/patchrag/internal/store"
)

// BM25Retriever adapts the inverted index to the Retriever contract.
type BM25Retriever struct {
	index *store.BM25Index
}

// NewBM25Retriever creates a retriever over a built index.
func NewBM25Retriever(index *store.BM25Index) *BM25Retriever {
	return &BM25Retriever{index: index}
}

// Name returns the strategy name.
func (r *BM25Retriever) Name() string {
	return StrategyBM25
}

// Retrieve returns the top k BM25 hits. The index already applies the
// deterministic tie-break rules, so ranks are assigned positionally.
func (r *BM25Retriever) Retrieve(ctx context.Context, query string, k int) (RankedList, error) {
	hits := r.index.Retrieve(query, k)

	results := make(RankedList, len(hits))
	for i, h := range hits {
		results[i] = RetrievalResult{ChunkID: h.Chunk.ID, Score: h.Score, Rank: i + 1}
	}
	return results, nil
}
