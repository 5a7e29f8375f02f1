// Package search provides the retrieval strategies (bm25, keyword,
// embedding), rank/score fusion across them, and optional reranking of
// the fused list.
package search

import (
	"context"
	"sort"
	"strings"

	"github.com/patchrag/patchrag/internal/chunk"
)

// Strategy names. A configured strategy set is a subset of these;
// StrategyHybrid is shorthand for all of them.
const (
	StrategyBM25      = "bm25"
	StrategyKeyword   = "keyword"
	StrategyEmbedding = "embedding"
	StrategyHybrid    = "hybrid"
)

// RetrievalResult is one scored chunk within a strategy's ranked list.
// Scores are strategy-internal and not comparable across strategies
// without fusion.
type RetrievalResult struct {
	ChunkID string
	Score   float64
	Rank    int // 1-based position within the strategy's list
}

// RankedList is the ordered output of one (query, strategy) pair.
type RankedList []RetrievalResult

// Retriever is the single contract every strategy implements.
type Retriever interface {
	// Name returns the strategy name.
	Name() string

	// Retrieve returns at most k results for the query, best first.
	Retrieve(ctx context.Context, query string, k int) (RankedList, error)
}

// FusedResult is one chunk in the final fused ranking.
type FusedResult struct {
	ChunkID string  `json:"chunk_id"`
	Score   float64 `json:"score"`
	// Strategies lists which strategies retrieved this chunk within
	// the fusion window, for retrieval-quality attribution.
	Strategies []string `json:"contributing_strategies"`
}

// ChunkResolver looks chunks up by ID. The engine's chunk map satisfies
// it; fusion and reranking use it for tie-breaking and content access.
type ChunkResolver func(chunkID string) *chunk.Chunk

// rankResults assigns 1-based ranks after sorting by score descending
// with deterministic tie-breaks.
func rankResults(results []RetrievalResult, queryTerms map[string]struct{}, resolve ChunkResolver) RankedList {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return lessTied(results[i].ChunkID, results[j].ChunkID, queryTerms, resolve)
	})
	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}

// lessTied orders two score-tied chunks: exact symbol match first, then
// shorter file path, then lexicographic path, then lower start line.
func lessTied(a, b string, queryTerms map[string]struct{}, resolve ChunkResolver) bool {
	ca, cb := resolve(a), resolve(b)
	if ca == nil || cb == nil {
		return a < b
	}

	sa, sb := hasSymbolMatch(ca, queryTerms), hasSymbolMatch(cb, queryTerms)
	if sa != sb {
		return sa
	}
	if len(ca.FilePath) != len(cb.FilePath) {
		return len(ca.FilePath) < len(cb.FilePath)
	}
	if ca.FilePath != cb.FilePath {
		return ca.FilePath < cb.FilePath
	}
	return ca.StartLine < cb.StartLine
}

func hasSymbolMatch(c *chunk.Chunk, queryTerms map[string]struct{}) bool {
	for _, sym := range c.Symbols {
		if _, ok := queryTerms[strings.ToLower(sym)]; ok {
			return true
		}
	}
	return false
}
