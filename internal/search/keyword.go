package search

import (
	"context"
	"regexp"
	"strings"

	"github.com/patchrag/patchrag/internal/chunk"
)

// Keyword scoring weights. Term frequency is capped so a term repeated
// all over a chunk cannot drown out symbol and path signals.
const (
	keywordTermFreqCap    = 5
	keywordSymbolContains = 5.0
	keywordSymbolExact    = 10.0
	keywordPathMatch      = 3.0
)

var wordRegex = regexp.MustCompile(`\w+`)

// KeywordRetriever scores chunks with a raw term-overlap heuristic:
// capped term frequency, symbol-name matches weighted higher, and a
// file-path bonus. It needs no index beyond the chunk list itself and
// serves as the dependency-free baseline strategy.
type KeywordRetriever struct {
	chunks  []*chunk.Chunk
	resolve ChunkResolver
}

// NewKeywordRetriever creates a retriever over the chunk list.
func NewKeywordRetriever(chunks []*chunk.Chunk, resolve ChunkResolver) *KeywordRetriever {
	return &KeywordRetriever{chunks: chunks, resolve: resolve}
}

// Name returns the strategy name.
func (r *KeywordRetriever) Name() string {
	return StrategyKeyword
}

// Retrieve scores every chunk and returns the top k with score > 0.
func (r *KeywordRetriever) Retrieve(ctx context.Context, query string, k int) (RankedList, error) {
	if k <= 0 {
		return nil, nil
	}

	queryTerms := make(map[string]struct{})
	for _, term := range wordRegex.FindAllString(strings.ToLower(query), -1) {
		queryTerms[term] = struct{}{}
	}
	if len(queryTerms) == 0 {
		return nil, nil
	}

	var results []RetrievalResult
	for _, c := range r.chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		score := keywordScore(queryTerms, c)
		if score > 0 {
			results = append(results, RetrievalResult{ChunkID: c.ID, Score: score})
		}
	}

	ranked := rankResults(results, queryTerms, r.resolve)
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked, nil
}

func keywordScore(queryTerms map[string]struct{}, c *chunk.Chunk) float64 {
	score := 0.0
	contentLower := strings.ToLower(c.Content)

	for term := range queryTerms {
		if count := strings.Count(contentLower, term); count > 0 {
			score += float64(min(count, keywordTermFreqCap))
		}
	}

	for _, symbol := range c.Symbols {
		symbolLower := strings.ToLower(symbol)
		for term := range queryTerms {
			if strings.Contains(symbolLower, term) {
				score += keywordSymbolContains
			}
			if symbolLower == term {
				score += keywordSymbolExact
			}
		}
	}

	pathLower := strings.ToLower(c.FilePath)
	for term := range queryTerms {
		if strings.Contains(pathLower, term) {
			score += keywordPathMatch
		}
	}

	return score
}
