package search

import (
	"context"
	"sort"

	apperrors "github.com/patchrag/patchrag/internal/errors"
)

// Reranker reorders the top fused candidates for a query. A reranker
// strictly reorders: it must return the same candidate set it was given,
// never invent or drop chunks.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []FusedResult) ([]FusedResult, error)
}

// NoopReranker returns candidates unchanged.
type NoopReranker struct{}

// Rerank returns the candidates as-is.
func (NoopReranker) Rerank(ctx context.Context, query string, candidates []FusedResult) ([]FusedResult, error) {
	return candidates, nil
}

// SimpleReranker is a stable heuristic reranker: fused score first, with
// an optional penalty that prefers shorter chunks among near-equals.
// It stands in where no cross-encoder backend is wired up.
type SimpleReranker struct {
	// LengthPenalty scales how strongly longer chunk content counts
	// against a candidate. Zero disables the penalty entirely.
	LengthPenalty float64

	resolve ChunkResolver
}

// NewSimpleReranker creates a heuristic reranker.
func NewSimpleReranker(lengthPenalty float64, resolve ChunkResolver) *SimpleReranker {
	return &SimpleReranker{LengthPenalty: lengthPenalty, resolve: resolve}
}

// Rerank sorts by fused score descending, breaking near-ties toward the
// shorter chunk when a length penalty is configured. The sort is stable
// so a zero penalty preserves the input order exactly.
func (r *SimpleReranker) Rerank(ctx context.Context, query string, candidates []FusedResult) ([]FusedResult, error) {
	out := make([]FusedResult, len(candidates))
	copy(out, candidates)

	contentLen := func(chunkID string) int {
		if r.resolve == nil {
			return 0
		}
		if c := r.resolve(chunkID); c != nil {
			return len(c.Content)
		}
		return 0
	}

	sort.SliceStable(out, func(i, j int) bool {
		ki := out[i].Score - r.LengthPenalty*float64(contentLen(out[i].ChunkID))
		kj := out[j].Score - r.LengthPenalty*float64(contentLen(out[j].ChunkID))
		return ki > kj
	})
	return out, nil
}

// Reranker factory names.
const (
	RerankerNoop   = "noop"
	RerankerSimple = "simple"
)

// NewReranker builds a reranker by name. Empty means noop.
func NewReranker(name string, lengthPenalty float64, resolve ChunkResolver) (Reranker, error) {
	switch name {
	case "", RerankerNoop:
		return NoopReranker{}, nil
	case RerankerSimple, "heuristic":
		return NewSimpleReranker(lengthPenalty, resolve), nil
	default:
		return nil, apperrors.New(apperrors.ErrCodeConfigInvalid,
			"unknown reranker: "+name, nil).
			WithSuggestion(`use "noop" or "simple"`)
	}
}

// sameCandidateSet reports whether two slices hold the same chunk IDs,
// order-insensitively. The engine uses it to reject rerankers that
// invent or drop candidates.
func sameCandidateSet(a, b []FusedResult) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, r := range a {
		seen[r.ChunkID]++
	}
	for _, r := range b {
		seen[r.ChunkID]--
		if seen[r.ChunkID] < 0 {
			return false
		}
	}
	return true
}
