package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/patchrag/patchrag/internal/chunk"
	"github.com/patchrag/patchrag/internal/embed"
	apperrors "github.com/patchrag/patchrag/internal/errors"
	"github.com/patchrag/patchrag/internal/store"
)

// DefaultTopK is the default result count.
const DefaultTopK = 8

// fusionWindowFactor oversamples each strategy before fusion so a chunk
// ranked just past k in one list can still surface in the fused top k.
const fusionWindowFactor = 2

// EngineConfig configures the retrieval engine.
type EngineConfig struct {
	// Strategy selects the retrieval strategy: bm25, keyword,
	// embedding, or hybrid (all three fused).
	Strategy string

	// Fusion configures the combination function for hybrid retrieval.
	Fusion FusionConfig

	// Reranker names the reranker applied to fused results ("" or
	// "noop" disables it).
	Reranker string

	// RerankerLengthPenalty configures the simple reranker.
	RerankerLengthPenalty float64

	// PathBoostDedupe enables the file-level post-pass: boost chunks
	// whose path matches a query term, then keep only the best chunk
	// per file.
	PathBoostDedupe bool

	// EmbedTimeout bounds the query embedding call.
	EmbedTimeout time.Duration
}

// Engine wires the strategy retrievers, fusion, and reranking behind the
// single retrieve operation. It holds an immutable chunk set and index;
// concurrent Retrieve calls need no coordination.
type Engine struct {
	chunks   map[string]*chunk.Chunk
	strategy string
	active   []Retriever
	fuser    *Fuser
	reranker Reranker
	config   EngineConfig
	logger   *slog.Logger
}

// NewEngine builds an engine over a built index and its chunk set. The
// embedder and vector store may be nil unless the embedding strategy is
// active.
func NewEngine(index *store.BM25Index, chunks []*chunk.Chunk, embedder embed.Embedder, vectors *store.VectorStore, cfg EngineConfig, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyBM25
	}

	byID := make(map[string]*chunk.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}
	resolve := func(id string) *chunk.Chunk { return byID[id] }

	var active []Retriever
	wantsEmbedding := false
	switch cfg.Strategy {
	case StrategyBM25:
		active = []Retriever{NewBM25Retriever(index)}
	case StrategyKeyword:
		active = []Retriever{NewKeywordRetriever(chunks, resolve)}
	case StrategyEmbedding:
		wantsEmbedding = true
	case StrategyHybrid:
		active = []Retriever{
			NewBM25Retriever(index),
			NewKeywordRetriever(chunks, resolve),
		}
		wantsEmbedding = true
	default:
		return nil, apperrors.New(apperrors.ErrCodeStrategyUnknown,
			"unknown retrieval strategy: "+cfg.Strategy, nil).
			WithSuggestion(`use "bm25", "keyword", "embedding", or "hybrid"`)
	}

	if wantsEmbedding {
		if embedder == nil || vectors == nil {
			return nil, apperrors.New(apperrors.ErrCodeConfigInvalid,
				"embedding strategy requires an embedder and vector store", nil)
		}
		active = append(active, NewEmbeddingRetriever(embedder, vectors, cfg.EmbedTimeout, logger))
	}

	reranker, err := NewReranker(cfg.Reranker, cfg.RerankerLengthPenalty, resolve)
	if err != nil {
		return nil, err
	}

	return &Engine{
		chunks:   byID,
		strategy: cfg.Strategy,
		active:   active,
		fuser:    NewFuser(cfg.Fusion, resolve),
		reranker: reranker,
		config:   cfg,
		logger:   logger,
	}, nil
}

// Chunk returns the chunk for an ID, or nil.
func (e *Engine) Chunk(id string) *chunk.Chunk {
	return e.chunks[id]
}

// Retrieve runs the active strategies, fuses their lists, and returns
// the top k fused results. Per-strategy failures other than the
// embedding degrade path are returned as errors.
func (e *Engine) Retrieve(ctx context.Context, query string, k int) ([]FusedResult, error) {
	if k <= 0 {
		k = DefaultTopK
	}

	lists := make(map[string]RankedList, len(e.active))
	for _, r := range e.active {
		list, err := r.Retrieve(ctx, query, k*fusionWindowFactor)
		if err != nil {
			return nil, apperrors.Wrapf(apperrors.ErrCodeSearchFailed, err, "%s retrieval", r.Name())
		}
		lists[r.Name()] = list
	}

	var fused []FusedResult
	if len(e.active) == 1 {
		// A single strategy needs no fusion; pass its scores through.
		name := e.active[0].Name()
		for _, r := range lists[name] {
			fused = append(fused, FusedResult{ChunkID: r.ChunkID, Score: r.Score, Strategies: []string{name}})
		}
	} else {
		fused = e.fuser.Fuse(query, lists)
	}

	if e.config.PathBoostDedupe {
		fused = e.boostAndDedupe(query, fused)
	}
	if len(fused) > k {
		fused = fused[:k]
	}

	reranked, err := e.reranker.Rerank(ctx, query, fused)
	if err != nil {
		e.logger.Warn("reranker failed, keeping fused order", slog.String("reason", err.Error()))
		return fused, nil
	}
	if !sameCandidateSet(fused, reranked) {
		e.logger.Warn("reranker changed the candidate set, keeping fused order")
		return fused, nil
	}
	return reranked, nil
}

// boostAndDedupe raises chunks whose file path matches a query term and
// keeps only the best-scoring chunk per file.
func (e *Engine) boostAndDedupe(query string, results []FusedResult) []FusedResult {
	if len(results) == 0 {
		return results
	}
	queryTerms := queryTermSet(query)

	bestByFile := make(map[string]FusedResult)
	for _, r := range results {
		c := e.chunks[r.ChunkID]
		if c == nil {
			continue
		}
		boosted := r
		pathLower := strings.ToLower(c.FilePath)
		for term := range queryTerms {
			if strings.Contains(pathLower, term) {
				boosted.Score += 2.0
			}
		}
		existing, ok := bestByFile[c.FilePath]
		if !ok || boosted.Score > existing.Score {
			bestByFile[c.FilePath] = boosted
		}
	}

	deduped := make([]FusedResult, 0, len(bestByFile))
	for _, r := range bestByFile {
		deduped = append(deduped, r)
	}
	sort.Slice(deduped, func(i, j int) bool {
		if deduped[i].Score != deduped[j].Score {
			return deduped[i].Score > deduped[j].Score
		}
		return lessTied(deduped[i].ChunkID, deduped[j].ChunkID, queryTerms, func(id string) *chunk.Chunk { return e.chunks[id] })
	})
	return deduped
}

// FormatContext renders results into the context block handed to a
// downstream prompt builder, stopping at a rough character budget of
// four characters per token.
func (e *Engine) FormatContext(results []FusedResult, maxTokens int) string {
	var parts []string
	total := 0

	for _, r := range results {
		c := e.chunks[r.ChunkID]
		if c == nil {
			continue
		}
		header := fmt.Sprintf("=== %s (lines %d-%d, score: %.2f) ===", c.FilePath, c.StartLine, c.EndLine, r.Score)
		section := header + "\n" + c.Content + "\n"
		if total+len(section) > maxTokens*4 {
			break
		}
		parts = append(parts, section)
		total += len(section)
	}
	return strings.Join(parts, "\n")
}

// Strategies returns the active strategy names.
func (e *Engine) Strategies() []string {
	names := make([]string, len(e.active))
	for i, r := range e.active {
		names[i] = r.Name()
	}
	return names
}
