package search

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patchrag/patchrag/internal/chunk"
	"github.com/patchrag/patchrag/internal/embed"
	"github.com/patchrag/patchrag/internal/store"
)

func buildEngine(t *testing.T, cfg EngineConfig, chunks ...*chunk.Chunk) *Engine {
	t.Helper()
	idx, err := store.NewBM25Index(context.Background(), chunks, store.DefaultBM25Config())
	require.NoError(t, err)

	var embedder embed.Embedder
	var vectors *store.VectorStore
	if cfg.Strategy == StrategyEmbedding || cfg.Strategy == StrategyHybrid {
		embedder = embed.NewStaticEmbedder()
		vectors = store.NewVectorStore(store.DefaultVectorStoreConfig(embed.StaticDimensions))
		for _, c := range chunks {
			vec, err := embedder.Embed(context.Background(), c.Content)
			require.NoError(t, err)
			require.NoError(t, vectors.Add(context.Background(), []string{c.ID}, [][]float32{vec}))
		}
	}

	eng, err := NewEngine(idx, chunks, embedder, vectors, cfg, nil)
	require.NoError(t, err)
	return eng
}

func TestEngine_BM25Strategy(t *testing.T) {
	eng := buildEngine(t, EngineConfig{Strategy: StrategyBM25},
		testChunk("game.go", 1, "func togglePause() { paused = !paused }", "togglePause"),
		testChunk("score.go", 1, "func addScore(points int) {}", "addScore"),
	)

	results, err := eng.Retrieve(context.Background(), "toggle pause", 5)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "game.go:1", results[0].ChunkID)
	assert.Equal(t, []string{StrategyBM25}, results[0].Strategies)
}

func TestEngine_HybridFusesStrategies(t *testing.T) {
	eng := buildEngine(t, EngineConfig{Strategy: StrategyHybrid},
		testChunk("game.go", 1, "func togglePause() { paused = !paused }", "togglePause"),
		testChunk("menu.go", 1, "pause menu overlay rendering"),
		testChunk("score.go", 1, "func addScore(points int) {}", "addScore"),
	)

	results, err := eng.Retrieve(context.Background(), "toggle pause", 3)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	// The top hit overlaps the query in every strategy.
	assert.Equal(t, "game.go:1", results[0].ChunkID)
	assert.GreaterOrEqual(t, len(results[0].Strategies), 2)
}

func TestEngine_UnknownStrategyFailsFast(t *testing.T) {
	idx, err := store.NewBM25Index(context.Background(), nil, store.DefaultBM25Config())
	require.NoError(t, err)

	_, err = NewEngine(idx, nil, nil, nil, EngineConfig{Strategy: "quantum"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quantum")
}

func TestEngine_EmbeddingStrategyRequiresBackend(t *testing.T) {
	idx, err := store.NewBM25Index(context.Background(), nil, store.DefaultBM25Config())
	require.NoError(t, err)

	_, err = NewEngine(idx, nil, nil, nil, EngineConfig{Strategy: StrategyEmbedding}, nil)
	require.Error(t, err)
}

// failingEmbedder always errors, standing in for a dead backend.
type failingEmbedder struct{}

func (failingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("backend unreachable")
}

func (failingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("backend unreachable")
}

func (failingEmbedder) Dimensions() int                    { return embed.StaticDimensions }
func (failingEmbedder) ModelName() string                  { return "failing" }
func (failingEmbedder) Available(ctx context.Context) bool { return false }
func (failingEmbedder) Close() error                       { return nil }

func TestEngine_EmbeddingFailureDegradesNotFails(t *testing.T) {
	// Given: a hybrid engine whose embedding backend is down
	chunks := []*chunk.Chunk{
		testChunk("game.go", 1, "func togglePause() {}", "togglePause"),
	}
	idx, err := store.NewBM25Index(context.Background(), chunks, store.DefaultBM25Config())
	require.NoError(t, err)

	vectors := store.NewVectorStore(store.DefaultVectorStoreConfig(embed.StaticDimensions))
	static := embed.NewStaticEmbedder()
	vec, err := static.Embed(context.Background(), chunks[0].Content)
	require.NoError(t, err)
	require.NoError(t, vectors.Add(context.Background(), []string{chunks[0].ID}, [][]float32{vec}))

	eng, err := NewEngine(idx, chunks, failingEmbedder{}, vectors, EngineConfig{Strategy: StrategyHybrid}, nil)
	require.NoError(t, err)

	// When: retrieving
	results, err := eng.Retrieve(context.Background(), "toggle pause", 5)

	// Then: the query succeeds on the surviving strategies
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "game.go:1", results[0].ChunkID)
	assert.NotContains(t, results[0].Strategies, StrategyEmbedding)
}

func TestEngine_PathBoostDedupe(t *testing.T) {
	eng := buildEngine(t, EngineConfig{Strategy: StrategyKeyword, PathBoostDedupe: true},
		testChunk("pause.go", 1, "pause state handling"),
		testChunk("pause.go", 30, "pause reset logic"),
		testChunk("other.go", 1, "pause mention"),
	)

	results, err := eng.Retrieve(context.Background(), "pause", 10)
	require.NoError(t, err)

	// Then: one result per file survives
	files := make(map[string]bool)
	for _, r := range results {
		file := eng.Chunk(r.ChunkID).FilePath
		assert.False(t, files[file], "duplicate file %s", file)
		files[file] = true
	}
	assert.Len(t, files, 2)
}

func TestEngine_FormatContext(t *testing.T) {
	eng := buildEngine(t, EngineConfig{Strategy: StrategyBM25},
		testChunk("game.go", 10, "func togglePause() {}", "togglePause"),
	)

	results, err := eng.Retrieve(context.Background(), "togglePause", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)

	out := eng.FormatContext(results, 4000)
	assert.Contains(t, out, "=== game.go (lines 10-15")
	assert.Contains(t, out, "func togglePause() {}")

	// A tiny budget yields no sections rather than a truncated one.
	assert.Empty(t, eng.FormatContext(results, 0))
}

func TestEngine_RerankerStrictlyReorders(t *testing.T) {
	long := testChunk("a.go", 1, strings.Repeat("pause filler ", 50))
	short := testChunk("bb.go", 1, "pause filler")

	eng := buildEngine(t, EngineConfig{
		Strategy:              StrategyKeyword,
		Reranker:              RerankerSimple,
		RerankerLengthPenalty: 0.02,
	}, long, short)

	results, err := eng.Retrieve(context.Background(), "pause filler", 5)
	require.NoError(t, err)

	// Then: both chunks survive reranking, the shorter ranks first
	require.Len(t, results, 2)
	assert.Equal(t, "bb.go:1", results[0].ChunkID)
}

func TestEngine_DefaultKApplied(t *testing.T) {
	eng := buildEngine(t, EngineConfig{Strategy: StrategyKeyword},
		testChunk("a.go", 1, "pause"),
	)

	results, err := eng.Retrieve(context.Background(), "pause", 0)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}
