package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patchrag/patchrag/internal/chunk"
)

func testResolver(chunks ...*chunk.Chunk) ChunkResolver {
	byID := make(map[string]*chunk.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}
	return func(id string) *chunk.Chunk { return byID[id] }
}

func testChunk(path string, startLine int, content string, symbols ...string) *chunk.Chunk {
	return &chunk.Chunk{
		ID:         chunk.ChunkID(path, startLine),
		FilePath:   path,
		StartLine:  startLine,
		EndLine:    startLine + 5,
		Content:    content,
		Language:   "go",
		Symbols:    symbols,
		Provenance: chunk.ProvenanceAST,
	}
}

func TestRRF_AbsentStrategyContributesNothing(t *testing.T) {
	// Given: X at rank 1 in strategy one and rank 3 in strategy two,
	// Y at rank 2 in strategy one and absent from strategy two
	x := testChunk("x.go", 1, "x")
	y := testChunk("y.go", 1, "y")
	fuser := NewFuser(DefaultFusionConfig(), testResolver(x, y))

	fused := fuser.Fuse("query", map[string]RankedList{
		"one": {
			{ChunkID: "x.go:1", Score: 9, Rank: 1},
			{ChunkID: "y.go:1", Score: 8, Rank: 2},
		},
		"two": {
			{ChunkID: "a.go:1", Score: 5, Rank: 1},
			{ChunkID: "b.go:1", Score: 4, Rank: 2},
			{ChunkID: "x.go:1", Score: 3, Rank: 3},
		},
	})

	scores := make(map[string]float64)
	for _, r := range fused {
		scores[r.ChunkID] = r.Score
	}

	// Then: RRF(X) = 1/61 + 1/63, RRF(Y) = 1/62 only
	assert.InDelta(t, 1.0/61+1.0/63, scores["x.go:1"], 1e-9)
	assert.InDelta(t, 1.0/62, scores["y.go:1"], 1e-9)
	assert.Equal(t, "x.go:1", fused[0].ChunkID)
}

func TestRRF_Rank1EverywhereBeatsSingleList(t *testing.T) {
	// A chunk at rank 1 in every strategy must strictly outrank any
	// chunk appearing in only one list.
	every := testChunk("e.go", 1, "e")
	single := testChunk("s.go", 1, "s")
	fuser := NewFuser(DefaultFusionConfig(), testResolver(every, single))

	fused := fuser.Fuse("q", map[string]RankedList{
		"a": {{ChunkID: "e.go:1", Rank: 1}, {ChunkID: "s.go:1", Rank: 2}},
		"b": {{ChunkID: "e.go:1", Rank: 1}},
		"c": {{ChunkID: "e.go:1", Rank: 1}},
	})

	require.Equal(t, "e.go:1", fused[0].ChunkID)
	assert.Greater(t, fused[0].Score, fused[1].Score)
}

func TestFuse_RecordsContributingStrategies(t *testing.T) {
	x := testChunk("x.go", 1, "x")
	fuser := NewFuser(DefaultFusionConfig(), testResolver(x))

	fused := fuser.Fuse("q", map[string]RankedList{
		"keyword": {{ChunkID: "x.go:1", Rank: 1}},
		"bm25":    {{ChunkID: "x.go:1", Rank: 1}},
	})

	require.Len(t, fused, 1)
	assert.Equal(t, []string{"bm25", "keyword"}, fused[0].Strategies)
}

func TestWeighted_MinMaxNormalization(t *testing.T) {
	// Given: two strategies with incomparable score scales
	a := testChunk("a.go", 1, "a")
	b := testChunk("b.go", 1, "b")
	fuser := NewFuser(FusionConfig{
		Mode:    FusionWeighted,
		Weights: map[string]float64{"one": 2.0, "two": 1.0},
	}, testResolver(a, b))

	fused := fuser.Fuse("q", map[string]RankedList{
		"one": {
			{ChunkID: "a.go:1", Score: 100, Rank: 1},
			{ChunkID: "b.go:1", Score: 50, Rank: 2},
		},
		"two": {
			{ChunkID: "b.go:1", Score: 0.9, Rank: 1},
			{ChunkID: "a.go:1", Score: 0.1, Rank: 2},
		},
	})

	scores := make(map[string]float64)
	for _, r := range fused {
		scores[r.ChunkID] = r.Score
	}

	// a: 2.0*1.0 (max in one) + 1.0*0.0 (min in two) = 2.0
	// b: 2.0*0.0 (min in one) + 1.0*1.0 (max in two) = 1.0
	assert.InDelta(t, 2.0, scores["a.go:1"], 1e-9)
	assert.InDelta(t, 1.0, scores["b.go:1"], 1e-9)
}

func TestWeighted_UniformListNormalizesToOne(t *testing.T) {
	a := testChunk("a.go", 1, "a")
	b := testChunk("b.go", 1, "b")
	fuser := NewFuser(FusionConfig{Mode: FusionWeighted}, testResolver(a, b))

	fused := fuser.Fuse("q", map[string]RankedList{
		"one": {
			{ChunkID: "a.go:1", Score: 7, Rank: 1},
			{ChunkID: "b.go:1", Score: 7, Rank: 2},
		},
	})

	require.Len(t, fused, 2)
	for _, r := range fused {
		assert.InDelta(t, 1.0, r.Score, 1e-9)
	}
}

func TestFuse_TieBreaksDeterministically(t *testing.T) {
	// Given: two chunks with identical fused scores; one declares the
	// query term as a symbol
	decl := testChunk("zz/long/path.go", 1, "func resize() {}", "resize")
	plain := testChunk("a.go", 1, "resize mentioned")

	fuser := NewFuser(DefaultFusionConfig(), testResolver(decl, plain))
	fused := fuser.Fuse("resize", map[string]RankedList{
		"one": {{ChunkID: "zz/long/path.go:1", Rank: 1}},
		"two": {{ChunkID: "a.go:1", Rank: 1}},
	})

	// Then: identical 1/61 scores, symbol match wins over shorter path
	require.Len(t, fused, 2)
	assert.InDelta(t, fused[0].Score, fused[1].Score, 1e-12)
	assert.Equal(t, "zz/long/path.go:1", fused[0].ChunkID)
}

func TestFuse_EmptyInput(t *testing.T) {
	fuser := NewFuser(DefaultFusionConfig(), testResolver())
	assert.Empty(t, fuser.Fuse("q", nil))
	assert.Empty(t, fuser.Fuse("q", map[string]RankedList{"one": {}}))
}
