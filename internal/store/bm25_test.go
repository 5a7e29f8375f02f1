package store

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patchrag/patchrag/internal/chunk"
)

func mkChunk(path string, startLine int, content string, symbols ...string) *chunk.Chunk {
	return &chunk.Chunk{
		ID:          chunk.ChunkID(path, startLine),
		FilePath:    path,
		StartLine:   startLine,
		EndLine:     startLine + 10,
		Content:     content,
		ContentHash: chunk.HashContent(content),
		Language:    "go",
		Symbols:     symbols,
		Provenance:  chunk.ProvenanceFixed,
	}
}

func buildIndex(t *testing.T, chunks []*chunk.Chunk) *BM25Index {
	t.Helper()
	idx, err := NewBM25Index(context.Background(), chunks, DefaultBM25Config())
	require.NoError(t, err)
	return idx
}

func hitIDs(hits []Hit) []string {
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.Chunk.ID
	}
	return ids
}

func TestBM25_RanksOverlapAndExcludesZeroOverlap(t *testing.T) {
	// Given: three chunks where only two mention the query terms
	chunks := []*chunk.Chunk{
		mkChunk("game.py", 1, "def handle_key(event): pause_game() toggle_menu()"),
		mkChunk("score.py", 1, "def add_score(points): combo_multiplier()"),
		mkChunk("input.py", 1, "def on_escape(): toggle pause overlay"),
	}
	idx := buildIndex(t, chunks)

	// When: retrieving for a query sharing terms with two chunks
	hits := idx.Retrieve("toggle pause", 2)

	// Then: both overlapping chunks rank, the zero-overlap chunk never
	// appears
	require.Len(t, hits, 2)
	ids := hitIDs(hits)
	assert.Contains(t, ids, "game.py:1")
	assert.Contains(t, ids, "input.py:1")
	assert.NotContains(t, ids, "score.py:1")
}

func TestBM25_NoTermOverlapReturnsEmpty(t *testing.T) {
	idx := buildIndex(t, []*chunk.Chunk{
		mkChunk("a.py", 1, "alpha beta gamma"),
	})

	assert.Empty(t, idx.Retrieve("unrelated query words", 10))
}

func TestBM25_EmptyAndStopwordOnlyQueries(t *testing.T) {
	idx := buildIndex(t, []*chunk.Chunk{
		mkChunk("a.py", 1, "alpha beta"),
	})

	assert.Empty(t, idx.Retrieve("", 5))
	assert.Empty(t, idx.Retrieve("   ", 5))
	// Every term is a stopword, nothing survives tokenization.
	assert.Empty(t, idx.Retrieve("what is the", 5))
}

func TestBM25_IDFFormula(t *testing.T) {
	// Given: 3 docs, "shared" in all, "rare" in one
	idx := buildIndex(t, []*chunk.Chunk{
		mkChunk("a.py", 1, "shared rare"),
		mkChunk("b.py", 1, "shared other"),
		mkChunk("c.py", 1, "shared thing"),
	})

	// Then: idf follows ln(1 + (N - df + 0.5)/(df + 0.5))
	assert.InDelta(t, math.Log(1+(3-1+0.5)/(1+0.5)), idx.IDF("rare"), 1e-12)
	assert.InDelta(t, math.Log(1+(3-3+0.5)/(3+0.5)), idx.IDF("shared"), 1e-12)

	// And: a term in every document still scores positive
	assert.Greater(t, idx.IDF("shared"), 0.0)
	assert.Greater(t, idx.IDF("rare"), idx.IDF("shared"))
}

func TestBM25_RareTermOutranksCommonTerm(t *testing.T) {
	idx := buildIndex(t, []*chunk.Chunk{
		mkChunk("a.py", 1, "widget widget widget common"),
		mkChunk("b.py", 1, "gadget common"),
		mkChunk("c.py", 1, "common filler filler"),
	})

	hits := idx.Retrieve("gadget", 3)
	require.Len(t, hits, 1)
	assert.Equal(t, "b.py:1", hits[0].Chunk.ID)
}

func TestBM25_DeterministicAcrossInputOrder(t *testing.T) {
	// Given: the same chunks in two different input orders
	a := mkChunk("a.py", 1, "toggle pause resume")
	b := mkChunk("b.py", 1, "toggle pause quit")
	c := mkChunk("c.py", 1, "toggle settings")

	idx1 := buildIndex(t, []*chunk.Chunk{a, b, c})
	idx2 := buildIndex(t, []*chunk.Chunk{c, b, a})

	// Then: retrieval output is identical
	h1 := idx1.Retrieve("toggle pause", 3)
	h2 := idx2.Retrieve("toggle pause", 3)
	require.Equal(t, hitIDs(h1), hitIDs(h2))
	for i := range h1 {
		assert.InDelta(t, h1[i].Score, h2[i].Score, 1e-12)
	}
}

func TestBM25_TieBreakShorterPathThenStartLine(t *testing.T) {
	// Given: chunks with identical content so scores tie exactly
	long := mkChunk("pkg/deeply/nested/handler.py", 1, "toggle pause")
	short := mkChunk("main.py", 1, "toggle pause")
	later := mkChunk("main.py", 50, "toggle pause")

	idx := buildIndex(t, []*chunk.Chunk{long, later, short})
	hits := idx.Retrieve("toggle pause", 3)

	// Then: shorter path wins the tie, then lower start line
	require.Len(t, hits, 3)
	assert.Equal(t, "main.py:1", hits[0].Chunk.ID)
	assert.Equal(t, "main.py:50", hits[1].Chunk.ID)
	assert.Equal(t, "pkg/deeply/nested/handler.py:1", hits[2].Chunk.ID)
}

func TestBM25_ExactSymbolMatchRanksFirst(t *testing.T) {
	// Given: two chunks with tying scores; one declares the query term
	// as a symbol
	plain := mkChunk("notes.py", 1, "resize notes live here")
	decl := mkChunk("image.py", 1, "def resize(width, height)", "resize")

	idx := buildIndex(t, []*chunk.Chunk{plain, decl})
	hits := idx.Retrieve("resize", 2)

	require.Len(t, hits, 2)
	assert.Equal(t, "image.py:1", hits[0].Chunk.ID)
}

func TestBM25_RepeatedQueryTermsCountOnce(t *testing.T) {
	idx := buildIndex(t, []*chunk.Chunk{
		mkChunk("a.py", 1, "pause pause pause"),
		mkChunk("b.py", 1, "pause resume"),
	})

	once := idx.Retrieve("pause", 2)
	thrice := idx.Retrieve("pause pause pause", 2)

	require.Equal(t, hitIDs(once), hitIDs(thrice))
	for i := range once {
		assert.InDelta(t, once[i].Score, thrice[i].Score, 1e-12)
	}
}

func TestBM25_KLimitsResults(t *testing.T) {
	idx := buildIndex(t, []*chunk.Chunk{
		mkChunk("a.py", 1, "pause"),
		mkChunk("b.py", 1, "pause"),
		mkChunk("c.py", 1, "pause"),
	})

	assert.Len(t, idx.Retrieve("pause", 2), 2)
	assert.Empty(t, idx.Retrieve("pause", 0))
}

func TestBM25_EmptyIndex(t *testing.T) {
	idx := buildIndex(t, nil)
	assert.Empty(t, idx.Retrieve("anything", 5))

	stats := idx.Stats()
	assert.Zero(t, stats.DocCount)
	assert.Zero(t, stats.TermCount)
}

func TestBM25_Stats(t *testing.T) {
	idx := buildIndex(t, []*chunk.Chunk{
		mkChunk("a.py", 1, "alpha beta"),
		mkChunk("b.py", 1, "gamma"),
	})

	stats := idx.Stats()
	assert.Equal(t, 2, stats.DocCount)
	assert.Greater(t, stats.TermCount, 0)
	assert.Greater(t, stats.AvgDocLength, 0.0)
}

func TestBM25_ScoreNonDecreasingInTermFrequency(t *testing.T) {
	// Given: five chunks of identical token length where the target term
	// appears 1 through 5 times, padded with a filler word
	const docTokens = 8
	chunks := make([]*chunk.Chunk, 0, 5)
	for i := 1; i <= 5; i++ {
		content := strings.TrimSpace(
			strings.Repeat("velocity ", i) + strings.Repeat("padword ", docTokens-i))
		chunks = append(chunks, mkChunk(fmt.Sprintf("doc%d.py", i), 1, content))
	}
	idx := buildIndex(t, chunks)

	// When: scoring all five against a single-term query
	hits := idx.Retrieve("velocity", 5)
	require.Len(t, hits, 5)
	scoreByPath := make(map[string]float64, len(hits))
	for _, h := range hits {
		scoreByPath[h.Chunk.FilePath] = h.Score
	}

	// Then: at constant document length, more occurrences never score
	// lower
	for i := 2; i <= 5; i++ {
		prev := scoreByPath[fmt.Sprintf("doc%d.py", i-1)]
		curr := scoreByPath[fmt.Sprintf("doc%d.py", i)]
		assert.GreaterOrEqual(t, curr, prev, "tf=%d vs tf=%d", i, i-1)
	}
}
