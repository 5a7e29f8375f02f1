package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patchrag/patchrag/internal/chunk"
)

func newKeywordRetriever(chunks ...*chunk.Chunk) *KeywordRetriever {
	return NewKeywordRetriever(chunks, testResolver(chunks...))
}

func TestKeywordRetriever_SymbolMatchesOutweighContent(t *testing.T) {
	// Given: one chunk declaring the query term, one merely repeating it
	decl := testChunk("img.go", 1, "func resize(w, h int) {}", "resize")
	mention := testChunk("doc.go", 1, "resize resize resize resize resize resize resize")

	r := newKeywordRetriever(decl, mention)
	results, err := r.Retrieve(context.Background(), "resize", 10)
	require.NoError(t, err)

	// mention: tf capped at 5 = 5.0
	// decl: tf 1 + substring 5 + exact 10 = 16.0
	require.Len(t, results, 2)
	assert.Equal(t, "img.go:1", results[0].ChunkID)
	assert.InDelta(t, 16.0, results[0].Score, 1e-9)
	assert.InDelta(t, 5.0, results[1].Score, 1e-9)
}

func TestKeywordRetriever_PathBonus(t *testing.T) {
	inPath := testChunk("pause/menu.go", 1, "overlay code")
	other := testChunk("score.go", 1, "overlay code")

	r := newKeywordRetriever(inPath, other)
	results, err := r.Retrieve(context.Background(), "pause overlay", 10)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "pause/menu.go:1", results[0].ChunkID)
	// Both match "overlay" once; the path match adds 3.
	assert.InDelta(t, results[1].Score+3.0, results[0].Score, 1e-9)
}

func TestKeywordRetriever_ZeroScoreExcluded(t *testing.T) {
	unrelated := testChunk("a.go", 1, "nothing relevant here")

	r := newKeywordRetriever(unrelated)
	results, err := r.Retrieve(context.Background(), "xyzzy", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestKeywordRetriever_EmptyQuery(t *testing.T) {
	r := newKeywordRetriever(testChunk("a.go", 1, "content"))

	results, err := r.Retrieve(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = r.Retrieve(context.Background(), "!!!", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestKeywordRetriever_RanksAssigned(t *testing.T) {
	a := testChunk("a.go", 1, "pause pause")
	b := testChunk("b.go", 1, "pause")

	r := newKeywordRetriever(a, b)
	results, err := r.Retrieve(context.Background(), "pause", 10)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, 2, results[1].Rank)
}

func TestKeywordRetriever_KLimits(t *testing.T) {
	a := testChunk("a.go", 1, "pause")
	b := testChunk("b.go", 1, "pause")
	c := testChunk("c.go", 1, "pause")

	r := newKeywordRetriever(a, b, c)
	results, err := r.Retrieve(context.Background(), "pause", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}
