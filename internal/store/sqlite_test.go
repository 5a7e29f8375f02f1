package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patchrag/patchrag/internal/chunk"
)

func openTestStore(t *testing.T) *ChunkStore {
	t.Helper()
	s, err := OpenChunkStore(filepath.Join(t.TempDir(), "chunks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestChunkStore_RoundTrip(t *testing.T) {
	// Given: a store with two chunks and a file hash
	s := openTestStore(t)
	ctx := context.Background()

	in := []*chunk.Chunk{
		mkChunk("pkg/b.go", 1, "package b", "b"),
		mkChunk("a.go", 1, "package a\nfunc A() {}", "A"),
	}
	in[0].Imports = []string{"fmt"}
	hashes := map[string]string{
		"a.go":     chunk.HashContent("package a\nfunc A() {}"),
		"pkg/b.go": chunk.HashContent("package b"),
	}
	require.NoError(t, s.ReplaceChunks(ctx, in, hashes))

	// When: loading everything back
	out, err := s.LoadChunks(ctx)
	require.NoError(t, err)

	// Then: chunks come back ordered by (path, start line) with all
	// fields intact
	require.Len(t, out, 2)
	assert.Equal(t, "a.go:1", out[0].ID)
	assert.Equal(t, "pkg/b.go:1", out[1].ID)
	assert.Equal(t, []string{"A"}, out[0].Symbols)
	assert.Equal(t, []string{"fmt"}, out[1].Imports)
	assert.Equal(t, chunk.ProvenanceFixed, out[0].Provenance)
	assert.Equal(t, in[1].ContentHash, out[0].ContentHash)

	gotHashes, err := s.FileHashes(ctx)
	require.NoError(t, err)
	assert.Equal(t, hashes, gotHashes)
}

func TestChunkStore_ReplaceIsWholesale(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := []*chunk.Chunk{mkChunk("old.go", 1, "package old")}
	require.NoError(t, s.ReplaceChunks(ctx, first, map[string]string{"old.go": "h1"}))

	// When: replacing with a disjoint chunk set
	second := []*chunk.Chunk{mkChunk("new.go", 1, "package new")}
	require.NoError(t, s.ReplaceChunks(ctx, second, map[string]string{"new.go": "h2"}))

	// Then: nothing from the first build survives
	out, err := s.LoadChunks(ctx)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "new.go:1", out[0].ID)

	hashes, err := s.FileHashes(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"new.go": "h2"}, hashes)
}

func TestChunkStore_EmptyStore(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	out, err := s.LoadChunks(ctx)
	require.NoError(t, err)
	assert.Empty(t, out)

	n, err := s.ChunkCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestChunkStore_ChunkCount(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	chunks := []*chunk.Chunk{
		mkChunk("a.go", 1, "one"),
		mkChunk("a.go", 20, "two"),
		mkChunk("b.go", 1, "three"),
	}
	require.NoError(t, s.ReplaceChunks(ctx, chunks, nil))

	n, err := s.ChunkCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestChunkStore_ReopenPersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chunks.db")
	ctx := context.Background()

	s1, err := OpenChunkStore(path)
	require.NoError(t, err)
	require.NoError(t, s1.ReplaceChunks(ctx, []*chunk.Chunk{mkChunk("a.go", 1, "package a")}, nil))
	require.NoError(t, s1.Close())

	s2, err := OpenChunkStore(path)
	require.NoError(t, err)
	defer s2.Close()

	out, err := s2.LoadChunks(ctx)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "a.go:1", out[0].ID)
}
