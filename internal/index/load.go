package index

import (
	"context"
	"log/slog"
	"os"

	"github.com/patchrag/patchrag/internal/chunk"
	"github.com/patchrag/patchrag/internal/config"
	"github.com/patchrag/patchrag/internal/embed"
	apperrors "github.com/patchrag/patchrag/internal/errors"
	"github.com/patchrag/patchrag/internal/search"
	"github.com/patchrag/patchrag/internal/store"
)

// Artifacts is a loaded index ready for retrieval: the stored chunks,
// the in-memory BM25 index rebuilt over them, and the vector side when
// the configured strategy needs it.
type Artifacts struct {
	Chunks   []*chunk.Chunk
	Index    *store.BM25Index
	Embedder embed.Embedder
	Vectors  *store.VectorStore
}

// Load opens the persisted index for the project rooted at root. The
// chunk store holds only chunks and file hashes; the BM25 index is
// rebuilt in memory, and chunk vectors are recomputed when the active
// strategy retrieves by embedding. Vectors never touch disk.
func Load(ctx context.Context, cfg *config.Config, root string, logger *slog.Logger) (*Artifacts, error) {
	if logger == nil {
		logger = slog.Default()
	}

	storePath := StorePath(cfg.IndexDir(root))
	if _, err := os.Stat(storePath); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeFileNotFound,
			"no index found at "+storePath, err).
			WithSuggestion("Run 'patchrag index' to build one")
	}

	cs, err := store.OpenChunkStore(storePath)
	if err != nil {
		return nil, err
	}
	defer cs.Close()

	chunks, err := cs.LoadChunks(ctx)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, apperrors.StorageError("index is empty", nil).
			WithSuggestion("Run 'patchrag index' to rebuild it")
	}

	idx, err := store.NewBM25Index(ctx, chunks, cfg.BM25())
	if err != nil {
		return nil, err
	}

	a := &Artifacts{Chunks: chunks, Index: idx}
	if needsVectors(cfg.Retrieval.Strategy) {
		if err := a.buildVectors(ctx, cfg, logger); err != nil {
			a.Close()
			return nil, err
		}
	}

	logger.Info("index_loaded",
		slog.String("store", storePath),
		slog.Int("chunks", len(chunks)),
		slog.Bool("vectors", a.Vectors != nil))
	return a, nil
}

// Engine wires the loaded artifacts into a retrieval engine.
func (a *Artifacts) Engine(cfg *config.Config, logger *slog.Logger) (*search.Engine, error) {
	return search.NewEngine(a.Index, a.Chunks, a.Embedder, a.Vectors, cfg.EngineConfig(), logger)
}

// Close releases the embedding backend, if one was opened.
func (a *Artifacts) Close() error {
	if a.Embedder == nil {
		return nil
	}
	return a.Embedder.Close()
}

func needsVectors(strategy string) bool {
	return strategy == search.StrategyEmbedding || strategy == search.StrategyHybrid
}

// buildVectors embeds every chunk and fills the in-memory vector store.
// Batched to keep backend round trips bounded.
func (a *Artifacts) buildVectors(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	embedder, err := embed.NewEmbedder(cfg.Embeddings, logger)
	if err != nil {
		return err
	}
	a.Embedder = embedder
	a.Vectors = store.NewVectorStore(store.DefaultVectorStoreConfig(embedder.Dimensions()))

	batch := cfg.Embeddings.Ollama.BatchSize
	if batch <= 0 {
		batch = embed.DefaultBatchSize
	}
	for start := 0; start < len(a.Chunks); start += batch {
		end := start + batch
		if end > len(a.Chunks) {
			end = len(a.Chunks)
		}
		ids := make([]string, 0, end-start)
		texts := make([]string, 0, end-start)
		for _, c := range a.Chunks[start:end] {
			ids = append(ids, c.ID)
			texts = append(texts, c.Content)
		}
		vectors, err := embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return apperrors.Wrapf(apperrors.ErrCodeEmbeddingFailed, err,
				"embed chunks %d-%d", start, end-1)
		}
		if err := a.Vectors.Add(ctx, ids, vectors); err != nil {
			return err
		}
	}
	return nil
}
