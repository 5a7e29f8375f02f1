// Package index builds and loads the retrieval index: it walks the
// project tree, chunks source files in parallel, and persists the result
// in the chunk store. Builds are wholesale and single-writer; unchanged
// files reuse their stored chunks instead of being re-parsed.
package index

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/patchrag/patchrag/internal/chunk"
	"github.com/patchrag/patchrag/internal/config"
	apperrors "github.com/patchrag/patchrag/internal/errors"
	"github.com/patchrag/patchrag/internal/scanner"
	"github.com/patchrag/patchrag/internal/store"
)

// storeFileName is the chunk store database inside the index directory.
const storeFileName = "chunks.db"

// StorePath returns the chunk store location for an index directory.
func StorePath(indexDir string) string {
	return filepath.Join(indexDir, storeFileName)
}

// Builder runs the index pipeline: scan, chunk, persist.
type Builder struct {
	cfg     *config.Config
	scanner *scanner.Scanner
	chunker *chunk.CodeChunker
	logger  *slog.Logger

	// Progress, when set, is called after each file finishes chunking.
	// It may be called from multiple goroutines.
	Progress func(done, total int, path string)
}

// NewBuilder creates a builder from the resolved configuration.
func NewBuilder(cfg *config.Config, logger *slog.Logger) (*Builder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s, err := scanner.New(logger)
	if err != nil {
		return nil, err
	}
	return &Builder{
		cfg:     cfg,
		scanner: s,
		chunker: chunk.NewCodeChunker(cfg.ChunkOptions()),
		logger:  logger,
	}, nil
}

// Close releases the chunker's parser resources.
func (b *Builder) Close() {
	b.chunker.Close()
}

// BuildResult summarizes a completed build.
type BuildResult struct {
	Files    int           // files indexed
	Chunks   int           // chunks persisted
	Reused   int           // files whose stored chunks were reused unchanged
	Warnings int           // files skipped due to read or chunk errors
	Duration time.Duration // wall time for the whole build
	Stats    store.IndexStats
}

// fileOutcome is the per-file result of the parallel chunking stage.
// Slots are pre-allocated per input file so the merge needs no ordering
// work beyond the final sort.
type fileOutcome struct {
	hash   string
	chunks []*chunk.Chunk
	reused bool
	warn   bool
}

// Build indexes the project rooted at root. It holds the build lock for
// the duration; a concurrent build fails fast with ErrCodeIndexLocked.
func (b *Builder) Build(ctx context.Context, root string) (*BuildResult, error) {
	start := time.Now()

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrCodeInvalidPath, err, "resolve root %s", root)
	}
	indexDir := b.cfg.IndexDir(absRoot)

	lock := NewBuildLock(indexDir)
	if err := lock.TryAcquire(); err != nil {
		return nil, err
	}
	defer lock.Release()

	cs, err := store.OpenChunkStore(StorePath(indexDir))
	if err != nil {
		return nil, err
	}
	defer cs.Close()

	priorHashes, err := cs.FileHashes(ctx)
	if err != nil {
		return nil, err
	}
	priorChunks, err := b.loadPriorChunks(ctx, cs, priorHashes)
	if err != nil {
		return nil, err
	}

	files, warnings, err := b.scanFiles(ctx, absRoot, indexDir)
	if err != nil {
		return nil, err
	}
	b.logger.Info("index_scan_complete",
		slog.String("root", absRoot),
		slog.Int("files", len(files)))

	outcomes, err := b.chunkFiles(ctx, files, priorHashes, priorChunks)
	if err != nil {
		return nil, err
	}

	// Deterministic reduction: flatten, then order by (path, start line)
	// so index construction sees the same sequence every build.
	var allChunks []*chunk.Chunk
	hashes := make(map[string]string, len(files))
	var reused int
	for i, out := range outcomes {
		if out.warn {
			warnings++
			continue
		}
		if out.reused {
			reused++
		}
		hashes[files[i].Path] = out.hash
		allChunks = append(allChunks, out.chunks...)
	}
	sort.Slice(allChunks, func(i, j int) bool {
		if allChunks[i].FilePath != allChunks[j].FilePath {
			return allChunks[i].FilePath < allChunks[j].FilePath
		}
		return allChunks[i].StartLine < allChunks[j].StartLine
	})

	if err := cs.ReplaceChunks(ctx, allChunks, hashes); err != nil {
		return nil, err
	}

	idx, err := store.NewBM25Index(ctx, allChunks, b.cfg.BM25())
	if err != nil {
		return nil, err
	}

	result := &BuildResult{
		Files:    len(hashes),
		Chunks:   len(allChunks),
		Reused:   reused,
		Warnings: warnings,
		Duration: time.Since(start),
		Stats:    idx.Stats(),
	}
	b.logger.Info("index_build_complete",
		slog.String("root", absRoot),
		slog.Int("files", result.Files),
		slog.Int("chunks", result.Chunks),
		slog.Int("reused_files", result.Reused),
		slog.Int("warnings", result.Warnings),
		slog.Int64("duration_ms", result.Duration.Milliseconds()))
	return result, nil
}

// scanFiles drains the scanner stream. Scan errors on individual files
// count as warnings; only a failed walk start aborts the build.
func (b *Builder) scanFiles(ctx context.Context, absRoot, indexDir string) ([]*scanner.FileInfo, int, error) {
	// Never index the index itself.
	exclude := append([]string{}, b.cfg.Paths.Exclude...)
	exclude = append(exclude, "**/"+filepath.Base(indexDir)+"/**")

	results, err := b.scanner.Scan(ctx, &scanner.ScanOptions{
		RootDir:          absRoot,
		IncludePatterns:  b.cfg.Paths.Include,
		ExcludePatterns:  exclude,
		RespectGitignore: b.cfg.Paths.RespectGitignore,
		MaxFileSize:      b.cfg.Paths.MaxFileSize,
	})
	if err != nil {
		return nil, 0, err
	}

	var files []*scanner.FileInfo
	var warnings int
	for result := range results {
		if result.Error != nil {
			warnings++
			path := ""
			if result.File != nil {
				path = result.File.Path
			}
			b.logger.Warn("scan_file_skipped",
				slog.String("path", path),
				slog.String("error", result.Error.Error()))
			continue
		}
		files = append(files, result.File)
	}
	return files, warnings, ctx.Err()
}

// chunkFiles reads and chunks the scanned files with a bounded worker
// pool. Files whose content hash matches the stored one reuse their
// stored chunks.
func (b *Builder) chunkFiles(ctx context.Context, files []*scanner.FileInfo, priorHashes map[string]string, priorChunks map[string][]*chunk.Chunk) ([]fileOutcome, error) {
	workers := b.cfg.Index.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	outcomes := make([]fileOutcome, len(files))
	var done atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			defer func() {
				if b.Progress != nil {
					b.Progress(int(done.Add(1)), len(files), file.Path)
				}
			}()

			content, err := os.ReadFile(file.AbsPath)
			if err != nil {
				b.logger.Warn("chunk_file_skipped",
					slog.String("path", file.Path),
					slog.String("error", err.Error()))
				outcomes[i] = fileOutcome{warn: true}
				return nil
			}

			hash := chunk.HashContent(string(content))
			if priorHashes[file.Path] == hash {
				outcomes[i] = fileOutcome{
					hash:   hash,
					chunks: priorChunks[file.Path],
					reused: true,
				}
				return nil
			}

			chunks, err := b.chunker.Chunk(gctx, &chunk.FileInput{
				Path:    file.Path,
				Content: content,
			})
			if err != nil {
				b.logger.Warn("chunk_file_skipped",
					slog.String("path", file.Path),
					slog.String("error", err.Error()))
				outcomes[i] = fileOutcome{warn: true}
				return nil
			}
			outcomes[i] = fileOutcome{hash: hash, chunks: chunks}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrCodeIndexFailed, err, "chunk files")
	}
	return outcomes, nil
}

// loadPriorChunks groups the stored chunks by file path. Skipped when
// the store is empty, which is the common first-build case.
func (b *Builder) loadPriorChunks(ctx context.Context, cs *store.ChunkStore, priorHashes map[string]string) (map[string][]*chunk.Chunk, error) {
	if len(priorHashes) == 0 {
		return nil, nil
	}
	stored, err := cs.LoadChunks(ctx)
	if err != nil {
		return nil, err
	}
	byFile := make(map[string][]*chunk.Chunk, len(priorHashes))
	for _, c := range stored {
		byFile[c.FilePath] = append(byFile[c.FilePath], c)
	}
	return byFile, nil
}
