// Package integration tests the full flow from index build through
// retrieval and evaluation, verifying the packages work together.
package integration

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patchrag/patchrag/internal/config"
	"github.com/patchrag/patchrag/internal/eval"
	"github.com/patchrag/patchrag/internal/index"
	"github.com/patchrag/patchrag/internal/metrics"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// buildFixture creates a small multi-language project and indexes it.
func buildFixture(t *testing.T, cfg *config.Config) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"game/input.py": "def handle_escape(event):\n    toggle_pause()\n    show_overlay()\n",
		"game/score.py": "def add_score(points):\n    apply_combo_multiplier(points)\n",
		"game/board.py": "def clear_rows(grid):\n    collapse_filled_rows(grid)\n",
		"util/log.go":   "package util\n\nfunc LogEvent(name string) {\n\tprintln(name)\n}\n",
	}
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	builder, err := index.NewBuilder(cfg, quietLogger())
	require.NoError(t, err)
	t.Cleanup(builder.Close)

	result, err := builder.Build(context.Background(), root)
	require.NoError(t, err)
	require.Equal(t, len(files), result.Files)
	return root
}

func TestIndexThenSearch_BM25(t *testing.T) {
	// Given: an indexed project and a bm25-only engine
	cfg := config.NewConfig()
	cfg.Chunking.Strategy = "fixed"
	root := buildFixture(t, cfg)

	arts, err := index.Load(context.Background(), cfg, root, quietLogger())
	require.NoError(t, err)
	defer arts.Close()

	engine, err := arts.Engine(cfg, quietLogger())
	require.NoError(t, err)

	// When: retrieving for a feature request
	results, err := engine.Retrieve(context.Background(), "pause overlay when escape pressed", 3)
	require.NoError(t, err)

	// Then: the input handler ranks first
	require.NotEmpty(t, results)
	top := engine.Chunk(results[0].ChunkID)
	require.NotNil(t, top)
	assert.Equal(t, "game/input.py", top.FilePath)
}

func TestIndexThenSearch_HybridWithStaticEmbeddings(t *testing.T) {
	// Given: a hybrid engine over the static embedding backend
	cfg := config.NewConfig()
	cfg.Chunking.Strategy = "fixed"
	cfg.Retrieval.Strategy = "hybrid"
	cfg.Embeddings.Backend = "static"
	root := buildFixture(t, cfg)

	arts, err := index.Load(context.Background(), cfg, root, quietLogger())
	require.NoError(t, err)
	defer arts.Close()
	require.NotNil(t, arts.Vectors)

	engine, err := arts.Engine(cfg, quietLogger())
	require.NoError(t, err)
	assert.Len(t, engine.Strategies(), 3)

	// When: retrieving with all strategies fused
	results, err := engine.Retrieve(context.Background(), "combo multiplier score", 4)
	require.NoError(t, err)

	// Then: the scoring chunk surfaces and carries its contributors
	require.NotEmpty(t, results)
	top := engine.Chunk(results[0].ChunkID)
	require.NotNil(t, top)
	assert.Equal(t, "game/score.py", top.FilePath)
	assert.NotEmpty(t, results[0].Strategies)
}

func TestIndexSearchEvaluate_EndToEnd(t *testing.T) {
	// Given: an indexed project and a file-labeled task set
	cfg := config.NewConfig()
	cfg.Chunking.Strategy = "fixed"
	root := buildFixture(t, cfg)

	arts, err := index.Load(context.Background(), cfg, root, quietLogger())
	require.NoError(t, err)
	defer arts.Close()

	engine, err := arts.Engine(cfg, quietLogger())
	require.NoError(t, err)

	labels, err := metrics.ParseGoldLabels([]byte(`
tasks:
  pause-feature:
    query: "toggle pause overlay on escape"
    relevant:
      - game/input.py
  scoring:
    query: "combo multiplier points"
    relevant:
      - game/score.py
`))
	require.NoError(t, err)

	runner, err := eval.NewRunner(engine, labels, quietLogger())
	require.NoError(t, err)

	// When: evaluating at file granularity
	report, err := runner.Run(context.Background(), eval.Options{K: 3, ByFile: true})
	require.NoError(t, err)

	// Then: both gold files are found at rank 1
	require.Equal(t, 2, report.TaskCount)
	assert.Equal(t, 1.0, report.Aggregate.MRR)
	assert.Equal(t, 1.0, report.Aggregate.HitRate)
	assert.Equal(t, 1.0, report.Aggregate.Recall)
}
