package eval

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patchrag/patchrag/internal/chunk"
	"github.com/patchrag/patchrag/internal/metrics"
	"github.com/patchrag/patchrag/internal/search"
	"github.com/patchrag/patchrag/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func mkChunk(path string, startLine int, content string, symbols ...string) *chunk.Chunk {
	return &chunk.Chunk{
		ID:          chunk.ChunkID(path, startLine),
		FilePath:    path,
		StartLine:   startLine,
		EndLine:     startLine + 10,
		Content:     content,
		ContentHash: chunk.HashContent(content),
		Language:    "python",
		Symbols:     symbols,
		Provenance:  chunk.ProvenanceFixed,
	}
}

func testEngine(t *testing.T, chunks []*chunk.Chunk) *search.Engine {
	t.Helper()
	idx, err := store.NewBM25Index(context.Background(), chunks, store.DefaultBM25Config())
	require.NoError(t, err)
	engine, err := search.NewEngine(idx, chunks, nil, nil, search.EngineConfig{
		Strategy: search.StrategyBM25,
	}, discardLogger())
	require.NoError(t, err)
	return engine
}

func testLabels(t *testing.T, doc string) *metrics.GoldLabels {
	t.Helper()
	labels, err := metrics.ParseGoldLabels([]byte(doc))
	require.NoError(t, err)
	return labels
}

func TestRun_ScoresChunkLabeledTasks(t *testing.T) {
	// Given: a corpus where one chunk clearly matches the task query
	engine := testEngine(t, []*chunk.Chunk{
		mkChunk("game/input.py", 1, "def handle_escape(event): toggle pause overlay menu"),
		mkChunk("game/score.py", 1, "def add_score(points): combo streak multiplier"),
		mkChunk("game/board.py", 1, "def clear_rows(grid): collapse filled rows"),
	})
	labels := testLabels(t, `
tasks:
  pause-feature:
    query: "toggle pause overlay"
    relevant:
      - game/input.py:1
`)
	runner, err := NewRunner(engine, labels, discardLogger())
	require.NoError(t, err)

	// When: running the evaluation at k=3
	report, err := runner.Run(context.Background(), Options{K: 3})
	require.NoError(t, err)

	// Then: the matching chunk ranks first and the metrics reflect it
	require.Equal(t, 1, report.TaskCount)
	task := report.Tasks[0]
	assert.Equal(t, "pause-feature", task.TaskID)
	assert.InDelta(t, 1.0/3.0, task.Precision, 1e-9)
	assert.Equal(t, 1.0, task.Recall)
	assert.Equal(t, 1.0, task.MRR)
	assert.Equal(t, 1.0, task.HitRate)
}

func TestRun_ByFileCollapsesChunks(t *testing.T) {
	// Given: two chunks of the same file both matching the query
	engine := testEngine(t, []*chunk.Chunk{
		mkChunk("game/input.py", 1, "def handle_escape(event): toggle pause state"),
		mkChunk("game/input.py", 40, "def resume(): toggle pause state back"),
		mkChunk("game/score.py", 1, "def add_score(points): combo streak"),
	})
	labels := testLabels(t, `
tasks:
  pause-feature:
    query: "toggle pause"
    relevant:
      - game/input.py
`)
	runner, err := NewRunner(engine, labels, discardLogger())
	require.NoError(t, err)

	// When: scoring at file granularity
	report, err := runner.Run(context.Background(), Options{K: 2, ByFile: true})
	require.NoError(t, err)

	// Then: the file counts once despite two retrieved chunks
	task := report.Tasks[0]
	assert.Equal(t, 1.0, task.Recall)
	assert.Equal(t, 1.0, task.MRR)
	assert.InDelta(t, 0.5, task.Precision, 1e-9)
}

func TestRun_AggregatesWithEqualTaskWeight(t *testing.T) {
	// Given: one solvable and one hopeless task
	engine := testEngine(t, []*chunk.Chunk{
		mkChunk("game/input.py", 1, "def handle_escape(event): toggle pause state"),
		mkChunk("game/score.py", 1, "def add_score(points): combo streak"),
	})
	labels := testLabels(t, `
tasks:
  found:
    query: "toggle pause"
    relevant:
      - game/input.py:1
  missing:
    query: "quantum flux capacitor"
    relevant:
      - game/engine.py:1
`)
	runner, err := NewRunner(engine, labels, discardLogger())
	require.NoError(t, err)

	// When: running both tasks
	report, err := runner.Run(context.Background(), Options{K: 2})
	require.NoError(t, err)

	// Then: the aggregate averages hit rates 1 and 0 equally
	require.Equal(t, 2, report.TaskCount)
	assert.InDelta(t, 0.5, report.Aggregate.HitRate, 1e-9)
	assert.InDelta(t, 0.5, report.Aggregate.Recall, 1e-9)
}

func TestNewRunner_RejectsEmptyTaskSet(t *testing.T) {
	// Given: an engine but no tasks
	engine := testEngine(t, []*chunk.Chunk{
		mkChunk("game/input.py", 1, "def handle_escape(event): pass"),
	})

	// When/Then: construction fails up front
	_, err := NewRunner(engine, &metrics.GoldLabels{}, discardLogger())
	require.Error(t, err)

	_, err = NewRunner(nil, nil, discardLogger())
	require.Error(t, err)
}

func TestRun_CancelledContext(t *testing.T) {
	// Given: a cancelled context
	engine := testEngine(t, []*chunk.Chunk{
		mkChunk("game/input.py", 1, "def handle_escape(event): pass"),
	})
	labels := testLabels(t, `
tasks:
  t1:
    query: "escape"
    relevant: [game/input.py:1]
`)
	runner, err := NewRunner(engine, labels, discardLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// When/Then: the run stops instead of scoring
	_, err = runner.Run(ctx, Options{K: 2})
	require.Error(t, err)
}
