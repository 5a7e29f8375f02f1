// Package output formats CLI results for humans: status lines, search
// result listings, and metrics tables. JSON output is handled by the
// commands themselves; this package owns only the text rendering.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/patchrag/patchrag/internal/chunk"
	"github.com/patchrag/patchrag/internal/metrics"
)

// maxSnippetLines caps the content preview under each search result.
const maxSnippetLines = 3

// Writer renders formatted output for the CLI. Write errors are
// ignored; console output failing has no recovery path worth taking.
type Writer struct {
	out io.Writer
}

// New creates a Writer over out.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Success prints a completed-action line.
func (w *Writer) Success(format string, args ...any) {
	_, _ = fmt.Fprintf(w.out, "✓ %s\n", fmt.Sprintf(format, args...))
}

// Warning prints a non-fatal problem.
func (w *Writer) Warning(format string, args ...any) {
	_, _ = fmt.Fprintf(w.out, "! %s\n", fmt.Sprintf(format, args...))
}

// Info prints a plain informational line.
func (w *Writer) Info(format string, args ...any) {
	_, _ = fmt.Fprintf(w.out, "  %s\n", fmt.Sprintf(format, args...))
}

// Blank prints an empty line.
func (w *Writer) Blank() {
	_, _ = fmt.Fprintln(w.out)
}

// SearchResult renders one ranked result with its location, score,
// contributing strategies, and a short content snippet.
func (w *Writer) SearchResult(rank int, c *chunk.Chunk, score float64, strategies []string) {
	_, _ = fmt.Fprintf(w.out, "%2d. %s:%d-%d  (score %.4f", rank, c.FilePath, c.StartLine, c.EndLine, score)
	if len(strategies) > 0 {
		_, _ = fmt.Fprintf(w.out, ", via %s", strings.Join(strategies, "+"))
	}
	_, _ = fmt.Fprintln(w.out, ")")

	if len(c.Symbols) > 0 {
		_, _ = fmt.Fprintf(w.out, "    symbols: %s\n", strings.Join(c.Symbols, ", "))
	}
	for i, line := range strings.Split(c.Content, "\n") {
		if i >= maxSnippetLines {
			_, _ = fmt.Fprintln(w.out, "    ...")
			break
		}
		_, _ = fmt.Fprintf(w.out, "    %s\n", strings.TrimRight(line, " \t"))
	}
}

// MetricsReport renders the per-task and aggregate evaluation table.
func (w *Writer) MetricsReport(report *metrics.Report) {
	_, _ = fmt.Fprintf(w.out, "Evaluation at k=%d over %d task(s)\n\n", report.K, report.TaskCount)
	_, _ = fmt.Fprintf(w.out, "%-24s %10s %10s %8s %8s %9s\n",
		"task", "precision", "recall", "mrr", "ndcg", "hit_rate")

	for _, task := range report.Tasks {
		w.metricsRow(task)
	}
	_, _ = fmt.Fprintln(w.out, strings.Repeat("-", 74))
	w.metricsRow(report.Aggregate)
}

func (w *Writer) metricsRow(m metrics.TaskMetrics) {
	name := m.TaskID
	if len(name) > 24 {
		name = name[:21] + "..."
	}
	_, _ = fmt.Fprintf(w.out, "%-24s %10.4f %10.4f %8.4f %8.4f %9.4f\n",
		name, m.Precision, m.Recall, m.MRR, m.NDCG, m.HitRate)
}
