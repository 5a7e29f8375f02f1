// Package preflight validates the environment before retrieval work:
// configuration sanity, index presence and freshness, and embedding
// backend availability. The doctor command renders its results.
package preflight

import (
	"context"
	"fmt"
	"os"

	"github.com/patchrag/patchrag/internal/config"
	"github.com/patchrag/patchrag/internal/embed"
	"github.com/patchrag/patchrag/internal/index"
	"github.com/patchrag/patchrag/internal/search"
	"github.com/patchrag/patchrag/internal/store"
)

// Status classifies one check outcome.
type Status int

const (
	StatusPass Status = iota
	StatusWarn
	StatusFail
)

// String returns the check-report label for the status.
func (s Status) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText keeps JSON output readable.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Result is the outcome of one check.
type Result struct {
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Message string `json:"message"`
	// Required marks checks whose failure blocks retrieval entirely.
	Required bool `json:"required"`
}

// IsCritical reports whether this result should fail the doctor run.
func (r Result) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Run executes all checks for the project rooted at root and returns
// their results in a stable order.
func Run(ctx context.Context, cfg *config.Config, root string) []Result {
	return []Result{
		checkConfig(cfg),
		checkIndex(ctx, cfg, root),
		checkEmbedder(ctx, cfg),
	}
}

// Failed reports whether any critical check failed.
func Failed(results []Result) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

func checkConfig(cfg *config.Config) Result {
	if err := cfg.Validate(); err != nil {
		return Result{
			Name:     "config",
			Status:   StatusFail,
			Message:  err.Error(),
			Required: true,
		}
	}
	return Result{
		Name:     "config",
		Status:   StatusPass,
		Message:  fmt.Sprintf("chunking=%s retrieval=%s", cfg.Chunking.Strategy, cfg.Retrieval.Strategy),
		Required: true,
	}
}

func checkIndex(ctx context.Context, cfg *config.Config, root string) Result {
	storePath := index.StorePath(cfg.IndexDir(root))
	if _, err := os.Stat(storePath); err != nil {
		return Result{
			Name:     "index",
			Status:   StatusFail,
			Message:  "no index found; run 'patchrag index'",
			Required: true,
		}
	}

	cs, err := store.OpenChunkStore(storePath)
	if err != nil {
		return Result{
			Name:     "index",
			Status:   StatusFail,
			Message:  "chunk store unreadable: " + err.Error(),
			Required: true,
		}
	}
	defer cs.Close()

	count, err := cs.ChunkCount(ctx)
	if err != nil {
		return Result{
			Name:     "index",
			Status:   StatusFail,
			Message:  "chunk store unreadable: " + err.Error(),
			Required: true,
		}
	}
	if count == 0 {
		return Result{
			Name:     "index",
			Status:   StatusWarn,
			Message:  "index is empty; run 'patchrag index'",
			Required: true,
		}
	}
	return Result{
		Name:     "index",
		Status:   StatusPass,
		Message:  fmt.Sprintf("%d chunks at %s", count, storePath),
		Required: true,
	}
}

// checkEmbedder probes the embedding backend only when the configured
// strategy retrieves by embedding; other strategies never touch it.
func checkEmbedder(ctx context.Context, cfg *config.Config) Result {
	needed := cfg.Retrieval.Strategy == search.StrategyEmbedding ||
		cfg.Retrieval.Strategy == search.StrategyHybrid
	if !needed {
		return Result{
			Name:    "embedder",
			Status:  StatusPass,
			Message: "not required by strategy " + cfg.Retrieval.Strategy,
		}
	}

	embedder, err := embed.NewEmbedder(cfg.Embeddings, nil)
	if err != nil {
		return Result{
			Name:    "embedder",
			Status:  StatusFail,
			Message: err.Error(),
		}
	}
	defer embedder.Close()

	if !embedder.Available(ctx) {
		return Result{
			Name:    "embedder",
			Status:  StatusWarn,
			Message: fmt.Sprintf("backend %s unavailable; embedding strategy will degrade to empty results", cfg.Embeddings.Backend),
		}
	}
	return Result{
		Name:    "embedder",
		Status:  StatusPass,
		Message: fmt.Sprintf("%s (%s, %d dims)", cfg.Embeddings.Backend, embedder.ModelName(), embedder.Dimensions()),
	}
}
