package cmd

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	apperrors "github.com/patchrag/patchrag/internal/errors"
	"github.com/patchrag/patchrag/internal/index"
	"github.com/patchrag/patchrag/internal/output"
	"github.com/patchrag/patchrag/internal/search"
)

// searchOptions holds the CLI flags for search.
type searchOptions struct {
	limit     int
	strategy  string
	format    string
	context   bool
	maxTokens int
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Retrieve chunks for a modification request",
		Long: `Retrieve the indexed chunks most relevant to a natural-language
request, using the configured strategy and fusion settings.

Examples:
  patchrag search "pause the game when escape is pressed"
  patchrag search "score multiplier" --strategy keyword --limit 5
  patchrag search "collision detection" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default from config)")
	cmd.Flags().StringVarP(&opts.strategy, "strategy", "s", "", "Override retrieval strategy: bm25, keyword, embedding, hybrid")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.context, "context", false, "Print the assembled context block instead of a result list")
	cmd.Flags().IntVar(&opts.maxTokens, "max-tokens", 4000, "Token budget for --context output")

	return cmd
}

// searchResultJSON is the JSON shape for one result.
type searchResultJSON struct {
	Rank       int      `json:"rank"`
	ChunkID    string   `json:"chunk_id"`
	FilePath   string   `json:"file_path"`
	StartLine  int      `json:"start_line"`
	EndLine    int      `json:"end_line"`
	Score      float64  `json:"score"`
	Strategies []string `json:"strategies"`
	Symbols    []string `json:"symbols,omitempty"`
}

func runSearch(cmd *cobra.Command, query string, opts searchOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return apperrors.New(apperrors.ErrCodeInvalidInput,
			"unknown output format "+opts.format, nil).
			WithSuggestion("Use --format text or --format json")
	}

	root, cfg, err := projectConfig()
	if err != nil {
		return err
	}
	if opts.strategy != "" {
		cfg.Retrieval.Strategy = opts.strategy
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	limit := opts.limit
	if limit <= 0 {
		limit = cfg.Retrieval.TopK
	}

	arts, err := index.Load(cmd.Context(), cfg, root, nil)
	if err != nil {
		return err
	}
	defer arts.Close()

	engine, err := arts.Engine(cfg, nil)
	if err != nil {
		return err
	}

	results, err := engine.Retrieve(cmd.Context(), query, limit)
	if err != nil {
		return err
	}

	if opts.context {
		_, err := cmd.OutOrStdout().Write([]byte(engine.FormatContext(results, opts.maxTokens)))
		return err
	}
	if opts.format == "json" {
		return writeSearchJSON(cmd, engine, results)
	}

	out := output.New(cmd.OutOrStdout())
	if len(results) == 0 {
		out.Info("no results for %q", query)
		return nil
	}
	for i, r := range results {
		c := engine.Chunk(r.ChunkID)
		if c == nil {
			continue
		}
		out.SearchResult(i+1, c, r.Score, r.Strategies)
	}
	return nil
}

func writeSearchJSON(cmd *cobra.Command, engine *search.Engine, results []search.FusedResult) error {
	payload := make([]searchResultJSON, 0, len(results))
	for i, r := range results {
		c := engine.Chunk(r.ChunkID)
		if c == nil {
			continue
		}
		payload = append(payload, searchResultJSON{
			Rank:       i + 1,
			ChunkID:    r.ChunkID,
			FilePath:   c.FilePath,
			StartLine:  c.StartLine,
			EndLine:    c.EndLine,
			Score:      r.Score,
			Strategies: r.Strategies,
			Symbols:    c.Symbols,
		})
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
