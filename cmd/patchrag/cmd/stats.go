package cmd

import (
	"encoding/json"
	"sort"

	"github.com/spf13/cobra"

	"github.com/patchrag/patchrag/internal/index"
	"github.com/patchrag/patchrag/internal/output"
	"github.com/patchrag/patchrag/internal/store"
)

// indexStatsJSON is the JSON shape of `patchrag stats`.
type indexStatsJSON struct {
	Store      string           `json:"store"`
	Files      int              `json:"files"`
	Chunks     int              `json:"chunks"`
	Languages  map[string]int   `json:"languages"`
	Provenance map[string]int   `json:"provenance"`
	BM25       store.IndexStats `json:"bm25"`
}

func newStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		Long:  `Show chunk, file, language, and BM25 statistics for the current index.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output statistics as JSON")

	return cmd
}

func runStats(cmd *cobra.Command, jsonOutput bool) error {
	root, cfg, err := projectConfig()
	if err != nil {
		return err
	}

	arts, err := index.Load(cmd.Context(), cfg, root, nil)
	if err != nil {
		return err
	}
	defer arts.Close()

	stats := collectStats(cfg.IndexDir(root), arts)

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	out := output.New(cmd.OutOrStdout())
	out.Info("store: %s", stats.Store)
	out.Info("files: %d, chunks: %d", stats.Files, stats.Chunks)
	out.Info("bm25: %d terms, avg doc length %.1f", stats.BM25.TermCount, stats.BM25.AvgDocLength)
	for _, lang := range sortedKeys(stats.Languages) {
		out.Info("  %-12s %d chunks", lang, stats.Languages[lang])
	}
	for _, prov := range sortedKeys(stats.Provenance) {
		out.Info("  %-16s %d chunks", prov, stats.Provenance[prov])
	}
	return nil
}

func collectStats(indexDir string, arts *index.Artifacts) indexStatsJSON {
	stats := indexStatsJSON{
		Store:      index.StorePath(indexDir),
		Chunks:     len(arts.Chunks),
		Languages:  make(map[string]int),
		Provenance: make(map[string]int),
		BM25:       arts.Index.Stats(),
	}
	files := make(map[string]struct{})
	for _, c := range arts.Chunks {
		files[c.FilePath] = struct{}{}
		stats.Languages[c.Language]++
		stats.Provenance[string(c.Provenance)]++
	}
	stats.Files = len(files)
	return stats
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
