package cmd

import (
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/patchrag/patchrag/internal/config"
	"github.com/patchrag/patchrag/internal/index"
	"github.com/patchrag/patchrag/internal/output"
	"github.com/patchrag/patchrag/internal/ui"
)

// timeRounding keeps reported durations readable.
const timeRounding = time.Millisecond

func newIndexCmd() *cobra.Command {
	var chunkStrategy string

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Build the retrieval index",
		Long: `Scan the project, chunk its source files, and persist the chunk
store. Unchanged files keep their stored chunks; a second build over an
unmodified tree re-parses nothing.

Examples:
  patchrag index
  patchrag index /path/to/project
  patchrag index --chunk-strategy fixed`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd, args, chunkStrategy)
		},
	}

	cmd.Flags().StringVar(&chunkStrategy, "chunk-strategy", "", "Override chunk strategy: fixed, ast, hybrid")

	return cmd
}

func runIndex(cmd *cobra.Command, args []string, chunkStrategy string) error {
	root, cfg, err := resolveIndexTarget(args)
	if err != nil {
		return err
	}
	if chunkStrategy != "" {
		cfg.Chunking.Strategy = chunkStrategy
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	builder, err := index.NewBuilder(cfg, nil)
	if err != nil {
		return err
	}
	defer builder.Close()
	builder.Progress = ui.ProgressFunc(cmd.ErrOrStderr(), "Indexing")

	result, err := builder.Build(cmd.Context(), root)
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	out.Success("indexed %d files into %d chunks in %s", result.Files, result.Chunks, result.Duration.Round(timeRounding))
	if result.Reused > 0 {
		out.Info("%d unchanged files reused stored chunks", result.Reused)
	}
	if result.Warnings > 0 {
		out.Warning("%d files skipped (see logs)", result.Warnings)
	}
	out.Info("store: %s", index.StorePath(cfg.IndexDir(root)))
	return nil
}

// resolveIndexTarget picks the build root: an explicit argument wins,
// otherwise the enclosing project root.
func resolveIndexTarget(args []string) (string, *config.Config, error) {
	if len(args) == 0 {
		return projectConfig()
	}
	root, err := filepath.Abs(args[0])
	if err != nil {
		return "", nil, err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return "", nil, err
	}
	return root, cfg, nil
}
