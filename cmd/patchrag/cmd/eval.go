package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	apperrors "github.com/patchrag/patchrag/internal/errors"
	"github.com/patchrag/patchrag/internal/eval"
	"github.com/patchrag/patchrag/internal/index"
	"github.com/patchrag/patchrag/internal/metrics"
	"github.com/patchrag/patchrag/internal/output"
)

// evalOptions holds the CLI flags for eval.
type evalOptions struct {
	k      int
	byFile bool
	format string
}

func newEvalCmd() *cobra.Command {
	var opts evalOptions

	cmd := &cobra.Command{
		Use:   "eval <tasks.yaml>",
		Short: "Score retrieval quality against gold labels",
		Long: `Run every task query in a gold-label file through the retrieval
engine and report precision, recall, MRR, NDCG, and hit rate per task
plus the equal-weight aggregate.

The task file maps task IDs to a query and its relevant identifiers:

  tasks:
    pause-feature:
      query: "pause the game when escape is pressed"
      relevant:
        - game/input.py          # grade 1
        - id: game/overlay.py    # graded entry
          grade: 2

Examples:
  patchrag eval tasks.yaml
  patchrag eval tasks.yaml --k 10 --by-file
  patchrag eval tasks.yaml --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(cmd, args[0], opts)
		},
	}

	cmd.Flags().IntVar(&opts.k, "k", 0, "Rank cutoff for the @k metrics (default from config top_k)")
	cmd.Flags().BoolVar(&opts.byFile, "by-file", false, "Score at file granularity (for file-labeled task sets)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runEval(cmd *cobra.Command, tasksPath string, opts evalOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return apperrors.New(apperrors.ErrCodeInvalidInput,
			"unknown output format "+opts.format, nil).
			WithSuggestion("Use --format text or --format json")
	}

	labels, err := metrics.LoadGoldLabels(tasksPath)
	if err != nil {
		return err
	}

	root, cfg, err := projectConfig()
	if err != nil {
		return err
	}
	k := opts.k
	if k <= 0 {
		k = cfg.Retrieval.TopK
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

	runner, err := eval.NewRunner(engine, labels, nil)
	if err != nil {
		return err
	}
	report, err := runner.Run(cmd.Context(), eval.Options{K: k, ByFile: opts.byFile})
	if err != nil {
		return err
	}

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	output.New(cmd.OutOrStdout()).MetricsReport(report)
	return nil
}
