// Package cmd provides the CLI commands for PatchRAG.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/patchrag/patchrag/internal/config"
	apperrors "github.com/patchrag/patchrag/internal/errors"
	"github.com/patchrag/patchrag/internal/logging"
	"github.com/patchrag/patchrag/internal/profiling"
	"github.com/patchrag/patchrag/pkg/version"
)

var (
	flagLogLevel  string
	flagLogFormat string
	flagLogFile   string

	flagProfileCPU string
	flagProfileMem string

	profiler       = profiling.NewProfiler()
	cpuCleanup     func()
	loggingCleanup func()
)

// NewRootCmd creates the root command for the patchrag CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patchrag",
		Short: "Code retrieval engine for automated patching workflows",
		Long: `PatchRAG selects the source fragments most relevant to a
natural-language modification request. It chunks a codebase along
declaration boundaries, indexes the chunks with BM25, fuses multiple
retrieval strategies, and scores retrieval quality against gold labels.

Run 'patchrag index' in a project, then 'patchrag search "your request"'.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("patchrag version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "Minimum log level: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format: text, json")
	cmd.PersistentFlags().StringVar(&flagLogFile, "log-file", "", "Log to this file instead of stderr")
	cmd.PersistentFlags().StringVar(&flagProfileCPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&flagProfileMem, "profile-mem", "", "Write memory profile to file")

	cmd.PersistentPreRunE = startRun
	cmd.PersistentPostRunE = stopRun

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newEvalCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	err := NewRootCmd().Execute()
	if code := apperrors.GetCode(err); code != "" {
		slog.Error("command_failed",
			slog.String("code", code),
			slog.String("category", string(apperrors.GetCategory(err))))
	}
	return err
}

// startRun sets up logging and, when requested, CPU profiling before
// any subcommand runs.
func startRun(_ *cobra.Command, _ []string) error {
	cfg := logging.DefaultConfig()
	cfg.Level = flagLogLevel
	cfg.Format = flagLogFormat
	if flagLogFile != "" {
		cfg.FilePath = flagLogFile
		cfg.WriteToStderr = false
	}

	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		return err
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)

	if flagProfileCPU != "" {
		cpuCleanup, err = profiler.StartCPU(flagProfileCPU)
		if err != nil {
			return err
		}
	}
	return nil
}

// stopRun flushes profiles and logs after the subcommand finishes.
func stopRun(_ *cobra.Command, _ []string) error {
	if cpuCleanup != nil {
		cpuCleanup()
		cpuCleanup = nil
	}
	if flagProfileMem != "" {
		if err := profiler.WriteHeap(flagProfileMem); err != nil {
			return err
		}
	}
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// projectConfig resolves the project root and its effective
// configuration. Commands run from anywhere inside the project.
func projectConfig() (string, *config.Config, error) {
	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, err = os.Getwd()
		if err != nil {
			return "", nil, err
		}
	}
	cfg, err := config.Load(root)
	if err != nil {
		return "", nil, err
	}
	return root, cfg, nil
}
