package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/patchrag/patchrag/internal/output"
	"github.com/patchrag/patchrag/internal/preflight"
)

func newDoctorCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the project's retrieval setup",
		Long: `Run environment checks: configuration validity, index presence,
and embedding backend availability. Exits non-zero when a required
check fails.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output check results as JSON")

	return cmd
}

func runDoctor(cmd *cobra.Command, jsonOutput bool) error {
	root, cfg, err := projectConfig()
	if err != nil {
		return err
	}

	results := preflight.Run(cmd.Context(), cfg, root)

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}
	} else {
		out := output.New(cmd.OutOrStdout())
		for _, r := range results {
			switch r.Status {
			case preflight.StatusPass:
				out.Success("%-10s %s", r.Name, r.Message)
			case preflight.StatusWarn:
				out.Warning("%-10s %s", r.Name, r.Message)
			default:
				out.Info("✗ %-8s %s", r.Name, r.Message)
			}
		}
	}

	if preflight.Failed(results) {
		return fmt.Errorf("required checks failed")
	}
	return nil
}
