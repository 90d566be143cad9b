package main

import (
	"fmt"

	"github.com/example/agecorpus/internal/metrics"
	"github.com/example/agecorpus/internal/pipeline"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var (
		in          string
		resume      bool
		materialize bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every stage with checkpoints, then reconcile the audio tree",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			opts := pipeline.Options{
				Input:       in,
				Resume:      resume,
				Materialize: materialize,
			}
			if cfg.Metrics.Textfile != "" {
				opts.Metrics = metrics.New()
			}

			res, err := pipeline.Run(cmd.Context(), cfg, opts)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d rows, summary %s\n",
				res.Summary.RunID, res.Manifest.Len(), res.SummaryPath)

			return nil
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "Raw source manifest TSV")
	cmd.Flags().BoolVar(&resume, "resume", false, "Continue after the latest checkpoint in work_dir")
	cmd.Flags().BoolVar(&materialize, "materialize", false, "Copy audio from source_dir into audio_root and write sidecars")

	return cmd
}
