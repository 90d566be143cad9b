package main

import (
	"errors"
	"fmt"

	"github.com/example/agecorpus/internal/doctor"
	"github.com/example/agecorpus/internal/synth"
	"github.com/spf13/cobra"
)

func newDoctorCmd() *cobra.Command {
	var (
		in           string
		checkRuntime bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run local input, path and runtime checks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			dcfg := doctor.Config{
				ManifestPath:  in,
				AudioRoot:     cfg.Paths.AudioRoot,
				DurationTable: cfg.Paths.DurationTable,
				SourceDir:     cfg.Paths.SourceDir,
				ReportDir:     cfg.Paths.ReportDir,
				ModelPath:     cfg.Runtime.ModelPath,
			}

			if checkRuntime || cfg.Runtime.ModelPath != "" {
				dcfg.Runtime = func() (string, error) {
					info, err := synth.DetectRuntime(cfg.Runtime.ORTLibraryPath)
					if err != nil {
						return "", err
					}

					return fmt.Sprintf("%s (version %s)", info.LibraryPath, info.Version), nil
				}
			}

			out := cmd.OutOrStdout()
			result := doctor.Run(dcfg, out)

			if result.Failed() {
				for _, f := range result.Failures() {
					// #nosec G705 -- Writes plain diagnostic text to stderr for CLI output, not HTML rendering.
					fmt.Fprintf(cmd.ErrOrStderr(), "FAIL: %s\n", f)
				}

				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(out, "doctor checks passed")

			return nil
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "Manifest TSV to check")
	cmd.Flags().BoolVar(&checkRuntime, "check-runtime", false, "Also require the ONNX Runtime library")

	return cmd
}
