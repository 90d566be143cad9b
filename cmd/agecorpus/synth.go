package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/example/agecorpus/internal/synth"
	"github.com/spf13/cobra"
)

func newSynthCmd() *cobra.Command {
	var (
		in       string
		outDir   string
		controls = synth.NeutralControls
	)

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Run the age-conditioned acoustic model on a phoneme batch",
		Long: "Reads a TSV batch (id, speaker index, age category, space-separated phoneme ids)\n" +
			"and writes one mel-spectrogram per utterance as <out-dir>/<id>.npy.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if cfg.Runtime.ModelPath == "" {
				return fmt.Errorf("--runtime-model-path is required")
			}

			f, err := os.Open(in)
			if err != nil {
				return err
			}

			batch, err := synth.ReadBatch(f)
			_ = f.Close()

			if err != nil {
				return fmt.Errorf("%s: %w", in, err)
			}

			info, err := synth.DetectRuntime(cfg.Runtime.ORTLibraryPath)
			if err != nil {
				return err
			}

			s, err := synth.NewONNXSynthesizer(synth.ModelConfig{
				LibraryPath: info.LibraryPath,
				APIVersion:  cfg.Runtime.ORTAPIVersion,
				ModelPath:   cfg.Runtime.ModelPath,
			})
			if err != nil {
				return err
			}
			defer s.Close()

			out, err := s.Synthesize(cmd.Context(), batch, controls)
			if err != nil {
				return err
			}

			if err := os.MkdirAll(outDir, 0o750); err != nil {
				return err
			}

			for i, id := range batch.IDs {
				data, shape, err := out.Utterance(i)
				if err != nil {
					return err
				}

				if err := synth.WriteNPYFile(filepath.Join(outDir, id+".npy"), data, shape); err != nil {
					return err
				}
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %d mel-spectrograms to %s\n", batch.Len(), outDir)

			return nil
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "Batch TSV")
	cmd.Flags().StringVar(&outDir, "out-dir", "mels", "Directory for <id>.npy outputs")
	cmd.Flags().Float32Var(&controls.Pitch, "pitch", 1, "Pitch control factor")
	cmd.Flags().Float32Var(&controls.Energy, "energy", 1, "Energy control factor")
	cmd.Flags().Float32Var(&controls.Duration, "duration", 1, "Duration control factor (>1 is slower)")
	_ = cmd.MarkFlagRequired("in")

	return cmd
}
