package main

import (
	"bufio"
	"fmt"

	"github.com/example/agecorpus/internal/audio"
	"github.com/example/agecorpus/internal/corpus"
	"github.com/example/agecorpus/internal/manifest"
	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	var in, by string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Count utterances, speakers and seconds per group",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := readManifest(cmd, in)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "%-20s %10s %9s %12s\n", by, "utterances", "speakers", "seconds")

			for _, g := range manifest.GroupStats(m, by) {
				_, _ = fmt.Fprintf(w, "%-20s %10d %9d %12.1f\n", g.Key, g.Utterances, g.Speakers, g.Seconds)
			}

			_, _ = fmt.Fprintf(w, "%-20s %10d %9d %12.1f\n", "total", m.Len(), manifest.SpeakerCount(m), m.TotalSeconds())

			return nil
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "Manifest TSV ('-' for stdin)")
	cmd.Flags().StringVar(&by, "by", manifest.ColAge, "Grouping column (age_category|gender|speaker_id|...)")
	_ = cmd.MarkFlagRequired("in")

	return cmd
}

func newFilelistCmd() *cobra.Command {
	var in, out string

	cmd := &cobra.Command{
		Use:   "filelist",
		Short: "Write the audio_path of every row, one per line",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := readManifest(cmd, in)
			if err != nil {
				return err
			}

			dst, closeFn, err := openOutput(cmd, out)
			if err != nil {
				return err
			}

			bw := bufio.NewWriter(dst)
			for _, p := range manifest.AudioPaths(m) {
				_, _ = bw.WriteString(p)
				_ = bw.WriteByte('\n')
			}

			if err := bw.Flush(); err != nil {
				_ = closeFn()
				return err
			}

			return closeFn()
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "Manifest TSV ('-' for stdin)")
	cmd.Flags().StringVar(&out, "out", stdio, "Output file ('-' for stdout)")
	_ = cmd.MarkFlagRequired("in")

	return cmd
}

func newMergeCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "merge [manifest...]",
		Short: "Concatenate manifests from several corpora",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parts := make([]manifest.Manifest, 0, len(args))
			for _, p := range args {
				m, err := manifest.ReadFile(p)
				if err != nil {
					return err
				}

				parts = append(parts, m)
			}

			merged, err := manifest.Concat(parts...)
			if err != nil {
				return err
			}

			infof(cmd, "merged %d manifests, %d rows", len(parts), merged.Len())

			return writeManifest(cmd, out, merged)
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "Output manifest TSV ('-' for stdout)")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func newMaterializeCmd() *cobra.Command {
	var in string

	cmd := &cobra.Command{
		Use:   "materialize",
		Short: "Copy flat source audio into per-speaker folders",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if cfg.Paths.SourceDir == "" || cfg.Paths.AudioRoot == "" {
				return fmt.Errorf("--paths-source-dir and --paths-audio-root are required")
			}

			m, err := readManifest(cmd, in)
			if err != nil {
				return err
			}

			rep, err := corpus.Materialize(cmd.Context(), m, cfg.Paths.SourceDir, cfg.Paths.AudioRoot)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "copied %d, already present %d, missing source %d\n",
				rep.Copied, rep.Existing, rep.Missing.Len())

			return nil
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "Manifest TSV ('-' for stdin)")
	_ = cmd.MarkFlagRequired("in")

	return cmd
}

func newSidecarsCmd() *cobra.Command {
	var in string

	cmd := &cobra.Command{
		Use:   "sidecars",
		Short: "Write .lab transcript and .age label files next to each clip",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if cfg.Paths.AudioRoot == "" {
				return fmt.Errorf("--paths-audio-root is required")
			}

			m, err := readManifest(cmd, in)
			if err != nil {
				return err
			}

			rep, err := corpus.WriteSidecars(m, cfg.Paths.AudioRoot)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "written %d, rows without speaker folder %d\n", rep.Written, rep.NoFolder)

			return nil
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "Manifest TSV ('-' for stdin)")
	_ = cmd.MarkFlagRequired("in")

	return cmd
}

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Check every WAV in the audio tree against the expected format",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if cfg.Paths.AudioRoot == "" {
				return fmt.Errorf("--paths-audio-root is required")
			}

			want := audio.Format{
				SampleRate: cfg.Audio.SampleRate,
				Channels:   cfg.Audio.Channels,
				BitDepth:   cfg.Audio.BitDepth,
			}

			rep, err := corpus.Audit(cfg.Paths.AudioRoot, want)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, issue := range rep.Issues {
				_, _ = fmt.Fprintf(w, "%s: %v\n", issue.Path, issue.Err)
			}

			_, _ = fmt.Fprintf(w, "checked %d, non-conforming %d\n", rep.Checked, len(rep.Issues))

			if !rep.OK() {
				return fmt.Errorf("audit found %d non-conforming files", len(rep.Issues))
			}

			return nil
		},
	}

	return cmd
}
