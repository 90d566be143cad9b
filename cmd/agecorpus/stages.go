package main

import (
	"fmt"

	"github.com/example/agecorpus/internal/audio"
	"github.com/example/agecorpus/internal/balance"
	"github.com/example/agecorpus/internal/duration"
	"github.com/example/agecorpus/internal/pipeline"
	"github.com/example/agecorpus/internal/reconcile"
	"github.com/example/agecorpus/internal/speaker"
	"github.com/example/agecorpus/internal/taxonomy"
	"github.com/spf13/cobra"
)

func newNormalizeCmd() *cobra.Command {
	var in, out, mapPath string

	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Assign canonical speaker ids and write the speaker map",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			m, err := readManifest(cmd, in)
			if err != nil {
				return err
			}

			norm, idMap, err := speaker.Normalize(m, pipeline.NormalizeOptions(cfg))
			if err != nil {
				return err
			}

			if mapPath == "" {
				mapPath = pipeline.SpeakerMapPath(cfg.Paths.WorkDir, cfg.Corpus.Name)
			}

			if err := idMap.WriteFile(mapPath); err != nil {
				return err
			}

			infof(cmd, "speakers: %d (map %s)", idMap.Len(), mapPath)

			return writeManifest(cmd, out, norm)
		},
	}

	addIOFlags(cmd, &in, &out)
	cmd.Flags().StringVar(&mapPath, "map", "", "Speaker map output (default {work_dir}/{corpus}_speakers.tsv)")

	return cmd
}

func newMapCmd() *cobra.Command {
	var in, out string

	cmd := &cobra.Command{
		Use:   "map",
		Short: "Collapse age and gender labels into the controlled taxonomy",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			m, err := readManifest(cmd, in)
			if err != nil {
				return err
			}

			opts, err := pipeline.MapOptions(cfg)
			if err != nil {
				return err
			}

			mapped, report := taxonomy.Map(m, opts)

			infof(cmd, "kept %d of %d rows", report.Kept, report.Input)
			for _, rc := range report.Reasons() {
				infof(cmd, "  dropped %-15s %d", rc.Reason, rc.Count)
			}

			return writeManifest(cmd, out, mapped)
		},
	}

	addIOFlags(cmd, &in, &out)

	return cmd
}

func newDurationsCmd() *cobra.Command {
	var in, out string

	cmd := &cobra.Command{
		Use:   "durations",
		Short: "Attach clip durations from a side table or by probing the audio tree",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			m, err := readManifest(cmd, in)
			if err != nil {
				return err
			}

			resolved, report, err := duration.Resolve(cmd.Context(), m, duration.Sources{
				SideTable: cfg.Paths.DurationTable,
				AudioRoot: cfg.Paths.AudioRoot,
				SourceDir: cfg.Paths.SourceDir,
				Prober:    audio.WAVProber{},
				Workers:   cfg.Duration.Workers,
			})
			if err != nil {
				return err
			}

			infof(cmd, "source: %s, resolved %d, unresolved %d, total %.1fs",
				report.Source, report.Resolved, report.Unresolved, report.TotalSeconds)

			return writeManifest(cmd, out, resolved)
		},
	}

	addIOFlags(cmd, &in, &out)

	return cmd
}

func newBalanceCmd() *cobra.Command {
	var in, out string

	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Select a subset balanced across (age, gender) groups",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			m, err := readManifest(cmd, in)
			if err != nil {
				return err
			}

			strategy, err := balance.New(cfg.Balance.Strategy, pipeline.BalanceOptions(cfg))
			if err != nil {
				return err
			}

			selected, report := strategy.Select(m)

			infof(cmd, "strategy %s, budget %.3f, skipped %d", report.Strategy, report.Budget, report.Skipped)
			for _, g := range report.Groups {
				infof(cmd, "  %-16s rows %d/%d  seconds %.1f/%.1f",
					g.Group, g.SelectedRows, g.Rows, g.SelectedSeconds, g.TotalSeconds)
			}

			return writeManifest(cmd, out, selected)
		},
	}

	addIOFlags(cmd, &in, &out)

	return cmd
}

func newReconcileCmd() *cobra.Command {
	var in string

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Bring the audio tree into agreement with a manifest",
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

			rep, err := reconcile.Run(m, cfg.Paths.AudioRoot, pipeline.ReconcileOptions(cfg))
			if err != nil {
				return err
			}

			missing, deleted, err := reconcile.WriteReports(cfg.Paths.ReportDir, cfg.Corpus.Name, rep)
			if err != nil {
				return err
			}

			verb := "deleted"
			if rep.DryRun {
				verb = "would delete"
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %d (%d files, %d folders), missing %d\n",
				verb, rep.DeletedCount(), rep.DeletedFiles, rep.DeletedFolders, rep.MissingCount())
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "reports: %s %s\n", missing, deleted)

			return nil
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "Final manifest TSV")
	_ = cmd.MarkFlagRequired("in")

	return cmd
}
