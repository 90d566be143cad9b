package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/example/agecorpus/internal/audio"
	"github.com/example/agecorpus/internal/balance"
	"github.com/example/agecorpus/internal/config"
	"github.com/example/agecorpus/internal/corpus"
	"github.com/example/agecorpus/internal/duration"
	"github.com/example/agecorpus/internal/manifest"
	"github.com/example/agecorpus/internal/metrics"
	"github.com/example/agecorpus/internal/reconcile"
	"github.com/example/agecorpus/internal/speaker"
	"github.com/example/agecorpus/internal/taxonomy"
	"github.com/google/uuid"
)

// ErrNoInput is returned when there is neither an input manifest nor a
// checkpoint to resume from.
var ErrNoInput = errors.New("no input manifest and no checkpoint to resume from")

// Options configures one Run.
type Options struct {
	// Input is the raw source manifest. Ignored when resuming past the
	// first stage.
	Input string
	// Resume restarts after the latest existing checkpoint.
	Resume bool
	// Materialize copies the balanced subset from paths.source_dir into
	// paths.audio_root and writes .lab/.age sidecars before reconciling.
	Materialize bool
	// Prober defaults to audio.WAVProber.
	Prober audio.Prober
	// Metrics is optional.
	Metrics *metrics.Recorder
}

// Result is the outcome of a successful Run.
type Result struct {
	Manifest    manifest.Manifest
	SpeakerMap  *speaker.Map
	Summary     Summary
	SummaryPath string
}

type runner struct {
	cfg     config.Config
	opts    Options
	summary *Summary
	idMap   *speaker.Map
}

// Run executes the stages in Order(), writing a
// checkpoint after each, then optionally materialises and reconciles the
// audio tree. A fatal error stops the run before the failing stage's
// checkpoint is written.
func Run(ctx context.Context, cfg config.Config, opts Options) (Result, error) {
	if opts.Prober == nil {
		opts.Prober = audio.WAVProber{}
	}

	corpusName := cfg.Corpus.Name
	workDir := cfg.Paths.WorkDir

	if err := os.MkdirAll(workDir, 0o750); err != nil {
		return Result{}, fmt.Errorf("create work dir: %w", err)
	}

	summary := Summary{
		RunID:     uuid.NewString(),
		Corpus:    corpusName,
		StartedAt: time.Now().UTC(),
	}
	r := &runner{cfg: cfg, opts: opts, summary: &summary}

	order := Order()

	m, start, err := r.load(order)
	if err != nil {
		return Result{}, err
	}

	slog.Info("run started", "run_id", summary.RunID, "corpus", corpusName, "rows", m.Len(), "resumed_from", summary.ResumedFrom)

	for _, stage := range order[start:] {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		began := time.Now()
		rowsIn := m.Len()

		out, err := r.runStage(ctx, stage, m)
		if err != nil {
			return Result{}, fmt.Errorf("stage %s: %w", stage, err)
		}

		path := CheckpointPath(workDir, corpusName, stage)
		if err := manifest.WriteFile(path, out); err != nil {
			return Result{}, fmt.Errorf("checkpoint %s: %w", stage, err)
		}

		elapsed := time.Since(began).Seconds()
		summary.Stages = append(summary.Stages, StageSummary{
			Stage:      stage,
			RowsIn:     rowsIn,
			RowsOut:    out.Len(),
			Seconds:    elapsed,
			Checkpoint: path,
		})
		opts.Metrics.Stage(string(stage), rowsIn, out.Len(), elapsed)
		slog.Info("stage complete", "stage", stage, "rows_in", rowsIn, "rows_out", out.Len(), "seconds", elapsed)

		m = out
	}

	if opts.Materialize {
		if err := r.materialize(ctx, m); err != nil {
			return Result{}, err
		}
	}

	if cfg.Paths.AudioRoot != "" {
		if err := r.reconcile(m); err != nil {
			return Result{}, err
		}
	} else {
		slog.Warn("no audio root configured, reconciliation skipped")
	}

	summary.FinishedAt = time.Now().UTC()

	summaryPath := SummaryPath(cfg.Paths.ReportDir, corpusName)
	if err := WriteSummary(summaryPath, summary); err != nil {
		return Result{}, err
	}

	if err := opts.Metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
		return Result{}, err
	}

	slog.Info("run complete", "run_id", summary.RunID, "rows", m.Len(), "summary", summaryPath)

	return Result{Manifest: m, SpeakerMap: r.idMap, Summary: summary, SummaryPath: summaryPath}, nil
}

// load returns the manifest to start from and the index of the first stage
// still to run.
func (r *runner) load(order []Stage) (manifest.Manifest, int, error) {
	workDir, corpusName := r.cfg.Paths.WorkDir, r.cfg.Corpus.Name

	if r.opts.Resume {
		stage, ok, err := LatestCheckpoint(workDir, corpusName, order)
		if err != nil {
			return manifest.Manifest{}, 0, err
		}

		if ok {
			m, err := manifest.ReadFile(CheckpointPath(workDir, corpusName, stage))
			if err != nil {
				return manifest.Manifest{}, 0, fmt.Errorf("read checkpoint %s: %w", stage, err)
			}

			idx := slices.Index(order, stage)
			if idx >= slices.Index(order, StageNormalize) {
				idMap, err := speaker.ReadMapFile(SpeakerMapPath(workDir, corpusName))
				if err != nil && !errors.Is(err, os.ErrNotExist) {
					return manifest.Manifest{}, 0, err
				}

				r.idMap = idMap
			}

			r.summary.ResumedFrom = string(stage)

			return m, idx + 1, nil
		}
	}

	if r.opts.Input == "" {
		return manifest.Manifest{}, 0, ErrNoInput
	}

	m, err := manifest.ReadFile(r.opts.Input)
	if err != nil {
		return manifest.Manifest{}, 0, err
	}

	return m, 0, nil
}

func (r *runner) runStage(ctx context.Context, stage Stage, m manifest.Manifest) (manifest.Manifest, error) {
	switch stage {
	case StageNormalize:
		return r.normalize(m)
	case StageMap:
		return r.mapTaxonomy(m)
	case StageDurations:
		return r.durations(ctx, m)
	case StageBalance:
		return r.balance(m)
	default:
		return manifest.Manifest{}, fmt.Errorf("unknown stage %q", stage)
	}
}

func (r *runner) normalize(m manifest.Manifest) (manifest.Manifest, error) {
	out, idMap, err := speaker.Normalize(m, NormalizeOptions(r.cfg))
	if err != nil {
		return manifest.Manifest{}, err
	}

	if err := idMap.WriteFile(SpeakerMapPath(r.cfg.Paths.WorkDir, r.cfg.Corpus.Name)); err != nil {
		return manifest.Manifest{}, err
	}

	r.idMap = idMap
	r.summary.Speakers = idMap.Len()

	return out, nil
}

func (r *runner) mapTaxonomy(m manifest.Manifest) (manifest.Manifest, error) {
	opts, err := MapOptions(r.cfg)
	if err != nil {
		return manifest.Manifest{}, err
	}

	out, report := taxonomy.Map(m, opts)

	for _, rc := range report.Reasons() {
		r.opts.Metrics.Event(string(StageMap), string(rc.Reason), rc.Count)
	}

	if report.Total() > 0 {
		slog.Info("rows dropped by taxonomy", "dropped", report.Total(), "kept", report.Kept)
	}

	r.summary.Drops = dropsSummary(report)

	return out, nil
}

func (r *runner) durations(ctx context.Context, m manifest.Manifest) (manifest.Manifest, error) {
	out, report, err := duration.Resolve(ctx, m, duration.Sources{
		SideTable: r.cfg.Paths.DurationTable,
		AudioRoot: r.cfg.Paths.AudioRoot,
		SourceDir: r.cfg.Paths.SourceDir,
		Prober:    r.opts.Prober,
		Workers:   r.cfg.Duration.Workers,
	})
	if err != nil {
		return manifest.Manifest{}, err
	}

	if report.Unresolved > 0 {
		slog.Warn("durations unresolved", "count", report.Unresolved, "source", report.Source)
	}
	if report.ProbeFailures > 0 {
		slog.Warn("audio probe failures", "count", report.ProbeFailures)
	}

	r.opts.Metrics.Event(string(StageDurations), "unresolved", report.Unresolved)
	r.opts.Metrics.Event(string(StageDurations), "probe_failure", report.ProbeFailures)

	r.summary.Durations = &DurationSummary{
		Source:        string(report.Source),
		Resolved:      report.Resolved,
		Unresolved:    report.Unresolved,
		ProbeFailures: report.ProbeFailures,
		TotalSeconds:  report.TotalSeconds,
	}

	return out, nil
}

func (r *runner) balance(m manifest.Manifest) (manifest.Manifest, error) {
	strategy, err := balance.New(r.cfg.Balance.Strategy, BalanceOptions(r.cfg))
	if err != nil {
		return manifest.Manifest{}, err
	}

	out, report := strategy.Select(m)

	for _, g := range report.Groups {
		r.opts.Metrics.GroupSeconds(g.Age, g.Gender, g.SelectedSeconds)
	}

	r.opts.Metrics.Event(string(StageBalance), "skipped", report.Skipped)

	if report.Skipped > 0 {
		slog.Warn("rows without duration left out of balancing", "count", report.Skipped)
	}

	r.summary.Balance = balanceSummary(report)

	return out, nil
}

func (r *runner) materialize(ctx context.Context, m manifest.Manifest) error {
	src, root := r.cfg.Paths.SourceDir, r.cfg.Paths.AudioRoot
	if src == "" || root == "" {
		return errors.New("materialize needs paths.source_dir and paths.audio_root")
	}

	rep, err := corpus.Materialize(ctx, m, src, root)
	if err != nil {
		return fmt.Errorf("materialize: %w", err)
	}

	if rep.Missing.Len() > 0 {
		slog.Warn("source audio not found", "count", rep.Missing.Len())
	}

	side, err := corpus.WriteSidecars(m, root)
	if err != nil {
		return fmt.Errorf("sidecars: %w", err)
	}

	r.opts.Metrics.Event("materialize", "missing_source", rep.Missing.Len())
	slog.Info("materialized", "copied", rep.Copied, "existing", rep.Existing, "sidecars", side.Written)

	r.summary.Materialize = &MaterializeSummary{
		Copied:   rep.Copied,
		Existing: rep.Existing,
		Missing:  rep.Missing.Len(),
		Sidecars: side.Written,
	}

	return nil
}

func (r *runner) reconcile(m manifest.Manifest) error {
	rep, err := reconcile.Run(m, r.cfg.Paths.AudioRoot, ReconcileOptions(r.cfg))
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

	missingPath, deletedPath, err := reconcile.WriteReports(r.cfg.Paths.ReportDir, r.cfg.Corpus.Name, rep)
	if err != nil {
		return err
	}

	r.opts.Metrics.Deletions(rep.DeletedFiles, rep.DeletedFolders)
	r.opts.Metrics.Event("reconcile", "missing", rep.MissingCount())

	if rep.MissingCount() > 0 {
		slog.Warn("manifest rows with no audio on disk", "count", rep.MissingCount(), "report", missingPath)
	}

	slog.Info("reconciled", "deleted", rep.DeletedCount(), "missing", rep.MissingCount(), "dry_run", rep.DryRun)

	r.summary.Reconcile = &ReconcileSummary{
		DryRun:         rep.DryRun,
		DeletedFiles:   rep.DeletedFiles,
		DeletedFolders: rep.DeletedFolders,
		Missing:        rep.MissingCount(),
		Kept:           rep.Kept,
		MissingReport:  missingPath,
		DeletedReport:  deletedPath,
	}

	return nil
}
