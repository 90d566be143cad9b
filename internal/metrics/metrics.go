// Package metrics exports pipeline stage metrics in the Prometheus text
// format for node_exporter's textfile collector.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder holds the metrics of one run on a private registry. A nil
// *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	// stageRows records rows entering and leaving each stage.
	// Labels:
	//   - stage: pipeline stage (e.g. "map", "balance")
	//   - direction: "in" or "out"
	stageRows *prometheus.GaugeVec

	// stageSeconds records wall-clock time per stage.
	stageSeconds *prometheus.GaugeVec

	// events counts non-fatal outcomes.
	// Labels:
	//   - stage: pipeline stage
	//   - kind: e.g. "dropped_empty_age", "unresolved_duration", "missing_file"
	events *prometheus.CounterVec

	// groupSeconds is the selected duration per (age, gender) group.
	groupSeconds *prometheus.GaugeVec

	// deletions counts reconciler deletions by kind (file or folder).
	deletions *prometheus.CounterVec
}

// New returns a Recorder with all collectors registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		stageRows: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "agecorpus_stage_rows",
				Help: "Manifest rows entering and leaving each pipeline stage",
			},
			[]string{"stage", "direction"},
		),
		stageSeconds: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "agecorpus_stage_duration_seconds",
				Help: "Wall-clock duration of each pipeline stage in seconds",
			},
			[]string{"stage"},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agecorpus_stage_events_total",
				Help: "Non-fatal stage outcomes such as dropped rows and missing files",
			},
			[]string{"stage", "kind"},
		),
		groupSeconds: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "agecorpus_group_selected_seconds",
				Help: "Selected audio duration per age and gender group",
			},
			[]string{"age", "gender"},
		),
		deletions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agecorpus_reconcile_deletions_total",
				Help: "Files and folders removed by the reconciler",
			},
			[]string{"kind"},
		),
	}

	r.registry.MustRegister(r.stageRows, r.stageSeconds, r.events, r.groupSeconds, r.deletions)

	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}

	return r.registry
}

// Stage records the row counts and elapsed seconds of one stage.
func (r *Recorder) Stage(stage string, rowsIn, rowsOut int, seconds float64) {
	if r == nil {
		return
	}

	r.stageRows.WithLabelValues(stage, "in").Set(float64(rowsIn))
	r.stageRows.WithLabelValues(stage, "out").Set(float64(rowsOut))
	r.stageSeconds.WithLabelValues(stage).Set(seconds)
}

// Event adds n to the counter of a non-fatal outcome.
func (r *Recorder) Event(stage, kind string, n int) {
	if r == nil || n <= 0 {
		return
	}

	r.events.WithLabelValues(stage, kind).Add(float64(n))
}

// GroupSeconds records the selected duration of one group.
func (r *Recorder) GroupSeconds(age, gender string, seconds float64) {
	if r == nil {
		return
	}

	r.groupSeconds.WithLabelValues(age, gender).Set(seconds)
}

// Deletions records reconciler deletions.
func (r *Recorder) Deletions(files, folders int) {
	if r == nil {
		return
	}

	r.deletions.WithLabelValues("file").Add(float64(files))
	r.deletions.WithLabelValues("folder").Add(float64(folders))
}

// WriteTextfile writes the registry to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}

	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}

	return nil
}
