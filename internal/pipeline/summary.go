package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/example/agecorpus/internal/balance"
	"github.com/example/agecorpus/internal/taxonomy"
	"gopkg.in/yaml.v3"
)

// Summary is the persisted record of one run.
type Summary struct {
	RunID       string         `yaml:"run_id"`
	Corpus      string         `yaml:"corpus"`
	StartedAt   time.Time      `yaml:"started_at"`
	FinishedAt  time.Time      `yaml:"finished_at"`
	ResumedFrom string         `yaml:"resumed_from,omitempty"`
	Stages      []StageSummary `yaml:"stages"`

	Drops       map[string]int      `yaml:"drops,omitempty"`
	Speakers    int                 `yaml:"speakers,omitempty"`
	Durations   *DurationSummary    `yaml:"durations,omitempty"`
	Balance     *BalanceSummary     `yaml:"balance,omitempty"`
	Materialize *MaterializeSummary `yaml:"materialize,omitempty"`
	Reconcile   *ReconcileSummary   `yaml:"reconcile,omitempty"`
}

type StageSummary struct {
	Stage      Stage   `yaml:"stage"`
	RowsIn     int     `yaml:"rows_in"`
	RowsOut    int     `yaml:"rows_out"`
	Seconds    float64 `yaml:"seconds"`
	Checkpoint string  `yaml:"checkpoint"`
}

type DurationSummary struct {
	Source        string  `yaml:"source"`
	Resolved      int     `yaml:"resolved"`
	Unresolved    int     `yaml:"unresolved"`
	ProbeFailures int     `yaml:"probe_failures,omitempty"`
	TotalSeconds  float64 `yaml:"total_seconds"`
}

type BalanceSummary struct {
	Strategy string         `yaml:"strategy"`
	Budget   float64        `yaml:"budget"`
	Skipped  int            `yaml:"skipped"`
	Groups   []GroupSummary `yaml:"groups"`
}

type GroupSummary struct {
	Age             string  `yaml:"age"`
	Gender          string  `yaml:"gender"`
	Rows            int     `yaml:"rows"`
	SelectedRows    int     `yaml:"selected_rows"`
	TotalSeconds    float64 `yaml:"total_seconds"`
	SelectedSeconds float64 `yaml:"selected_seconds"`
}

type MaterializeSummary struct {
	Copied   int `yaml:"copied"`
	Existing int `yaml:"existing"`
	Missing  int `yaml:"missing"`
	Sidecars int `yaml:"sidecars"`
}

type ReconcileSummary struct {
	DryRun         bool   `yaml:"dry_run"`
	DeletedFiles   int    `yaml:"deleted_files"`
	DeletedFolders int    `yaml:"deleted_folders"`
	Missing        int    `yaml:"missing"`
	Kept           int    `yaml:"kept"`
	MissingReport  string `yaml:"missing_report"`
	DeletedReport  string `yaml:"deleted_report"`
}

func dropsSummary(r taxonomy.DropReport) map[string]int {
	out := make(map[string]int, len(r.Dropped))
	for _, rc := range r.Reasons() {
		out[string(rc.Reason)] = rc.Count
	}

	return out
}

func balanceSummary(r balance.Report) *BalanceSummary {
	s := &BalanceSummary{Strategy: r.Strategy, Budget: r.Budget, Skipped: r.Skipped}
	for _, g := range r.Groups {
		s.Groups = append(s.Groups, GroupSummary{
			Age:             g.Age,
			Gender:          g.Gender,
			Rows:            g.Rows,
			SelectedRows:    g.SelectedRows,
			TotalSeconds:    g.TotalSeconds,
			SelectedSeconds: g.SelectedSeconds,
		})
	}

	return s
}

// WriteSummary writes s as YAML to path.
func WriteSummary(path string, s Summary) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create summary dir: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// ReadSummary parses a summary written by WriteSummary.
func ReadSummary(path string) (Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Summary{}, err
	}

	var s Summary
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Summary{}, fmt.Errorf("parse summary %s: %w", path, err)
	}

	return s, nil
}
