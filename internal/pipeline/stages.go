// Package pipeline runs the curation stages end to end with a manifest
// checkpoint after each stage.
package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

// Stage names one checkpointed step.
type Stage string

const (
	StageNormalize Stage = "normalize"
	StageMap       Stage = "map"
	StageDurations Stage = "durations"
	StageBalance   Stage = "balance"
)

// Order returns the stage sequence. Speakers are numbered over the raw
// manifest, before the mapper drops rows.
func Order() []Stage {
	return []Stage{StageNormalize, StageMap, StageDurations, StageBalance}
}

// ParseStage validates a stage name.
func ParseStage(s string) (Stage, error) {
	st := Stage(s)
	if !slices.Contains(Order(), st) {
		return "", fmt.Errorf("unknown stage %q", s)
	}

	return st, nil
}

// CheckpointPath is the manifest written after stage.
func CheckpointPath(workDir, corpus string, stage Stage) string {
	return filepath.Join(workDir, fmt.Sprintf("%s_%s.tsv", corpus, stage))
}

// SpeakerMapPath is the raw->canonical speaker map of a run.
func SpeakerMapPath(workDir, corpus string) string {
	return filepath.Join(workDir, corpus+"_speakers.tsv")
}

// SummaryPath is the YAML run summary.
func SummaryPath(reportDir, corpus string) string {
	return filepath.Join(reportDir, corpus+"_summary.yaml")
}

// LatestCheckpoint returns the last stage in order whose checkpoint exists,
// with ok false when none does. A later checkpoint wins even if an earlier
// one is missing.
func LatestCheckpoint(workDir, corpus string, order []Stage) (Stage, bool, error) {
	for i := len(order) - 1; i >= 0; i-- {
		_, err := os.Stat(CheckpointPath(workDir, corpus, order[i]))
		if err == nil {
			return order[i], true, nil
		}

		if !errors.Is(err, os.ErrNotExist) {
			return "", false, err
		}
	}

	return "", false, nil
}
