package duration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/example/agecorpus/internal/audio"
	"github.com/example/agecorpus/internal/manifest"
)

// Source names which input produced the durations.
type Source string

const (
	SourceSideTable Source = "side-table"
	SourceProbe     Source = "probe"
)

// DurationSourceError means neither the side table nor an audio tree
// could be used.
type DurationSourceError struct {
	SideTable string
	AudioRoot string
	SourceDir string
	Err       error
}

func (e *DurationSourceError) Error() string {
	return fmt.Sprintf("no usable duration source (side table %q, audio root %q, source dir %q): %v",
		e.SideTable, e.AudioRoot, e.SourceDir, e.Err)
}

func (e *DurationSourceError) Unwrap() error { return e.Err }

// Sources lists the inputs Resolve may use. Empty paths are skipped.
// SourceDir is the flat directory audio is materialised from; it lets a
// run measure clips before the per-speaker tree exists.
type Sources struct {
	SideTable string
	AudioRoot string
	SourceDir string
	Prober    audio.Prober
	Workers   int
}

// Report summarises an attach step. Unresolved rows are a warning, not a
// failure.
type Report struct {
	Source          Source
	Resolved        int
	Unresolved      int
	UnresolvedPaths []string
	ProbeFailures   int
	TotalSeconds    float64
}

// Resolve attaches durations from the side table when it is readable and
// otherwise by probing. The audio root is consulted before the source dir;
// a row takes its duration from the first tree that holds its file.
func Resolve(ctx context.Context, m manifest.Manifest, src Sources) (manifest.Manifest, Report, error) {
	var errs []error

	if src.SideTable != "" {
		t, err := readSideTableFile(src.SideTable)
		if err == nil {
			out, rep := Attach(m, t)
			rep.Source = SourceSideTable

			return out, rep, nil
		}

		errs = append(errs, err)
	}

	var (
		tables   []*Table
		failures int
	)

	probe := func(res ProbeResult, err error) error {
		if err != nil {
			if ctx.Err() != nil {
				return err
			}

			errs = append(errs, err)

			return nil
		}

		tables = append(tables, res.Table)
		failures += len(res.Failures)

		return nil
	}

	if src.AudioRoot != "" {
		if err := probe(ProbeTree(ctx, src.AudioRoot, src.Prober, src.Workers)); err != nil {
			return manifest.Manifest{}, Report{}, err
		}
	}

	if src.SourceDir != "" {
		if err := probe(ProbeReferenced(ctx, src.SourceDir, m, src.Prober, src.Workers)); err != nil {
			return manifest.Manifest{}, Report{}, err
		}
	}

	if len(tables) > 0 {
		out, rep := Attach(m, tables...)
		rep.Source = SourceProbe
		rep.ProbeFailures = failures

		return out, rep, nil
	}

	if len(errs) == 0 {
		errs = append(errs, errors.New("no side table, audio root or source dir configured"))
	}

	return manifest.Manifest{}, Report{}, &DurationSourceError{
		SideTable: src.SideTable,
		AudioRoot: src.AudioRoot,
		SourceDir: src.SourceDir,
		Err:       errors.Join(errs...),
	}
}

// FromSideTable parses r as a side table and attaches it to m.
func FromSideTable(m manifest.Manifest, r io.Reader) (manifest.Manifest, Report, error) {
	t, err := ReadSideTable(r)
	if err != nil {
		return manifest.Manifest{}, Report{}, err
	}

	out, rep := Attach(m, t)
	rep.Source = SourceSideTable

	return out, rep, nil
}

// Attach returns a copy of m with durations looked up in tables, first
// match wins. Rows that already carry a duration keep it.
func Attach(m manifest.Manifest, tables ...*Table) (manifest.Manifest, Report) {
	var rep Report

	out := make([]manifest.Record, len(m.Records))

	for i, r := range m.Records {
		rec := r.Clone()

		for _, t := range tables {
			if rec.HasDuration {
				break
			}

			if d, ok := t.Lookup(rec.SpeakerID, rec.AudioPath); ok {
				rec = rec.WithDuration(d)
			}
		}

		if rec.HasDuration {
			rep.Resolved++
			rep.TotalSeconds += rec.DurationSeconds
		} else {
			rep.Unresolved++
			rep.UnresolvedPaths = append(rep.UnresolvedPaths, rec.AudioPath)
		}

		out[i] = rec
	}

	return m.WithRecords(out), rep
}

func readSideTableFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ReadSideTable(f)
}
