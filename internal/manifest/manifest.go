// Package manifest models the row-per-utterance metadata table that drives
// corpus balancing and directory reconciliation.
//
// A Manifest is treated as a value: pipeline stages consume one and return a
// new one, never mutating their input in place.
package manifest

import (
	"maps"
	"slices"
)

// Canonical column names.
const (
	ColSpeakerID  = "speaker_id"
	ColAudioPath  = "audio_path"
	ColTranscript = "transcript"
	ColAge        = "age_category"
	ColGender     = "gender"
	ColAccent     = "accent"
	ColDuration   = "duration_seconds"
)

// CanonicalColumns is the minimum column set written for every manifest.
// duration_seconds is appended only once durations have been resolved.
var CanonicalColumns = []string{
	ColSpeakerID,
	ColAudioPath,
	ColTranscript,
	ColAge,
	ColGender,
	ColAccent,
}

// requiredColumns must be present in every parsed header.
var requiredColumns = []string{ColSpeakerID, ColAudioPath}

// columnAliases maps Common Voice export headers onto canonical names.
var columnAliases = map[string]string{
	"client_id": ColSpeakerID,
	"path":      ColAudioPath,
	"sentence":  ColTranscript,
	"age":       ColAge,
	"accents":   ColAccent,
	"duration":  ColDuration,
}

// Record is one utterance row.
type Record struct {
	SpeakerID  string
	AudioPath  string
	Transcript string
	Age        string
	Gender     string
	Accent     string

	// DurationSeconds is meaningful only when HasDuration is set.
	DurationSeconds float64
	HasDuration     bool

	// Extra holds non-canonical columns keyed by header name.
	Extra map[string]string
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	if r.Extra != nil {
		r.Extra = maps.Clone(r.Extra)
	}

	return r
}

// WithDuration returns a copy of r carrying the given duration. A duration
// that is already present is never overwritten.
func (r Record) WithDuration(seconds float64) Record {
	out := r.Clone()
	if out.HasDuration {
		return out
	}

	out.DurationSeconds = seconds
	out.HasDuration = true

	return out
}

// Field returns the value of the named column.
func (r Record) Field(column string) string {
	switch column {
	case ColSpeakerID:
		return r.SpeakerID
	case ColAudioPath:
		return r.AudioPath
	case ColTranscript:
		return r.Transcript
	case ColAge:
		return r.Age
	case ColGender:
		return r.Gender
	case ColAccent:
		return r.Accent
	case ColDuration:
		if !r.HasDuration {
			return ""
		}

		return formatSeconds(r.DurationSeconds)
	default:
		return r.Extra[column]
	}
}

// Manifest is an ordered sequence of records plus the column order used to
// serialise them.
type Manifest struct {
	Columns []string
	Records []Record
}

// New builds a manifest over records using the canonical column set.
func New(records []Record) Manifest {
	return Manifest{
		Columns: slices.Clone(CanonicalColumns),
		Records: cloneRecords(records),
	}
}

// Len returns the number of records.
func (m Manifest) Len() int { return len(m.Records) }

// Clone returns a deep copy of m.
func (m Manifest) Clone() Manifest {
	return Manifest{
		Columns: slices.Clone(m.Columns),
		Records: cloneRecords(m.Records),
	}
}

// WithRecords returns a manifest sharing m's column layout over records.
func (m Manifest) WithRecords(records []Record) Manifest {
	return Manifest{
		Columns: slices.Clone(m.Columns),
		Records: cloneRecords(records),
	}
}

// Filter returns the records for which keep returns true, in order.
func (m Manifest) Filter(keep func(Record) bool) Manifest {
	out := make([]Record, 0, len(m.Records))
	for _, r := range m.Records {
		if keep(r) {
			out = append(out, r)
		}
	}

	return m.WithRecords(out)
}

// HasDurations reports whether at least one record carries a duration.
func (m Manifest) HasDurations() bool {
	return slices.ContainsFunc(m.Records, func(r Record) bool { return r.HasDuration })
}

// TotalSeconds sums the durations of all records that have one.
func (m Manifest) TotalSeconds() float64 {
	var total float64
	for _, r := range m.Records {
		if r.HasDuration {
			total += r.DurationSeconds
		}
	}

	return total
}

// Validate checks the manifest-level invariants: non-empty identity fields
// and no duplicate (speaker_id, audio_path) pair.
func (m Manifest) Validate() error {
	type key struct{ speaker, path string }

	seen := make(map[key]int, len(m.Records))
	for i, r := range m.Records {
		if r.SpeakerID == "" || r.AudioPath == "" {
			return &SchemaError{Row: i + 1, Reason: "empty speaker_id or audio_path"}
		}

		k := key{r.SpeakerID, r.AudioPath}
		if first, dup := seen[k]; dup {
			return &DuplicateRecordError{SpeakerID: r.SpeakerID, AudioPath: r.AudioPath, Rows: [2]int{first + 1, i + 1}}
		}

		seen[k] = i
	}

	return nil
}

// writeColumns resolves the header written for m: the stored order with any
// missing canonical column appended, and duration_seconds present only when
// some record carries a duration.
func (m Manifest) writeColumns() []string {
	cols := slices.Clone(m.Columns)
	if len(cols) == 0 {
		cols = slices.Clone(CanonicalColumns)
	}

	for _, c := range CanonicalColumns {
		if !slices.Contains(cols, c) {
			cols = append(cols, c)
		}
	}

	withDuration := m.HasDurations()
	if withDuration && !slices.Contains(cols, ColDuration) {
		cols = append(cols, ColDuration)
	}

	if !withDuration {
		cols = slices.DeleteFunc(cols, func(c string) bool { return c == ColDuration })
	}

	return cols
}

func cloneRecords(records []Record) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}

	return out
}
