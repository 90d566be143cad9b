package manifest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

const utf8BOM = "\ufeff"

// Read parses a tab-separated manifest with a mandatory header row.
// Optional columns may be absent; speaker_id and audio_path may not.
func Read(r io.Reader) (Manifest, error) {
	cr := newReader(r)

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return Manifest{}, &SchemaError{Missing: slices.Clone(requiredColumns), Reason: "empty input"}
	}
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest header: %w", err)
	}

	columns := normalizeHeader(header)
	if missing := missingRequired(columns); len(missing) > 0 {
		return Manifest{}, &SchemaError{Missing: missing}
	}

	if dup := firstDuplicate(columns); dup != "" {
		return Manifest{}, &SchemaError{Line: 1, Reason: fmt.Sprintf("column %q appears twice", dup)}
	}

	var records []Record
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return Manifest{}, &SchemaError{Line: pe.Line, Reason: pe.Err.Error()}
			}

			return Manifest{}, fmt.Errorf("read manifest: %w", err)
		}

		line, _ := cr.FieldPos(0)

		if len(row) != len(columns) {
			return Manifest{}, &SchemaError{
				Line:   line,
				Reason: fmt.Sprintf("got %d fields, header has %d", len(row), len(columns)),
			}
		}

		rec, err := parseRecord(columns, row)
		if err != nil {
			return Manifest{}, &SchemaError{Line: line, Reason: err.Error()}
		}

		records = append(records, rec)
	}

	m := Manifest{Columns: columns, Records: records}
	if err := m.Validate(); err != nil {
		return Manifest{}, err
	}

	return m, nil
}

// ReadFile opens path and parses it with Read.
func ReadFile(path string) (Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	m, err := Read(f)
	if err != nil {
		return Manifest{}, fmt.Errorf("%s: %w", path, err)
	}

	return m, nil
}

// Write serialises m as UTF-8, tab-separated, newline-terminated rows.
func Write(w io.Writer, m Manifest) error {
	cols := m.writeColumns()

	cw := csv.NewWriter(w)
	cw.Comma = '\t'

	if err := cw.Write(cols); err != nil {
		return fmt.Errorf("write manifest header: %w", err)
	}

	row := make([]string, len(cols))
	for _, r := range m.Records {
		for i, c := range cols {
			row[i] = r.Field(c)
		}

		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write manifest row: %w", err)
		}
	}

	cw.Flush()

	return cw.Error()
}

// WriteFile writes m to path through a temporary file so a crash never
// leaves a truncated checkpoint behind.
func WriteFile(path string, m Manifest) error {
	return writeAtomic(path, func(w io.Writer) error { return Write(w, m) })
}

func writeAtomic(path string, fill func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck

	if err := fill(tmp); err != nil {
		_ = tmp.Close()
		return err
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}

	return nil
}

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = false

	return cr
}

func normalizeHeader(header []string) []string {
	cols := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, utf8BOM)
		}

		h = strings.TrimSpace(h)
		if canonical, ok := columnAliases[strings.ToLower(h)]; ok {
			h = canonical
		}

		cols[i] = h
	}

	return cols
}

func missingRequired(columns []string) []string {
	var missing []string
	for _, c := range requiredColumns {
		if !slices.Contains(columns, c) {
			missing = append(missing, c)
		}
	}

	return missing
}

func firstDuplicate(columns []string) string {
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		if seen[c] {
			return c
		}

		seen[c] = true
	}

	return ""
}

func parseRecord(columns, row []string) (Record, error) {
	var rec Record
	for i, c := range columns {
		v := row[i]
		switch c {
		case ColSpeakerID:
			rec.SpeakerID = v
		case ColAudioPath:
			rec.AudioPath = v
		case ColTranscript:
			rec.Transcript = v
		case ColAge:
			rec.Age = v
		case ColGender:
			rec.Gender = v
		case ColAccent:
			rec.Accent = v
		case ColDuration:
			sec, ok, err := parseSeconds(v)
			if err != nil {
				return Record{}, err
			}

			rec.DurationSeconds, rec.HasDuration = sec, ok
		default:
			if rec.Extra == nil {
				rec.Extra = make(map[string]string)
			}

			rec.Extra[c] = v
		}
	}

	if rec.SpeakerID == "" {
		return Record{}, errors.New("empty speaker_id")
	}

	if rec.AudioPath == "" {
		return Record{}, errors.New("empty audio_path")
	}

	return rec, nil
}

// parseSeconds accepts an empty or NaN cell as "no duration".
func parseSeconds(v string) (float64, bool, error) {
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, "nan") {
		return 0, false, nil
	}

	sec, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid duration %q", v)
	}

	if sec < 0 {
		return 0, false, fmt.Errorf("negative duration %q", v)
	}

	return sec, true, nil
}

func formatSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', -1, 64)
}
