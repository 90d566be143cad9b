package duration

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ReadSideTable parses a tab-separated (file, duration in ms) table with a
// header row, such as Common Voice's clip_durations.tsv.
func ReadSideTable(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("duration table: missing header")
		}

		return nil, fmt.Errorf("duration table header: %w", err)
	}

	t := NewTable()

	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("duration table: %w", err)
		}

		line, _ := cr.FieldPos(0)

		if len(row) < 2 {
			return nil, fmt.Errorf("duration table line %d: want 2 columns, got %d", line, len(row))
		}

		ms, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		if err != nil || ms < 0 {
			return nil, fmt.Errorf("duration table line %d: invalid duration %q", line, row[1])
		}

		t.Add(strings.TrimSpace(row[0]), ms/1000)
	}

	return t, nil
}
