package speaker

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
)

// Pair is one raw->canonical assignment.
type Pair struct {
	Raw       string
	Canonical string
}

// Map is the bijective raw->canonical speaker id mapping of one run. It is
// read-only once built.
type Map struct {
	pairs     []Pair
	canonical map[string]string
	raw       map[string]string
}

// newMap builds a Map and enforces bijectivity.
func newMap(pairs []Pair) (*Map, error) {
	m := &Map{
		pairs:     slices.Clone(pairs),
		canonical: make(map[string]string, len(pairs)),
		raw:       make(map[string]string, len(pairs)),
	}

	for _, p := range pairs {
		if _, dup := m.canonical[p.Raw]; dup {
			return nil, &DuplicateSpeakerError{Canonical: p.Canonical, Raw: []string{p.Raw}}
		}

		if prev, clash := m.raw[p.Canonical]; clash {
			return nil, &DuplicateSpeakerError{Canonical: p.Canonical, Raw: []string{prev, p.Raw}}
		}

		m.canonical[p.Raw] = p.Canonical
		m.raw[p.Canonical] = p.Raw
	}

	return m, nil
}

// Canonical returns the canonical id for a raw id.
func (m *Map) Canonical(raw string) (string, bool) {
	c, ok := m.canonical[raw]
	return c, ok
}

// Raw returns the original id for a canonical id.
func (m *Map) Raw(canonical string) (string, bool) {
	r, ok := m.raw[canonical]
	return r, ok
}

// Len returns the number of speakers.
func (m *Map) Len() int { return len(m.pairs) }

// Pairs returns the assignments in first-seen order.
func (m *Map) Pairs() []Pair { return slices.Clone(m.pairs) }

const (
	mapHeaderRaw       = "raw_id"
	mapHeaderCanonical = "canonical_id"
)

// Write serialises the map as a two-column TSV with a header row.
func (m *Map) Write(w io.Writer) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'

	if err := cw.Write([]string{mapHeaderRaw, mapHeaderCanonical}); err != nil {
		return err
	}

	for _, p := range m.pairs {
		if err := cw.Write([]string{p.Raw, p.Canonical}); err != nil {
			return err
		}
	}

	cw.Flush()

	return cw.Error()
}

// WriteFile writes the map to path.
func (m *Map) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create speaker map: %w", err)
	}

	if err := m.Write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write speaker map: %w", err)
	}

	return f.Close()
}

// ReadMap parses a map written by Write and re-checks bijectivity.
func ReadMap(r io.Reader) (*Map, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = 2

	if _, err := cr.Read(); err != nil {
		return nil, fmt.Errorf("read speaker map header: %w", err)
	}

	var pairs []Pair
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read speaker map: %w", err)
		}

		pairs = append(pairs, Pair{Raw: row[0], Canonical: row[1]})
	}

	return newMap(pairs)
}

// ReadMapFile opens path and parses it with ReadMap.
func ReadMapFile(path string) (*Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open speaker map: %w", err)
	}
	defer f.Close()

	return ReadMap(f)
}
