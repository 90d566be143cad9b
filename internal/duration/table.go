// Package duration attaches per-utterance durations to a manifest from a
// side table or by probing the audio tree.
package duration

import (
	"path"
	"strings"
)

// Table maps audio file identifiers to durations in seconds. Lookups try,
// in order, "speaker/audio_path", audio_path as given, its base name and
// its stem. Base names and stems that more than one file shares are
// ambiguous and never match. A path-only table, as built from a probe,
// stops after the two path forms.
type Table struct {
	pathOnly  bool
	exact     map[string]float64
	base      map[string]float64
	stem      map[string]float64
	ambiguous map[string]bool
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{
		exact:     make(map[string]float64),
		base:      make(map[string]float64),
		stem:      make(map[string]float64),
		ambiguous: make(map[string]bool),
	}
}

// newPathTable returns a table that matches files by their relative path
// only. A probed file belongs to exactly one folder, so a row must never
// borrow the duration of a same-named file elsewhere in the tree.
func newPathTable() *Table {
	t := NewTable()
	t.pathOnly = true

	return t
}

// Add records seconds for the slash-separated identifier id.
func (t *Table) Add(id string, seconds float64) {
	id = cleanPath(id)
	t.exact[id] = seconds

	if t.pathOnly {
		return
	}

	base := path.Base(id)
	t.addAlias(t.base, "b:"+base, base, seconds)

	stem := strings.TrimSuffix(base, path.Ext(base))
	t.addAlias(t.stem, "s:"+stem, stem, seconds)
}

func (t *Table) addAlias(m map[string]float64, ambKey, key string, seconds float64) {
	if t.ambiguous[ambKey] {
		return
	}

	if _, dup := m[key]; dup {
		delete(m, key)
		t.ambiguous[ambKey] = true

		return
	}

	m[key] = seconds
}

// Len is the number of distinct identifiers added.
func (t *Table) Len() int { return len(t.exact) }

// Lookup finds the duration of audioPath belonging to speaker.
func (t *Table) Lookup(speaker, audioPath string) (float64, bool) {
	p := cleanPath(audioPath)

	if speaker != "" {
		if d, ok := t.exact[speaker+"/"+p]; ok {
			return d, true
		}
	}

	if d, ok := t.exact[p]; ok {
		return d, true
	}

	if t.pathOnly {
		return 0, false
	}

	base := path.Base(p)
	if d, ok := t.base[base]; ok {
		return d, true
	}

	d, ok := t.stem[strings.TrimSuffix(base, path.Ext(base))]

	return d, ok
}

// cleanPath turns an identifier into a clean slash-separated relative path.
func cleanPath(p string) string {
	return strings.TrimPrefix(path.Clean(strings.ReplaceAll(p, "\\", "/")), "./")
}
