// Package speaker assigns stable, collision-free anonymised speaker ids.
package speaker

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/example/agecorpus/internal/manifest"
	"github.com/example/agecorpus/internal/taxonomy"
)

// DuplicateSpeakerError reports that distinct raw ids would share one
// canonical id.
type DuplicateSpeakerError struct {
	Canonical string
	Raw       []string
}

func (e *DuplicateSpeakerError) Error() string {
	return fmt.Sprintf("duplicate canonical speaker id %q for raw ids %q", e.Canonical, e.Raw)
}

// Options configures Normalize.
type Options struct {
	// TagAge appends the age-category suffix chosen by Strategies.
	TagAge bool
	// Strategies is consulted per category when TagAge is set.
	Strategies map[taxonomy.Category]Strategy
	// Default is used when TagAge is unset, and for tagged speakers whose
	// age does not resolve or has no strategy. Zero value: Sequential{}.
	Default Strategy
	// Categorize resolves a record's age label. Zero value: taxonomy.Resolve.
	Categorize func(label string) (taxonomy.Category, bool)
}

// Normalize replaces every speaker_id with its canonical form and returns
// the raw->canonical map. The input manifest is not modified.
//
// With TagAge, a speaker whose age label does not resolve (empty, excluded
// or unknown) keeps an untagged id; the taxonomy mapper drops and counts
// those rows later.
func Normalize(m manifest.Manifest, opts Options) (manifest.Manifest, *Map, error) {
	categorize := opts.Categorize
	if categorize == nil {
		categorize = taxonomy.Resolve
	}

	def := opts.Default
	if def == nil {
		def = Sequential{}
	}

	raws, firstAge, err := distinctSpeakers(m)
	if err != nil {
		return manifest.Manifest{}, nil, err
	}

	width := len(strconv.Itoa(len(raws)))
	pairs := make([]Pair, 0, len(raws))

	for seq, raw := range raws {
		strategy := def

		if opts.TagAge {
			if cat, ok := categorize(firstAge[raw]); ok {
				if s, ok := opts.Strategies[cat]; ok {
					strategy = s
				}
			}
		}

		pairs = append(pairs, Pair{Raw: raw, Canonical: strategy.Assign(raw, seq, width)})
	}

	idMap, err := newMap(pairs)
	if err != nil {
		return manifest.Manifest{}, nil, err
	}

	if err := checkSourceCollisions(idMap); err != nil {
		return manifest.Manifest{}, nil, err
	}

	out := make([]manifest.Record, len(m.Records))
	for i, r := range m.Records {
		rec := r.Clone()
		rec.SpeakerID, _ = idMap.Canonical(r.SpeakerID)
		out[i] = rec
	}

	return m.WithRecords(out), idMap, nil
}

// distinctSpeakers collects raw ids in first-seen order together with the
// age label of each speaker's first row. Two raw ids that only differ in
// surrounding whitespace are already a canonical collision in the source.
func distinctSpeakers(m manifest.Manifest) ([]string, map[string]string, error) {
	var raws []string

	firstAge := make(map[string]string)
	trimmed := make(map[string]string)

	for _, r := range m.Records {
		if _, seen := firstAge[r.SpeakerID]; seen {
			continue
		}

		key := strings.TrimSpace(r.SpeakerID)
		if other, clash := trimmed[key]; clash {
			return nil, nil, &DuplicateSpeakerError{Canonical: key, Raw: []string{other, r.SpeakerID}}
		}

		trimmed[key] = r.SpeakerID
		firstAge[r.SpeakerID] = r.Age
		raws = append(raws, r.SpeakerID)
	}

	return raws, firstAge, nil
}

// checkSourceCollisions rejects a raw id that already has canonical shape
// and names a different speaker after renaming, so "1" never ends up as
// the folder of a speaker other than the one the source called "1".
// A raw id that keeps its own value, as on re-normalisation, is fine.
func checkSourceCollisions(idMap *Map) error {
	for _, p := range idMap.pairs {
		if !canonicalShaped(p.Raw) {
			continue
		}

		owner, ok := idMap.Raw(p.Raw)
		if ok && owner != p.Raw {
			return &DuplicateSpeakerError{Canonical: p.Raw, Raw: []string{p.Raw, owner}}
		}
	}

	return nil
}

// canonicalShaped reports whether id looks like a generated id: digits
// with an optional age suffix.
func canonicalShaped(id string) bool {
	digits := strings.TrimRight(id, "cas")
	if len(id)-len(digits) > 1 || digits == "" {
		return false
	}

	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}

	return true
}
