package manifest

import (
	"cmp"
	"fmt"
	"slices"
)

// GroupCount summarises the rows sharing one value of a column.
type GroupCount struct {
	Key        string
	Utterances int
	Speakers   int
	Seconds    float64
}

// GroupStats counts utterances and distinct speakers per value of column,
// sorted by key.
func GroupStats(m Manifest, column string) []GroupCount {
	type acc struct {
		utterances int
		speakers   map[string]struct{}
		seconds    float64
	}

	groups := make(map[string]*acc)
	for _, r := range m.Records {
		key := r.Field(column)

		g, ok := groups[key]
		if !ok {
			g = &acc{speakers: make(map[string]struct{})}
			groups[key] = g
		}

		g.utterances++
		g.speakers[r.SpeakerID] = struct{}{}

		if r.HasDuration {
			g.seconds += r.DurationSeconds
		}
	}

	out := make([]GroupCount, 0, len(groups))
	for key, g := range groups {
		out = append(out, GroupCount{
			Key:        key,
			Utterances: g.utterances,
			Speakers:   len(g.speakers),
			Seconds:    g.seconds,
		})
	}

	slices.SortFunc(out, func(a, b GroupCount) int { return cmp.Compare(a.Key, b.Key) })

	return out
}

// SpeakerCount returns the number of distinct speaker ids.
func SpeakerCount(m Manifest) int {
	seen := make(map[string]struct{})
	for _, r := range m.Records {
		seen[r.SpeakerID] = struct{}{}
	}

	return len(seen)
}

// AudioPaths lists the audio_path of every record, in manifest order.
func AudioPaths(m Manifest) []string {
	out := make([]string, len(m.Records))
	for i, r := range m.Records {
		out[i] = r.AudioPath
	}

	return out
}

// Concat merges manifests in order. Columns are unioned keeping first-seen
// order; the result must still satisfy Validate.
func Concat(ms ...Manifest) (Manifest, error) {
	var out Manifest
	for _, m := range ms {
		for _, c := range m.Columns {
			if !slices.Contains(out.Columns, c) {
				out.Columns = append(out.Columns, c)
			}
		}

		out.Records = append(out.Records, cloneRecords(m.Records)...)
	}

	if err := out.Validate(); err != nil {
		return Manifest{}, fmt.Errorf("concat: %w", err)
	}

	return out, nil
}
