package balance

import (
	"github.com/example/agecorpus/internal/manifest"
)

// SpeakerCap keeps at most Cap utterances per speaker, then trims every
// (age, gender) group to the row count of the smallest group. Selection is
// count based, so rows without a duration are eligible.
type SpeakerCap struct {
	Cap int
}

func (SpeakerCap) Name() string { return NameSpeakerCap }

func (s SpeakerCap) Select(m manifest.Manifest) (manifest.Manifest, Report) {
	rep := Report{Strategy: NameSpeakerCap}
	t := newTally()

	perSpeaker := make(map[string]int)
	capped := make([]bool, m.Len())

	for i, r := range m.Records {
		g := t.get(groupOf(r))
		g.Rows++
		g.TotalSeconds += r.DurationSeconds

		if perSpeaker[r.SpeakerID] >= s.Cap {
			continue
		}

		perSpeaker[r.SpeakerID]++
		capped[i] = true
	}

	eligible := make(map[Group]int)
	for i, r := range m.Records {
		if capped[i] {
			eligible[groupOf(r)]++
		}
	}

	minRows := -1
	for _, g := range t.groups {
		if n := eligible[g.Group]; minRows < 0 || n < minRows {
			minRows = n
		}
	}

	minRows = max(minRows, 0)
	rep.Budget = float64(minRows)

	out := make([]manifest.Record, 0, m.Len())

	for i, r := range m.Records {
		if !capped[i] {
			continue
		}

		g := t.get(groupOf(r))
		if g.SelectedRows >= minRows {
			continue
		}

		g.SelectedRows++
		g.SelectedSeconds += r.DurationSeconds
		out = append(out, r.Clone())
	}

	rep.Groups = t.groups
	sortGroups(rep.Groups)

	return m.WithRecords(out), rep
}
