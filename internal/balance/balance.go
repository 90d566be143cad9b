// Package balance selects demographically balanced subsets of a manifest.
package balance

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/example/agecorpus/internal/manifest"
	"github.com/example/agecorpus/internal/taxonomy"
)

// Strategy names accepted by New.
const (
	NameDuration   = "duration"
	NameSpeakerCap = "speaker-cap"
)

// ErrUnknownStrategy is returned by New for an unrecognised name.
var ErrUnknownStrategy = errors.New("unknown balance strategy")

// Strategy selects a subset of m. Implementations never mutate m and keep
// manifest order in the output.
type Strategy interface {
	Name() string
	Select(m manifest.Manifest) (manifest.Manifest, Report)
}

// Options parameterise the named strategies.
type Options struct {
	// BudgetSeconds overrides the scarcest-group budget when > 0.
	BudgetSeconds float64
	// SpeakerCap is the per-speaker utterance limit for "speaker-cap".
	SpeakerCap int
}

// Names lists the accepted strategy names.
func Names() []string { return []string{NameDuration, NameSpeakerCap} }

// New returns the strategy registered under name.
func New(name string, opts Options) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case NameDuration, "":
		return DurationBudget{BudgetSeconds: opts.BudgetSeconds}, nil
	case NameSpeakerCap:
		if opts.SpeakerCap < 1 {
			return nil, fmt.Errorf("speaker cap must be positive, got %d", opts.SpeakerCap)
		}

		return SpeakerCap{Cap: opts.SpeakerCap}, nil
	default:
		return nil, fmt.Errorf("%w %q (expected one of: %s)", ErrUnknownStrategy, name, strings.Join(Names(), ", "))
	}
}

// Group identifies one (age, gender) cell of the partition.
type Group struct {
	Age    string
	Gender string
}

func (g Group) String() string { return g.Age + "/" + g.Gender }

// GroupReport is the before/after of one group.
type GroupReport struct {
	Group
	Rows            int
	SelectedRows    int
	TotalSeconds    float64
	SelectedSeconds float64
}

// Report describes one selection. Budget is in seconds for "duration" and
// in rows for "speaker-cap".
type Report struct {
	Strategy string
	Budget   float64
	Groups   []GroupReport
	// Skipped counts rows left out because they had no duration.
	Skipped int
}

// Group returns the report line for g.
func (r Report) Group(g Group) (GroupReport, bool) {
	for _, gr := range r.Groups {
		if gr.Group == g {
			return gr, true
		}
	}

	return GroupReport{}, false
}

// SelectedSeconds sums the selected duration over all groups.
func (r Report) SelectedSeconds() float64 {
	var s float64
	for _, g := range r.Groups {
		s += g.SelectedSeconds
	}

	return s
}

func groupOf(r manifest.Record) Group { return Group{Age: r.Age, Gender: r.Gender} }

// sortGroups orders groups by age index (unknown labels last, by name)
// then by gender.
func sortGroups(gs []GroupReport) {
	slices.SortFunc(gs, func(a, b GroupReport) int {
		ai, bi := ageRank(a.Age), ageRank(b.Age)
		if c := cmp.Compare(ai, bi); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Age, b.Age); c != 0 {
			return c
		}

		return cmp.Compare(a.Gender, b.Gender)
	})
}

func ageRank(label string) int {
	if i := taxonomy.Category(label).Index(); i >= 0 {
		return i
	}

	return len(taxonomy.Categories())
}

// tally collects per-group input totals in first-seen order.
type tally struct {
	index  map[Group]int
	groups []GroupReport
}

func newTally() *tally { return &tally{index: make(map[Group]int)} }

func (t *tally) get(g Group) *GroupReport {
	i, ok := t.index[g]
	if !ok {
		i = len(t.groups)
		t.index[g] = i
		t.groups = append(t.groups, GroupReport{Group: g})
	}

	return &t.groups[i]
}
