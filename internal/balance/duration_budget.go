package balance

import (
	"math"

	"github.com/example/agecorpus/internal/manifest"
)

// budgetEpsilon absorbs float error when a prefix sums exactly to the budget.
const budgetEpsilon = 1e-9

// DurationBudget clips every (age, gender) group to the total duration of
// the scarcest group, or to BudgetSeconds when set. Each group keeps the
// longest prefix, in manifest order, that does not exceed the budget.
type DurationBudget struct {
	BudgetSeconds float64
}

func (DurationBudget) Name() string { return NameDuration }

func (s DurationBudget) Select(m manifest.Manifest) (manifest.Manifest, Report) {
	rep := Report{Strategy: NameDuration}
	t := newTally()

	for _, r := range m.Records {
		if !r.HasDuration {
			rep.Skipped++
			continue
		}

		g := t.get(groupOf(r))
		g.Rows++
		g.TotalSeconds += r.DurationSeconds
	}

	budget := s.BudgetSeconds
	if budget <= 0 {
		budget = math.Inf(1)
		for _, g := range t.groups {
			budget = math.Min(budget, g.TotalSeconds)
		}

		if math.IsInf(budget, 1) {
			budget = 0
		}
	}

	rep.Budget = budget

	closed := make(map[Group]bool)
	out := make([]manifest.Record, 0, m.Len())

	for _, r := range m.Records {
		if !r.HasDuration {
			continue
		}

		key := groupOf(r)
		if closed[key] {
			continue
		}

		g := t.get(key)
		if g.SelectedSeconds+r.DurationSeconds > budget+budgetEpsilon {
			closed[key] = true
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
