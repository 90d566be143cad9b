package speaker

import (
	"fmt"

	"github.com/example/agecorpus/internal/taxonomy"
)

// Strategy turns a raw speaker id into its canonical form. seq is the
// speaker's first-seen index and width the zero-padding width shared by
// every speaker in the run.
type Strategy interface {
	Assign(raw string, seq, width int) string
}

// Sequential assigns a fresh zero-padded number followed by Suffix.
type Sequential struct {
	Suffix string
}

func (s Sequential) Assign(_ string, seq, width int) string {
	return fmt.Sprintf("%0*d%s", width, seq, s.Suffix)
}

// Verbatim keeps the raw id and appends Suffix. Used for corpora whose
// native ids are already anonymised and stable.
type Verbatim struct {
	Suffix string
}

func (v Verbatim) Assign(raw string, _, _ int) string {
	return raw + v.Suffix
}

// ChildPolicy selects how child speakers are renamed.
type ChildPolicy string

const (
	ChildVerbatim   ChildPolicy = "verbatim"
	ChildSequential ChildPolicy = "sequential"
)

// AgeStrategies returns the tagged strategy table: adult and senior ids are
// always renumbered, child ids follow policy.
func AgeStrategies(policy ChildPolicy) map[taxonomy.Category]Strategy {
	var child Strategy = Verbatim{Suffix: taxonomy.Child.Suffix()}
	if policy == ChildSequential {
		child = Sequential{Suffix: taxonomy.Child.Suffix()}
	}

	return map[taxonomy.Category]Strategy{
		taxonomy.Child:  child,
		taxonomy.Adult:  Sequential{Suffix: taxonomy.Adult.Suffix()},
		taxonomy.Senior: Sequential{Suffix: taxonomy.Senior.Suffix()},
	}
}
