package taxonomy

import (
	"cmp"
	"slices"
	"strings"

	"github.com/example/agecorpus/internal/manifest"
	"golang.org/x/text/unicode/norm"
)

// DropReason explains why a row was filtered out.
type DropReason string

const (
	DropEmptyAge      DropReason = "empty_age"
	DropExcludedAge   DropReason = "excluded_age"
	DropUnknownAge    DropReason = "unknown_age"
	DropEmptyGender   DropReason = "empty_gender"
	DropReservedToken DropReason = "reserved_token"
)

// DefaultReservedTokens are the non-speech markers found in child
// conversational transcripts.
var DefaultReservedTokens = []string{
	"<no_signal>",
	"<unk>",
	"(())",
	"<b_aside>",
	"<e_aside>",
	"<no_speech>",
	"[noise]",
	"[laughter]",
}

// Options configures Map.
type Options struct {
	Policy         Policy
	ReservedTokens []string
}

// ReasonCount is one line of a DropReport.
type ReasonCount struct {
	Reason DropReason
	Count  int
}

// DropReport is the audit trail of a Map call.
type DropReport struct {
	Input   int
	Kept    int
	Dropped map[DropReason]int
}

// Total returns the number of dropped rows.
func (r DropReport) Total() int { return r.Input - r.Kept }

// Reasons returns the non-zero drop counts sorted by reason.
func (r DropReport) Reasons() []ReasonCount {
	out := make([]ReasonCount, 0, len(r.Dropped))
	for reason, n := range r.Dropped {
		if n > 0 {
			out = append(out, ReasonCount{Reason: reason, Count: n})
		}
	}

	slices.SortFunc(out, func(a, b ReasonCount) int { return cmp.Compare(a.Reason, b.Reason) })

	return out
}

// Classify maps one raw age label under policy p. A non-empty reason means
// the row must be dropped.
func (p Policy) Classify(label string) (Category, DropReason) {
	switch {
	case normalizeLabel(label) == "":
		return "", DropEmptyAge
	case p.Excluded(label):
		return "", DropExcludedAge
	}

	c, ok := Resolve(label)
	if !ok {
		return "", DropUnknownAge
	}

	return c, ""
}

// Map returns a new manifest with ages collapsed to the controlled set,
// genders normalised and transcripts cleaned. Rows that cannot be mapped
// are dropped and counted; this is never an error.
func Map(m manifest.Manifest, opts Options) (manifest.Manifest, DropReport) {
	policy := opts.Policy
	if policy == "" {
		policy = PolicyTeens
	}

	report := DropReport{Input: m.Len(), Dropped: make(map[DropReason]int)}
	out := make([]manifest.Record, 0, m.Len())

	for _, r := range m.Records {
		cat, reason := policy.Classify(r.Age)
		if reason != "" {
			report.Dropped[reason]++
			continue
		}

		gender, ok := NormalizeGender(r.Gender)
		if !ok {
			report.Dropped[DropEmptyGender]++
			continue
		}

		transcript := CleanTranscript(r.Transcript)
		if ContainsReserved(transcript, opts.ReservedTokens) {
			report.Dropped[DropReservedToken]++
			continue
		}

		rec := r.Clone()
		rec.Age = string(cat)
		rec.Gender = string(gender)
		rec.Transcript = transcript
		out = append(out, rec)
	}

	report.Kept = len(out)

	return m.WithRecords(out), report
}

// CleanTranscript applies NFC normalisation and collapses runs of
// whitespace to single spaces.
func CleanTranscript(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// ContainsReserved reports whether s contains any reserved token,
// ignoring case.
func ContainsReserved(s string, tokens []string) bool {
	lower := strings.ToLower(s)
	for _, tok := range tokens {
		if tok != "" && strings.Contains(lower, strings.ToLower(tok)) {
			return true
		}
	}

	return false
}
