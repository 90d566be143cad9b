package balance

import (
	"errors"
	"fmt"
	"testing"

	"github.com/example/agecorpus/internal/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(spk, path, age, gender string, dur float64) manifest.Record {
	return manifest.Record{SpeakerID: spk, AudioPath: path, Age: age, Gender: gender}.WithDuration(dur)
}

func paths(m manifest.Manifest) []string {
	out := make([]string, 0, m.Len())
	for _, r := range m.Records {
		out = append(out, r.AudioPath)
	}

	return out
}

func TestDurationBudget_Scenario(t *testing.T) {
	in := manifest.New([]manifest.Record{
		rec("A1", "a.wav", "adult", "male", 10),
		rec("A2", "b.wav", "senior", "female", 5),
	})

	out, rep := DurationBudget{}.Select(in)

	assert.Equal(t, 5.0, rep.Budget)
	assert.Equal(t, []string{"b.wav"}, paths(out))

	adult, ok := rep.Group(Group{Age: "adult", Gender: "male"})
	require.True(t, ok)
	assert.LessOrEqual(t, adult.SelectedSeconds, 5.0)

	senior, ok := rep.Group(Group{Age: "senior", Gender: "female"})
	require.True(t, ok)
	assert.Equal(t, 5.0, senior.SelectedSeconds)
	assert.Equal(t, 1, senior.SelectedRows)
}

func TestDurationBudget_PrefixAndOrder(t *testing.T) {
	in := manifest.New([]manifest.Record{
		rec("1", "m1", "adult", "male", 2),
		rec("2", "f1", "adult", "female", 3),
		rec("1", "m2", "adult", "male", 2),
		rec("2", "f2", "adult", "female", 3),
		rec("1", "m3", "adult", "male", 2),
		rec("1", "m4", "adult", "male", 0.5),
		rec("3", "c1", "child", "female", 4.5),
	})

	out, rep := DurationBudget{}.Select(in)

	// Budget is the child group's 4.5s. Male stops at m3 and never
	// resumes, so m4 stays out even though it would fit.
	assert.Equal(t, 4.5, rep.Budget)
	assert.Equal(t, []string{"m1", "f1", "m2", "c1"}, paths(out))
	assert.Equal(t, "child", rep.Groups[0].Age, "groups sorted by age index")
}

func TestDurationBudget_Override(t *testing.T) {
	in := manifest.New([]manifest.Record{
		rec("1", "a", "adult", "male", 1),
		rec("1", "b", "adult", "male", 1),
		rec("2", "c", "senior", "male", 1),
	})

	out, rep := DurationBudget{BudgetSeconds: 2}.Select(in)
	assert.Equal(t, 2.0, rep.Budget)
	assert.Equal(t, []string{"a", "b", "c"}, paths(out))
}

func TestDurationBudget_SkipsRowsWithoutDuration(t *testing.T) {
	in := manifest.New([]manifest.Record{
		rec("1", "a", "adult", "male", 1),
		{SpeakerID: "1", AudioPath: "b", Age: "adult", Gender: "male"},
	})

	out, rep := DurationBudget{}.Select(in)
	assert.Equal(t, 1, rep.Skipped)
	assert.Equal(t, []string{"a"}, paths(out))
}

func TestDurationBudget_Empty(t *testing.T) {
	out, rep := DurationBudget{}.Select(manifest.New(nil))
	assert.Equal(t, 0, out.Len())
	assert.Equal(t, 0.0, rep.Budget)
}

func TestDurationBudget_BudgetProperty(t *testing.T) {
	var rs []manifest.Record
	ages := []string{"child", "adult", "senior"}
	genders := []string{"male", "female"}
	for i := range 120 {
		rs = append(rs, rec(
			fmt.Sprintf("s%d", i%9),
			fmt.Sprintf("%d.wav", i),
			ages[i%3],
			genders[(i/3)%2],
			0.5+float64(i%7)*0.75,
		))
	}

	_, rep := DurationBudget{}.Select(manifest.New(rs))

	hit := false
	for _, g := range rep.Groups {
		assert.LessOrEqual(t, g.SelectedSeconds, rep.Budget+budgetEpsilon, g.String())
		if g.SelectedSeconds >= rep.Budget-budgetEpsilon {
			hit = true
		}
	}
	assert.True(t, hit, "scarcest group must reach the budget")
}

func TestSpeakerCap(t *testing.T) {
	in := manifest.New([]manifest.Record{
		rec("1", "1a", "adult", "male", 1),
		rec("1", "1b", "adult", "male", 1),
		rec("1", "1c", "adult", "male", 1),
		rec("2", "2a", "adult", "male", 1),
		rec("3", "3a", "senior", "female", 1),
		rec("3", "3b", "senior", "female", 1),
		rec("3", "3c", "senior", "female", 1),
		{SpeakerID: "4", AudioPath: "4a", Age: "senior", Gender: "female"},
	})

	out, rep := SpeakerCap{Cap: 2}.Select(in)

	// Capped: 1a 1b 2a | 3a 3b 4a. Both groups hold 3, so all stay.
	assert.Equal(t, []string{"1a", "1b", "2a", "3a", "3b", "4a"}, paths(out))
	assert.Equal(t, 3.0, rep.Budget)

	out, rep = SpeakerCap{Cap: 1}.Select(in)
	// Capped: 1a 2a | 3a 4a.
	assert.Equal(t, []string{"1a", "2a", "3a", "4a"}, paths(out))
	assert.Equal(t, 2.0, rep.Budget)
}

func TestSpeakerCap_MinGroupCutoff(t *testing.T) {
	in := manifest.New([]manifest.Record{
		rec("1", "1a", "adult", "male", 1),
		rec("2", "2a", "adult", "male", 1),
		rec("3", "3a", "adult", "male", 1),
		rec("4", "4a", "child", "male", 1),
	})

	out, rep := SpeakerCap{Cap: 5}.Select(in)
	assert.Equal(t, []string{"1a", "4a"}, paths(out))
	assert.Equal(t, 1.0, rep.Budget)
}

func TestNew(t *testing.T) {
	s, err := New("Duration", Options{BudgetSeconds: 3})
	require.NoError(t, err)
	assert.Equal(t, DurationBudget{BudgetSeconds: 3}, s)

	s, err = New("speaker-cap", Options{SpeakerCap: 20})
	require.NoError(t, err)
	assert.Equal(t, NameSpeakerCap, s.Name())

	_, err = New("speaker-cap", Options{})
	assert.Error(t, err)

	_, err = New("random", Options{})
	assert.True(t, errors.Is(err, ErrUnknownStrategy))
}
