package manifest

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead_CanonicalColumns(t *testing.T) {
	in := "speaker_id\taudio_path\ttranscript\tage_category\tgender\taccent\tduration_seconds\n" +
		"A1\ta.wav\thello there\ttwenties\tmale\tus\t1.5\n" +
		"A2\tb.wav\t\tseventies\tfemale\t\t\n"

	m, err := Read(strings.NewReader(in))
	require.NoError(t, err)
	require.Equal(t, 2, m.Len())

	assert.Equal(t, Record{
		SpeakerID: "A1", AudioPath: "a.wav", Transcript: "hello there",
		Age: "twenties", Gender: "male", Accent: "us",
		DurationSeconds: 1.5, HasDuration: true,
	}, m.Records[0])
	assert.False(t, m.Records[1].HasDuration)
	assert.Empty(t, m.Records[1].Transcript)
}

func TestRead_CommonVoiceAliases(t *testing.T) {
	in := "client_id\tpath\tsentence\tup_votes\tage\tgender\taccents\n" +
		"abc\tcv_1.mp3\tHi.\t2\tthirties\tmale_masculine\tEngland\n"

	m, err := Read(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, []string{ColSpeakerID, ColAudioPath, ColTranscript, "up_votes", ColAge, ColGender, ColAccent}, m.Columns)
	r := m.Records[0]
	assert.Equal(t, "abc", r.SpeakerID)
	assert.Equal(t, "cv_1.mp3", r.AudioPath)
	assert.Equal(t, "2", r.Extra["up_votes"])
	assert.Equal(t, "England", r.Accent)
}

func TestRead_SchemaErrors(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		missing []string
	}{
		{"empty input", "", []string{ColSpeakerID, ColAudioPath}},
		{"no speaker", "audio_path\ttranscript\na.wav\thi\n", []string{ColSpeakerID}},
		{"no audio path", "speaker_id\tgender\nA\tmale\n", []string{ColAudioPath}},
		{"ragged row", "speaker_id\taudio_path\nA\ta.wav\textra\n", nil},
		{"bad duration", "speaker_id\taudio_path\tduration_seconds\nA\ta.wav\tlong\n", nil},
		{"negative duration", "speaker_id\taudio_path\tduration_seconds\nA\ta.wav\t-1\n", nil},
		{"empty speaker value", "speaker_id\taudio_path\n\ta.wav\n", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.in))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSchema)

			var se *SchemaError
			require.True(t, errors.As(err, &se))
			if tt.missing != nil {
				assert.Equal(t, tt.missing, se.Missing)
			}
		})
	}
}

func TestRead_DuplicateRecord(t *testing.T) {
	in := "speaker_id\taudio_path\nA\ta.wav\nB\ta.wav\nA\ta.wav\n"

	_, err := Read(strings.NewReader(in))

	var dup *DuplicateRecordError
	require.True(t, errors.As(err, &dup), "got %v", err)
	assert.Equal(t, [2]int{1, 3}, dup.Rows)
}

func TestRead_NaNDurationIsUnset(t *testing.T) {
	in := "speaker_id\taudio_path\tduration_seconds\nA\ta.wav\tNaN\n"

	m, err := Read(strings.NewReader(in))
	require.NoError(t, err)
	assert.False(t, m.Records[0].HasDuration)
}

func TestWriteRead_RoundTrip(t *testing.T) {
	orig := Manifest{
		Columns: []string{ColSpeakerID, ColAudioPath, "client_note", ColTranscript, ColAge, ColGender, ColAccent, ColDuration},
		Records: []Record{
			{SpeakerID: "0", AudioPath: "a.wav", Transcript: `He said "hi"`, Age: "adult", Gender: "male",
				DurationSeconds: 3.25, HasDuration: true, Extra: map[string]string{"client_note": "x"}},
			{SpeakerID: "1", AudioPath: "b.wav", Transcript: " leading space", Age: "senior", Gender: "female",
				Accent: "scottish", Extra: map[string]string{"client_note": ""}},
			{SpeakerID: "2", AudioPath: "c.wav", Transcript: "tab\tinside", Age: "child", Gender: "other",
				DurationSeconds: 0.1 + 0.2, HasDuration: true, Extra: map[string]string{"client_note": "y"}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, orig))
	assert.False(t, strings.Contains(buf.String(), "\r\n"))

	got, err := Read(&buf)
	require.NoError(t, err)

	assert.Equal(t, orig.Columns, got.Columns)
	assert.Equal(t, orig.Records, got.Records)
}

func TestWrite_DropsEmptyDurationColumn(t *testing.T) {
	m := Manifest{
		Columns: []string{ColSpeakerID, ColAudioPath, ColDuration},
		Records: []Record{{SpeakerID: "A", AudioPath: "a.wav"}},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, m))

	header := strings.SplitN(buf.String(), "\n", 2)[0]
	assert.Equal(t, "speaker_id\taudio_path\ttranscript\tage_category\tgender\taccent", header)
}

func TestWrite_AddsDurationColumnWhenResolved(t *testing.T) {
	m := New([]Record{Record{SpeakerID: "A", AudioPath: "a.wav"}.WithDuration(2)})

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, m))

	assert.True(t, strings.HasPrefix(buf.String(), strings.Join(append(CanonicalColumns, ColDuration), "\t")+"\n"))
	assert.Contains(t, buf.String(), "\t2\n")
}

func TestWriteFile_ReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "m.tsv")
	m := New([]Record{{SpeakerID: "A", AudioPath: "a.wav", Age: "adult", Gender: "male"}})

	require.NoError(t, WriteFile(path, m))

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, m.Records, got.Records)
}

func TestRecord_WithDurationIsImmutableOnceSet(t *testing.T) {
	r := Record{SpeakerID: "A", AudioPath: "a.wav"}.WithDuration(1.5)
	r2 := r.WithDuration(9)

	assert.Equal(t, 1.5, r2.DurationSeconds)
}

func TestFilter_DoesNotMutateInput(t *testing.T) {
	m := New([]Record{
		{SpeakerID: "A", AudioPath: "a.wav", Extra: map[string]string{"k": "v"}},
		{SpeakerID: "B", AudioPath: "b.wav"},
	})

	out := m.Filter(func(r Record) bool { return r.SpeakerID == "A" })
	out.Records[0].Extra["k"] = "changed"

	assert.Equal(t, 2, m.Len())
	assert.Equal(t, "v", m.Records[0].Extra["k"])
}

func TestGroupStats(t *testing.T) {
	m := New([]Record{
		Record{SpeakerID: "0", AudioPath: "a", Age: "adult"}.WithDuration(1),
		Record{SpeakerID: "0", AudioPath: "b", Age: "adult"}.WithDuration(2),
		{SpeakerID: "1", AudioPath: "c", Age: "adult"},
		Record{SpeakerID: "2", AudioPath: "d", Age: "child"}.WithDuration(4),
	})

	got := GroupStats(m, ColAge)
	assert.Equal(t, []GroupCount{
		{Key: "adult", Utterances: 3, Speakers: 2, Seconds: 3},
		{Key: "child", Utterances: 1, Speakers: 1, Seconds: 4},
	}, got)
	assert.Equal(t, 3, SpeakerCount(m))
	assert.Equal(t, []string{"a", "b", "c", "d"}, AudioPaths(m))
}

func TestConcat(t *testing.T) {
	a := New([]Record{{SpeakerID: "0", AudioPath: "a.wav"}})
	b := Manifest{
		Columns: []string{ColSpeakerID, ColAudioPath, "grade"},
		Records: []Record{{SpeakerID: "1c", AudioPath: "b.flac", Extra: map[string]string{"grade": "3"}}},
	}

	got, err := Concat(a, b)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Len())
	assert.Contains(t, got.Columns, "grade")

	_, err = Concat(a, a)
	var dup *DuplicateRecordError
	assert.True(t, errors.As(err, &dup))
}
