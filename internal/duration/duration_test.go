package duration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/example/agecorpus/internal/audio"
	"github.com/example/agecorpus/internal/manifest"
	"github.com/example/agecorpus/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() manifest.Manifest {
	return manifest.New([]manifest.Record{
		{SpeakerID: "0a", AudioPath: "common_voice_en_1.mp3", Age: "adult", Gender: "male"},
		{SpeakerID: "0a", AudioPath: "common_voice_en_2.wav", Age: "adult", Gender: "male"},
		{SpeakerID: "1s", AudioPath: "common_voice_en_3.mp3", Age: "senior", Gender: "female"},
	})
}

func TestFromSideTable(t *testing.T) {
	table := "clip\tduration[ms]\n" +
		"common_voice_en_1.mp3\t1500\n" +
		"common_voice_en_2.mp3\t2250\n"

	out, rep, err := FromSideTable(sample(), strings.NewReader(table))
	require.NoError(t, err)

	assert.Equal(t, SourceSideTable, rep.Source)
	assert.Equal(t, 2, rep.Resolved)
	assert.Equal(t, 1, rep.Unresolved)
	assert.Equal(t, []string{"common_voice_en_3.mp3"}, rep.UnresolvedPaths)
	assert.InDelta(t, 3.75, rep.TotalSeconds, 1e-9)

	assert.InDelta(t, 1.5, out.Records[0].DurationSeconds, 1e-9)
	// Converted audio matches its source clip by stem.
	assert.InDelta(t, 2.25, out.Records[1].DurationSeconds, 1e-9)
	assert.False(t, out.Records[2].HasDuration)
}

func TestFromSideTable_Malformed(t *testing.T) {
	tests := map[string]string{
		"empty":    "",
		"bad ms":   "clip\tduration[ms]\na.wav\tlong\n",
		"negative": "clip\tduration[ms]\na.wav\t-3\n",
		"one col":  "clip\tduration[ms]\na.wav\n",
	}

	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := FromSideTable(sample(), strings.NewReader(in))
			assert.Error(t, err)
		})
	}
}

func TestAttach_KeepsExistingDuration(t *testing.T) {
	m := manifest.New([]manifest.Record{
		manifest.Record{SpeakerID: "0", AudioPath: "a.wav"}.WithDuration(9),
	})

	tbl := NewTable()
	tbl.Add("a.wav", 1)

	out, rep := Attach(m, tbl)
	assert.Equal(t, 9.0, out.Records[0].DurationSeconds)
	assert.Equal(t, 1, rep.Resolved)
}

func TestTable_AmbiguousBaseName(t *testing.T) {
	tbl := NewTable()
	tbl.Add("spk1/1.wav", 1)
	tbl.Add("spk2/1.wav", 2)

	d, ok := tbl.Lookup("spk2", "1.wav")
	require.True(t, ok)
	assert.Equal(t, 2.0, d)

	_, ok = tbl.Lookup("spk3", "1.wav")
	assert.False(t, ok, "shared base name must not match")
}

func TestProbeTree(t *testing.T) {
	root := t.TempDir()
	testutil.WriteWAV(t, filepath.Join(root, "0a", "common_voice_en_1.wav"), 0.5, audio.DefaultFormat)
	testutil.WriteWAV(t, filepath.Join(root, "0a", "common_voice_en_2.wav"), 1.25, audio.DefaultFormat)
	testutil.WriteWAV(t, filepath.Join(root, "flat.wav"), 0.25, audio.DefaultFormat)
	testutil.Tree(t, root, map[string]string{
		"0a/common_voice_en_2.lab": "transcript",
		"1s/broken.wav":            "not audio",
		"1s/deep/nested.wav":       "ignored",
	})

	res, err := ProbeTree(context.Background(), root, audio.WAVProber{}, 2)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Table.Len())
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "1s/broken.wav", res.Failures[0].Path)

	d, ok := res.Table.Lookup("0a", "common_voice_en_2.wav")
	require.True(t, ok)
	assert.InDelta(t, 1.25, d, 1e-9)

	d, ok = res.Table.Lookup("", "flat.wav")
	require.True(t, ok)
	assert.InDelta(t, 0.25, d, 1e-9)
}

// fakeProber returns a duration derived from the file name.
type fakeProber struct {
	calls atomic.Int64
}

func (p *fakeProber) Duration(path string) (float64, error) {
	p.calls.Add(1)

	var n int
	if _, err := fmt.Sscanf(filepath.Base(path), "%d.wav", &n); err != nil {
		return 0, err
	}

	return float64(n), nil
}

func (p *fakeProber) Extensions() []string { return []string{".wav"} }

func TestProbeTree_DeterministicAcrossWorkers(t *testing.T) {
	root := t.TempDir()
	entries := make(map[string]string)
	for i := range 40 {
		entries[fmt.Sprintf("spk%d/%d.wav", i%4, i)] = ""
	}
	testutil.Tree(t, root, entries)

	var first *Table
	for _, workers := range []int{1, 3, 16} {
		p := &fakeProber{}
		res, err := ProbeTree(context.Background(), root, p, workers)
		require.NoError(t, err)
		assert.Equal(t, int64(40), p.calls.Load())

		if first == nil {
			first = res.Table
			continue
		}
		assert.Equal(t, first, res.Table, "workers=%d", workers)
	}
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "audio")
	testutil.WriteWAV(t, filepath.Join(root, "0a", "common_voice_en_2.wav"), 1, audio.DefaultFormat)

	goodTable := filepath.Join(dir, "durations.tsv")
	require.NoError(t, os.WriteFile(goodTable, []byte("clip\tduration[ms]\ncommon_voice_en_1.mp3\t500\n"), 0o644))

	badTable := filepath.Join(dir, "bad.tsv")
	require.NoError(t, os.WriteFile(badTable, []byte("clip\tduration[ms]\nx\ty\n"), 0o644))

	t.Run("side table preferred", func(t *testing.T) {
		_, rep, err := Resolve(context.Background(), sample(), Sources{SideTable: goodTable, AudioRoot: root})
		require.NoError(t, err)
		assert.Equal(t, SourceSideTable, rep.Source)
		assert.Equal(t, 1, rep.Resolved)
	})

	t.Run("falls back to probe", func(t *testing.T) {
		out, rep, err := Resolve(context.Background(), sample(), Sources{SideTable: badTable, AudioRoot: root})
		require.NoError(t, err)
		assert.Equal(t, SourceProbe, rep.Source)
		assert.Equal(t, 1, rep.Resolved)
		assert.Equal(t, 2, rep.Unresolved)
		assert.InDelta(t, 1.0, out.Records[1].DurationSeconds, 1e-9)
	})

	t.Run("no source", func(t *testing.T) {
		_, _, err := Resolve(context.Background(), sample(), Sources{
			SideTable: filepath.Join(dir, "absent.tsv"),
			AudioRoot: filepath.Join(dir, "absent"),
		})

		var srcErr *DurationSourceError
		require.True(t, errors.As(err, &srcErr))
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})

	t.Run("nothing configured", func(t *testing.T) {
		_, _, err := Resolve(context.Background(), sample(), Sources{})

		var srcErr *DurationSourceError
		assert.True(t, errors.As(err, &srcErr))
	})
}

func TestResolve_ProbeMatchesOnlyFilesOnDisk(t *testing.T) {
	root := t.TempDir()
	testutil.WriteWAV(t, filepath.Join(root, "spk2", "a.wav"), 2, audio.DefaultFormat)
	testutil.WriteWAV(t, filepath.Join(root, "spk2", "x.wav"), 1, audio.DefaultFormat)

	m := manifest.New([]manifest.Record{
		{SpeakerID: "spk1", AudioPath: "a.wav", Age: "adult", Gender: "male"},
		{SpeakerID: "spk2", AudioPath: "x.mp3", Age: "adult", Gender: "male"},
		{SpeakerID: "spk2", AudioPath: "a.wav", Age: "adult", Gender: "male"},
	})

	out, rep, err := Resolve(context.Background(), m, Sources{AudioRoot: root})
	require.NoError(t, err)

	assert.False(t, out.Records[0].HasDuration, "spk1/a.wav is not on disk")
	assert.False(t, out.Records[1].HasDuration, "x.mp3 must not match x.wav")
	assert.True(t, out.Records[2].HasDuration)
	assert.InDelta(t, 2.0, out.Records[2].DurationSeconds, 1e-9)
	assert.Equal(t, 1, rep.Resolved)
	assert.Equal(t, []string{"a.wav", "x.mp3"}, rep.UnresolvedPaths)
}

func TestResolve_SourceDir(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "clips")
	testutil.WriteWAV(t, filepath.Join(src, "common_voice_en_2.wav"), 0.5, audio.DefaultFormat)
	testutil.WriteWAV(t, filepath.Join(src, "unreferenced.wav"), 3, audio.DefaultFormat)

	t.Run("audio root not created yet", func(t *testing.T) {
		out, rep, err := Resolve(context.Background(), sample(), Sources{
			AudioRoot: filepath.Join(dir, "audio"),
			SourceDir: src,
		})
		require.NoError(t, err)
		assert.Equal(t, SourceProbe, rep.Source)
		assert.Equal(t, 1, rep.Resolved)
		assert.InDelta(t, 0.5, out.Records[1].DurationSeconds, 1e-9)
	})

	t.Run("audio root wins", func(t *testing.T) {
		root := filepath.Join(dir, "tree")
		testutil.WriteWAV(t, filepath.Join(root, "0a", "common_voice_en_2.wav"), 1, audio.DefaultFormat)

		out, _, err := Resolve(context.Background(), sample(), Sources{AudioRoot: root, SourceDir: src})
		require.NoError(t, err)
		assert.InDelta(t, 1.0, out.Records[1].DurationSeconds, 1e-9)
	})
}

func TestProbeReferenced_OnlyManifestPaths(t *testing.T) {
	src := t.TempDir()
	testutil.Tree(t, src, map[string]string{
		"1.wav": "",
		"2.wav": "",
		"9.wav": "",
	})

	m := manifest.New([]manifest.Record{
		{SpeakerID: "a", AudioPath: "1.wav"},
		{SpeakerID: "b", AudioPath: "1.wav"},
		{SpeakerID: "a", AudioPath: "2.wav"},
		{SpeakerID: "a", AudioPath: "3.wav"},
		{SpeakerID: "a", AudioPath: "../9.wav"},
	})

	p := &fakeProber{}
	res, err := ProbeReferenced(context.Background(), src, m, p, 2)
	require.NoError(t, err)

	assert.Equal(t, int64(2), p.calls.Load())
	assert.Equal(t, 2, res.Table.Len())

	_, err = ProbeReferenced(context.Background(), filepath.Join(src, "absent"), m, p, 2)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
