package corpus

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/example/agecorpus/internal/audio"
	"github.com/example/agecorpus/internal/manifest"
	"github.com/example/agecorpus/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaterialize(t *testing.T) {
	src := t.TempDir()
	root := filepath.Join(t.TempDir(), "tree")
	testutil.Tree(t, src, map[string]string{
		"clip1.wav": "one",
		"clip2.wav": "two",
	})

	m := manifest.New([]manifest.Record{
		{SpeakerID: "0a", AudioPath: "clip1.wav"},
		{SpeakerID: "1s", AudioPath: "clip2.wav"},
		{SpeakerID: "1s", AudioPath: "clip3.wav"},
	})

	rep, err := Materialize(context.Background(), m, src, root)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Copied)
	require.Equal(t, 1, rep.Missing.Len())
	assert.Equal(t, "clip3.wav", rep.Missing.Records[0].AudioPath)
	assert.Equal(t, []string{"0a/clip1.wav", "1s/clip2.wav"}, testutil.Files(t, root))

	data, err := os.ReadFile(filepath.Join(root, "1s", "clip2.wav"))
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	again, err := Materialize(context.Background(), m, src, root)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Copied)
	assert.Equal(t, 2, again.Existing)
}

func TestMaterialize_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := manifest.New([]manifest.Record{{SpeakerID: "0a", AudioPath: "x.wav"}})
	_, err := Materialize(ctx, m, t.TempDir(), t.TempDir())
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestWriteSidecars(t *testing.T) {
	root := t.TempDir()
	testutil.Tree(t, root, map[string]string{"0a/": ""})

	m := manifest.New([]manifest.Record{
		{SpeakerID: "0a", AudioPath: "clip1.mp3", Transcript: "hello there", Age: "adult"},
		{SpeakerID: "9z", AudioPath: "clip2.wav", Transcript: "no folder", Age: "child"},
	})

	rep, err := WriteSidecars(m, root)
	require.NoError(t, err)
	assert.Equal(t, SidecarReport{Written: 1, NoFolder: 1}, rep)

	lab, err := os.ReadFile(filepath.Join(root, "0a", "clip1.lab"))
	require.NoError(t, err)
	assert.Equal(t, "hello there", string(lab))

	age, err := os.ReadFile(filepath.Join(root, "0a", "clip1.age"))
	require.NoError(t, err)
	assert.Equal(t, "adult", string(age))
}

func TestAudit(t *testing.T) {
	root := t.TempDir()
	testutil.WriteWAV(t, filepath.Join(root, "0a", "good.wav"), 0.1, audio.DefaultFormat)
	testutil.WriteWAV(t, filepath.Join(root, "0a", "fast.wav"), 0.1, audio.Format{SampleRate: 22050, Channels: 1, BitDepth: 16})
	testutil.Tree(t, root, map[string]string{
		"0a/good.lab": "text",
		"1s/junk.wav": "not audio",
		"loose.wav":   "ignored",
	})

	rep, err := Audit(root, audio.DefaultFormat)
	require.NoError(t, err)

	assert.Equal(t, 3, rep.Checked)
	require.Len(t, rep.Issues, 2)
	assert.Equal(t, "0a/fast.wav", rep.Issues[0].Path)
	assert.True(t, errors.Is(rep.Issues[0].Err, audio.ErrFormatMismatch))
	assert.Equal(t, "1s/junk.wav", rep.Issues[1].Path)
	assert.True(t, errors.Is(rep.Issues[1].Err, audio.ErrInvalidWAV))
	assert.False(t, rep.OK())
}
