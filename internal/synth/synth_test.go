package synth

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/agecorpus/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTensor(t *testing.T) {
	tn, err := NewTensor([]float32{1, 2, 3, 4, 5, 6}, []int64{2, 3})
	require.NoError(t, err)
	assert.Equal(t, DTypeFloat32, tn.DType())
	assert.Equal(t, []int64{2, 3}, tn.Shape())

	shape := tn.Shape()
	shape[0] = 9
	assert.Equal(t, []int64{2, 3}, tn.Shape(), "Shape must return a copy")

	_, err = NewTensor([]int64{1, 2}, []int64{3})
	require.Error(t, err)

	_, err = NewTensor([]int64{}, []int64{-1})
	require.Error(t, err)

	empty, err := NewTensor([]float32{}, []int64{1, 0, 80})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 0, 80}, empty.Shape())

	_, err = tn.Int64()
	assert.Error(t, err)
}

func testBatch() Batch {
	return Batch{
		IDs:        []string{"u1", "u2"},
		SpeakerIDs: []int64{3, 7},
		AgeIDs:     []int64{0, 2},
		Phonemes:   [][]int64{{5, 6, 7}, {9}},
	}
}

func TestBatchInputs(t *testing.T) {
	inputs, err := testBatch().Inputs(Controls{Pitch: 1.2, Energy: 1, Duration: 0.9})
	require.NoError(t, err)
	require.Len(t, inputs, 8)

	texts, err := inputs[InputTexts].Int64()
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, inputs[InputTexts].Shape())
	assert.Equal(t, []int64{5, 6, 7, 9, PadID, PadID}, texts)

	lens, err := inputs[InputSrcLens].Int64()
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1}, lens)

	maxLen, err := inputs[InputMaxSrcLen].Int64()
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, maxLen)

	ages, err := inputs[InputAges].Int64()
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 2}, ages)

	pitch, err := inputs[InputPitch].Float32()
	require.NoError(t, err)
	assert.Equal(t, []float32{1.2}, pitch)

	d, err := inputs[InputDuration].Float32()
	require.NoError(t, err)
	assert.Equal(t, []float32{0.9}, d)
}

func TestBatchValidate(t *testing.T) {
	tests := map[string]func(b *Batch){
		"empty":          func(b *Batch) { *b = Batch{} },
		"speaker count":  func(b *Batch) { b.SpeakerIDs = b.SpeakerIDs[:1] },
		"id count":       func(b *Batch) { b.IDs = append(b.IDs, "u3") },
		"empty sequence": func(b *Batch) { b.Phonemes[1] = nil },
		"age range":      func(b *Batch) { b.AgeIDs[0] = 3 },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			b := testBatch()
			mutate(&b)
			assert.Error(t, b.Validate())
		})
	}

	assert.NoError(t, testBatch().Validate())
}

func TestReadBatch(t *testing.T) {
	in := strings.Join([]string{
		"# id\tspeaker\tage\tphonemes",
		"u1\t3\tchild\t5 6 7",
		"",
		"u2\t7\t2\t9",
	}, "\n")

	b, err := ReadBatch(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, testBatch(), b)

	_, err = ReadBatch(strings.NewReader("u1\t3\tteen\t5\n"))
	assert.ErrorContains(t, err, "line 1")

	_, err = ReadBatch(strings.NewReader("u1\tx\tadult\t5\n"))
	assert.ErrorContains(t, err, "speaker index")

	_, err = ReadBatch(strings.NewReader("u1\t3\tadult\n"))
	assert.ErrorContains(t, err, "4 tab-separated fields")
}

func TestReadBatch_UtteranceIDs(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr string
	}{
		{"parent dir", "..\t1\tadult\t5\n", "not a plain file name"},
		{"nested path", "../../etc/x\t1\tadult\t5\n", "not a plain file name"},
		{"subdir", "a/b\t1\tadult\t5\n", "not a plain file name"},
		{"backslash", "a\\b\t1\tadult\t5\n", "not a plain file name"},
		{"duplicate", "u1\t1\tadult\t5\nu1\t2\tsenior\t6\n", "already used on line 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadBatch(strings.NewReader(tt.in))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

type fakeRunner struct {
	inputs  map[string]*Tensor
	outputs map[string]*Tensor
	err     error
	closed  bool
}

func (f *fakeRunner) Run(_ context.Context, in map[string]*Tensor) (map[string]*Tensor, error) {
	f.inputs = in
	return f.outputs, f.err
}

func (f *fakeRunner) Close() { f.closed = true }

func mustTensor[T ~int64 | ~float32](t *testing.T, data []T, shape []int64) *Tensor {
	t.Helper()

	tn, err := NewTensor(data, shape)
	require.NoError(t, err)

	return tn
}

func TestONNXSynthesizer(t *testing.T) {
	postnet := mustTensor(t, []float32{1, 2, 3, 4, 5, 6, 7, 8}, []int64{2, 2, 2})
	runner := &fakeRunner{outputs: map[string]*Tensor{
		OutputPostnet: postnet,
		OutputMel:     mustTensor(t, make([]float32, 8), []int64{2, 2, 2}),
		OutputMelLens: mustTensor(t, []int64{2, 1}, []int64{2}),
	}}

	s := &ONNXSynthesizer{runner: runner}
	out, err := s.Synthesize(context.Background(), testBatch(), NeutralControls)
	require.NoError(t, err)

	assert.Same(t, postnet, out.Mel)
	assert.Contains(t, out.Predictions, OutputMel)
	assert.NotContains(t, out.Predictions, OutputPostnet)
	assert.Len(t, runner.inputs, 8)

	data, shape, err := out.Utterance(1)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, shape)
	assert.Equal(t, []float32{5, 6}, data)

	_, _, err = out.Utterance(2)
	assert.Error(t, err)

	s.Close()
	assert.True(t, runner.closed)
}

func TestONNXSynthesizer_Errors(t *testing.T) {
	boom := errors.New("boom")
	s := &ONNXSynthesizer{runner: &fakeRunner{err: boom}}

	_, err := s.Synthesize(context.Background(), testBatch(), NeutralControls)
	assert.ErrorIs(t, err, boom)

	_, err = s.Synthesize(context.Background(), Batch{}, NeutralControls)
	assert.ErrorContains(t, err, "build inputs")

	s = &ONNXSynthesizer{runner: &fakeRunner{outputs: map[string]*Tensor{
		"pitch": mustTensor(t, []float32{1}, []int64{1}),
	}}}
	_, err = s.Synthesize(context.Background(), testBatch(), NeutralControls)
	assert.ErrorContains(t, err, "pitch")
}

func TestCheckInputs(t *testing.T) {
	valid := func(t *testing.T) map[string]*Tensor {
		in, err := testBatch().Inputs(NeutralControls)
		require.NoError(t, err)
		return in
	}

	require.NoError(t, checkInputs(valid(t), 2))

	tests := []struct {
		name    string
		mutate  func(map[string]*Tensor)
		wantErr string
	}{
		{"missing", func(in map[string]*Tensor) { delete(in, InputAges) }, `missing model input "ages"`},
		{"dtype", func(in map[string]*Tensor) {
			in[InputPitch] = mustTensor(t, []int64{1}, []int64{1})
		}, `"p_control" has dtype int64`},
		{"rank", func(in map[string]*Tensor) {
			in[InputTexts] = mustTensor(t, []int64{1, 2}, []int64{2})
		}, `"texts" has shape [2], want rank 2`},
		{"batch", func(in map[string]*Tensor) {
			in[InputSpeakers] = mustTensor(t, []int64{1, 2, 3}, []int64{3})
		}, "leading dimension 3"},
		{"unexpected", func(in map[string]*Tensor) {
			in["emotion"] = mustTensor(t, []int64{1}, []int64{1})
		}, `unexpected model input "emotion"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid(t)
			tt.mutate(in)
			assert.ErrorContains(t, checkInputs(in, 2), tt.wantErr)
		})
	}
}

func TestCheckOutputs(t *testing.T) {
	mel := mustTensor(t, make([]float32, 8), []int64{2, 2, 2})

	out, err := checkOutputs(map[string]*Tensor{OutputMel: mel}, 2)
	require.NoError(t, err)
	assert.Same(t, mel, out.Mel)
	assert.Empty(t, out.Predictions)

	_, err = checkOutputs(map[string]*Tensor{OutputMel: mel}, 3)
	assert.ErrorContains(t, err, "want batch size 3")

	_, err = checkOutputs(map[string]*Tensor{
		OutputMel:     mel,
		OutputMelLens: mustTensor(t, []float32{2, 2}, []int64{2}),
	}, 2)
	assert.ErrorContains(t, err, `"mel_lens" has dtype float32`)

	_, err = checkOutputs(map[string]*Tensor{
		OutputPostnet: mustTensor(t, make([]float32, 4), []int64{2, 2}),
	}, 2)
	assert.ErrorContains(t, err, `"postnet_output" has shape [2 2], want rank 3`)
}

func TestWriteNPY(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteNPY(&buf, []float32{1.5, -2}, []int64{1, 2}))

	raw := buf.Bytes()
	require.True(t, bytes.HasPrefix(raw, []byte("\x93NUMPY\x01\x00")))

	hlen := int(binary.LittleEndian.Uint16(raw[8:10]))
	assert.Zero(t, (10+hlen)%64)
	assert.Contains(t, string(raw[10:10+hlen]), "'shape': (1, 2)")
	assert.Len(t, raw, 10+hlen+8)

	assert.Error(t, WriteNPY(&buf, []float32{1}, []int64{2}))
}

func TestDetectRuntime(t *testing.T) {
	lib := filepath.Join(t.TempDir(), "libonnxruntime.so.1.22.0")
	require.NoError(t, os.WriteFile(lib, []byte("fake"), 0o644))

	info, err := DetectRuntime(lib)
	require.NoError(t, err)
	assert.Equal(t, lib, info.LibraryPath)

	t.Setenv("ORT_VERSION", "")
	info, err = DetectRuntime(lib)
	require.NoError(t, err)
	assert.Equal(t, "1.22.0", info.Version)

	t.Setenv("ORT_LIBRARY_PATH", lib)
	info, err = DetectRuntime("")
	require.NoError(t, err)
	assert.Equal(t, lib, info.LibraryPath)

	_, err = DetectRuntime(filepath.Join(t.TempDir(), "missing.so"))
	assert.Error(t, err)
}

func TestONNXSynthesizer_Integration(t *testing.T) {
	lib := testutil.RequireONNXRuntime(t)
	model := testutil.RequireSynthModel(t)

	s, err := NewONNXSynthesizer(ModelConfig{LibraryPath: lib, ModelPath: model})
	require.NoError(t, err)
	defer s.Close()

	out, err := s.Synthesize(context.Background(), testBatch(), NeutralControls)
	require.NoError(t, err)

	shape := out.Mel.Shape()
	require.Len(t, shape, 3)
	assert.Equal(t, int64(2), shape[0])
}
