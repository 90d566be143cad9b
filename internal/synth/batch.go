// Package synth drives the age-conditioned acoustic model, consumed as a
// black-box ONNX graph.
package synth

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/example/agecorpus/internal/taxonomy"
)

// Graph input names.
const (
	InputSpeakers  = "speakers"
	InputAges      = "ages"
	InputTexts     = "texts"
	InputSrcLens   = "src_lens"
	InputMaxSrcLen = "max_src_len"
	InputPitch     = "p_control"
	InputEnergy    = "e_control"
	InputDuration  = "d_control"
)

// PadID fills phoneme rows shorter than the batch maximum.
const PadID int64 = 0

// Batch is one model call: per-utterance speaker index, age index and
// phoneme-id sequence.
type Batch struct {
	IDs        []string
	SpeakerIDs []int64
	AgeIDs     []int64
	Phonemes   [][]int64
}

// Len is the batch size.
func (b Batch) Len() int { return len(b.Phonemes) }

// Validate checks that every per-utterance slice has the batch length and
// no sequence is empty.
func (b Batch) Validate() error {
	n := len(b.Phonemes)
	if n == 0 {
		return errors.New("empty batch")
	}
	if len(b.SpeakerIDs) != n || len(b.AgeIDs) != n {
		return fmt.Errorf("batch size mismatch: %d phoneme rows, %d speakers, %d ages", n, len(b.SpeakerIDs), len(b.AgeIDs))
	}
	if len(b.IDs) != 0 && len(b.IDs) != n {
		return fmt.Errorf("batch size mismatch: %d phoneme rows, %d ids", n, len(b.IDs))
	}

	for i, seq := range b.Phonemes {
		if len(seq) == 0 {
			return fmt.Errorf("utterance %d has no phonemes", i)
		}
	}

	for i, a := range b.AgeIDs {
		if a < 0 || int(a) >= len(taxonomy.Categories()) {
			return fmt.Errorf("utterance %d: age index %d out of range", i, a)
		}
	}

	return nil
}

// Lengths returns each sequence length and the maximum.
func (b Batch) Lengths() ([]int64, int64) {
	lens := make([]int64, len(b.Phonemes))

	var maxLen int64
	for i, seq := range b.Phonemes {
		lens[i] = int64(len(seq))
		maxLen = max(maxLen, lens[i])
	}

	return lens, maxLen
}

// Padded returns the phoneme ids as a [B, T] row-major matrix, right
// padded with PadID.
func (b Batch) Padded() ([]int64, []int64) {
	_, maxLen := b.Lengths()
	out := make([]int64, int64(len(b.Phonemes))*maxLen)

	for i, seq := range b.Phonemes {
		row := out[int64(i)*maxLen : int64(i+1)*maxLen]
		copy(row, seq)
		for j := len(seq); j < len(row); j++ {
			row[j] = PadID
		}
	}

	return out, []int64{int64(len(b.Phonemes)), maxLen}
}

// Controls scale the variance adaptor predictions. 1.0 is neutral.
type Controls struct {
	Pitch    float32
	Energy   float32
	Duration float32
}

// NeutralControls leaves predictions unscaled.
var NeutralControls = Controls{Pitch: 1, Energy: 1, Duration: 1}

// Inputs builds the named graph inputs for b.
func (b Batch) Inputs(c Controls) (map[string]*Tensor, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}

	n := int64(b.Len())
	lens, maxLen := b.Lengths()
	texts, shape := b.Padded()

	inputs := make(map[string]*Tensor, 8)

	add := func(name string, t *Tensor, err error) error {
		if err != nil {
			return fmt.Errorf("input %q: %w", name, err)
		}
		inputs[name] = t

		return nil
	}

	steps := []func() error{
		func() error { t, err := NewTensor(b.SpeakerIDs, []int64{n}); return add(InputSpeakers, t, err) },
		func() error { t, err := NewTensor(b.AgeIDs, []int64{n}); return add(InputAges, t, err) },
		func() error { t, err := NewTensor(texts, shape); return add(InputTexts, t, err) },
		func() error { t, err := NewTensor(lens, []int64{n}); return add(InputSrcLens, t, err) },
		func() error { t, err := NewTensor([]int64{maxLen}, []int64{1}); return add(InputMaxSrcLen, t, err) },
		func() error { t, err := NewTensor([]float32{c.Pitch}, []int64{1}); return add(InputPitch, t, err) },
		func() error { t, err := NewTensor([]float32{c.Energy}, []int64{1}); return add(InputEnergy, t, err) },
		func() error { t, err := NewTensor([]float32{c.Duration}, []int64{1}); return add(InputDuration, t, err) },
	}

	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}

	return inputs, nil
}

// ReadBatch parses a tab-separated batch file with columns id, speaker
// index, age category (name or index) and space-separated phoneme ids.
// Blank lines and lines starting with '#' are skipped.
func ReadBatch(r io.Reader) (Batch, error) {
	var b Batch

	seen := make(map[string]int)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	line := 0
	for sc.Scan() {
		line++

		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.Split(text, "\t")
		if len(fields) != 4 {
			return Batch{}, fmt.Errorf("batch line %d: want 4 tab-separated fields, got %d", line, len(fields))
		}

		uttID := strings.TrimSpace(fields[0])
		if err := checkUtteranceID(uttID); err != nil {
			return Batch{}, fmt.Errorf("batch line %d: %w", line, err)
		}

		if prev, dup := seen[uttID]; dup {
			return Batch{}, fmt.Errorf("batch line %d: utterance id %q already used on line %d", line, uttID, prev)
		}

		seen[uttID] = line

		spk, err := strconv.ParseInt(strings.TrimSpace(fields[1]), 10, 64)
		if err != nil {
			return Batch{}, fmt.Errorf("batch line %d: speaker index: %w", line, err)
		}

		age, err := parseAge(fields[2])
		if err != nil {
			return Batch{}, fmt.Errorf("batch line %d: %w", line, err)
		}

		var seq []int64
		for _, tok := range strings.Fields(fields[3]) {
			id, err := strconv.ParseInt(tok, 10, 64)
			if err != nil {
				return Batch{}, fmt.Errorf("batch line %d: phoneme id %q: %w", line, tok, err)
			}
			seq = append(seq, id)
		}

		b.IDs = append(b.IDs, uttID)
		b.SpeakerIDs = append(b.SpeakerIDs, spk)
		b.AgeIDs = append(b.AgeIDs, age)
		b.Phonemes = append(b.Phonemes, seq)
	}

	if err := sc.Err(); err != nil {
		return Batch{}, err
	}

	return b, b.Validate()
}

// checkUtteranceID rejects ids that cannot be used as a plain file name,
// since each id names its output file.
func checkUtteranceID(id string) error {
	switch {
	case id == "":
		return errors.New("empty utterance id")
	case id == "." || id == "..", strings.ContainsAny(id, `/\`):
		return fmt.Errorf("utterance id %q is not a plain file name", id)
	default:
		return nil
	}
}

func parseAge(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n, nil
	}

	c, ok := taxonomy.ParseCategory(raw)
	if !ok {
		return 0, fmt.Errorf("unknown age category %q", raw)
	}

	return int64(c.Index()), nil
}
