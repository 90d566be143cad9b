package synth

import (
	"fmt"
	"sort"
)

// tensorSpec is one named tensor of the exported model's signature.
// Batched tensors carry the utterance count as their leading dimension.
type tensorSpec struct {
	name    string
	dtype   DType
	rank    int
	batched bool
}

// modelInputs is the input signature of the age-conditioned acoustic
// model, in feed order.
var modelInputs = []tensorSpec{
	{name: InputSpeakers, dtype: DTypeInt64, rank: 1, batched: true},
	{name: InputAges, dtype: DTypeInt64, rank: 1, batched: true},
	{name: InputTexts, dtype: DTypeInt64, rank: 2, batched: true},
	{name: InputSrcLens, dtype: DTypeInt64, rank: 1, batched: true},
	{name: InputMaxSrcLen, dtype: DTypeInt64, rank: 1},
	{name: InputPitch, dtype: DTypeFloat32, rank: 1},
	{name: InputEnergy, dtype: DTypeFloat32, rank: 1},
	{name: InputDuration, dtype: DTypeFloat32, rank: 1},
}

var (
	melSpec     = tensorSpec{dtype: DTypeFloat32, rank: 3, batched: true}
	melLensSpec = tensorSpec{name: OutputMelLens, dtype: DTypeInt64, rank: 1, batched: true}
)

func (s tensorSpec) check(t *Tensor, batch int64) error {
	if t == nil {
		return fmt.Errorf("%q is nil", s.name)
	}

	if t.DType() != s.dtype {
		return fmt.Errorf("%q has dtype %s, want %s", s.name, t.DType(), s.dtype)
	}

	shape := t.Shape()
	if len(shape) != s.rank {
		return fmt.Errorf("%q has shape %v, want rank %d", s.name, shape, s.rank)
	}

	if s.batched && shape[0] != batch {
		return fmt.Errorf("%q has leading dimension %d, want batch size %d", s.name, shape[0], batch)
	}

	return nil
}

// checkInputs verifies that inputs match modelInputs exactly.
func checkInputs(inputs map[string]*Tensor, batch int64) error {
	for _, spec := range modelInputs {
		t, ok := inputs[spec.name]
		if !ok {
			return fmt.Errorf("missing model input %q", spec.name)
		}

		if err := spec.check(t, batch); err != nil {
			return fmt.Errorf("model input %w", err)
		}
	}

	if len(inputs) != len(modelInputs) {
		known := make(map[string]bool, len(modelInputs))
		for _, spec := range modelInputs {
			known[spec.name] = true
		}

		for _, name := range sortedNames(inputs) {
			if !known[name] {
				return fmt.Errorf("unexpected model input %q", name)
			}
		}
	}

	return nil
}

// checkOutputs picks the refined mel (postnet, else mel), checks it and
// the optional mel_lens against the batch size, and keeps every other
// output as a prediction.
func checkOutputs(outputs map[string]*Tensor, batch int64) (Output, error) {
	name := OutputPostnet

	mel, ok := outputs[name]
	if !ok {
		name = OutputMel
		mel, ok = outputs[name]
	}
	if !ok {
		return Output{}, fmt.Errorf("model produced no %q or %q output (got %v)", OutputPostnet, OutputMel, sortedNames(outputs))
	}

	spec := melSpec
	spec.name = name
	if err := spec.check(mel, batch); err != nil {
		return Output{}, fmt.Errorf("model output %w", err)
	}

	if lens, ok := outputs[OutputMelLens]; ok {
		if err := melLensSpec.check(lens, batch); err != nil {
			return Output{}, fmt.Errorf("model output %w", err)
		}
	}

	preds := make(map[string]*Tensor, len(outputs))
	for n, t := range outputs {
		if n != name {
			preds[n] = t
		}
	}

	return Output{Mel: mel, Predictions: preds}, nil
}

func sortedNames(m map[string]*Tensor) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
