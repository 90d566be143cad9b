package synth

import (
	"context"
	"fmt"
	"log/slog"
)

// Graph output names. Exports that keep only one mel expose it as "mel".
const (
	OutputPostnet = "postnet_output"
	OutputMel     = "mel"
)

// Output is one batch of predictions.
type Output struct {
	// Mel is the refined mel-spectrogram [B, frames, bins].
	Mel *Tensor
	// Predictions holds every other graph output by name (pitch, energy,
	// log-duration, masks).
	Predictions map[string]*Tensor
}

// Synthesizer turns a batch of phoneme sequences into mel-spectrograms.
type Synthesizer interface {
	Synthesize(ctx context.Context, b Batch, c Controls) (Output, error)
	Close()
}

type graphRunner interface {
	Run(ctx context.Context, inputs map[string]*Tensor) (map[string]*Tensor, error)
	Close()
}

// ONNXSynthesizer runs an exported age-conditioned acoustic model.
type ONNXSynthesizer struct {
	runner graphRunner
}

var _ Synthesizer = (*ONNXSynthesizer)(nil)

// NewONNXSynthesizer loads the model described by cfg.
func NewONNXSynthesizer(cfg ModelConfig) (*ONNXSynthesizer, error) {
	s, err := openModel(cfg)
	if err != nil {
		return nil, err
	}

	return &ONNXSynthesizer{runner: s}, nil
}

func (s *ONNXSynthesizer) Synthesize(ctx context.Context, b Batch, c Controls) (Output, error) {
	inputs, err := b.Inputs(c)
	if err != nil {
		return Output{}, fmt.Errorf("build inputs: %w", err)
	}

	n := int64(b.Len())
	if err := checkInputs(inputs, n); err != nil {
		return Output{}, err
	}

	outputs, err := s.runner.Run(ctx, inputs)
	if err != nil {
		return Output{}, err
	}

	out, err := checkOutputs(outputs, n)
	if err != nil {
		return Output{}, err
	}

	slog.Debug("synthesized batch", "utterances", b.Len(), "mel_shape", out.Mel.Shape())

	return out, nil
}

func (s *ONNXSynthesizer) Close() { s.runner.Close() }
