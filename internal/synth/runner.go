//go:build !windows

package synth

import (
	"context"
	"errors"
	"fmt"

	ort "github.com/shota3506/onnxruntime-purego/onnxruntime"
)

// DefaultAPIVersion is the ORT C API version requested when none is set.
const DefaultAPIVersion uint32 = 23

// ModelConfig locates the ORT shared library and the exported model.
type ModelConfig struct {
	LibraryPath string
	APIVersion  uint32
	ModelPath   string
}

// modelSession feeds the acoustic model through one ORT session. Inputs
// are bound in modelInputs order; outputs come back by graph name.
type modelSession struct {
	path    string
	runtime *ort.Runtime
	env     *ort.Env
	session *ort.Session
}

func openModel(cfg ModelConfig) (*modelSession, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("model path is required")
	}
	if cfg.APIVersion == 0 {
		cfg.APIVersion = DefaultAPIVersion
	}

	rt, err := ort.NewRuntime(cfg.LibraryPath, cfg.APIVersion)
	if err != nil {
		return nil, fmt.Errorf("ort runtime %s: %w", cfg.LibraryPath, err)
	}

	s := &modelSession{path: cfg.ModelPath, runtime: rt}

	s.env, err = rt.NewEnv("agecorpus-synth", ort.LoggingLevelWarning)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("ort env: %w", err)
	}

	s.session, err = rt.NewSession(s.env, cfg.ModelPath, nil)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("load acoustic model %s: %w", cfg.ModelPath, err)
	}

	return s, nil
}

func (s *modelSession) Run(ctx context.Context, inputs map[string]*Tensor) (map[string]*Tensor, error) {
	if s.session == nil {
		return nil, fmt.Errorf("acoustic model %s is closed", s.path)
	}

	feed := make(map[string]*ort.Value, len(modelInputs))
	defer closeValues(feed)

	for _, spec := range modelInputs {
		t, ok := inputs[spec.name]
		if !ok {
			return nil, fmt.Errorf("missing model input %q", spec.name)
		}

		v, err := toValue(s.runtime, t)
		if err != nil {
			return nil, fmt.Errorf("model input %q: %w", spec.name, err)
		}

		feed[spec.name] = v
	}

	fetched, err := s.session.Run(ctx, feed)
	if err != nil {
		return nil, fmt.Errorf("run acoustic model %s: %w", s.path, err)
	}
	defer closeValues(fetched)

	outputs := make(map[string]*Tensor, len(fetched))
	for name, v := range fetched {
		t, err := fromValue(v)
		if err != nil {
			return nil, fmt.Errorf("model output %q: %w", name, err)
		}

		outputs[name] = t
	}

	return outputs, nil
}

// Close releases the session, env and runtime. Safe to call twice.
func (s *modelSession) Close() {
	if s.session != nil {
		s.session.Close()
		s.session = nil
	}

	if s.env != nil {
		s.env.Close()
		s.env = nil
	}

	if s.runtime != nil {
		_ = s.runtime.Close()
		s.runtime = nil
	}
}

// toValue copies t into an ORT tensor. The model signature only uses
// int64 ids and float32 controls.
func toValue(rt *ort.Runtime, t *Tensor) (*ort.Value, error) {
	switch t.DType() {
	case DTypeInt64:
		data, err := t.Int64()
		if err != nil {
			return nil, err
		}

		return ort.NewTensorValue(rt, data, t.Shape())
	case DTypeFloat32:
		data, err := t.Float32()
		if err != nil {
			return nil, err
		}

		return ort.NewTensorValue(rt, data, t.Shape())
	default:
		return nil, fmt.Errorf("unsupported dtype %s", t.DType())
	}
}

func fromValue(v *ort.Value) (*Tensor, error) {
	elemType, err := v.GetTensorElementType()
	if err != nil {
		return nil, fmt.Errorf("element type: %w", err)
	}

	switch elemType {
	case ort.ONNXTensorElementDataTypeFloat:
		data, shape, err := ort.GetTensorData[float32](v)
		if err != nil {
			return nil, err
		}

		return NewTensor(data, shape)
	case ort.ONNXTensorElementDataTypeInt64:
		data, shape, err := ort.GetTensorData[int64](v)
		if err != nil {
			return nil, err
		}

		return NewTensor(data, shape)
	default:
		return nil, fmt.Errorf("unsupported ORT element type %d", elemType)
	}
}

func closeValues(vals map[string]*ort.Value) {
	for _, v := range vals {
		if v != nil {
			v.Close()
		}
	}
}
