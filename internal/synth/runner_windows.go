//go:build windows

package synth

import (
	"context"
	"errors"
)

const DefaultAPIVersion uint32 = 23

type ModelConfig struct {
	LibraryPath string
	APIVersion  uint32
	ModelPath   string
}

// modelSession is unavailable in windows builds.
type modelSession struct{}

var errNoRuntime = errors.New("onnx runtime is unavailable on windows")

func openModel(ModelConfig) (*modelSession, error) { return nil, errNoRuntime }

func (s *modelSession) Run(context.Context, map[string]*Tensor) (map[string]*Tensor, error) {
	return nil, errNoRuntime
}

func (s *modelSession) Close() {}
