package synth

import (
	"fmt"
	"math"
)

type DType string

const (
	DTypeFloat32 DType = "float32"
	DTypeInt64   DType = "int64"
)

// Tensor is a dense row-major tensor owned by Go memory.
type Tensor struct {
	dtype DType
	shape []int64
	data  any
}

func NewTensor[T ~int64 | ~float32](data []T, shape []int64) (*Tensor, error) {
	count, err := elementCount(shape)
	if err != nil {
		return nil, err
	}
	if count != len(data) {
		return nil, fmt.Errorf("shape %v expects %d elements, got %d", shape, count, len(data))
	}

	t := &Tensor{shape: append([]int64(nil), shape...)}

	var zero T
	switch any(zero).(type) {
	case float32:
		converted := make([]float32, len(data))
		for i, v := range data {
			converted[i] = float32(v)
		}
		t.dtype, t.data = DTypeFloat32, converted
	case int64:
		converted := make([]int64, len(data))
		for i, v := range data {
			converted[i] = int64(v)
		}
		t.dtype, t.data = DTypeInt64, converted
	default:
		return nil, fmt.Errorf("unsupported tensor data type %T", zero)
	}

	return t, nil
}

func (t *Tensor) DType() DType { return t.dtype }

func (t *Tensor) Shape() []int64 { return append([]int64(nil), t.shape...) }

// Data returns a copy of the backing slice ([]float32 or []int64).
func (t *Tensor) Data() any {
	switch v := t.data.(type) {
	case []float32:
		return append([]float32(nil), v...)
	case []int64:
		return append([]int64(nil), v...)
	default:
		return nil
	}
}

// Float32 returns the data of a float32 tensor.
func (t *Tensor) Float32() ([]float32, error) {
	if t == nil {
		return nil, fmt.Errorf("nil tensor")
	}

	data, ok := t.data.([]float32)
	if !ok {
		return nil, fmt.Errorf("expected float32 tensor, got %s", t.dtype)
	}

	return append([]float32(nil), data...), nil
}

// Int64 returns the data of an int64 tensor.
func (t *Tensor) Int64() ([]int64, error) {
	if t == nil {
		return nil, fmt.Errorf("nil tensor")
	}

	data, ok := t.data.([]int64)
	if !ok {
		return nil, fmt.Errorf("expected int64 tensor, got %s", t.dtype)
	}

	return append([]int64(nil), data...), nil
}

// elementCount multiplies the dimensions. Zero-sized dimensions are valid
// for model outputs; negative ones are not.
func elementCount(shape []int64) (int, error) {
	count := int64(1)
	for i, dim := range shape {
		if dim < 0 {
			return 0, fmt.Errorf("shape[%d]=%d is negative", i, dim)
		}
		if dim > 0 && count > math.MaxInt64/dim {
			return 0, fmt.Errorf("shape %v overflows element count", shape)
		}
		count *= dim
	}
	if count > int64(math.MaxInt) {
		return 0, fmt.Errorf("shape %v exceeds platform int capacity", shape)
	}

	return int(count), nil
}
