package synth

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
)

// OutputMelLens names the optional per-utterance frame count output.
const OutputMelLens = "mel_lens"

// Utterance returns utterance i's mel as a [frames, bins] slice, trimmed
// to its predicted length when the graph exports mel_lens.
func (o Output) Utterance(i int) ([]float32, []int64, error) {
	shape := o.Mel.Shape()
	if len(shape) != 3 {
		return nil, nil, fmt.Errorf("mel has shape %v, want [batch, frames, bins]", shape)
	}
	if i < 0 || int64(i) >= shape[0] {
		return nil, nil, fmt.Errorf("utterance %d out of range for batch of %d", i, shape[0])
	}

	data, err := o.Mel.Float32()
	if err != nil {
		return nil, nil, err
	}

	frames, bins := shape[1], shape[2]
	if lens, ok := o.Predictions[OutputMelLens]; ok {
		if n, err := lens.Int64(); err == nil && i < len(n) && n[i] >= 0 && n[i] < frames {
			frames = n[i]
		}
	}

	start := int64(i) * shape[1] * bins

	return data[start : start+frames*bins], []int64{frames, bins}, nil
}

// WriteNPY writes a little-endian float32 array in NumPy .npy v1.0 format.
func WriteNPY(w io.Writer, data []float32, shape []int64) error {
	count, err := elementCount(shape)
	if err != nil {
		return err
	}
	if count != len(data) {
		return fmt.Errorf("shape %v expects %d elements, got %d", shape, count, len(data))
	}

	dims := make([]string, len(shape))
	for i, d := range shape {
		dims[i] = fmt.Sprint(d)
	}
	tuple := strings.Join(dims, ", ")
	if len(shape) == 1 {
		tuple += ","
	}

	header := fmt.Sprintf("{'descr': '<f4', 'fortran_order': False, 'shape': (%s), }", tuple)
	// magic(6) + version(2) + header length(2) + header + '\n' is 64-byte aligned.
	pad := 64 - (10+len(header)+1)%64
	if pad == 64 {
		pad = 0
	}
	header += strings.Repeat(" ", pad) + "\n"

	var buf bytes.Buffer
	buf.WriteString("\x93NUMPY")
	buf.Write([]byte{1, 0})
	_ = binary.Write(&buf, binary.LittleEndian, uint16(len(header)))
	buf.WriteString(header)

	body := make([]byte, 4*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint32(body[4*i:], math.Float32bits(v))
	}
	buf.Write(body)

	_, err = w.Write(buf.Bytes())

	return err
}

// WriteNPYFile writes data to path with WriteNPY.
func WriteNPYFile(path string, data []float32, shape []int64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := WriteNPY(f, data, shape); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}

	return f.Close()
}
