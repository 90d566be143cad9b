package testutil

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/example/agecorpus/internal/audio"
)

// AssertValidWAV checks that data is a PCM WAV file in format f with at
// least one sample.
func AssertValidWAV(tb testing.TB, data []byte, f audio.Format) {
	tb.Helper()

	if len(data) < 44 {
		tb.Fatalf("WAV data too short: %d bytes", len(data))
	}

	if string(data[0:4]) != "RIFF" {
		tb.Fatalf("WAV: missing RIFF header (got %q)", string(data[0:4]))
	}

	if string(data[8:12]) != "WAVE" {
		tb.Fatalf("WAV: missing WAVE marker (got %q)", string(data[8:12]))
	}

	if string(data[12:16]) != "fmt " {
		tb.Fatalf("WAV: missing fmt chunk (got %q)", string(data[12:16]))
	}

	audioFmt := binary.LittleEndian.Uint16(data[20:22])
	if audioFmt != 1 {
		tb.Fatalf("WAV: expected PCM format (1), got %d", audioFmt)
	}

	channels := binary.LittleEndian.Uint16(data[22:24])
	if int(channels) != f.Channels {
		tb.Fatalf("WAV: expected %d channel(s), got %d", f.Channels, channels)
	}

	sampleRate := binary.LittleEndian.Uint32(data[24:28])
	if int(sampleRate) != f.SampleRate {
		tb.Fatalf("WAV: expected sample rate %d, got %d", f.SampleRate, sampleRate)
	}

	bitDepth := binary.LittleEndian.Uint16(data[34:36])
	if int(bitDepth) != f.BitDepth {
		tb.Fatalf("WAV: expected %d-bit depth, got %d", f.BitDepth, bitDepth)
	}

	dataSize, err := findDataChunkSize(data)
	if err != nil {
		tb.Fatalf("WAV: %v", err)
	}

	if dataSize == 0 {
		tb.Fatal("WAV: data chunk contains zero samples")
	}
}

// AssertWAVDurationApprox asserts that the WAV audio duration falls within
// [minSec, maxSec], assuming format f.
func AssertWAVDurationApprox(tb testing.TB, data []byte, f audio.Format, minSec, maxSec float64) {
	tb.Helper()

	dataSize, err := findDataChunkSize(data)
	if err != nil {
		tb.Fatalf("WAV duration check: %v", err)
	}

	frameBytes := f.Channels * f.BitDepth / 8
	if frameBytes == 0 || f.SampleRate == 0 {
		tb.Fatalf("WAV duration check: invalid format %+v", f)
	}

	durationSec := float64(int(dataSize)/frameBytes) / float64(f.SampleRate)
	if durationSec < minSec || durationSec > maxSec {
		tb.Fatalf("WAV duration %.3fs out of expected range [%.3fs, %.3fs]", durationSec, minSec, maxSec)
	}
}

// findDataChunkSize walks the WAV chunk list to locate the "data" sub-chunk
// and returns its size in bytes.
func findDataChunkSize(data []byte) (uint32, error) {
	// Start after the 12-byte RIFF/WAVE header.
	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])

		size := binary.LittleEndian.Uint32(data[offset+4 : offset+8])
		if id == "data" {
			return size, nil
		}

		offset += 8 + int(size)
		// Pad to even boundary.
		if size%2 != 0 {
			offset++
		}
	}

	return 0, errors.New("data chunk not found in WAV")
}
