package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cwbudde/wav"
)

// Format is the expected layout of corpus audio.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// DefaultFormat is what the acoustic model is trained on: 16 kHz mono PCM_16.
var DefaultFormat = Format{SampleRate: 16000, Channels: 1, BitDepth: 16}

// ErrFormatMismatch is returned when a decoded WAV does not match the expected format.
var ErrFormatMismatch = errors.New("WAV format mismatch")

// ErrInvalidWAV is returned for input the decoder does not recognise.
var ErrInvalidWAV = errors.New("invalid WAV file")

// Info describes one decoded WAV file.
type Info struct {
	Format
	Frames int
}

// Duration is the playback length derived from frame count and rate.
func (i Info) Duration() time.Duration {
	if i.SampleRate <= 0 {
		return 0
	}

	return time.Duration(float64(i.Frames) / float64(i.SampleRate) * float64(time.Second))
}

// Seconds is Duration in seconds.
func (i Info) Seconds() float64 {
	if i.SampleRate <= 0 {
		return 0
	}

	return float64(i.Frames) / float64(i.SampleRate)
}

// Check compares the decoded format against want. Zero fields in want are
// not checked.
func (i Info) Check(want Format) error {
	if want.SampleRate != 0 && i.SampleRate != want.SampleRate {
		return fmt.Errorf("%w: sample rate %d, want %d", ErrFormatMismatch, i.SampleRate, want.SampleRate)
	}
	if want.Channels != 0 && i.Channels != want.Channels {
		return fmt.Errorf("%w: channels %d, want %d", ErrFormatMismatch, i.Channels, want.Channels)
	}
	if want.BitDepth != 0 && i.BitDepth != want.BitDepth {
		return fmt.Errorf("%w: bit depth %d, want %d", ErrFormatMismatch, i.BitDepth, want.BitDepth)
	}

	return nil
}

// Inspect reads r's header and returns its format and frame count. For
// fixed-width encodings the count comes from the data chunk size, capped
// at the bytes actually present, without decoding any samples. Other
// encodings are decoded.
func Inspect(r io.ReadSeeker) (Info, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return Info{}, ErrInvalidWAV
	}

	info := Info{Format: Format{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
	}}

	if err := dec.FwdToPCM(); err != nil {
		return Info{}, fmt.Errorf("locating PCM data: %w", err)
	}

	if frameBytes := info.frameBytes(dec.WavAudioFormat); frameBytes > 0 {
		size, err := payloadSize(r, dec.PCMLen())
		if err != nil {
			return Info{}, err
		}

		info.Frames = int(size / frameBytes)

		return info, nil
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Info{}, fmt.Errorf("reading PCM data: %w", err)
	}

	if info.Channels > 0 {
		info.Frames = len(buf.Data) / info.Channels
	}

	return info, nil
}

// WAVE format tags whose frames all have the same byte width.
const (
	formatPCM       = 1
	formatIEEEFloat = 3
	formatALaw      = 6
	formatMuLaw     = 7
)

// frameBytes is the size of one frame, or 0 when it is not fixed.
func (i Info) frameBytes(tag uint16) int64 {
	switch tag {
	case formatPCM, formatIEEEFloat, formatALaw, formatMuLaw:
	default:
		return 0
	}

	if i.Channels < 1 || i.BitDepth < 8 || i.BitDepth%8 != 0 {
		return 0
	}

	return int64(i.Channels) * int64(i.BitDepth/8)
}

// payloadSize clamps the declared data chunk size to what remains in r.
// Streaming writers often leave the size unset or too large.
func payloadSize(r io.Seeker, declared int64) (int64, error) {
	cur, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("locating PCM data: %w", err)
	}

	end, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("locating PCM data: %w", err)
	}

	if avail := end - cur; declared <= 0 || declared > avail {
		return avail, nil
	}

	return declared, nil
}

// InspectFile opens path and calls Inspect.
func InspectFile(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()

	info, err := Inspect(f)
	if err != nil {
		return Info{}, fmt.Errorf("%s: %w", path, err)
	}

	return info, nil
}

// DecodeWAV decodes WAV bytes in the given format and returns float32 PCM
// samples, interleaved when multi-channel.
func DecodeWAV(data []byte, want Format) ([]float32, error) {
	if len(data) == 0 {
		return nil, errors.New("empty WAV input")
	}

	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, ErrInvalidWAV
	}

	got := Info{Format: Format{SampleRate: int(dec.SampleRate), Channels: int(dec.NumChans), BitDepth: int(dec.BitDepth)}}
	if err := got.Check(want); err != nil {
		return nil, err
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("reading PCM data: %w", err)
	}

	return buf.Data, nil
}
