package audio

import (
	"path/filepath"
	"slices"
	"strings"
)

// Prober measures the duration of audio files it recognises.
type Prober interface {
	// Duration returns the file's length in seconds.
	Duration(path string) (float64, error)
	// Extensions lists the lower-case extensions, with dot, the prober reads.
	Extensions() []string
}

// WAVProber probes RIFF/WAVE files from their headers.
type WAVProber struct{}

func (WAVProber) Duration(path string) (float64, error) {
	info, err := InspectFile(path)
	if err != nil {
		return 0, err
	}

	return info.Seconds(), nil
}

func (WAVProber) Extensions() []string { return []string{".wav"} }

// Recognised reports whether path has one of p's extensions.
func Recognised(p Prober, path string) bool {
	return slices.Contains(p.Extensions(), strings.ToLower(filepath.Ext(path)))
}
