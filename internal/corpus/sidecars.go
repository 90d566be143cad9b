package corpus

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/example/agecorpus/internal/manifest"
)

// Sidecar extensions written next to each audio file.
const (
	LabExt = ".lab"
	AgeExt = ".age"
)

// SidecarReport summarises a WriteSidecars call.
type SidecarReport struct {
	Written int
	// NoFolder counts rows whose speaker folder does not exist.
	NoFolder int
}

// WriteSidecars writes a .lab file holding the transcript and an .age file
// holding the age category for every row, named after the audio stem in
// the speaker's folder. Contents carry no trailing newline.
func WriteSidecars(m manifest.Manifest, root string) (SidecarReport, error) {
	var rep SidecarReport

	for _, r := range m.Records {
		dir := filepath.Join(root, r.SpeakerID)
		if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
			rep.NoFolder++
			continue
		}

		audio := Destination(root, r)
		stem := strings.TrimSuffix(audio, filepath.Ext(audio))

		if err := os.WriteFile(stem+LabExt, []byte(r.Transcript), 0o644); err != nil {
			return rep, fmt.Errorf("write transcript for %s: %w", r.AudioPath, err)
		}

		if err := os.WriteFile(stem+AgeExt, []byte(r.Age), 0o644); err != nil {
			return rep, fmt.Errorf("write age for %s: %w", r.AudioPath, err)
		}

		rep.Written++
	}

	return rep, nil
}
