package corpus

import (
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/example/agecorpus/internal/audio"
)

// AuditIssue is one WAV file that does not conform.
type AuditIssue struct {
	Path string
	Err  error
}

// AuditReport is the outcome of Audit.
type AuditReport struct {
	Checked int
	Issues  []AuditIssue
}

// OK reports whether every checked file conformed.
func (r AuditReport) OK() bool { return len(r.Issues) == 0 }

// Audit decodes every WAV in each speaker folder under root and checks it
// against want. It never modifies files.
func Audit(root string, want audio.Format) (AuditReport, error) {
	folders, err := os.ReadDir(root)
	if err != nil {
		return AuditReport{}, fmt.Errorf("read audio root: %w", err)
	}

	var (
		rep    AuditReport
		prober audio.WAVProber
	)

	for _, folder := range folders {
		if !folder.IsDir() {
			continue
		}

		files, err := os.ReadDir(filepath.Join(root, folder.Name()))
		if err != nil {
			return AuditReport{}, fmt.Errorf("read speaker folder: %w", err)
		}

		for _, f := range files {
			if !f.Type().IsRegular() || !audio.Recognised(prober, f.Name()) {
				continue
			}

			rel := path.Join(folder.Name(), f.Name())
			rep.Checked++

			info, err := audio.InspectFile(filepath.Join(root, folder.Name(), f.Name()))
			if err == nil {
				err = info.Check(want)
			}

			if err != nil {
				rep.Issues = append(rep.Issues, AuditIssue{Path: rel, Err: err})
			}
		}
	}

	return rep, nil
}
