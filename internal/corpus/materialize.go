// Package corpus builds and inspects the per-speaker audio tree that the
// reconciler and the training loader consume.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/example/agecorpus/internal/manifest"
)

// MaterializeReport summarises a Materialize call.
type MaterializeReport struct {
	Copied   int
	Existing int
	// Missing holds rows whose source audio was not found.
	Missing manifest.Manifest
}

// Destination returns where r's audio lives under root.
func Destination(root string, r manifest.Record) string {
	return filepath.Join(root, r.SpeakerID, filepath.FromSlash(r.AudioPath))
}

// Materialize copies each row's audio from the flat sourceDir into
// root/<speaker_id>/<audio_path>. Files already in place are left alone and
// absent sources are reported, not fatal.
func Materialize(ctx context.Context, m manifest.Manifest, sourceDir, root string) (MaterializeReport, error) {
	var (
		rep     MaterializeReport
		missing []manifest.Record
	)

	for _, r := range m.Records {
		if err := ctx.Err(); err != nil {
			return MaterializeReport{}, err
		}

		dst := Destination(root, r)
		if _, err := os.Stat(dst); err == nil {
			rep.Existing++
			continue
		}

		src := filepath.Join(sourceDir, filepath.FromSlash(r.AudioPath))

		err := copyFile(src, dst)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			missing = append(missing, r.Clone())
		case err != nil:
			return MaterializeReport{}, fmt.Errorf("materialize %s: %w", r.AudioPath, err)
		default:
			rep.Copied++
		}
	}

	rep.Missing = m.WithRecords(missing)

	return rep, nil
}

// copyFile writes src to dst through a temporary file in dst's directory.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return fmt.Errorf("create speaker folder: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".copy-*")
	if err != nil {
		return err
	}

	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("copy %s: %w", src, err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}

	return os.Rename(tmp.Name(), dst)
}
