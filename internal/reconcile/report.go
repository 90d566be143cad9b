package reconcile

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/example/agecorpus/internal/manifest"
)

// ReportPaths returns the missing and deleted report locations for corpus
// under dir.
func ReportPaths(dir, corpus string) (missing, deleted string) {
	return filepath.Join(dir, corpus+"_missing_files.txt"), filepath.Join(dir, corpus+"_deleted_files.txt")
}

// WriteReports persists rep as {corpus}_missing_files.txt, in manifest
// format, and {corpus}_deleted_files.txt, one path per line.
func WriteReports(dir, corpus string, rep Report) (missing, deleted string, err error) {
	missing, deleted = ReportPaths(dir, corpus)

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", "", fmt.Errorf("create report dir: %w", err)
	}

	if err := manifest.WriteFile(missing, rep.Missing); err != nil {
		return "", "", fmt.Errorf("write missing report: %w", err)
	}

	f, err := os.Create(deleted)
	if err != nil {
		return "", "", fmt.Errorf("create deleted report: %w", err)
	}

	w := bufio.NewWriter(f)
	for _, p := range rep.Deleted {
		_, _ = w.WriteString(p)
		_ = w.WriteByte('\n')
	}

	if err := w.Flush(); err != nil {
		_ = f.Close()
		return "", "", fmt.Errorf("write deleted report: %w", err)
	}

	if err := f.Close(); err != nil {
		return "", "", fmt.Errorf("close deleted report: %w", err)
	}

	return missing, deleted, nil
}
