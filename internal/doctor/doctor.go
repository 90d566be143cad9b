// Package doctor provides environment preflight checks for agecorpus.
package doctor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/example/agecorpus/internal/manifest"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// RuntimeFunc locates the ONNX Runtime library and returns a description of
// it, or an error if it is unavailable.
type RuntimeFunc func() (string, error)

// Config holds the paths to check and injectable dependencies.
type Config struct {
	// ManifestPath is the manifest a run would start from. Empty skips.
	ManifestPath string
	// ReadManifest defaults to manifest.ReadFile.
	ReadManifest func(path string) (manifest.Manifest, error)
	// AudioRoot is the speaker-folder tree. Empty skips.
	AudioRoot string
	// DurationTable is the clip-duration side table. Empty means durations
	// must come from probing AudioRoot or SourceDir.
	DurationTable string
	// SourceDir is the flat directory audio is materialised from. Empty skips.
	SourceDir string
	// ReportDir must be creatable and writable. Empty skips.
	ReportDir string
	// Runtime checks the ORT library. Nil skips, since synthesis is optional.
	Runtime RuntimeFunc
	// ModelPath is the exported ONNX graph. Empty skips.
	ModelPath string
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

type reporter struct {
	w   io.Writer
	res *Result
}

func (p reporter) pass(format string, args ...any) {
	fmt.Fprintf(p.w, "%s %s\n", PassMark, fmt.Sprintf(format, args...))
}

func (p reporter) fail(check string, err error) {
	p.res.failures = append(p.res.failures, fmt.Sprintf("%s: %v", check, err))
	fmt.Fprintf(p.w, "%s %s: %v\n", FailMark, check, err)
}

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	p := reporter{w: w, res: &res}

	// ---- manifest ---------------------------------------------------------
	if cfg.ManifestPath == "" {
		p.pass("manifest: skipped")
	} else {
		read := cfg.ReadManifest
		if read == nil {
			read = manifest.ReadFile
		}

		m, err := read(cfg.ManifestPath)
		if err != nil {
			p.fail("manifest", err)
		} else {
			p.pass("manifest: %s (%d rows)", cfg.ManifestPath, m.Len())
		}
	}

	// ---- audio root -------------------------------------------------------
	audioOK := false

	if cfg.AudioRoot == "" {
		p.pass("audio root: skipped")
	} else if err := requireDir(cfg.AudioRoot); err != nil {
		p.fail("audio root", err)
	} else {
		audioOK = true

		p.pass("audio root: %s", cfg.AudioRoot)
	}

	// ---- duration source --------------------------------------------------
	var probeDirs []string

	if audioOK {
		probeDirs = append(probeDirs, cfg.AudioRoot)
	}
	if cfg.SourceDir != "" && requireDir(cfg.SourceDir) == nil {
		probeDirs = append(probeDirs, cfg.SourceDir)
	}

	probeDesc := strings.Join(probeDirs, ", ")

	switch {
	case cfg.DurationTable != "":
		if err := requireFile(cfg.DurationTable); err != nil {
			if len(probeDirs) > 0 {
				p.pass("duration source: probe %s (side table unavailable: %v)", probeDesc, err)
			} else {
				p.fail("duration source", err)
			}
		} else {
			p.pass("duration source: side table %s", cfg.DurationTable)
		}
	case len(probeDirs) > 0:
		p.pass("duration source: probe %s", probeDesc)
	default:
		p.fail("duration source", errors.New("neither duration table, audio root nor source dir available"))
	}

	// ---- report dir -------------------------------------------------------
	if cfg.ReportDir == "" {
		p.pass("report dir: skipped")
	} else if err := probeWritable(cfg.ReportDir); err != nil {
		p.fail("report dir", err)
	} else {
		p.pass("report dir: %s", cfg.ReportDir)
	}

	// ---- onnx runtime -----------------------------------------------------
	if cfg.Runtime == nil {
		p.pass("onnx runtime: skipped")
	} else if info, err := cfg.Runtime(); err != nil {
		p.fail("onnx runtime", err)
	} else {
		p.pass("onnx runtime: %s", info)
	}

	if cfg.ModelPath != "" {
		if err := requireFile(cfg.ModelPath); err != nil {
			p.fail("synthesis model", err)
		} else {
			p.pass("synthesis model: %s", cfg.ModelPath)
		}
	}

	return res
}

func requireDir(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}

	return nil
}

func requireFile(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	if fi.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}

	return nil
}

// probeWritable creates dir if needed and writes and removes a temp file.
func probeWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return err
	}

	name := f.Name()
	closeErr := f.Close()

	if err := os.Remove(name); err != nil {
		return err
	}

	return closeErr
}
