package duration

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/example/agecorpus/internal/audio"
	"github.com/example/agecorpus/internal/manifest"
	"golang.org/x/sync/errgroup"
)

// ProbeFailure is a recognised audio file that could not be measured.
type ProbeFailure struct {
	Path string
	Err  error
}

// ProbeResult is the outcome of measuring audio files under one root.
// Table only matches files by their path relative to that root.
type ProbeResult struct {
	Table    *Table
	Failures []ProbeFailure
}

// ProbeTree measures every recognised audio file directly under root or
// one level below it (per-speaker folders). Files are probed by up to
// workers goroutines; the result does not depend on completion order.
func ProbeTree(ctx context.Context, root string, prober audio.Prober, workers int) (ProbeResult, error) {
	if prober == nil {
		prober = audio.WAVProber{}
	}

	files, err := listAudio(root, prober)
	if err != nil {
		return ProbeResult{}, err
	}

	return probeFiles(ctx, root, files, prober, workers)
}

// ProbeReferenced measures only the audio paths m refers to, resolved
// against a flat source directory. Paths that are absent or not
// recognised by prober are skipped and later reported as unresolved.
func ProbeReferenced(ctx context.Context, sourceDir string, m manifest.Manifest, prober audio.Prober, workers int) (ProbeResult, error) {
	if prober == nil {
		prober = audio.WAVProber{}
	}

	info, err := os.Stat(sourceDir)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("read source dir: %w", err)
	}
	if !info.IsDir() {
		return ProbeResult{}, fmt.Errorf("source dir %s is not a directory", sourceDir)
	}

	var files []string

	seen := make(map[string]bool)

	for _, r := range m.Records {
		rel := cleanPath(r.AudioPath)
		if seen[rel] || rel == "." || strings.HasPrefix(rel, "../") || !audio.Recognised(prober, rel) {
			continue
		}

		seen[rel] = true

		fi, err := os.Stat(filepath.Join(sourceDir, filepath.FromSlash(rel)))
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}

		files = append(files, rel)
	}

	return probeFiles(ctx, sourceDir, files, prober, workers)
}

func probeFiles(ctx context.Context, root string, files []string, prober audio.Prober, workers int) (ProbeResult, error) {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}

	seconds := make([]float64, len(files))
	errs := make([]error, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, rel := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			seconds[i], errs[i] = prober.Duration(filepath.Join(root, filepath.FromSlash(rel)))

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return ProbeResult{}, err
	}

	res := ProbeResult{Table: newPathTable()}

	for i, rel := range files {
		if errs[i] != nil {
			slog.Debug("probe failed", "path", rel, "error", errs[i])
			res.Failures = append(res.Failures, ProbeFailure{Path: rel, Err: errs[i]})

			continue
		}

		res.Table.Add(rel, seconds[i])
	}

	return res, nil
}

// listAudio returns slash-separated paths relative to root in directory
// order, which os.ReadDir sorts by name.
func listAudio(root string, prober audio.Prober) ([]string, error) {
	top, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read audio root: %w", err)
	}

	var files []string

	for _, e := range top {
		if !e.IsDir() {
			if e.Type().IsRegular() && audio.Recognised(prober, e.Name()) {
				files = append(files, e.Name())
			}

			continue
		}

		sub, err := os.ReadDir(filepath.Join(root, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read speaker folder: %w", err)
		}

		for _, f := range sub {
			if f.Type().IsRegular() && audio.Recognised(prober, f.Name()) {
				files = append(files, path.Join(e.Name(), f.Name()))
			}
		}
	}

	return files, nil
}
