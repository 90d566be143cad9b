// Package testutil provides shared fixtures and skip helpers for tests.
//
// Skip helpers call t.Skipf with a clear human-readable reason when the named
// prerequisite is absent, so integration tests remain runnable in partial
// environments without failing noisily.
//
// Typical usage:
//
//	func TestSynthIntegration(t *testing.T) {
//	    lib := testutil.RequireONNXRuntime(t)
//	    model := testutil.RequireSynthModel(t)
//	    ...
//	}
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/agecorpus/internal/audio"
	"github.com/example/agecorpus/internal/manifest"
)

// RequireONNXRuntime skips the test if no ONNX Runtime shared library can be
// located and returns the library path otherwise. It checks (in order): the
// ORT_LIBRARY_PATH env var, then AGECORPUS_RUNTIME_ORT_LIBRARY_PATH, then
// common system library paths.
func RequireONNXRuntime(tb testing.TB) string {
	tb.Helper()

	for _, env := range []string{"ORT_LIBRARY_PATH", "AGECORPUS_RUNTIME_ORT_LIBRARY_PATH"} {
		if p := os.Getenv(env); p != "" {
			if _, err := os.Stat(p); err == nil {
				return p
			}

			tb.Skipf("ONNX Runtime library not found at %s=%q", env, p)

			return ""
		}
	}

	candidates := []string{
		"/usr/lib/libonnxruntime.so",
		"/usr/local/lib/libonnxruntime.so",
		"/usr/lib/x86_64-linux-gnu/libonnxruntime.so",
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	tb.Skipf("ONNX Runtime shared library not found; set ORT_LIBRARY_PATH or AGECORPUS_RUNTIME_ORT_LIBRARY_PATH")

	return ""
}

// RequireSynthModel skips the test unless AGECORPUS_RUNTIME_MODEL_PATH names an
// existing ONNX graph, and returns that path.
func RequireSynthModel(tb testing.TB) string {
	tb.Helper()

	p := os.Getenv("AGECORPUS_RUNTIME_MODEL_PATH")
	if p == "" {
		tb.Skipf("synthesis model not configured; set AGECORPUS_RUNTIME_MODEL_PATH")
		return ""
	}

	if _, err := os.Stat(p); err != nil {
		tb.Skipf("synthesis model not found at %q: %v", p, err)
		return ""
	}

	return p
}

// WriteWAV writes a silent WAV of the given length in seconds and format to
// path, creating parent directories.
func WriteWAV(tb testing.TB, path string, seconds float64, f audio.Format) {
	tb.Helper()

	frames := int(seconds * float64(f.SampleRate))
	samples := make([]float32, frames*f.Channels)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		tb.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}

	if err := audio.WriteWAVFile(path, samples, f); err != nil {
		tb.Fatalf("write WAV %s: %v", path, err)
	}
}

// Tree creates entries under root. Keys ending in "/" become empty
// directories; other keys become files holding the mapped content.
func Tree(tb testing.TB, root string, entries map[string]string) {
	tb.Helper()

	for rel, content := range entries {
		p := filepath.Join(root, filepath.FromSlash(rel))

		if strings.HasSuffix(rel, "/") {
			if err := os.MkdirAll(p, 0o755); err != nil {
				tb.Fatalf("mkdir %s: %v", p, err)
			}

			continue
		}

		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			tb.Fatalf("mkdir %s: %v", filepath.Dir(p), err)
		}

		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			tb.Fatalf("write %s: %v", p, err)
		}
	}
}

// Files lists every regular file below root as slash-separated relative
// paths in lexical order.
func Files(tb testing.TB, root string) []string {
	tb.Helper()

	var out []string

	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			rel, err := filepath.Rel(root, p)
			if err != nil {
				return err
			}
			out = append(out, filepath.ToSlash(rel))
		}

		return nil
	})
	if err != nil {
		tb.Fatalf("walk %s: %v", root, err)
	}

	return out
}

// WriteManifest writes m as a TSV manifest to path.
func WriteManifest(tb testing.TB, path string, m manifest.Manifest) {
	tb.Helper()

	if err := manifest.WriteFile(path, m); err != nil {
		tb.Fatalf("write manifest %s: %v", path, err)
	}
}
