package synth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// RuntimeInfo describes a located ONNX Runtime shared library.
type RuntimeInfo struct {
	LibraryPath string
	Version     string
}

var versionPattern = regexp.MustCompile(`([0-9]+\.[0-9]+\.[0-9]+)`)

// ErrRuntimeNotFound is returned when no ORT library could be located.
var ErrRuntimeNotFound = errors.New("unable to detect ONNX Runtime library path")

// systemLibraries are probed when no path is configured.
var systemLibraries = []string{
	"/usr/lib/libonnxruntime.so",
	"/usr/local/lib/libonnxruntime.so",
	"/opt/homebrew/lib/libonnxruntime.dylib",
	"C:/onnxruntime/lib/onnxruntime.dll",
}

// DetectRuntime resolves the ORT library from path, then ORT_LIBRARY_PATH,
// then well-known install locations.
func DetectRuntime(path string) (RuntimeInfo, error) {
	if path == "" {
		path = os.Getenv("ORT_LIBRARY_PATH")
	}

	if path == "" {
		for _, c := range systemLibraries {
			if _, err := os.Stat(c); err == nil {
				path = c
				break
			}
		}
	}

	if path == "" {
		return RuntimeInfo{LibraryPath: "not found", Version: "unknown"}, ErrRuntimeNotFound
	}

	if _, err := os.Stat(path); err != nil {
		return RuntimeInfo{LibraryPath: path, Version: "unknown"}, fmt.Errorf("onnx runtime library path check failed: %w", err)
	}

	version := os.Getenv("ORT_VERSION")
	if version == "" {
		version = inferVersion(path)
	}

	if version == "" {
		version = "unknown"
	}

	return RuntimeInfo{LibraryPath: path, Version: version}, nil
}

func inferVersion(path string) string {
	if m := versionPattern.FindStringSubmatch(filepath.Base(path)); len(m) == 2 {
		return m[1]
	}

	return ""
}
