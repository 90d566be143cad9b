package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/example/agecorpus/internal/manifest"
	"github.com/spf13/cobra"
)

// stdio is the path that selects stdin for --in and stdout for --out.
const stdio = "-"

func addIOFlags(cmd *cobra.Command, in, out *string) {
	cmd.Flags().StringVar(in, "in", "", "Input manifest TSV ('-' for stdin)")
	cmd.Flags().StringVar(out, "out", "", "Output manifest TSV ('-' for stdout)")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("out")
}

func readManifest(cmd *cobra.Command, path string) (manifest.Manifest, error) {
	if path == "" {
		return manifest.Manifest{}, errors.New("--in is required")
	}

	if path == stdio {
		return manifest.Read(cmd.InOrStdin())
	}

	return manifest.ReadFile(path)
}

func writeManifest(cmd *cobra.Command, path string, m manifest.Manifest) error {
	if path == "" {
		return errors.New("--out is required")
	}

	if path == stdio {
		return manifest.Write(cmd.OutOrStdout(), m)
	}

	return manifest.WriteFile(path, m)
}

// openOutput returns stdout for "-" and a created file otherwise.
func openOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" || path == stdio {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create %s: %w", path, err)
	}

	return f, f.Close, nil
}

// infof writes a status line for humans. Machine-readable output goes to
// stdout only when --out is "-", so status lines go to stderr.
func infof(cmd *cobra.Command, format string, args ...any) {
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
}
