package reconcile

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/example/agecorpus/internal/manifest"
)

// Report is the divergence report of one run. One deletion is one removed
// file or one removed folder.
type Report struct {
	DeletedFiles   int
	DeletedFolders int
	// Deleted lists removed paths; folders carry a trailing slash.
	Deleted []string
	Missing manifest.Manifest
	Kept    int
	Ignored []string
	DryRun  bool
}

// DeletedCount is the total number of deletions.
func (r Report) DeletedCount() int { return r.DeletedFiles + r.DeletedFolders }

// MissingCount is the number of rows whose audio is absent.
func (r Report) MissingCount() int { return r.Missing.Len() }

// Execute applies plan under root. Every action is attempted; failures are
// joined into the returned error and left out of the report.
func Execute(plan Plan, root string, opts Options) (Report, error) {
	rep := Report{
		Missing: plan.Missing,
		Kept:    plan.Kept,
		Ignored: plan.Ignored,
		DryRun:  opts.DryRun,
	}

	var errs []error

	for _, a := range plan.Actions {
		target := filepath.Join(root, filepath.FromSlash(a.Path))

		if !opts.DryRun {
			var err error

			switch a.Kind {
			case DeleteFile:
				err = os.Remove(target)
			case DeleteFolder:
				err = os.RemoveAll(target)
			default:
				err = fmt.Errorf("unknown action %q", a.Kind)
			}

			if err != nil {
				errs = append(errs, fmt.Errorf("%s %s: %w", a.Kind, a.Path, err))
				continue
			}
		}

		slog.Debug("reconcile", "action", string(a.Kind), "path", a.Path, "dry_run", opts.DryRun)

		switch a.Kind {
		case DeleteFile:
			rep.DeletedFiles++
			rep.Deleted = append(rep.Deleted, a.Path)
		case DeleteFolder:
			rep.DeletedFolders++
			rep.Deleted = append(rep.Deleted, a.Path+"/")
		}
	}

	return rep, errors.Join(errs...)
}

// Run scans root, classifies it against m and executes the plan.
func Run(m manifest.Manifest, root string, opts Options) (Report, error) {
	tree, err := Scan(root)
	if err != nil {
		return Report{}, err
	}

	return Execute(Classify(m, tree, opts), root, opts)
}
