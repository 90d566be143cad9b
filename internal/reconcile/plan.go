package reconcile

import (
	"path"
	"slices"
	"strings"

	"github.com/example/agecorpus/internal/manifest"
)

// DefaultSidecarExtensions are per-utterance text files kept next to their
// referenced audio.
var DefaultSidecarExtensions = []string{".lab", ".age"}

// Kind is the action applied to one path.
type Kind string

const (
	DeleteFile   Kind = "delete-file"
	DeleteFolder Kind = "delete-folder"
)

// Action is one planned deletion. Path is slash-separated and relative to
// the tree root.
type Action struct {
	Kind Kind
	Path string
}

// Plan is the pure outcome of Classify.
type Plan struct {
	Actions []Action
	// Missing holds manifest rows whose audio is absent on disk.
	Missing manifest.Manifest
	// Kept counts files that stay in place, sidecars included.
	Kept    int
	Ignored []string
}

// Options configures Classify and Execute.
type Options struct {
	// SidecarExtensions defaults to DefaultSidecarExtensions when nil.
	SidecarExtensions []string
	// DryRun plans and reports without touching the tree.
	DryRun bool
}

func (o Options) sidecars() []string {
	if o.SidecarExtensions == nil {
		return DefaultSidecarExtensions
	}

	return o.SidecarExtensions
}

// Classify compares m with tree and plans the deletions and missing-file
// reports that would make them agree. It performs no I/O.
//
// File deletions are planned folder by folder; folders with no manifest
// rows follow in a final top-level pass.
func Classify(m manifest.Manifest, tree Tree, opts Options) Plan {
	audio := make(map[string]map[string]bool)
	stems := make(map[string]map[string]bool)

	for _, r := range m.Records {
		rel := cleanRel(r.AudioPath)
		if audio[r.SpeakerID] == nil {
			audio[r.SpeakerID] = make(map[string]bool)
			stems[r.SpeakerID] = make(map[string]bool)
		}

		audio[r.SpeakerID][rel] = true
		stems[r.SpeakerID][stem(rel)] = true
	}

	sidecars := opts.sidecars()
	plan := Plan{Ignored: slices.Clone(tree.Loose)}

	var orphans []Action

	present := make(map[string]bool)

	for _, f := range tree.Folders {
		refs, known := audio[f.Name]
		if !known {
			orphans = append(orphans, Action{Kind: DeleteFolder, Path: f.Name})
			continue
		}

		for _, file := range f.Files {
			switch {
			case refs[file]:
				present[f.Name+"/"+file] = true
				plan.Kept++
			case isSidecar(file, sidecars) && stems[f.Name][stem(file)]:
				plan.Kept++
			default:
				plan.Actions = append(plan.Actions, Action{Kind: DeleteFile, Path: f.Name + "/" + file})
			}
		}
	}

	plan.Actions = append(plan.Actions, orphans...)

	var missing []manifest.Record

	for _, r := range m.Records {
		if !present[r.SpeakerID+"/"+cleanRel(r.AudioPath)] {
			missing = append(missing, r.Clone())
		}
	}

	plan.Missing = m.WithRecords(missing)

	return plan
}

func cleanRel(p string) string {
	return strings.TrimPrefix(path.Clean(strings.ReplaceAll(p, "\\", "/")), "./")
}

func stem(p string) string { return strings.TrimSuffix(p, path.Ext(p)) }

func isSidecar(p string, exts []string) bool {
	return slices.Contains(exts, strings.ToLower(path.Ext(p)))
}
