// Package reconcile brings an on-disk audio tree into agreement with a
// manifest. It only ever removes files and reports what it cannot find.
package reconcile

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
)

// Folder is one per-speaker directory. Files holds slash-separated paths
// relative to the folder, including files in nested directories.
type Folder struct {
	Name  string
	Files []string
}

// Tree is a read-only snapshot of an audio root.
type Tree struct {
	Root    string
	Folders []Folder
	// Loose holds regular files directly under Root. They are outside the
	// speaker layout and never touched.
	Loose []string
}

// Scan walks root one level of speaker folders deep and records every file
// below each folder. Output is sorted by name.
func Scan(root string) (Tree, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return Tree{}, fmt.Errorf("scan audio root: %w", err)
	}

	tree := Tree{Root: root}

	for _, e := range entries {
		if !e.IsDir() {
			tree.Loose = append(tree.Loose, e.Name())
			continue
		}

		folder := Folder{Name: e.Name()}
		dir := filepath.Join(root, e.Name())

		err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}

			rel, err := filepath.Rel(dir, p)
			if err != nil {
				return err
			}

			folder.Files = append(folder.Files, filepath.ToSlash(rel))

			return nil
		})
		if err != nil {
			return Tree{}, fmt.Errorf("scan speaker folder %s: %w", e.Name(), err)
		}

		slices.Sort(folder.Files)
		tree.Folders = append(tree.Folders, folder)
	}

	return tree, nil
}

// Folder returns the named folder.
func (t Tree) Folder(name string) (Folder, bool) {
	for _, f := range t.Folders {
		if f.Name == name {
			return f, true
		}
	}

	return Folder{}, false
}
