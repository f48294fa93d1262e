// Package finder locates snapshot files under a directory.
package finder

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// SnapshotExtensions are the file extensions a snapshot may use.
var SnapshotExtensions = []string{".json", ".yaml", ".yml", ".toml"}

// IsSnapshotFile reports whether path has a snapshot extension.
func IsSnapshotFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SnapshotExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// FindSnapshotFiles walks root and returns every snapshot file in lexical
// order, skipping hidden directories.
func FindSnapshotFiles(root string) ([]string, error) {
	files := make([]string, 0)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			name := d.Name()
			if path != root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if IsSnapshotFile(path) {
			files = append(files, path)
		}
		return nil
	})

	sort.Strings(files)
	return files, err
}
