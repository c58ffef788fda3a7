// Package fsutil provides file system helpers shared by the pipeline:
// deterministic tree walks, atomic replacement of output files and the
// single-runner lock.
package fsutil

import (
	"io/fs"
	"path/filepath"
	"sort"
)

// WalkFiles returns every regular file under root as a slash-separated path
// relative to root, sorted lexically. Entries whose relative path equals an
// excluded path, or lies below one, are skipped. Excluded paths are relative
// to root.
func WalkFiles(root string, exclude []string) ([]string, error) {
	skip := make(map[string]struct{}, len(exclude))
	for _, e := range exclude {
		e = filepath.ToSlash(filepath.Clean(e))
		if e == "." || e == "" {
			continue
		}
		skip[e] = struct{}{}
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		if _, ok := skip[rel]; ok {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}
