// Package exclude finds the Python files to check and keeps virtualenvs,
// caches and build output out of the run.
package exclude

import (
	"os"
	"path/filepath"
	"strings"
)

// skipDirs are never descended into.
var skipDirs = map[string]bool{
	"__pycache__":   true,
	".git":          true,
	".hg":           true,
	".tox":          true,
	".nox":          true,
	".mypy_cache":   true,
	".ovocheck":     true,
	".eggs":         true,
	"node_modules":  true,
	"build":         true,
	"dist":          true,
	"site-packages": true,
}

// AutoExcludeResult contains the directories to exclude and why.
type AutoExcludeResult struct {
	// Directories to exclude (relative to project root)
	Directories []string
	// Reasons maps each directory to why it was excluded
	Reasons map[string]string
}

// Excluded reports whether rel, a path relative to the project root, is one
// of the directories or below one.
func (r *AutoExcludeResult) Excluded(rel string) bool {
	rel = filepath.Clean(rel)
	for _, dir := range r.Directories {
		if rel == dir || strings.HasPrefix(rel, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// DetectAutoExcludes scans the project root for virtualenvs and the egg-info
// metadata of installed packages. Detection only relies on marker files, so
// a directory is never excluded on its name alone.
func DetectAutoExcludes(projectRoot string) *AutoExcludeResult {
	result := &AutoExcludeResult{
		Directories: []string{},
		Reasons:     make(map[string]string),
	}

	add := func(dir, reason string) {
		if !contains(result.Directories, dir) {
			result.Directories = append(result.Directories, dir)
			result.Reasons[dir] = reason
		}
	}

	_ = filepath.WalkDir(projectRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil || path == projectRoot {
			return nil // Skip directories we can't read
		}
		relPath, err := filepath.Rel(projectRoot, path)
		if err != nil {
			return nil
		}

		if d.IsDir() {
			if result.Excluded(relPath) || skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			if strings.HasSuffix(d.Name(), ".egg-info") {
				add(relPath, "package metadata (.egg-info)")
				return filepath.SkipDir
			}
			// A virtualenv is marked by pyvenv.cfg in its root.
			if fileExists(filepath.Join(path, "pyvenv.cfg")) {
				add(relPath, "Python virtual environment (pyvenv.cfg detected)")
				return filepath.SkipDir
			}
			if fileExists(filepath.Join(path, "conda-meta", "history")) {
				add(relPath, "conda environment (conda-meta/history detected)")
				return filepath.SkipDir
			}
		}
		return nil
	})

	return result
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// contains checks if a string is in a slice.
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
