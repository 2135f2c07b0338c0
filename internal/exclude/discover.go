package exclude

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Matches reports whether rel matches one of the glob patterns. A pattern
// without a separator is matched against the base name, otherwise against
// the slash separated relative path. A trailing "/**" matches everything
// below a directory.
func Matches(patterns []string, rel string) bool {
	rel = filepath.ToSlash(rel)
	base := filepath.Base(rel)
	for _, p := range patterns {
		if dir, ok := strings.CutSuffix(p, "/**"); ok {
			if rel == dir || strings.HasPrefix(rel, dir+"/") {
				return true
			}
			continue
		}
		target := rel
		if !strings.Contains(p, "/") {
			target = base
		}
		if ok, _ := filepath.Match(p, target); ok {
			return true
		}
	}
	return false
}

// Discover returns the Python files to check under paths, sorted. Files
// named explicitly are always included; directories are walked, skipping
// caches, build output, auto-detected environments and files matching the
// exclude patterns. Paths are interpreted relative to root.
func Discover(root string, paths []string, patterns []string) ([]string, error) {
	auto := DetectAutoExcludes(root)

	seen := make(map[string]bool)
	var files []string
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, p := range paths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(root, p)
		}
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if !info.IsDir() {
			add(p)
			continue
		}

		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil || strings.HasPrefix(rel, "..") {
				rel, _ = filepath.Rel(p, path)
			}
			if d.IsDir() {
				if path == p {
					return nil
				}
				if skipDirs[d.Name()] || auto.Excluded(rel) || Matches(patterns, rel) {
					return filepath.SkipDir
				}
				return nil
			}
			if filepath.Ext(path) != ".py" || Matches(patterns, rel) {
				return nil
			}
			add(path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", p, err)
		}
	}

	sort.Strings(files)
	return files, nil
}
