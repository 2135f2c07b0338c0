// Package stubs provides the type stubs the checker analyzes before user
// code: a small builtins and typing surface plus oslo_versionedobjects.
package stubs

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

//go:embed all:typeshed
var bundled embed.FS

const bundledRoot = "typeshed"

// Module is one stub module.
type Module struct {
	Name   string
	Path   string
	Source []byte
	IsPkg  bool
}

// Read returns a bundled stub file, e.g. "oslo_versionedobjects/fields.pyi".
func Read(name string) ([]byte, error) {
	return bundled.ReadFile(path.Join(bundledRoot, name))
}

// Bundled returns every embedded stub module sorted by name.
func Bundled() ([]Module, error) {
	root, err := fs.Sub(bundled, bundledRoot)
	if err != nil {
		return nil, err
	}
	mods, err := collect(root, "<stubs>")
	if err != nil {
		return nil, fmt.Errorf("reading bundled stubs: %w", err)
	}
	return mods, nil
}

// Load returns the bundled stubs with modules from dirs layered on top.
// A module found in an earlier dir wins over later dirs and the bundled set.
func Load(dirs []string) ([]Module, error) {
	mods, err := Bundled()
	if err != nil {
		return nil, err
	}
	byName := make(map[string]Module, len(mods))
	for _, m := range mods {
		byName[m.Name] = m
	}

	for i := len(dirs) - 1; i >= 0; i-- {
		dir := dirs[i]
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return nil, fmt.Errorf("stub path %s is not a directory", dir)
		}
		extra, err := collect(os.DirFS(dir), dir)
		if err != nil {
			return nil, fmt.Errorf("reading stubs from %s: %w", dir, err)
		}
		for _, m := range extra {
			byName[m.Name] = m
		}
	}

	out := make([]Module, 0, len(byName))
	for _, m := range byName {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func collect(fsys fs.FS, base string) ([]Module, error) {
	var mods []Module
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, ".pyi") {
			return nil
		}
		src, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		name, isPkg := ModuleName(p)
		mods = append(mods, Module{
			Name:   name,
			Path:   filepath.Join(base, filepath.FromSlash(p)),
			Source: src,
			IsPkg:  isPkg,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(mods, func(i, j int) bool { return mods[i].Name < mods[j].Name })
	return mods, nil
}

// ModuleName turns a slash separated path relative to a source root into a
// module name. Package __init__ files name the package itself.
func ModuleName(rel string) (name string, isPkg bool) {
	rel = strings.TrimPrefix(filepath.ToSlash(rel), "./")
	rel = strings.TrimSuffix(strings.TrimSuffix(rel, ".pyi"), ".py")
	if rel == "__init__" {
		return "", true
	}
	if strings.HasSuffix(rel, "/__init__") {
		rel = strings.TrimSuffix(rel, "/__init__")
		isPkg = true
	}
	return strings.ReplaceAll(rel, "/", "."), isPkg
}
