// Package project ties a working directory to its configuration, result
// cache and source files, and runs checks for the CLI and the MCP server.
package project

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/ovo-tools/ovocheck/internal/build"
	"github.com/ovo-tools/ovocheck/internal/cache"
	"github.com/ovo-tools/ovocheck/internal/config"
	"github.com/ovo-tools/ovocheck/internal/exclude"
	"github.com/ovo-tools/ovocheck/internal/ovo"
	"github.com/ovo-tools/ovocheck/internal/stubs"
)

// Project is a directory tree being checked.
type Project struct {
	// Root is the directory module names are relative to: the parent of the
	// config directory, or the working directory without one.
	Root string
	// ConfigDir is the .ovocheck directory, empty when there is none.
	ConfigDir string
	Config    *config.Config

	log *zap.Logger
}

// Open loads the configuration governing workDir.
func Open(workDir string, log *zap.Logger) (*Project, error) {
	if log == nil {
		log = zap.NewNop()
	}
	absDir, err := filepath.Abs(workDir)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	p := &Project{Root: absDir, log: log}
	configDir, err := config.FindConfigDir(absDir)
	switch {
	case errors.Is(err, config.ErrConfigNotFound):
		p.Config = config.DefaultConfig()
	case err != nil:
		return nil, err
	default:
		p.ConfigDir = configDir
		p.Root = filepath.Dir(configDir)
		if p.Config, err = config.LoadFromPath(filepath.Join(configDir, config.ConfigFileName)); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// New wraps an already loaded configuration.
func New(root string, cfg *config.Config, log *zap.Logger) *Project {
	if log == nil {
		log = zap.NewNop()
	}
	return &Project{Root: root, Config: cfg, log: log}
}

// BuildOptions returns the build options the configuration describes.
func (p *Project) BuildOptions() build.Options {
	return build.Options{
		Plugins:          p.Config.Check.Plugins,
		PluginOptions:    p.Config.PluginOptions(),
		StubPaths:        p.Config.Check.StubPaths,
		CheckUntypedDefs: p.Config.Check.CheckUntypedDefs,
		Logger:           p.log,
	}
}

// Request selects what to check: an inline program, or paths relative to
// the project root. Without either the whole project is checked.
type Request struct {
	Code     string
	Paths    []string
	NoCache  bool
	Override func(*build.Options)
}

// Sources resolves a request to the modules to check.
func (p *Project) Sources(req Request) ([]build.Source, error) {
	if req.Code != "" {
		return []build.Source{build.Inline(req.Code)}, nil
	}
	paths := req.Paths
	if len(paths) == 0 {
		paths = []string{p.Root}
	}
	files, err := exclude.Discover(p.Root, paths, p.Config.Check.Exclude)
	if err != nil {
		return nil, err
	}
	p.log.Debug("discovered files", zap.Int("count", len(files)))
	return build.ReadFiles(p.Root, files)
}

// Check runs a request. The second return reports a cache hit.
func (p *Project) Check(ctx context.Context, req Request) (*build.Result, bool, error) {
	sources, err := p.Sources(req)
	if err != nil {
		return nil, false, err
	}
	opts := p.BuildOptions()
	if req.Override != nil {
		req.Override(&opts)
	}

	// Plugin log output is a side effect a cached result cannot replay.
	useCache := !req.NoCache && p.ConfigDir != "" && p.Config.Cache.IsEnabled() &&
		opts.PluginOptions.Verbosity == 0 && opts.Plugin == nil
	if !useCache {
		res, err := build.Build(ctx, opts, sources)
		return res, false, err
	}

	c, err := cache.Open(p.ConfigDir)
	if err != nil {
		return nil, false, err
	}
	defer c.Close()

	key, err := Fingerprint(opts, sources)
	if err != nil {
		return nil, false, err
	}
	if res, ok, err := c.Lookup(key); err != nil {
		p.log.Warn("cache lookup failed", zap.Error(err))
	} else if ok {
		p.log.Debug("cache hit", zap.String("fingerprint", key))
		return res, true, nil
	}

	hashes := make(map[string]string, len(sources))
	for _, src := range sources {
		if src.Path != build.InlinePath {
			hashes[src.Path] = cache.HashContent(src.Content)
		}
	}
	if changed, err := c.ChangedFiles(hashes); err == nil {
		p.log.Debug("files changed since last check", zap.Int("count", len(changed)))
	}

	res, err := build.Build(ctx, opts, sources)
	if err != nil {
		return nil, false, err
	}
	if err := c.Save(key, res); err != nil {
		p.log.Warn("saving result failed", zap.Error(err))
	}
	if err := c.RecordFiles(hashes); err != nil {
		p.log.Warn("recording files failed", zap.Error(err))
	}
	if n, err := c.PruneMissing(); err == nil && n > 0 {
		p.log.Debug("pruned deleted files from the index", zap.Int("count", n))
	}
	return res, false, nil
}

// Fingerprint keys a run by everything that can change its result: the
// sources, the stub set, the plugins with their settings, and the trigger
// environment variables.
func Fingerprint(opts build.Options, sources []build.Source) (string, error) {
	fp := cache.NewFingerprint().AddString("host", build.HostVersion)

	for _, name := range opts.Plugins {
		fp.AddString("plugin", name)
	}
	fp.AddString("verbosity", strconv.Itoa(opts.PluginOptions.Verbosity))
	fp.AddString("untyped", strconv.FormatBool(opts.CheckUntypedDefs))

	plugins := make([]string, 0, len(opts.PluginOptions.Settings))
	for name := range opts.PluginOptions.Settings {
		plugins = append(plugins, name)
	}
	sort.Strings(plugins)
	for _, name := range plugins {
		settings := opts.PluginOptions.Settings[name]
		keys := make([]string, 0, len(settings))
		for k := range settings {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			for _, v := range settings[k] {
				fp.AddString(name+"."+k, v)
			}
		}
	}

	for _, env := range []string{ovo.DecoratorClassesEnv, ovo.BaseClassesEnv} {
		v, ok := os.LookupEnv(env)
		fp.AddString(env, strconv.FormatBool(ok)+v)
	}

	mods, err := stubs.Load(opts.StubPaths)
	if err != nil {
		return "", err
	}
	for _, m := range mods {
		fp.AddString("stub", m.Name).Add(m.Path, m.Source)
	}
	for _, src := range sources {
		fp.AddString("module", src.Module).AddString("path", src.Path).Add("pkg", []byte(strconv.FormatBool(src.IsPkg))).Add("source", src.Content)
	}
	return fp.Sum(), nil
}
