// Package ovo teaches the checker about oslo versioned objects.
//
// Versioned objects declare their attributes in a class level dict literal:
//
//	@base.VersionedObjectRegistry.register
//	class Instance(base.VersionedObject):
//	    fields = {
//	        'id': fields.IntegerField(),
//	        'host': fields.StringField(nullable=True),
//	    }
//
// At runtime the registry turns every entry into a real attribute. Statically
// the checker only sees the dict, so this plugin reads it and adds a typed
// attribute per entry to the class symbol table. The attribute type comes
// from the AUTO_TYPE marker the field stub declares; nullable=True widens it
// to Optional.
//
// A class is augmented when one of its decorators, or one of the classes in
// its MRO, has a fullname containing a configured trigger. Triggers default
// to VersionedObjectRegistry and can be overridden with the
// OVO_MYPY_DECORATOR_CLASSES and OVO_MYPY_BASE_CLASSES environment variables.
package ovo

import (
	"io"

	"go.uber.org/zap"

	"github.com/ovo-tools/ovocheck/internal/plugin"
)

// Name is the registry name of the plugin.
const Name = "ovo"

func init() {
	plugin.Register(Name, Entry)
}

// Entry is the registration entry point. Every host version is supported.
func Entry(version string) plugin.Constructor {
	return func(opts plugin.Options) plugin.Plugin {
		return New(opts)
	}
}

// VersionedObjectPlugin augments versioned object classes.
type VersionedObjectPlugin struct {
	opts      plugin.Options
	defaults  Settings
	lookupEnv LookupEnv
	log       *zap.Logger
}

// Option customizes a VersionedObjectPlugin.
type Option func(*pluginConfig)

type pluginConfig struct {
	lookupEnv LookupEnv
	logger    *zap.Logger
	output    io.Writer
}

// WithEnv replaces the process environment lookup.
func WithEnv(lookup LookupEnv) Option {
	return func(c *pluginConfig) { c.lookupEnv = lookup }
}

// WithLogger sets the logger used when verbosity is enabled.
func WithLogger(logger *zap.Logger) Option {
	return func(c *pluginConfig) { c.logger = logger }
}

// WithOutput sets where log lines go when verbosity is enabled. Defaults to
// standard output.
func WithOutput(w io.Writer) Option {
	return func(c *pluginConfig) { c.output = w }
}

// New returns a plugin for one checker run.
func New(opts plugin.Options, options ...Option) *VersionedObjectPlugin {
	cfg := &pluginConfig{}
	for _, o := range options {
		o(cfg)
	}

	log := zap.NewNop()
	if opts.Verbosity > 0 {
		log = cfg.logger
		if log == nil {
			log = newLogger(cfg.output, opts.Verbosity)
		}
	}

	return &VersionedObjectPlugin{
		opts:      opts,
		defaults:  SettingsFromConfig(opts.PluginSettings(Name)),
		lookupEnv: cfg.lookupEnv,
		log:       log,
	}
}

// Settings returns a fresh configuration snapshot.
func (p *VersionedObjectPlugin) Settings() Settings {
	return LoadSettings(p.lookupEnv, p.defaults)
}

// ClassDecoratorHook implements plugin.Plugin.
func (p *VersionedObjectPlugin) ClassDecoratorHook(fullname string) plugin.ClassDefHook {
	if p.Settings().IsCandidate([]string{fullname}, nil) {
		return p.GenerateFieldDefs
	}
	return nil
}

// BaseClassHook implements plugin.Plugin.
func (p *VersionedObjectPlugin) BaseClassHook(fullname string) plugin.ClassDefHook {
	if p.Settings().IsCandidate(nil, []string{fullname}) {
		return p.GenerateFieldDefs
	}
	return nil
}
