// Package plugin defines the hook protocol between the semantic analyzer and
// checker plugins.
//
// A plugin is consulted while classes are analyzed. For every decorator and
// every base class in the MRO the analyzer asks the plugin whether it wants to
// see the class; a non-nil ClassDefHook is then invoked with a context that
// exposes the class, a diagnostic surface and name lookup.
package plugin

import (
	"github.com/ovo-tools/ovocheck/internal/nodes"
)

// Options is the host configuration visible to plugins.
type Options struct {
	// Verbosity > 0 asks plugins to log what they do.
	Verbosity int
	// Settings carries plugin specific key/value configuration from the
	// config file, keyed by plugin name.
	Settings map[string]map[string][]string
}

// PluginSettings returns the settings block for one plugin, never nil.
func (o Options) PluginSettings(name string) map[string][]string {
	if s, ok := o.Settings[name]; ok && s != nil {
		return s
	}
	return map[string][]string{}
}

// SemanticAPI is the part of the semantic analyzer a hook may use.
type SemanticAPI interface {
	// Fail reports an error attached to ctx.
	Fail(msg string, ctx nodes.Context)
	// LookupQualified resolves a possibly dotted name as seen from ctx's
	// scope. It returns nil when the name does not resolve.
	LookupQualified(name string, ctx nodes.Context) *nodes.SymbolTableNode
	// LookupFullyQualifiedOrNone resolves a fullname such as
	// "oslo_versionedobjects.fields.IntegerField".
	LookupFullyQualifiedOrNone(fullname string) *nodes.SymbolTableNode
	// ParseBool returns the value of a literal True/False expression.
	ParseBool(expr nodes.Expression) (value bool, ok bool)
	// Options returns the host options.
	Options() Options
}

// ClassDefContext is passed to class hooks.
type ClassDefContext struct {
	Cls *nodes.ClassDef
	// Reason is the decorator or base expression that triggered the hook.
	Reason nodes.Expression
	API    SemanticAPI
}

// ClassDefHook is invoked for one class.
type ClassDefHook func(ctx *ClassDefContext)

// Plugin is implemented by checker plugins. Both methods return nil when the
// plugin is not interested in fullname.
type Plugin interface {
	// ClassDecoratorHook is called with the fullname of each class decorator.
	ClassDecoratorHook(fullname string) ClassDefHook
	// BaseClassHook is called with the fullname of each class in the MRO of
	// the class being analyzed, excluding the class itself.
	BaseClassHook(fullname string) ClassDefHook
}

// Constructor instantiates a plugin for one checker run.
type Constructor func(opts Options) Plugin

// EntryPoint is the registration handshake: given the host version it
// returns the constructor to use.
type EntryPoint func(version string) Constructor

// Chain combines plugins. The first plugin that returns a hook wins.
type Chain []Plugin

// ClassDecoratorHook implements Plugin.
func (c Chain) ClassDecoratorHook(fullname string) ClassDefHook {
	for _, p := range c {
		if hook := p.ClassDecoratorHook(fullname); hook != nil {
			return hook
		}
	}
	return nil
}

// BaseClassHook implements Plugin.
func (c Chain) BaseClassHook(fullname string) ClassDefHook {
	for _, p := range c {
		if hook := p.BaseClassHook(fullname); hook != nil {
			return hook
		}
	}
	return nil
}

// Nop is a plugin that never hooks anything.
type Nop struct{}

// ClassDecoratorHook implements Plugin.
func (Nop) ClassDecoratorHook(string) ClassDefHook { return nil }

// BaseClassHook implements Plugin.
func (Nop) BaseClassHook(string) ClassDefHook { return nil }
