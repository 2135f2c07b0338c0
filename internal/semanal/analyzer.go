// Package semanal is the semantic analyzer: it binds module and class names,
// resolves imports, builds class models with their MRO, turns annotations
// into types and runs plugin class hooks.
//
// Analysis of a set of modules happens in passes. Names are bound for every
// module first so imports can be resolved in any order. Classes are then
// analyzed base-first, and each class is handed to the plugin hooks right
// after its body is known, before any subclass is analyzed.
package semanal

import (
	"strings"

	"github.com/ovo-tools/ovocheck/internal/diag"
	"github.com/ovo-tools/ovocheck/internal/nodes"
	"github.com/ovo-tools/ovocheck/internal/plugin"
)

// Scope is where a name is looked up: a module and, inside a class body,
// the class.
type Scope struct {
	Module *nodes.MypyFile
	Class  *nodes.TypeInfo
}

type classState int

const (
	unvisited classState = iota
	active
	done
)

// Analyzer runs semantic analysis over a set of modules.
type Analyzer struct {
	plugin plugin.Plugin
	opts   plugin.Options
	errs   *diag.Collector

	modules map[string]*nodes.MypyFile
	order   []*nodes.MypyFile
	classes []*nodes.TypeInfo

	enclosing map[*nodes.TypeInfo]Scope
	state     map[*nodes.TypeInfo]classState
	baseExprs map[*nodes.TypeInfo][]nodes.Expression
	resolving map[*nodes.SymbolTableNode]bool
	wildcards []wildcardImport

	current *nodes.MypyFile
}

type wildcardImport struct {
	into   *nodes.MypyFile
	module string
}

// New returns an analyzer. p may be nil.
func New(p plugin.Plugin, opts plugin.Options, errs *diag.Collector) *Analyzer {
	if p == nil {
		p = plugin.Nop{}
	}
	if errs == nil {
		errs = diag.NewCollector()
	}
	return &Analyzer{
		plugin:    p,
		opts:      opts,
		errs:      errs,
		modules:   make(map[string]*nodes.MypyFile),
		enclosing: make(map[*nodes.TypeInfo]Scope),
		state:     make(map[*nodes.TypeInfo]classState),
		baseExprs: make(map[*nodes.TypeInfo][]nodes.Expression),
		resolving: make(map[*nodes.SymbolTableNode]bool),
	}
}

// Analyze processes files. Files are analyzed as one unit: any of them may
// import any other.
func (a *Analyzer) Analyze(files []*nodes.MypyFile) {
	for _, f := range files {
		if f.Names == nil {
			f.Names = make(nodes.SymbolTable)
		}
		a.modules[f.Fullname] = f
		a.order = append(a.order, f)
	}

	for _, f := range files {
		a.bindModule(f)
	}
	a.applyWildcards()
	for _, f := range files {
		a.resolveModuleNames(f)
	}
	for _, f := range files {
		a.resolveAliases(f)
	}
	for _, info := range a.classes {
		a.analyzeClass(info)
	}
	for _, f := range files {
		restore := a.enterModule(f)
		a.analyzeModuleBody(f, f.Defs)
		restore()
	}
}

// Modules returns the analyzed modules in the order they were given.
func (a *Analyzer) Modules() []*nodes.MypyFile {
	return a.order
}

// Classes returns every class model in the order classes were bound.
func (a *Analyzer) Classes() []*nodes.TypeInfo {
	return a.classes
}

// Module returns a module by fullname, or nil.
func (a *Analyzer) Module(fullname string) *nodes.MypyFile {
	return a.modules[fullname]
}

// Errors returns the collector diagnostics are reported to.
func (a *Analyzer) Errors() *diag.Collector {
	return a.errs
}

// enterModule attributes diagnostics to f until the returned func is called.
// Stub modules are analyzed without reporting.
func (a *Analyzer) enterModule(f *nodes.MypyFile) func() {
	prevModule, prevFile := a.current, a.errs.File()
	a.current = f
	a.errs.SetFile(f.Path)
	a.errs.SetQuiet(f.IsStub)
	return func() {
		a.current = prevModule
		a.errs.SetFile(prevFile)
		a.errs.SetQuiet(prevModule != nil && prevModule.IsStub)
	}
}

// Builtin returns the builtins class called name, or nil.
func (a *Analyzer) Builtin(name string) *nodes.TypeInfo {
	b := a.modules["builtins"]
	if b == nil {
		return nil
	}
	if sym, ok := b.Names[name]; ok {
		if info, ok := sym.Node.(*nodes.TypeInfo); ok {
			return info
		}
	}
	return nil
}

// BuiltinType returns an instance of a builtins class, falling back to Any
// when the stub does not define it.
func (a *Analyzer) BuiltinType(name string, args ...nodes.Type) nodes.Type {
	if info := a.Builtin(name); info != nil {
		return nodes.NewInstance(info, args...)
	}
	return nodes.NewAny(nodes.SpecialFormAny)
}

// Lookup resolves a bare name in scope: class body, module, then builtins.
func (a *Analyzer) Lookup(name string, sc Scope) *nodes.SymbolTableNode {
	if sc.Class != nil {
		if sym, ok := sc.Class.Names[name]; ok {
			return sym
		}
	}
	if sc.Module != nil {
		if sym, ok := sc.Module.Names[name]; ok {
			a.resolveNode(sym)
			return sym
		}
	}
	if b := a.modules["builtins"]; b != nil && !isPrivate(name) {
		if sym, ok := b.Names[name]; ok {
			a.resolveNode(sym)
			return sym
		}
	}
	return nil
}

// isPrivate reports single underscore names. Dunder names such as __name__
// are module attributes every module sees through builtins.
func isPrivate(name string) bool {
	return strings.HasPrefix(name, "_") && !strings.HasPrefix(name, "__")
}

// LookupQualified resolves a dotted name such as "fields.IntegerField".
func (a *Analyzer) LookupQualified(name string, sc Scope) *nodes.SymbolTableNode {
	parts := strings.Split(name, ".")
	sym := a.Lookup(parts[0], sc)
	for _, part := range parts[1:] {
		if sym == nil {
			return nil
		}
		sym = a.Member(sym, part)
	}
	return sym
}

// LookupFullyQualified resolves a fullname, or returns nil.
func (a *Analyzer) LookupFullyQualified(fullname string) *nodes.SymbolTableNode {
	if m := a.modules[fullname]; m != nil {
		return &nodes.SymbolTableNode{Kind: nodes.GDEF, Node: m}
	}
	parts := strings.Split(fullname, ".")
	for i := len(parts) - 1; i >= 1; i-- {
		m := a.modules[strings.Join(parts[:i], ".")]
		if m == nil {
			continue
		}
		sym, ok := m.Names[parts[i]]
		if !ok {
			return nil
		}
		a.resolveNode(sym)
		for _, part := range parts[i+1:] {
			if sym = a.Member(sym, part); sym == nil {
				return nil
			}
		}
		return sym
	}
	return nil
}

// Member resolves an attribute of a module or class symbol.
func (a *Analyzer) Member(sym *nodes.SymbolTableNode, name string) *nodes.SymbolTableNode {
	switch n := sym.Node.(type) {
	case *nodes.MypyFile:
		if m, ok := n.Names[name]; ok {
			a.resolveNode(m)
			return m
		}
		if sub := a.modules[n.Fullname+"."+name]; sub != nil {
			return &nodes.SymbolTableNode{Kind: nodes.GDEF, Node: sub}
		}
	case *nodes.TypeInfo:
		a.analyzeClass(n)
		return n.Get(name)
	}
	return nil
}

// resolveNode points an import entry at what it refers to. Imports that
// cannot be resolved become Any typed variables so that code using them is
// checked permissively.
func (a *Analyzer) resolveNode(sym *nodes.SymbolTableNode) {
	if sym.Node != nil || sym.CrossRef == "" || a.resolving[sym] {
		return
	}
	a.resolving[sym] = true
	defer delete(a.resolving, sym)

	if target := a.LookupFullyQualified(sym.CrossRef); target != nil && target.Node != nil {
		sym.Node = target.Node
		return
	}
	name := sym.CrossRef[strings.LastIndex(sym.CrossRef, ".")+1:]
	sym.Node = &nodes.Var{
		Name:     name,
		Fullname: sym.CrossRef,
		Type:     nodes.NewAny(nodes.FromError),
	}
}

// RefFullname resolves the fullname a dotted reference denotes, following
// call expressions to their callee. Past an unresolved or opaque prefix the
// remaining dotted parts are appended to the prefix fullname.
func (a *Analyzer) RefFullname(e nodes.Expression, sc Scope) string {
	if call, ok := e.(*nodes.CallExpr); ok {
		e = call.Callee
	}
	name, ok := nodes.DottedName(e)
	if !ok {
		return ""
	}
	parts := strings.Split(name, ".")
	sym := a.Lookup(parts[0], sc)
	if sym == nil {
		return ""
	}
	full := sym.Fullname()
	for i, part := range parts[1:] {
		next := a.Member(sym, part)
		if next == nil {
			full = full + "." + strings.Join(parts[1+i:], ".")
			setRefFullname(e, full)
			return full
		}
		sym = next
		full = sym.Fullname()
	}
	setRefFullname(e, full)
	return full
}

func setRefFullname(e nodes.Expression, fullname string) {
	switch x := e.(type) {
	case *nodes.NameExpr:
		x.Fullname = fullname
	case *nodes.MemberExpr:
		x.Fullname = fullname
	}
}
