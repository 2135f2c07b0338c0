package semanal

import (
	"strings"

	"github.com/ovo-tools/ovocheck/internal/nodes"
)

// specialFormMarker is the annotation typing.pyi uses for special forms.
const specialFormMarker = "_SpecialForm"

func (a *Analyzer) bindModule(f *nodes.MypyFile) {
	a.bindBlock(f, f.Defs)
}

func (a *Analyzer) bindBlock(f *nodes.MypyFile, stmts []nodes.Statement) {
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *nodes.ClassDef:
			info := a.newClass(s, f.Fullname, f.Fullname+"."+s.Name, Scope{Module: f})
			f.Names[s.Name] = &nodes.SymbolTableNode{Kind: nodes.GDEF, Node: info, ModulePublic: isPublic(s.Name)}
		case *nodes.FuncDef:
			s.Fullname = f.Fullname + "." + s.Name
			f.Names[s.Name] = &nodes.SymbolTableNode{Kind: nodes.GDEF, Node: s, ModulePublic: isPublic(s.Name)}
		case *nodes.AssignmentStmt:
			a.bindAssignment(f, s)
		case *nodes.ImportStmt:
			for _, id := range s.Ids {
				if id.Alias != "" {
					f.Names[id.Alias] = importRef(id.Name, id.Alias)
					continue
				}
				top := strings.SplitN(id.Name, ".", 2)[0]
				f.Names[top] = importRef(top, top)
			}
		case *nodes.ImportFromStmt:
			module := ResolveRelative(f, s)
			if s.Wildcard {
				a.wildcards = append(a.wildcards, wildcardImport{into: f, module: module})
				continue
			}
			for _, n := range s.Names {
				local := n.Name
				if n.Alias != "" {
					local = n.Alias
				}
				f.Names[local] = importRef(module+"."+n.Name, local)
			}
		case *nodes.CompoundStmt:
			for _, target := range s.Targets {
				bindTarget(f, target)
			}
			a.bindBlock(f, s.Body)
		}
	}
}

// bindTarget defines the names a for loop or an "as" clause binds.
func bindTarget(f *nodes.MypyFile, target nodes.Expression) {
	switch t := target.(type) {
	case *nodes.NameExpr:
		v := bindVar(f.Names, nodes.GDEF, f.Fullname, t.Name, nil)
		v.IsInferred = true
	case *nodes.TupleExpr:
		for _, item := range t.Items {
			bindTarget(f, item)
		}
	case *nodes.ListExpr:
		for _, item := range t.Items {
			bindTarget(f, item)
		}
	}
}

func (a *Analyzer) bindAssignment(f *nodes.MypyFile, s *nodes.AssignmentStmt) {
	for _, lv := range s.Lvalues {
		switch target := lv.(type) {
		case *nodes.NameExpr:
			if f.Fullname == "typing" && isSpecialFormAnnotation(s.Annotation) {
				f.Names[target.Name] = &nodes.SymbolTableNode{
					Kind:         nodes.GDEF,
					Node:         &nodes.SpecialForm{Fullname: "typing." + target.Name},
					ModulePublic: true,
				}
				continue
			}
			v := bindVar(f.Names, nodes.GDEF, f.Fullname, target.Name, s.Annotation)
			if s.Annotation == nil && v.Alias == nil && isRef(s.Rvalue) {
				v.Alias = s.Rvalue
			}
		case *nodes.TupleExpr:
			for _, item := range target.Items {
				if name, ok := item.(*nodes.NameExpr); ok {
					bindVar(f.Names, nodes.GDEF, f.Fullname, name.Name, nil)
				}
			}
		}
	}
}

// bindVar defines a variable in table, or returns the existing one. A later
// annotation fills in a variable first bound without one.
func bindVar(table nodes.SymbolTable, kind nodes.Kind, prefix, name string, annotation nodes.Expression) *nodes.Var {
	if sym, ok := table[name]; ok {
		if v, ok := sym.Node.(*nodes.Var); ok {
			if v.Annotation == nil && annotation != nil {
				v.Annotation = annotation
			}
			return v
		}
	}
	v := nodes.NewVar(name)
	v.Fullname = prefix + "." + name
	v.Annotation = annotation
	table[name] = &nodes.SymbolTableNode{Kind: kind, Node: v, ModulePublic: isPublic(name)}
	return v
}

func (a *Analyzer) newClass(def *nodes.ClassDef, module, fullname string, enclosing Scope) *nodes.TypeInfo {
	info := nodes.NewTypeInfo(def.Name, fullname, module, def)
	def.Info = info
	def.Fullname = fullname
	a.enclosing[info] = enclosing
	a.classes = append(a.classes, info)
	a.bindNestedClasses(info, def.Defs, enclosing.Module)
	return info
}

func (a *Analyzer) bindNestedClasses(info *nodes.TypeInfo, stmts []nodes.Statement, module *nodes.MypyFile) {
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *nodes.ClassDef:
			nested := a.newClass(s, info.Module, info.Fullname+"."+s.Name, Scope{Module: module, Class: info})
			info.Names[s.Name] = &nodes.SymbolTableNode{Kind: nodes.MDEF, Node: nested}
		case *nodes.CompoundStmt:
			a.bindNestedClasses(info, s.Body, module)
		}
	}
}

func (a *Analyzer) applyWildcards() {
	// Wildcards may chain, so repeat until nothing new is bound.
	for changed := true; changed; {
		changed = false
		for _, w := range a.wildcards {
			src := a.modules[w.module]
			if src == nil {
				continue
			}
			for _, name := range src.Names.Keys() {
				sym := src.Names[name]
				if !sym.ModulePublic {
					continue
				}
				if _, ok := w.into.Names[name]; ok {
					continue
				}
				copied := *sym
				w.into.Names[name] = &copied
				changed = true
			}
		}
	}
}

func (a *Analyzer) resolveModuleNames(f *nodes.MypyFile) {
	for _, name := range f.Names.Keys() {
		a.resolveNode(f.Names[name])
	}
}

// resolveAliases turns module level "Alias = SomeClass" into a reference to
// the class. Any other alias keeps its own fullname.
func (a *Analyzer) resolveAliases(f *nodes.MypyFile) {
	for _, name := range f.Names.Keys() {
		sym := f.Names[name]
		v, ok := sym.Node.(*nodes.Var)
		if !ok || v.Alias == nil || v.Annotation != nil {
			continue
		}
		ref, _ := nodes.DottedName(v.Alias)
		target := a.LookupQualified(ref, Scope{Module: f})
		if target == nil {
			continue
		}
		if info, ok := target.Node.(*nodes.TypeInfo); ok {
			sym.Node = info
		}
	}
}

func importRef(target, local string) *nodes.SymbolTableNode {
	return &nodes.SymbolTableNode{Kind: nodes.GDEF, CrossRef: target, ModulePublic: isPublic(local)}
}

// ResolveRelative returns the absolute module name of a from-import in f.
func ResolveRelative(f *nodes.MypyFile, s *nodes.ImportFromStmt) string {
	if s.Relative == 0 {
		return s.Module
	}
	parts := strings.Split(f.Fullname, ".")
	if !f.IsPkg {
		parts = parts[:len(parts)-1]
	}
	drop := s.Relative - 1
	if drop > len(parts) {
		drop = len(parts)
	}
	parts = parts[:len(parts)-drop]
	if s.Module != "" {
		parts = append(parts, s.Module)
	}
	return strings.Join(parts, ".")
}

func isSpecialFormAnnotation(e nodes.Expression) bool {
	name, ok := e.(*nodes.NameExpr)
	return ok && name.Name == specialFormMarker
}

func isRef(e nodes.Expression) bool {
	_, ok := nodes.DottedName(e)
	return ok
}

func isPublic(name string) bool {
	return !strings.HasPrefix(name, "_")
}
