package semanal

import (
	"github.com/ovo-tools/ovocheck/internal/nodes"
	"github.com/ovo-tools/ovocheck/internal/plugin"
)

// analyzeClass builds the model of one class. Bases are analyzed first, so
// by the time a class reaches the plugin hooks every class in its MRO has
// been augmented already.
func (a *Analyzer) analyzeClass(info *nodes.TypeInfo) {
	if a.state[info] != unvisited {
		return
	}
	a.state[info] = active

	sc := a.enclosing[info]
	restore := a.enterModule(sc.Module)
	defer restore()

	a.resolveBases(info, sc)
	a.computeMRO(info)
	a.collectClassBody(info, info.Defn.Defs, sc.Module)
	a.state[info] = done

	a.applyClassHooks(info, sc)
}

func (a *Analyzer) resolveBases(info *nodes.TypeInfo, sc Scope) {
	for _, expr := range info.Defn.BaseTypeExprs {
		target := expr
		if idx, ok := expr.(*nodes.IndexExpr); ok {
			target = idx.Base
		}
		name, ok := nodes.DottedName(target)
		if !ok {
			info.FallbackToAny = true
			continue
		}

		sym := a.LookupQualified(name, sc)
		if sym == nil {
			a.errs.Failf(expr, "Name %q is not defined", name)
			info.FallbackToAny = true
			continue
		}

		switch n := sym.Node.(type) {
		case *nodes.TypeInfo:
			a.analyzeClass(n)
			if a.state[n] != done || n == info {
				a.errs.Fail(expr, "Cycle in inheritance hierarchy")
				info.FallbackToAny = true
				continue
			}
			info.Bases = append(info.Bases, nodes.NewInstance(n))
			a.baseExprs[info] = append(a.baseExprs[info], expr)
		case *nodes.SpecialForm:
			if builtin, ok := specialBuiltins[n.Fullname]; ok {
				if b := a.Builtin(builtin); b != nil {
					info.Bases = append(info.Bases, nodes.NewInstance(b))
					a.baseExprs[info] = append(a.baseExprs[info], expr)
				}
			}
		default:
			info.FallbackToAny = true
		}
	}

	if len(info.Bases) == 0 && info.Fullname != "builtins.object" {
		if obj := a.Builtin("object"); obj != nil && obj != info {
			info.Bases = append(info.Bases, nodes.NewInstance(obj))
			a.baseExprs[info] = append(a.baseExprs[info], nil)
		}
	}
}

// computeMRO linearizes the bases with C3. When the hierarchy has no
// consistent linearization it reports an error and falls back to a
// depth-first order without duplicates.
func (a *Analyzer) computeMRO(info *nodes.TypeInfo) {
	if mro, ok := linearize(info); ok {
		info.MRO = mro
		return
	}
	a.errs.Failf(info.Defn, "Cannot determine consistent method resolution order (MRO) for %q", info.Name)

	seen := map[*nodes.TypeInfo]bool{info: true}
	info.MRO = []*nodes.TypeInfo{info}
	for _, base := range info.Bases {
		for _, cls := range base.Type.MRO {
			if !seen[cls] {
				seen[cls] = true
				info.MRO = append(info.MRO, cls)
			}
		}
	}
}

func linearize(info *nodes.TypeInfo) ([]*nodes.TypeInfo, bool) {
	var seqs [][]*nodes.TypeInfo
	var direct []*nodes.TypeInfo
	for _, base := range info.Bases {
		seqs = append(seqs, append([]*nodes.TypeInfo(nil), base.Type.MRO...))
		direct = append(direct, base.Type)
	}
	seqs = append(seqs, direct)

	result := []*nodes.TypeInfo{info}
	for {
		var nonEmpty [][]*nodes.TypeInfo
		for _, seq := range seqs {
			if len(seq) > 0 {
				nonEmpty = append(nonEmpty, seq)
			}
		}
		if len(nonEmpty) == 0 {
			return result, true
		}
		seqs = nonEmpty

		var head *nodes.TypeInfo
		for _, seq := range seqs {
			if !inTail(seq[0], seqs) {
				head = seq[0]
				break
			}
		}
		if head == nil {
			return nil, false
		}
		result = append(result, head)
		for i, seq := range seqs {
			if seq[0] == head {
				seqs[i] = seq[1:]
			}
		}
	}
}

func inTail(cls *nodes.TypeInfo, seqs [][]*nodes.TypeInfo) bool {
	for _, seq := range seqs {
		for _, other := range seq[1:] {
			if other == cls {
				return true
			}
		}
	}
	return false
}

// collectClassBody defines class variables, methods and the attributes
// methods assign through self.
func (a *Analyzer) collectClassBody(info *nodes.TypeInfo, stmts []nodes.Statement, module *nodes.MypyFile) {
	sc := Scope{Module: module, Class: info}
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *nodes.AssignmentStmt:
			for _, lv := range s.Lvalues {
				name, ok := lv.(*nodes.NameExpr)
				if !ok {
					continue
				}
				v := bindVar(info.Names, nodes.MDEF, info.Fullname, name.Name, s.Annotation)
				v.Info = info
				if v.Type == nil && v.Annotation != nil {
					v.Type, v.IsClassVar = a.analyzeAnnotation(v.Annotation, sc)
				}
				v.IsInferred = v.Annotation == nil
			}
		case *nodes.FuncDef:
			s.Fullname = info.Fullname + "." + s.Name
			s.Info = info
			info.Names[s.Name] = &nodes.SymbolTableNode{Kind: nodes.MDEF, Node: s}
			a.analyzeFunc(s, sc)
		case *nodes.CompoundStmt:
			a.collectClassBody(info, s.Body, module)
		}
	}

	for _, stmt := range stmts {
		if fn, ok := stmt.(*nodes.FuncDef); ok {
			a.collectSelfAttrs(info, fn, sc)
		}
	}
}

// collectSelfAttrs defines attributes first assigned as self.x in a method
// and not declared anywhere in the MRO.
func (a *Analyzer) collectSelfAttrs(info *nodes.TypeInfo, fn *nodes.FuncDef, sc Scope) {
	if fn.IsStatic || fn.IsClassMeth || len(fn.Arguments) == 0 {
		return
	}
	self := fn.Arguments[0].Name

	var walk func([]nodes.Statement)
	walk = func(stmts []nodes.Statement) {
		for _, stmt := range stmts {
			switch s := stmt.(type) {
			case *nodes.AssignmentStmt:
				for _, lv := range s.Lvalues {
					member, ok := lv.(*nodes.MemberExpr)
					if !ok {
						continue
					}
					base, ok := member.Expr.(*nodes.NameExpr)
					if !ok || base.Name != self || info.Get(member.Name) != nil {
						continue
					}
					v := nodes.NewVar(member.Name)
					v.Fullname = info.Fullname + "." + member.Name
					v.Info = info
					if s.Annotation != nil {
						v.Annotation = s.Annotation
						v.Type, _ = a.analyzeAnnotation(s.Annotation, Scope{Module: sc.Module})
					} else {
						v.IsInferred = true
					}
					info.Names[member.Name] = &nodes.SymbolTableNode{Kind: nodes.MDEF, Node: v}
				}
			case *nodes.CompoundStmt:
				walk(s.Body)
			}
		}
	}
	walk(fn.Body)
}

// analyzeFunc resolves parameter and return annotations. Inside a class the
// first parameter of a regular method is the instance, and of a class
// method the class.
func (a *Analyzer) analyzeFunc(fn *nodes.FuncDef, sc Scope) {
	for i, arg := range fn.Arguments {
		switch {
		case arg.Annotation != nil:
			arg.Type = a.AnalyzeType(arg.Annotation, sc)
		case i == 0 && fn.Info != nil && !fn.IsStatic:
			self := nodes.NewInstance(fn.Info)
			if fn.IsClassMeth || fn.Name == "__new__" {
				arg.Type = &nodes.TypeType{Item: self}
			} else {
				arg.Type = self
			}
		default:
			arg.Type = nodes.NewAny(nodes.Unannotated)
		}
	}
	if fn.Returns != nil {
		fn.ReturnType = a.AnalyzeType(fn.Returns, sc)
	}
}

// IsTyped reports whether fn has any annotation.
func IsTyped(fn *nodes.FuncDef) bool {
	if fn.Returns != nil {
		return true
	}
	for _, arg := range fn.Arguments {
		if arg.Annotation != nil {
			return true
		}
	}
	return false
}

func (a *Analyzer) applyClassHooks(info *nodes.TypeInfo, sc Scope) {
	api := &hookAPI{a: a, scope: sc}

	for _, d := range info.Defn.Decorators {
		fullname := a.RefFullname(d, sc)
		if fullname == "" {
			continue
		}
		if hook := a.plugin.ClassDecoratorHook(fullname); hook != nil {
			hook(&plugin.ClassDefContext{Cls: info.Defn, Reason: d, API: api})
		}
	}

	for _, base := range info.MRO[1:] {
		if hook := a.plugin.BaseClassHook(base.Fullname); hook != nil {
			hook(&plugin.ClassDefContext{Cls: info.Defn, Reason: a.baseReason(info, base), API: api})
		}
	}
}

// baseReason returns the base expression through which info inherits from
// base.
func (a *Analyzer) baseReason(info, base *nodes.TypeInfo) nodes.Expression {
	exprs := a.baseExprs[info]
	for i, b := range info.Bases {
		if i < len(exprs) && b.Type.HasBase(base.Fullname) {
			return exprs[i]
		}
	}
	return nil
}

// analyzeModuleBody resolves the types of module level variables and
// functions.
func (a *Analyzer) analyzeModuleBody(f *nodes.MypyFile, stmts []nodes.Statement) {
	sc := Scope{Module: f}
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *nodes.AssignmentStmt:
			for _, lv := range s.Lvalues {
				name, ok := lv.(*nodes.NameExpr)
				if !ok {
					continue
				}
				sym, ok := f.Names[name.Name]
				if !ok {
					continue
				}
				if v, ok := sym.Node.(*nodes.Var); ok && v.Type == nil {
					if v.Annotation != nil {
						v.Type, v.IsClassVar = a.analyzeAnnotation(v.Annotation, sc)
					} else {
						v.IsInferred = true
					}
				}
			}
		case *nodes.FuncDef:
			a.analyzeFunc(s, sc)
		case *nodes.CompoundStmt:
			a.analyzeModuleBody(f, s.Body)
		}
	}
}
