// Package checker type checks analyzed modules: assignments, attribute
// access, calls and returns. It works on the symbol tables and class models
// built by semanal, including the attributes plugins added to them.
//
// Function bodies are only checked when the function carries an annotation,
// unless Options.CheckUntypedDefs is set. Stub modules are never checked.
package checker

import (
	"strings"

	"github.com/ovo-tools/ovocheck/internal/diag"
	"github.com/ovo-tools/ovocheck/internal/nodes"
	"github.com/ovo-tools/ovocheck/internal/semanal"
)

// Options tunes the checker.
type Options struct {
	// CheckUntypedDefs checks the bodies of functions without annotations.
	CheckUntypedDefs bool
}

// Checker checks modules analyzed by one semanal.Analyzer.
type Checker struct {
	a    *semanal.Analyzer
	errs *diag.Collector
	opts Options
}

// New returns a checker reporting to the analyzer's collector.
func New(a *semanal.Analyzer, opts Options) *Checker {
	return &Checker{a: a, errs: a.Errors(), opts: opts}
}

// Check checks every non-stub module.
func (c *Checker) Check(files []*nodes.MypyFile) {
	for _, f := range files {
		if !f.IsStub {
			c.CheckModule(f)
		}
	}
}

// CheckModule checks one module.
func (c *Checker) CheckModule(f *nodes.MypyFile) {
	prev := c.errs.File()
	c.errs.SetFile(f.Path)
	c.errs.SetQuiet(false)
	defer c.errs.SetFile(prev)

	c.checkBlock(f.Defs, &frame{module: f})
}

// frame is the scope statements are checked in. Module and class frames
// resolve names through the semanal symbol tables; function frames add
// locals, and nested functions see the locals of the functions around them.
type frame struct {
	module *nodes.MypyFile
	class  *nodes.TypeInfo
	fn     *nodes.FuncDef
	locals map[string]*local
	parent *frame
	// defined holds the class body names bound so far. A class body only
	// sees its own names once they are bound.
	defined map[string]bool
}

// local is a function local. typ is nil until the first assignment.
type local struct {
	typ      nodes.Type
	declared bool
	// sym is set for names bound by an import inside the function.
	sym *nodes.SymbolTableNode
}

// scopeOf is the semanal scope annotations in fr are resolved in.
func scopeOf(fr *frame) semanal.Scope {
	return semanal.Scope{Module: fr.module}
}

func (f *frame) findLocal(name string) *local {
	for fr := f; fr != nil; fr = fr.parent {
		if l, ok := fr.locals[name]; ok {
			return l
		}
	}
	return nil
}

func (c *Checker) checkBlock(stmts []nodes.Statement, fr *frame) {
	for _, stmt := range stmts {
		c.checkStmt(stmt, fr)
	}
}

func (c *Checker) checkStmt(stmt nodes.Statement, fr *frame) {
	switch s := stmt.(type) {
	case *nodes.AssignmentStmt:
		c.checkAssignment(s, fr)
	case *nodes.ExpressionStmt:
		c.exprType(s.Expr, fr)
	case *nodes.ReturnStmt:
		c.checkReturn(s, fr)
	case *nodes.FuncDef:
		c.checkFunc(s, fr)
	case *nodes.ClassDef:
		// Classes local to a function have no model.
		if s.Info != nil && fr.fn == nil {
			c.checkClass(s.Info, fr)
		}
	case *nodes.CompoundStmt:
		c.checkCompound(s, fr)
	}
	if fr.class != nil {
		fr.define(stmt)
	}
}

func (f *frame) define(stmt nodes.Statement) {
	var target func(e nodes.Expression)
	target = func(e nodes.Expression) {
		switch t := e.(type) {
		case *nodes.NameExpr:
			f.defined[t.Name] = true
		case *nodes.TupleExpr:
			for _, item := range t.Items {
				target(item)
			}
		}
	}
	switch s := stmt.(type) {
	case *nodes.AssignmentStmt:
		for _, lv := range s.Lvalues {
			target(lv)
		}
	case *nodes.FuncDef:
		f.defined[s.Name] = true
	case *nodes.ClassDef:
		f.defined[s.Name] = true
	}
}

func (c *Checker) checkClass(info *nodes.TypeInfo, fr *frame) {
	for _, d := range info.Defn.Decorators {
		c.exprType(d, fr)
	}
	c.checkBlock(info.Defn.Defs, &frame{module: fr.module, class: info, defined: make(map[string]bool)})
}

func (c *Checker) checkFunc(fn *nodes.FuncDef, fr *frame) {
	for _, d := range fn.Decorators {
		c.exprType(d, fr)
	}
	if !semanal.IsTyped(fn) && !c.opts.CheckUntypedDefs {
		return
	}

	sc := scopeOf(fr)
	body := &frame{module: fr.module, fn: fn, locals: make(map[string]*local)}
	if fr.fn != nil {
		body.parent = fr
	}
	for _, arg := range fn.Arguments {
		// Nested functions are not visited by semantic analysis.
		if arg.Type == nil {
			if arg.Annotation != nil {
				arg.Type = c.a.AnalyzeType(arg.Annotation, sc)
			} else {
				arg.Type = nodes.NewAny(nodes.Unannotated)
			}
		}
		t := arg.Type
		switch arg.Kind {
		case nodes.ArgStarParam:
			t = c.a.BuiltinType("tuple", t)
		case nodes.ArgStar2Param:
			t = c.a.BuiltinType("dict", c.a.BuiltinType("str"), t)
		}
		body.locals[arg.Name] = &local{typ: t, declared: true}
	}
	if fn.ReturnType == nil && fn.Returns != nil {
		fn.ReturnType = c.a.AnalyzeType(fn.Returns, sc)
	}

	c.bindLocals(fn.Body, body)
	c.checkBlock(fn.Body, body)
}

// bindLocals defines every name the function body binds before the body is
// checked, so reads that precede the assignment in source order (loops) do
// not look undefined.
func (c *Checker) bindLocals(stmts []nodes.Statement, fr *frame) {
	define := func(name string, l *local) {
		if _, ok := fr.locals[name]; !ok {
			fr.locals[name] = l
		}
	}
	var targets func(e nodes.Expression)
	targets = func(e nodes.Expression) {
		switch t := e.(type) {
		case *nodes.NameExpr:
			define(t.Name, &local{})
		case *nodes.TupleExpr:
			for _, item := range t.Items {
				targets(item)
			}
		case *nodes.ListExpr:
			for _, item := range t.Items {
				targets(item)
			}
		}
	}

	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *nodes.AssignmentStmt:
			for _, lv := range s.Lvalues {
				targets(lv)
			}
		case *nodes.CompoundStmt:
			for _, t := range s.Targets {
				targets(t)
			}
			c.bindLocals(s.Body, fr)
		case *nodes.FuncDef:
			define(s.Name, &local{typ: nodes.NewAny(nodes.SpecialFormAny)})
		case *nodes.ClassDef:
			define(s.Name, &local{typ: nodes.NewAny(nodes.SpecialFormAny)})
		case *nodes.ImportStmt:
			for _, id := range s.Ids {
				if id.Alias != "" {
					define(id.Alias, &local{sym: c.importSymbol(id.Name)})
					continue
				}
				top, _, _ := strings.Cut(id.Name, ".")
				define(top, &local{sym: c.importSymbol(top)})
			}
		case *nodes.ImportFromStmt:
			module := semanal.ResolveRelative(fr.module, s)
			for _, n := range s.Names {
				name := n.Name
				if n.Alias != "" {
					name = n.Alias
				}
				define(name, &local{sym: c.importSymbol(module + "." + n.Name)})
			}
		}
	}
}

// importSymbol resolves an import inside a function. Unresolved imports are
// Any, as at module level.
func (c *Checker) importSymbol(fullname string) *nodes.SymbolTableNode {
	if sym := c.a.LookupFullyQualified(fullname); sym != nil && sym.Node != nil {
		return sym
	}
	v := nodes.NewVar(fullname)
	v.Fullname = fullname
	v.Type = nodes.NewAny(nodes.FromError)
	return &nodes.SymbolTableNode{Kind: nodes.LDEF, Node: v}
}

func (c *Checker) checkCompound(s *nodes.CompoundStmt, fr *frame) {
	var header []nodes.Type
	for _, e := range s.Exprs {
		header = append(header, c.exprType(e, fr))
	}

	for _, target := range s.Targets {
		var t nodes.Type = nodes.NewAny(nodes.SpecialFormAny)
		switch {
		case s.Kind == "for_statement" && len(header) == 1:
			t = c.elementType(header[0])
		case s.Kind == "except_clause" && len(header) == 1:
			if cls, ok := header[0].(*nodes.TypeType); ok {
				t = cls.Item
			}
		}
		c.bindTarget(target, t, fr)
	}

	c.checkBlock(s.Body, fr)
}

// bindTarget gives a loop or "as" target its type unless it already has
// one.
func (c *Checker) bindTarget(target nodes.Expression, t nodes.Type, fr *frame) {
	switch x := target.(type) {
	case *nodes.NameExpr:
		if l := fr.findLocal(x.Name); l != nil && fr.fn != nil {
			if l.typ == nil {
				l.typ = t
			}
			return
		}
		if sym, ok := fr.module.Names[x.Name]; ok {
			if v, ok := sym.Node.(*nodes.Var); ok && v.Type == nil {
				v.Type = t
			}
		}
	case *nodes.TupleExpr:
		for _, item := range x.Items {
			c.bindTarget(item, nodes.NewAny(nodes.SpecialFormAny), fr)
		}
	case *nodes.ListExpr:
		for _, item := range x.Items {
			c.bindTarget(item, nodes.NewAny(nodes.SpecialFormAny), fr)
		}
	case *nodes.MemberExpr:
		c.exprType(x.Expr, fr)
	}
}

// elementType is the item type produced by iterating over t.
func (c *Checker) elementType(t nodes.Type) nodes.Type {
	inst, ok := t.(*nodes.Instance)
	if !ok {
		return nodes.NewAny(nodes.SpecialFormAny)
	}
	switch inst.Type.Fullname {
	case "builtins.list", "builtins.set", "builtins.frozenset", "builtins.dict":
		if len(inst.Args) > 0 {
			return inst.Args[0]
		}
	case "builtins.str":
		return inst
	case "builtins.range":
		return c.a.BuiltinType("int")
	}
	return nodes.NewAny(nodes.SpecialFormAny)
}

func (c *Checker) checkReturn(s *nodes.ReturnStmt, fr *frame) {
	var expected nodes.Type
	if fr.fn != nil {
		expected = fr.fn.ReturnType
	}
	if s.Expr == nil {
		if expected != nil && !nodes.IsSubtype(&nodes.NoneType{}, expected) {
			c.errs.Fail(s, "Return value expected")
		}
		return
	}

	t := c.inferWith(s.Expr, fr, expected)
	if expected == nil {
		return
	}
	if _, ok := expected.(*nodes.NoneType); ok {
		switch t.(type) {
		case *nodes.NoneType, *nodes.AnyType:
		default:
			c.errs.Fail(s, "No return value expected")
		}
		return
	}
	if !nodes.IsSubtype(t, expected) {
		c.errs.Failf(s, "Incompatible return value type (got %q, expected %q)", t.Short(), expected.Short())
	}
}
