package semanal

import (
	"regexp"
	"strings"

	"github.com/ovo-tools/ovocheck/internal/nodes"
)

// specialBuiltins maps the typing aliases of builtin collections to the
// builtins class they stand for.
var specialBuiltins = map[string]string{
	"typing.List":      "list",
	"typing.Dict":      "dict",
	"typing.Set":       "set",
	"typing.FrozenSet": "frozenset",
	"typing.Tuple":     "tuple",
}

var dottedNameRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// AnalyzeType turns an annotation expression into a type. Problems are
// reported and yield Any.
func (a *Analyzer) AnalyzeType(e nodes.Expression, sc Scope) nodes.Type {
	t, _ := a.analyzeAnnotation(e, sc)
	return t
}

// analyzeAnnotation is AnalyzeType that also reports a ClassVar[...] wrapper.
func (a *Analyzer) analyzeAnnotation(e nodes.Expression, sc Scope) (nodes.Type, bool) {
	if idx, ok := e.(*nodes.IndexExpr); ok {
		if form := a.specialForm(idx.Base, sc); form == "typing.ClassVar" {
			return a.analyzeType(idx.Index, sc), true
		}
	}
	return a.analyzeType(e, sc), false
}

func (a *Analyzer) analyzeType(e nodes.Expression, sc Scope) nodes.Type {
	switch x := e.(type) {
	case nil:
		return nil
	case *nodes.NameExpr:
		if x.Name == "None" {
			return &nodes.NoneType{}
		}
		return a.analyzeRef(x, sc)
	case *nodes.MemberExpr:
		return a.analyzeRef(x, sc)
	case *nodes.StrExpr:
		return a.analyzeForwardRef(x, sc)
	case *nodes.IndexExpr:
		return a.analyzeIndex(x, sc)
	case *nodes.OpExpr:
		if x.Op == "|" {
			return nodes.MakeUnion(a.analyzeType(x.Left, sc), a.analyzeType(x.Right, sc))
		}
	}
	return nodes.NewAny(nodes.SpecialFormAny)
}

func (a *Analyzer) analyzeRef(e nodes.Expression, sc Scope) nodes.Type {
	name, _ := nodes.DottedName(e)
	sym := a.LookupQualified(name, sc)
	if sym == nil {
		a.errs.Failf(e, "Name %q is not defined", name)
		return nodes.NewAny(nodes.FromError)
	}

	switch n := sym.Node.(type) {
	case *nodes.TypeInfo:
		return nodes.NewInstance(n)
	case *nodes.SpecialForm:
		if n.Fullname == "typing.Any" {
			return nodes.NewAny(nodes.Explicit)
		}
		if builtin, ok := specialBuiltins[n.Fullname]; ok {
			return a.BuiltinType(builtin)
		}
		return nodes.NewAny(nodes.SpecialFormAny)
	case *nodes.Var:
		if _, ok := n.Type.(*nodes.AnyType); ok {
			// Names from unresolved imports.
			return nodes.NewAny(nodes.FromError)
		}
		a.errs.Failf(e, "Variable %q is not valid as a type", n.Fullname)
	case *nodes.FuncDef:
		a.errs.Failf(e, "Function %q is not valid as a type", n.Fullname)
	case *nodes.MypyFile:
		a.errs.Failf(e, "Module %q is not valid as a type", n.Fullname)
	}
	return nodes.NewAny(nodes.FromError)
}

// analyzeForwardRef handles quoted annotations that name a class.
func (a *Analyzer) analyzeForwardRef(s *nodes.StrExpr, sc Scope) nodes.Type {
	text := strings.TrimSpace(s.Value)
	if text == "None" {
		return &nodes.NoneType{}
	}
	if !dottedNameRE.MatchString(text) {
		return nodes.NewAny(nodes.SpecialFormAny)
	}
	parts := strings.Split(text, ".")
	var ref nodes.Expression = &nodes.NameExpr{Position: s.Position, Name: parts[0]}
	for _, part := range parts[1:] {
		ref = &nodes.MemberExpr{Position: s.Position, Expr: ref, Name: part}
	}
	return a.analyzeRef(ref, sc)
}

func (a *Analyzer) analyzeIndex(x *nodes.IndexExpr, sc Scope) nodes.Type {
	var argExprs []nodes.Expression
	if tuple, ok := x.Index.(*nodes.TupleExpr); ok {
		argExprs = tuple.Items
	} else {
		argExprs = []nodes.Expression{x.Index}
	}
	args := make([]nodes.Type, 0, len(argExprs))
	for _, ae := range argExprs {
		args = append(args, a.analyzeType(ae, sc))
	}

	if form := a.specialForm(x.Base, sc); form != "" {
		return a.applySpecialForm(x, form, args)
	}

	name, ok := nodes.DottedName(x.Base)
	if !ok {
		return nodes.NewAny(nodes.SpecialFormAny)
	}
	sym := a.LookupQualified(name, sc)
	if sym == nil {
		a.errs.Failf(x.Base, "Name %q is not defined", name)
		return nodes.NewAny(nodes.FromError)
	}
	if info, ok := sym.Node.(*nodes.TypeInfo); ok {
		return nodes.NewInstance(info, args...)
	}
	return a.analyzeRef(x.Base, sc)
}

func (a *Analyzer) applySpecialForm(x *nodes.IndexExpr, form string, args []nodes.Type) nodes.Type {
	switch form {
	case "typing.Optional":
		if len(args) != 1 {
			a.errs.Fail(x, "Optional[...] must have exactly one type argument")
			return nodes.NewAny(nodes.FromError)
		}
		return nodes.MakeOptional(args[0])
	case "typing.Union":
		return nodes.MakeUnion(args...)
	case "typing.Type":
		if len(args) == 1 {
			if inst, ok := args[0].(*nodes.Instance); ok {
				return &nodes.TypeType{Item: inst}
			}
		}
		return nodes.NewAny(nodes.SpecialFormAny)
	case "typing.ClassVar":
		if len(args) == 1 {
			return args[0]
		}
	}
	if builtin, ok := specialBuiltins[form]; ok {
		return a.BuiltinType(builtin, args...)
	}
	return nodes.NewAny(nodes.SpecialFormAny)
}

// specialForm returns the fullname of the typing special form e refers to,
// or "".
func (a *Analyzer) specialForm(e nodes.Expression, sc Scope) string {
	name, ok := nodes.DottedName(e)
	if !ok {
		return ""
	}
	sym := a.LookupQualified(name, sc)
	if sym == nil {
		return ""
	}
	if form, ok := sym.Node.(*nodes.SpecialForm); ok {
		return form.Fullname
	}
	return ""
}
