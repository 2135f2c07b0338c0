package checker

import (
	"github.com/ovo-tools/ovocheck/internal/nodes"
)

func (c *Checker) exprType(e nodes.Expression, fr *frame) nodes.Type {
	switch x := e.(type) {
	case nil:
		return nodes.NewAny(nodes.SpecialFormAny)
	case *nodes.NameExpr:
		switch x.Name {
		case "True", "False":
			return c.a.BuiltinType("bool")
		case "None":
			return &nodes.NoneType{}
		}
		return c.nameType(x, fr)
	case *nodes.MemberExpr:
		if t, ok := c.moduleMember(x, fr); ok {
			return t
		}
		return c.memberType(c.exprType(x.Expr, fr), x.Name, x)
	case *nodes.StrExpr:
		return c.a.BuiltinType("str")
	case *nodes.IntExpr:
		return c.a.BuiltinType("int")
	case *nodes.FloatExpr:
		return c.a.BuiltinType("float")
	case *nodes.CallExpr:
		return c.callType(x, fr)
	case *nodes.DictExpr:
		return c.dictType(x, fr)
	case *nodes.ListExpr:
		return c.a.BuiltinType("list", c.join(c.itemTypes(x.Items, fr)))
	case *nodes.TupleExpr:
		return c.a.BuiltinType("tuple", c.itemTypes(x.Items, fr)...)
	case *nodes.IndexExpr:
		return c.indexType(x, fr)
	case *nodes.OpExpr:
		return c.opType(x, fr)
	}
	return nodes.NewAny(nodes.SpecialFormAny)
}

// inferWith is exprType with an expected type as context: a dict or list
// display whose items fit the expected collection takes the expected type
// instead of the joined type of its items.
func (c *Checker) inferWith(e nodes.Expression, fr *frame, expected nodes.Type) nodes.Type {
	switch x := e.(type) {
	case *nodes.DictExpr:
		if inst := contextInstance(expected, "builtins.dict", 2); inst != nil && c.dictFits(x, fr, inst) {
			return inst
		}
	case *nodes.ListExpr:
		if inst := contextInstance(expected, "builtins.list", 1); inst != nil && c.itemsFit(x.Items, fr, inst.Args[0]) {
			return inst
		}
	}
	return c.exprType(e, fr)
}

// contextInstance returns expected, or the member of an expected union, when
// it is an instance of fullname with nargs type arguments.
func contextInstance(expected nodes.Type, fullname string, nargs int) *nodes.Instance {
	candidates := []nodes.Type{expected}
	if u, ok := expected.(*nodes.UnionType); ok {
		candidates = u.Items
	}
	for _, t := range candidates {
		if inst, ok := t.(*nodes.Instance); ok && inst.Type.Fullname == fullname && len(inst.Args) == nargs {
			return inst
		}
	}
	return nil
}

func (c *Checker) dictFits(d *nodes.DictExpr, fr *frame, want *nodes.Instance) bool {
	for _, item := range d.Items {
		if item.Key == nil {
			return false
		}
		if !nodes.IsSubtype(c.inferWith(item.Key, fr, want.Args[0]), want.Args[0]) {
			return false
		}
		if !nodes.IsSubtype(c.inferWith(item.Value, fr, want.Args[1]), want.Args[1]) {
			return false
		}
	}
	return true
}

func (c *Checker) itemsFit(items []nodes.Expression, fr *frame, want nodes.Type) bool {
	for _, item := range items {
		if !nodes.IsSubtype(c.inferWith(item, fr, want), want) {
			return false
		}
	}
	return true
}

func (c *Checker) itemTypes(items []nodes.Expression, fr *frame) []nodes.Type {
	types := make([]nodes.Type, 0, len(items))
	for _, item := range items {
		types = append(types, c.exprType(item, fr))
	}
	return types
}

func (c *Checker) dictType(d *nodes.DictExpr, fr *frame) nodes.Type {
	var keys, values []nodes.Type
	splat := false
	for _, item := range d.Items {
		if item.Key == nil {
			c.exprType(item.Value, fr)
			splat = true
			continue
		}
		keys = append(keys, c.exprType(item.Key, fr))
		values = append(values, c.exprType(item.Value, fr))
	}
	if splat {
		return c.a.BuiltinType("dict", nodes.NewAny(nodes.SpecialFormAny), nodes.NewAny(nodes.SpecialFormAny))
	}
	return c.a.BuiltinType("dict", c.join(keys), c.join(values))
}

// join is the narrowest of the given types that all others fit in, object
// when there is none and Any for no types at all.
func (c *Checker) join(types []nodes.Type) nodes.Type {
	if len(types) == 0 {
		return nodes.NewAny(nodes.SpecialFormAny)
	}
	result := types[0]
	for _, t := range types[1:] {
		switch {
		case nodes.IsSubtype(t, result):
		case nodes.IsSubtype(result, t):
			result = t
		default:
			return c.a.BuiltinType("object")
		}
	}
	return result
}

func (c *Checker) indexType(x *nodes.IndexExpr, fr *frame) nodes.Type {
	base := c.exprType(x.Base, fr)
	c.exprType(x.Index, fr)

	inst, ok := base.(*nodes.Instance)
	if !ok {
		return nodes.NewAny(nodes.SpecialFormAny)
	}
	switch inst.Type.Fullname {
	case "builtins.list":
		if len(inst.Args) == 1 {
			return inst.Args[0]
		}
	case "builtins.dict":
		if len(inst.Args) == 2 {
			return inst.Args[1]
		}
	case "builtins.tuple":
		if i, ok := x.Index.(*nodes.IntExpr); ok && i.Value >= 0 && int(i.Value) < len(inst.Args) {
			return inst.Args[i.Value]
		}
	case "builtins.str":
		return inst
	}
	return nodes.NewAny(nodes.SpecialFormAny)
}

// numericRank orders the builtin numeric types by promotion.
var numericRank = map[string]int{
	"builtins.bool":    0,
	"builtins.int":     1,
	"builtins.float":   2,
	"builtins.complex": 3,
}

var rankNames = []string{"bool", "int", "float", "complex"}

// opType infers binary operations on builtin types. Anything else, including
// user defined operators, is Any.
func (c *Checker) opType(x *nodes.OpExpr, fr *frame) nodes.Type {
	left, right := c.exprType(x.Left, fr), c.exprType(x.Right, fr)
	l, lok := left.(*nodes.Instance)
	r, rok := right.(*nodes.Instance)
	if !lok || !rok {
		return nodes.NewAny(nodes.SpecialFormAny)
	}

	lr, lnum := numericRank[l.Type.Fullname]
	rr, rnum := numericRank[r.Type.Fullname]
	if lnum && rnum {
		rank := max(lr, rr, 1)
		switch x.Op {
		case "/":
			rank = max(rank, 2)
		case "&", "|", "^", "<<", ">>":
			if rank > 1 {
				return nodes.NewAny(nodes.SpecialFormAny)
			}
		}
		return c.a.BuiltinType(rankNames[rank])
	}

	switch l.Type.Fullname {
	case "builtins.str", "builtins.bytes":
		switch {
		case x.Op == "%":
			return l
		case x.Op == "+" && r.Type.Fullname == l.Type.Fullname:
			return l
		case x.Op == "*" && rnum:
			return l
		}
	case "builtins.list", "builtins.tuple":
		switch {
		case x.Op == "+" && nodes.IsSameType(l, r):
			return l
		case x.Op == "*" && rnum:
			return l
		}
	}
	return nodes.NewAny(nodes.SpecialFormAny)
}

// lookup resolves a bare name. Exactly one of the results is non-nil when
// the name is defined.
func (c *Checker) lookup(name string, fr *frame) (*local, *nodes.SymbolTableNode) {
	if l := fr.findLocal(name); l != nil {
		if l.sym != nil {
			return nil, l.sym
		}
		return l, nil
	}
	if fr.class != nil && fr.defined[name] {
		if sym, ok := fr.class.Names[name]; ok {
			return nil, sym
		}
	}
	return nil, c.a.Lookup(name, scopeOf(fr))
}

func (c *Checker) nameType(x *nodes.NameExpr, fr *frame) nodes.Type {
	l, sym := c.lookup(x.Name, fr)
	switch {
	case l != nil:
		if l.typ == nil {
			return nodes.NewAny(nodes.Unannotated)
		}
		return l.typ
	case sym != nil:
		return symbolType(sym)
	}
	c.errs.Failf(x, "Name %q is not defined", x.Name)
	return nodes.NewAny(nodes.FromError)
}

// symbolType is the type of the value a symbol names. Functions are not
// modelled as callables; calls to them are checked from the definition.
func symbolType(sym *nodes.SymbolTableNode) nodes.Type {
	switch n := sym.Node.(type) {
	case *nodes.Var:
		if n.Type != nil {
			return n.Type
		}
		return nodes.NewAny(nodes.Unannotated)
	case *nodes.TypeInfo:
		return &nodes.TypeType{Item: nodes.NewInstance(n)}
	}
	return nodes.NewAny(nodes.SpecialFormAny)
}

// refSymbol resolves a dotted reference that goes through modules and
// classes, e.g. fields.IntegerField or base.VersionedObjectRegistry.register.
// It returns nil once the chain reaches a value.
func (c *Checker) refSymbol(e nodes.Expression, fr *frame) *nodes.SymbolTableNode {
	switch x := e.(type) {
	case *nodes.NameExpr:
		_, sym := c.lookup(x.Name, fr)
		return sym
	case *nodes.MemberExpr:
		base := c.refSymbol(x.Expr, fr)
		if base == nil {
			return nil
		}
		switch base.Node.(type) {
		case *nodes.MypyFile, *nodes.TypeInfo:
			return c.a.Member(base, x.Name)
		}
	}
	return nil
}

// moduleMember handles attribute access on a module. It reports false when
// x.Expr does not name a module.
func (c *Checker) moduleMember(x *nodes.MemberExpr, fr *frame) (nodes.Type, bool) {
	base := c.refSymbol(x.Expr, fr)
	if base == nil {
		return nil, false
	}
	m, ok := base.Node.(*nodes.MypyFile)
	if !ok {
		return nil, false
	}
	sym := c.a.Member(base, x.Name)
	if sym == nil {
		// Bundled and user stubs may be partial.
		if !m.IsStub {
			c.errs.Failf(x, "Module %q has no attribute %q", m.Fullname, x.Name)
		}
		return nodes.NewAny(nodes.FromError), true
	}
	return symbolType(sym), true
}

// findMember returns the type of attribute name of t and whether t has it.
func (c *Checker) findMember(t nodes.Type, name string) (nodes.Type, bool) {
	var info *nodes.TypeInfo
	switch x := t.(type) {
	case *nodes.Instance:
		info = x.Type
	case *nodes.TypeType:
		info = x.Item.Type
	case *nodes.NoneType:
		return nil, false
	default:
		return nodes.NewAny(nodes.SpecialFormAny), true
	}

	sym := info.Get(name)
	if sym == nil {
		if info.HasUnknownBase() || info.Get("__getattr__") != nil {
			return nodes.NewAny(nodes.SpecialFormAny), true
		}
		return nil, false
	}
	return symbolType(sym), true
}

func (c *Checker) memberType(t nodes.Type, name string, ctx nodes.Context) nodes.Type {
	if u, ok := t.(*nodes.UnionType); ok {
		var results []nodes.Type
		for _, item := range u.Items {
			mt, ok := c.findMember(item, name)
			if !ok {
				c.errs.Failf(ctx, "Item %q of %q has no attribute %q", item.Short(), u.Short(), name)
				continue
			}
			results = append(results, mt)
		}
		if len(results) == 0 {
			return nodes.NewAny(nodes.FromError)
		}
		return nodes.MakeUnion(results...)
	}

	mt, ok := c.findMember(t, name)
	if !ok {
		c.errs.Failf(ctx, "%q has no attribute %q", t.Short(), name)
		return nodes.NewAny(nodes.FromError)
	}
	return mt
}

func (c *Checker) checkAssignment(s *nodes.AssignmentStmt, fr *frame) {
	var expected nodes.Type
	if s.Annotation != nil && fr.fn != nil {
		expected = c.a.AnalyzeType(s.Annotation, scopeOf(fr))
		for _, lv := range s.Lvalues {
			if name, ok := lv.(*nodes.NameExpr); ok {
				if l := fr.findLocal(name.Name); l != nil {
					l.typ, l.declared = expected, true
				}
			}
		}
	}
	if s.Rvalue == nil {
		return
	}
	if expected == nil && len(s.Lvalues) == 1 {
		expected = c.declaredType(s.Lvalues[0], fr)
	}

	rvalue := c.inferWith(s.Rvalue, fr, expected)
	for _, lv := range s.Lvalues {
		c.assignTo(lv, rvalue, s, fr)
	}
}

// declaredType is the type an assignment target already has, used as
// context for the right hand side. It reports nothing.
func (c *Checker) declaredType(lv nodes.Expression, fr *frame) nodes.Type {
	switch x := lv.(type) {
	case *nodes.NameExpr:
		if fr.fn != nil {
			if l := fr.findLocal(x.Name); l != nil {
				return l.typ
			}
			return nil
		}
		if fr.class != nil {
			if sym, ok := fr.class.Names[x.Name]; ok {
				if v, ok := sym.Node.(*nodes.Var); ok {
					if v.Type != nil {
						return v.Type
					}
					_, t := baseDeclaration(fr.class, x.Name)
					return t
				}
			}
			return nil
		}
		if sym, ok := fr.module.Names[x.Name]; ok {
			if v, ok := sym.Node.(*nodes.Var); ok {
				return v.Type
			}
		}
	case *nodes.MemberExpr:
		name, ok := x.Expr.(*nodes.NameExpr)
		if !ok {
			return nil
		}
		var obj nodes.Type
		switch l, sym := c.lookup(name.Name, fr); {
		case l != nil:
			obj = l.typ
		case sym != nil:
			obj = symbolType(sym)
		}
		if inst, ok := obj.(*nodes.Instance); ok {
			if sym := inst.Type.Get(x.Name); sym != nil {
				if v, ok := sym.Node.(*nodes.Var); ok {
					return v.Type
				}
			}
		}
	}
	return nil
}

// baseDeclaration returns the nearest class after info in its MRO that gives
// name a type, and that type.
func baseDeclaration(info *nodes.TypeInfo, name string) (*nodes.TypeInfo, nodes.Type) {
	if len(info.MRO) < 2 {
		return nil, nil
	}
	for _, cls := range info.MRO[1:] {
		sym, ok := cls.Names[name]
		if !ok {
			continue
		}
		if v, ok := sym.Node.(*nodes.Var); ok && v.Type != nil {
			return cls, v.Type
		}
		return nil, nil
	}
	return nil, nil
}

func (c *Checker) assignTo(lv nodes.Expression, rvalue nodes.Type, ctx nodes.Context, fr *frame) {
	switch x := lv.(type) {
	case *nodes.NameExpr:
		c.assignName(x, rvalue, ctx, fr)
	case *nodes.MemberExpr:
		c.assignMember(x, rvalue, ctx, fr)
	case *nodes.IndexExpr:
		c.exprType(x.Base, fr)
		c.exprType(x.Index, fr)
	case *nodes.TupleExpr:
		c.assignItems(x.Items, rvalue, ctx, fr)
	case *nodes.ListExpr:
		c.assignItems(x.Items, rvalue, ctx, fr)
	}
}

func (c *Checker) assignItems(items []nodes.Expression, rvalue nodes.Type, ctx nodes.Context, fr *frame) {
	var parts []nodes.Type
	if inst, ok := rvalue.(*nodes.Instance); ok && inst.Type.Fullname == "builtins.tuple" && len(inst.Args) == len(items) {
		parts = inst.Args
	}
	for i, item := range items {
		var t nodes.Type = nodes.NewAny(nodes.SpecialFormAny)
		if parts != nil {
			t = parts[i]
		}
		c.assignTo(item, t, ctx, fr)
	}
}

func (c *Checker) assignName(x *nodes.NameExpr, rvalue nodes.Type, ctx nodes.Context, fr *frame) {
	if fr.fn != nil {
		if l := fr.findLocal(x.Name); l != nil {
			if l.sym != nil {
				return
			}
			if l.typ == nil {
				if _, isNone := rvalue.(*nodes.NoneType); !isNone {
					l.typ = rvalue
				}
				return
			}
			if !nodes.IsSubtype(rvalue, l.typ) {
				c.incompatibleAssignment(ctx, rvalue, l.typ)
			}
			return
		}
	}

	if fr.class != nil {
		if sym, ok := fr.class.Names[x.Name]; ok {
			if v, ok := sym.Node.(*nodes.Var); ok {
				c.assignClassVar(fr.class, v, rvalue, ctx)
			}
		}
		return
	}
	if sym, ok := fr.module.Names[x.Name]; ok {
		if v, ok := sym.Node.(*nodes.Var); ok {
			c.assignVar(v, rvalue, ctx)
		}
	}
}

// assignClassVar checks a class level assignment. An attribute the class
// does not annotate takes the type a base class gave it.
func (c *Checker) assignClassVar(info *nodes.TypeInfo, v *nodes.Var, rvalue nodes.Type, ctx nodes.Context) {
	if v.Type == nil && v.Annotation == nil {
		if base, declared := baseDeclaration(info, v.Name); declared != nil {
			if !nodes.IsSubtype(rvalue, declared) {
				c.errs.Failf(ctx, "Incompatible types in assignment (expression has type %q, base class %q defined the type as %q)",
					rvalue.Short(), base.Name, declared.Short())
			}
			v.Type = declared
			return
		}
	}
	c.assignVar(v, rvalue, ctx)
}

// assignVar checks an assignment to a variable. The first assignment to a
// variable without a type infers it.
func (c *Checker) assignVar(v *nodes.Var, rvalue nodes.Type, ctx nodes.Context) {
	if v.Type == nil {
		if _, isNone := rvalue.(*nodes.NoneType); !isNone {
			v.Type = rvalue
		}
		return
	}
	if !nodes.IsSubtype(rvalue, v.Type) {
		c.incompatibleAssignment(ctx, rvalue, v.Type)
	}
}

func (c *Checker) assignMember(x *nodes.MemberExpr, rvalue nodes.Type, ctx nodes.Context, fr *frame) {
	if _, ok := c.moduleMember(x, fr); ok {
		return
	}

	obj := c.exprType(x.Expr, fr)
	var info *nodes.TypeInfo
	switch t := obj.(type) {
	case *nodes.Instance:
		info = t.Type
	case *nodes.TypeType:
		info = t.Item.Type
	case *nodes.NoneType, *nodes.UnionType:
		c.memberType(obj, x.Name, x)
		return
	default:
		return
	}

	sym := info.Get(x.Name)
	if sym == nil {
		if info.HasUnknownBase() || info.Get("__setattr__") != nil || info.Get("__getattr__") != nil {
			return
		}
		c.errs.Failf(x, "%q has no attribute %q", obj.Short(), x.Name)
		return
	}
	if v, ok := sym.Node.(*nodes.Var); ok {
		c.assignVar(v, rvalue, ctx)
	}
}

func (c *Checker) incompatibleAssignment(ctx nodes.Context, got, want nodes.Type) {
	c.errs.Failf(ctx, "Incompatible types in assignment (expression has type %q, variable has type %q)", got.Short(), want.Short())
}
