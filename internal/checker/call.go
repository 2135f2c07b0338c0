package checker

import (
	"fmt"
	"strings"

	"github.com/ovo-tools/ovocheck/internal/nodes"
)

func (c *Checker) callType(call *nodes.CallExpr, fr *frame) nodes.Type {
	if name, ok := call.Callee.(*nodes.NameExpr); ok {
		l, sym := c.lookup(name.Name, fr)
		if l == nil {
			switch {
			case name.Name == "reveal_type" && (sym == nil || sym.Fullname() == "builtins.reveal_type"):
				return c.revealType(call, fr)
			case sym != nil && (sym.Fullname() == "builtins.super" || sym.Fullname() == "builtins.type"):
				c.argTypes(call, fr)
				return nodes.NewAny(nodes.SpecialFormAny)
			}
		}
	}

	if sym := c.refSymbol(call.Callee, fr); sym != nil {
		switch n := sym.Node.(type) {
		case *nodes.TypeInfo:
			return c.checkClassCall(n, call, fr)
		case *nodes.FuncDef:
			// A method reached through its class: self is passed explicitly.
			return c.checkCall(n, calleeName(n), call, fr, n.IsClassMeth)
		}
	}

	if member, ok := call.Callee.(*nodes.MemberExpr); ok {
		if t, ok := c.methodCall(member, call, fr); ok {
			return t
		}
	}

	callee := c.exprType(call.Callee, fr)
	if cls, ok := callee.(*nodes.TypeType); ok {
		return c.checkClassCall(cls.Item.Type, call, fr)
	}
	c.argTypes(call, fr)
	return nodes.NewAny(nodes.SpecialFormAny)
}

func (c *Checker) argTypes(call *nodes.CallExpr, fr *frame) []nodes.Type {
	return c.itemTypes(call.Args, fr)
}

func (c *Checker) revealType(call *nodes.CallExpr, fr *frame) nodes.Type {
	types := c.argTypes(call, fr)
	switch {
	case len(types) == 0:
		c.errs.Fail(call, `Missing positional argument "obj" in call to "reveal_type"`)
		return nodes.NewAny(nodes.FromError)
	case len(types) > 1:
		c.errs.Fail(call, `Too many arguments for "reveal_type"`)
	}
	c.errs.Notef(call, "Revealed type is '%s'", types[0].String())
	return types[0]
}

// methodCall checks a call of a method looked up on an instance or a class.
// It reports false when the attribute is not a method.
func (c *Checker) methodCall(member *nodes.MemberExpr, call *nodes.CallExpr, fr *frame) (nodes.Type, bool) {
	if base := c.refSymbol(member.Expr, fr); base != nil {
		if _, ok := base.Node.(*nodes.MypyFile); ok {
			return nil, false
		}
	}

	var (
		info      *nodes.TypeInfo
		skipFirst func(fn *nodes.FuncDef) bool
	)
	switch t := c.exprType(member.Expr, fr).(type) {
	case *nodes.Instance:
		info = t.Type
		skipFirst = func(fn *nodes.FuncDef) bool { return !fn.IsStatic }
	case *nodes.TypeType:
		info = t.Item.Type
		skipFirst = func(fn *nodes.FuncDef) bool { return fn.IsClassMeth }
	default:
		return nil, false
	}

	sym := info.Get(member.Name)
	if sym == nil {
		return nil, false
	}
	fn, ok := sym.Node.(*nodes.FuncDef)
	if !ok {
		return nil, false
	}
	return c.checkCall(fn, calleeName(fn), call, fr, skipFirst(fn)), true
}

// checkClassCall checks a constructor call against __init__.
func (c *Checker) checkClassCall(info *nodes.TypeInfo, call *nodes.CallExpr, fr *frame) nodes.Type {
	inst := nodes.NewInstance(info)
	init := info.GetMethod("__init__")
	if init == nil || info.HasUnknownBase() || definesNew(info) {
		c.argTypes(call, fr)
		return inst
	}
	c.checkCall(init, fmt.Sprintf("%q", info.Name), call, fr, true)
	return inst
}

// definesNew reports a __new__ below object, which may take any arguments.
func definesNew(info *nodes.TypeInfo) bool {
	fn := info.GetMethod("__new__")
	return fn != nil && fn.Info != nil && fn.Info.Fullname != "builtins.object"
}

func calleeName(fn *nodes.FuncDef) string {
	if fn.Info != nil {
		return fmt.Sprintf("%q of %q", fn.Name, fn.Info.Name)
	}
	return fmt.Sprintf("%q", fn.Name)
}

// checkCall maps the arguments of call to the parameters of fn and checks
// arity and argument types. skipFirst drops the bound self or cls parameter.
// It returns the declared return type.
func (c *Checker) checkCall(fn *nodes.FuncDef, callee string, call *nodes.CallExpr, fr *frame, skipFirst bool) nodes.Type {
	var ret nodes.Type = nodes.NewAny(nodes.Unannotated)
	if fn.ReturnType != nil {
		ret = fn.ReturnType
	}
	if fn.IsOverloaded {
		c.argTypes(call, fr)
		return ret
	}

	params := fn.Arguments
	if skipFirst && len(params) > 0 {
		params = params[1:]
	}

	var positional []*nodes.Argument
	var star, star2 *nodes.Argument
	for _, p := range params {
		switch p.Kind {
		case nodes.ArgRequired, nodes.ArgOptional:
			positional = append(positional, p)
		case nodes.ArgStarParam:
			star = p
		case nodes.ArgStar2Param:
			star2 = p
		}
	}

	formal := make([]*nodes.Argument, len(call.Args))
	filled := make(map[*nodes.Argument]bool)
	next := 0
	splat, kwSplat, tooMany := false, false, false
	for i, kind := range call.ArgKinds {
		switch kind {
		case nodes.ArgPos:
			switch {
			case splat:
				// Positions after *args are unknown.
			case next < len(positional):
				formal[i] = positional[next]
				filled[positional[next]] = true
				next++
			case star != nil:
				formal[i] = star
			default:
				tooMany = true
			}
		case nodes.ArgStar:
			splat = true
		case nodes.ArgStar2:
			kwSplat = true
		case nodes.ArgNamed:
			name := call.ArgNames[i]
			p := paramByName(params, name)
			switch {
			case p == nil && star2 != nil:
				formal[i] = star2
			case p == nil:
				c.errs.Failf(call, "Unexpected keyword argument %q for %s", name, callee)
			case filled[p]:
				c.errs.Failf(call, "%s gets multiple values for keyword argument %q", callee, name)
			default:
				formal[i] = p
				filled[p] = true
			}
		}
	}
	if tooMany {
		c.errs.Failf(call, "Too many arguments for %s", callee)
	}

	for i, arg := range call.Args {
		var expected nodes.Type
		if formal[i] != nil {
			expected = formal[i].Type
		}
		got := c.inferWith(arg, fr, expected)
		if expected == nil || nodes.IsSubtype(got, expected) {
			continue
		}
		if call.ArgKinds[i] == nodes.ArgNamed {
			c.errs.Failf(arg, "Argument %q to %s has incompatible type %q; expected %q",
				call.ArgNames[i], callee, got.Short(), expected.Short())
		} else {
			c.errs.Failf(arg, "Argument %d to %s has incompatible type %q; expected %q",
				i+1, callee, got.Short(), expected.Short())
		}
	}

	if splat || kwSplat {
		return ret
	}
	var missing []string
	for _, p := range positional {
		if p.Kind == nodes.ArgRequired && !filled[p] {
			missing = append(missing, fmt.Sprintf("%q", p.Name))
		}
	}
	switch len(missing) {
	case 0:
	case 1:
		c.errs.Failf(call, "Missing positional argument %s in call to %s", missing[0], callee)
	default:
		c.errs.Failf(call, "Missing positional arguments %s in call to %s", strings.Join(missing, ", "), callee)
	}
	for _, p := range params {
		if p.Kind == nodes.ArgNamedOnly && !filled[p] {
			c.errs.Failf(call, "Missing named argument %q for %s", p.Name, callee)
		}
	}
	return ret
}

func paramByName(params []*nodes.Argument, name string) *nodes.Argument {
	for _, p := range params {
		switch p.Kind {
		case nodes.ArgStarParam, nodes.ArgStar2Param:
			continue
		}
		if p.Name == name {
			return p
		}
	}
	return nil
}
