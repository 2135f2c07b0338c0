package ovo

import (
	"fmt"

	"github.com/ovo-tools/ovocheck/internal/nodes"
	"github.com/ovo-tools/ovocheck/internal/plugin"
)

// AutoTypeMarker is the class variable a field stub declares to say which
// Python type the field holds, e.g. "AUTO_TYPE: int" on IntegerField.
// Stubs and plugin must agree on this name.
const AutoTypeMarker = "AUTO_TYPE"

// NullableArg is the field constructor keyword that makes a field Optional.
const NullableArg = "nullable"

// LookupError explains why a field type could not be resolved.
type LookupError struct {
	Name   string
	Reason string
}

// Error implements the error interface.
func (e *LookupError) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, e.Reason)
}

// resolveFieldType maps a field constructor call to the type of the
// attribute it generates. It never fails: anything unexpected degrades to
// Any so an incomplete stub does not break checking.
func (p *VersionedObjectPlugin) resolveFieldType(ctx *plugin.ClassDefContext, typeName string, call *nodes.CallExpr) nodes.Type {
	fieldType, err := lookupAutoType(ctx, typeName)
	if err != nil {
		p.logf("looking up %s got exception %s", typeName, err)
		fieldType = nodes.NewAny(nodes.ImplementationArtifact)
	}

	if isNullable(ctx.API, call) {
		fieldType = nodes.MakeOptional(fieldType)
	}
	return fieldType
}

// lookupAutoType returns the declared type of the AUTO_TYPE marker of the
// field class called typeName.
func lookupAutoType(ctx *plugin.ClassDefContext, typeName string) (t nodes.Type, err error) {
	defer func() {
		if r := recover(); r != nil {
			t = nil
			err = &LookupError{Name: typeName, Reason: fmt.Sprint(r)}
		}
	}()

	sym := ctx.API.LookupQualified(typeName, ctx.Cls)
	if sym == nil || sym.Node == nil {
		return nil, &LookupError{Name: typeName, Reason: "name is not defined"}
	}

	info, ok := sym.Node.(*nodes.TypeInfo)
	if !ok {
		return nil, &LookupError{Name: typeName, Reason: "not a class"}
	}

	marker := info.Get(AutoTypeMarker)
	if marker == nil {
		return nil, &LookupError{Name: typeName, Reason: AutoTypeMarker + " is not declared"}
	}

	v, ok := marker.Node.(*nodes.Var)
	if !ok {
		return nil, &LookupError{Name: typeName, Reason: AutoTypeMarker + " is not a variable"}
	}
	if v.Type == nil {
		return nil, &LookupError{Name: typeName, Reason: AutoTypeMarker + " has no type"}
	}
	return v.Type, nil
}

// isNullable reports whether the call passes nullable=True literally. Other
// values are left to the checker's argument type checks.
func isNullable(api plugin.SemanticAPI, call *nodes.CallExpr) bool {
	arg, ok := call.KeywordArgs()[NullableArg]
	if !ok {
		return false
	}
	value, ok := api.ParseBool(arg)
	return ok && value
}
