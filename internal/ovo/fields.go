package ovo

import (
	"github.com/ovo-tools/ovocheck/internal/nodes"
	"github.com/ovo-tools/ovocheck/internal/plugin"
)

// Diagnostics reported on malformed fields declarations.
const (
	MsgFieldsNotDict       = "oslo versioned object `fields` definition should be a dict"
	MsgKeyNotStringLiteral = "oslo.versionedobject `fields` dict should have string literal keys"
	MsgValueNotCall        = "oslo.versionedobject `fields` values should be field constructor calls"
	MsgFieldTypeNotName    = "oslo.versionedobject field type should be referenced by name"
)

// FieldsAttr is the class attribute holding the field declarations.
const FieldsAttr = "fields"

// fieldsDictExpr returns the right hand side of the class level `fields`
// assignment. It reports false when there is none, and also when there is
// more than one since it is not clear which one wins.
func fieldsDictExpr(cls *nodes.ClassDef) (nodes.Expression, bool) {
	var found []*nodes.AssignmentStmt
	for _, stmt := range cls.Defs {
		assign, ok := stmt.(*nodes.AssignmentStmt)
		if !ok || assign.Rvalue == nil || len(assign.Lvalues) == 0 {
			continue
		}
		if name, ok := assign.Lvalues[0].(*nodes.NameExpr); ok && name.Name == FieldsAttr {
			found = append(found, assign)
		}
	}
	if len(found) != 1 {
		return nil, false
	}
	return found[0].Rvalue, true
}

// GenerateFieldDefs is the class hook: it adds one typed attribute per entry
// of the class' own `fields` dict.
func (p *VersionedObjectPlugin) GenerateFieldDefs(ctx *plugin.ClassDefContext) {
	if ctx == nil || ctx.Cls == nil || ctx.Cls.Info == nil {
		return
	}

	rvalue, ok := fieldsDictExpr(ctx.Cls)
	if !ok {
		return
	}

	dict, ok := rvalue.(*nodes.DictExpr)
	if !ok {
		ctx.API.Fail(MsgFieldsNotDict, rvalue)
		return
	}

	p.addFieldsToClass(ctx, dict)
}

func (p *VersionedObjectPlugin) addFieldsToClass(ctx *plugin.ClassDefContext, dict *nodes.DictExpr) {
	for _, item := range dict.Items {
		// Computed names such as 'first' + 'name' are not supported.
		key, ok := item.Key.(*nodes.StrExpr)
		if !ok {
			var anchor nodes.Context = item.Value
			if item.Key != nil {
				anchor = item.Key
			}
			ctx.API.Fail(MsgKeyNotStringLiteral, anchor)
			continue
		}

		call, ok := item.Value.(*nodes.CallExpr)
		if !ok {
			ctx.API.Fail(MsgValueNotCall, item.Value)
			continue
		}

		typeName, ok := nodes.DottedName(call.Callee)
		if !ok {
			ctx.API.Fail(MsgFieldTypeNotName, call.Callee)
			continue
		}

		fieldType := p.resolveFieldType(ctx, typeName, call)
		p.addMemberToClass(key.Value, fieldType, ctx.Cls.Info)
	}
}
