package semanal

import (
	"github.com/ovo-tools/ovocheck/internal/nodes"
	"github.com/ovo-tools/ovocheck/internal/plugin"
)

// hookAPI is the plugin.SemanticAPI handed to class hooks. Lookups start in
// the scope enclosing the class statement: the body of the class being
// hooked is not in scope for its own decorators and field constructors.
type hookAPI struct {
	a     *Analyzer
	scope Scope
}

var _ plugin.SemanticAPI = (*hookAPI)(nil)

func (h *hookAPI) Fail(msg string, ctx nodes.Context) {
	h.a.errs.Fail(ctx, msg)
}

func (h *hookAPI) LookupQualified(name string, ctx nodes.Context) *nodes.SymbolTableNode {
	return h.complete(h.a.LookupQualified(name, h.scope))
}

func (h *hookAPI) LookupFullyQualifiedOrNone(fullname string) *nodes.SymbolTableNode {
	return h.complete(h.a.LookupFullyQualified(fullname))
}

// complete makes sure a class handed to a plugin has its body analyzed.
func (h *hookAPI) complete(sym *nodes.SymbolTableNode) *nodes.SymbolTableNode {
	if sym != nil {
		if info, ok := sym.Node.(*nodes.TypeInfo); ok {
			h.a.analyzeClass(info)
		}
	}
	return sym
}

func (h *hookAPI) ParseBool(expr nodes.Expression) (bool, bool) {
	return ParseBool(expr)
}

func (h *hookAPI) Options() plugin.Options {
	return h.a.opts
}

// ParseBool returns the value of a literal True or False.
func ParseBool(expr nodes.Expression) (value bool, ok bool) {
	name, isName := expr.(*nodes.NameExpr)
	if !isName {
		return false, false
	}
	switch name.Name {
	case "True":
		return true, true
	case "False":
		return false, true
	}
	return false, false
}
