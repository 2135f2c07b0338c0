package pyast

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/ovo-tools/ovocheck/internal/nodes"
)

// block converts the statements of a module or block node.
func (c *converter) block(n *sitter.Node) []nodes.Statement {
	if n == nil {
		return nil
	}
	var stmts []nodes.Statement
	for _, child := range namedChildren(n) {
		stmts = append(stmts, c.statement(child)...)
	}
	return stmts
}

func (c *converter) statement(n *sitter.Node) []nodes.Statement {
	switch n.Type() {
	case "expression_statement":
		return []nodes.Statement{c.expressionStatement(n)}
	case "class_definition":
		return []nodes.Statement{c.classDef(n, nil)}
	case "function_definition":
		return []nodes.Statement{c.funcDef(n, nil)}
	case "decorated_definition":
		return []nodes.Statement{c.decorated(n)}
	case "import_statement":
		return []nodes.Statement{c.importStmt(n)}
	case "import_from_statement", "future_import_statement":
		return []nodes.Statement{c.importFrom(n)}
	case "return_statement":
		ret := &nodes.ReturnStmt{Position: pos(n)}
		if value := firstNamed(n); value != nil {
			ret.Expr = c.expr(value)
		}
		return []nodes.Statement{ret}
	case "if_statement", "for_statement", "while_statement", "try_statement",
		"with_statement", "match_statement", "elif_clause", "else_clause",
		"except_clause", "finally_clause":
		return []nodes.Statement{c.compound(n)}
	case "ERROR":
		// Recover what we can from inside the damaged region.
		return c.block(n)
	default:
		return []nodes.Statement{&nodes.PassStmt{Position: pos(n)}}
	}
}

func (c *converter) expressionStatement(n *sitter.Node) nodes.Statement {
	children := namedChildren(n)
	if len(children) == 0 {
		return &nodes.PassStmt{Position: pos(n)}
	}
	if len(children) > 1 {
		tuple := &nodes.TupleExpr{Position: pos(n)}
		for _, child := range children {
			tuple.Items = append(tuple.Items, c.expr(child))
		}
		return &nodes.ExpressionStmt{Position: pos(n), Expr: tuple}
	}

	child := children[0]
	switch child.Type() {
	case "assignment":
		return c.assignment(child)
	case "augmented_assignment":
		op := strings.TrimSuffix(c.text(child.ChildByFieldName("operator")), "=")
		return &nodes.ExpressionStmt{
			Position: pos(child),
			Expr: &nodes.OpExpr{
				Position: pos(child),
				Op:       op,
				Left:     c.expr(child.ChildByFieldName("left")),
				Right:    c.expr(child.ChildByFieldName("right")),
			},
		}
	default:
		return &nodes.ExpressionStmt{Position: pos(child), Expr: c.expr(child)}
	}
}

// assignment flattens chained assignments: a = b = value.
func (c *converter) assignment(n *sitter.Node) *nodes.AssignmentStmt {
	stmt := &nodes.AssignmentStmt{Position: pos(n)}
	if typeNode := n.ChildByFieldName("type"); typeNode != nil {
		stmt.Annotation = c.expr(typeNode)
	}

	current := n
	for {
		stmt.Lvalues = append(stmt.Lvalues, c.expr(current.ChildByFieldName("left")))
		right := current.ChildByFieldName("right")
		if right == nil {
			return stmt
		}
		if right.Type() == "assignment" {
			current = right
			continue
		}
		stmt.Rvalue = c.expr(right)
		return stmt
	}
}

func (c *converter) decorated(n *sitter.Node) nodes.Statement {
	var decorators []nodes.Expression
	for _, child := range namedChildren(n) {
		if child.Type() == "decorator" {
			if e := firstNamed(child); e != nil {
				decorators = append(decorators, c.expr(e))
			}
		}
	}

	def := n.ChildByFieldName("definition")
	if def == nil {
		return &nodes.PassStmt{Position: pos(n)}
	}
	switch def.Type() {
	case "class_definition":
		return c.classDef(def, decorators)
	case "function_definition":
		return c.funcDef(def, decorators)
	default:
		return &nodes.PassStmt{Position: pos(n)}
	}
}

func (c *converter) classDef(n *sitter.Node, decorators []nodes.Expression) *nodes.ClassDef {
	cls := &nodes.ClassDef{
		Position:   pos(n),
		Name:       c.text(n.ChildByFieldName("name")),
		Decorators: decorators,
	}
	if supers := n.ChildByFieldName("superclasses"); supers != nil {
		for _, arg := range namedChildren(supers) {
			// metaclass=... and other keywords are not bases.
			if arg.Type() == "keyword_argument" {
				continue
			}
			cls.BaseTypeExprs = append(cls.BaseTypeExprs, c.expr(arg))
		}
	}
	cls.Defs = c.block(n.ChildByFieldName("body"))
	return cls
}

func (c *converter) funcDef(n *sitter.Node, decorators []nodes.Expression) *nodes.FuncDef {
	fn := &nodes.FuncDef{
		Position:   pos(n),
		Name:       c.text(n.ChildByFieldName("name")),
		Decorators: decorators,
	}
	for _, d := range decorators {
		switch name, _ := nodes.DottedName(d); name {
		case "staticmethod":
			fn.IsStatic = true
		case "classmethod":
			fn.IsClassMeth = true
		case "overload", "typing.overload":
			fn.IsOverloaded = true
		}
	}
	if params := n.ChildByFieldName("parameters"); params != nil {
		fn.Arguments = c.parameters(params)
	}
	if ret := n.ChildByFieldName("return_type"); ret != nil {
		fn.Returns = c.expr(ret)
	}
	fn.Body = c.block(n.ChildByFieldName("body"))
	return fn
}

func (c *converter) parameters(n *sitter.Node) []*nodes.Argument {
	var args []*nodes.Argument
	namedOnly := false
	for _, p := range namedChildren(n) {
		arg := &nodes.Argument{Position: pos(p), Kind: nodes.ArgRequired}
		switch p.Type() {
		case "identifier":
			arg.Name = c.text(p)
		case "typed_parameter":
			inner := firstNamed(p)
			if inner != nil {
				switch inner.Type() {
				case "list_splat_pattern":
					arg.Kind = nodes.ArgStarParam
					inner = firstNamed(inner)
				case "dictionary_splat_pattern":
					arg.Kind = nodes.ArgStar2Param
					inner = firstNamed(inner)
				}
			}
			arg.Name = c.text(inner)
			if t := p.ChildByFieldName("type"); t != nil {
				arg.Annotation = c.expr(t)
			}
		case "default_parameter":
			arg.Name = c.text(p.ChildByFieldName("name"))
			arg.Kind = nodes.ArgOptional
		case "typed_default_parameter":
			arg.Name = c.text(p.ChildByFieldName("name"))
			arg.Kind = nodes.ArgOptional
			if t := p.ChildByFieldName("type"); t != nil {
				arg.Annotation = c.expr(t)
			}
		case "list_splat_pattern":
			arg.Name = c.text(firstNamed(p))
			arg.Kind = nodes.ArgStarParam
		case "dictionary_splat_pattern":
			arg.Name = c.text(firstNamed(p))
			arg.Kind = nodes.ArgStar2Param
		case "keyword_separator":
			namedOnly = true
			continue
		default:
			// positional_separator and anything else carry no parameter.
			continue
		}
		if arg.Kind == nodes.ArgStarParam {
			namedOnly = true
		} else if namedOnly && arg.Kind == nodes.ArgRequired {
			arg.Kind = nodes.ArgNamedOnly
		} else if namedOnly && arg.Kind == nodes.ArgOptional {
			arg.Kind = nodes.ArgNamedOpt
		}
		args = append(args, arg)
	}
	return args
}

func (c *converter) importStmt(n *sitter.Node) *nodes.ImportStmt {
	stmt := &nodes.ImportStmt{Position: pos(n)}
	for _, child := range childrenByField(n, "name") {
		stmt.Ids = append(stmt.Ids, c.importedName(child))
	}
	return stmt
}

func (c *converter) importFrom(n *sitter.Node) *nodes.ImportFromStmt {
	stmt := &nodes.ImportFromStmt{Position: pos(n)}
	if n.Type() == "future_import_statement" {
		stmt.Module = "__future__"
	}
	if mod := n.ChildByFieldName("module_name"); mod != nil {
		if mod.Type() == "relative_import" {
			for i := 0; i < int(mod.ChildCount()); i++ {
				child := mod.Child(i)
				switch child.Type() {
				case "import_prefix":
					stmt.Relative = strings.Count(c.text(child), ".")
				case "dotted_name":
					stmt.Module = c.text(child)
				}
			}
		} else {
			stmt.Module = c.text(mod)
		}
	}
	if findChildByType(n, "wildcard_import") != nil {
		stmt.Wildcard = true
	}
	for _, child := range childrenByField(n, "name") {
		stmt.Names = append(stmt.Names, c.importedName(child))
	}
	return stmt
}

func (c *converter) importedName(n *sitter.Node) nodes.ImportedName {
	if n.Type() == "aliased_import" {
		return nodes.ImportedName{
			Name:  c.text(n.ChildByFieldName("name")),
			Alias: c.text(n.ChildByFieldName("alias")),
		}
	}
	return nodes.ImportedName{Name: c.text(n)}
}

// compound keeps the header expressions and every nested block of an
// if/for/while/try/with statement.
func (c *converter) compound(n *sitter.Node) *nodes.CompoundStmt {
	stmt := &nodes.CompoundStmt{Position: pos(n), Kind: n.Type()}
	for _, field := range []string{"condition", "right", "subject"} {
		if e := n.ChildByFieldName(field); e != nil {
			stmt.Exprs = append(stmt.Exprs, c.expr(e))
		}
	}
	if left := n.ChildByFieldName("left"); left != nil {
		stmt.Targets = append(stmt.Targets, c.expr(left))
	}
	if n.Type() == "except_clause" {
		c.exceptHeader(n, stmt)
	}
	for _, child := range namedChildren(n) {
		switch child.Type() {
		case "block":
			stmt.Body = append(stmt.Body, c.block(child)...)
		case "elif_clause", "else_clause", "except_clause", "finally_clause", "case_clause":
			stmt.Body = append(stmt.Body, c.compound(child))
		case "with_clause":
			for _, item := range namedChildren(child) {
				if value := item.ChildByFieldName("value"); value != nil {
					c.aliased(value, stmt)
				}
			}
		}
	}
	return stmt
}

// exceptHeader handles both "except E as e" layouts of the grammar: an
// as_pattern child, or the expression and alias as siblings.
func (c *converter) exceptHeader(n *sitter.Node, stmt *nodes.CompoundStmt) {
	var header []*sitter.Node
	for _, child := range namedChildren(n) {
		if child.Type() != "block" {
			header = append(header, child)
		}
	}
	switch {
	case len(header) == 1:
		c.aliased(header[0], stmt)
	case len(header) >= 2 && findChildByType(n, "as") != nil:
		stmt.Exprs = append(stmt.Exprs, c.expr(header[0]))
		stmt.Targets = append(stmt.Targets, c.expr(header[1]))
	default:
		for _, h := range header {
			stmt.Exprs = append(stmt.Exprs, c.expr(h))
		}
	}
}

// aliased records "expr as name" as a header expression and a target.
func (c *converter) aliased(n *sitter.Node, stmt *nodes.CompoundStmt) {
	if n.Type() != "as_pattern" {
		stmt.Exprs = append(stmt.Exprs, c.expr(n))
		return
	}
	if value := firstNamed(n); value != nil {
		stmt.Exprs = append(stmt.Exprs, c.expr(value))
	}
	if alias := n.ChildByFieldName("alias"); alias != nil {
		if target := firstNamed(alias); target != nil && alias.Type() == "as_pattern_target" {
			stmt.Targets = append(stmt.Targets, c.expr(target))
		} else {
			stmt.Targets = append(stmt.Targets, c.expr(alias))
		}
	}
}
