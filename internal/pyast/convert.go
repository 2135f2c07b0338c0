// Package pyast converts tree-sitter Python syntax trees into the checker's
// node model.
package pyast

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/ovo-tools/ovocheck/internal/nodes"
	"github.com/ovo-tools/ovocheck/internal/parser"
)

// Convert builds the statement list of a parsed module.
func Convert(result *parser.ParseResult) []nodes.Statement {
	if result == nil || result.Root == nil {
		return nil
	}
	c := &converter{src: result.Source}
	return c.block(result.Root)
}

// Parse parses and converts source in one step. Syntax errors are returned
// alongside whatever statements could be recovered.
func Parse(source []byte, lang parser.Language) ([]nodes.Statement, []*parser.ParseError, error) {
	p, err := parser.NewParser(lang)
	if err != nil {
		return nil, nil, err
	}
	defer p.Close()

	result, err := p.Parse(source)
	if err != nil {
		return nil, nil, err
	}
	defer result.Close()

	return Convert(result), result.SyntaxErrors(), nil
}

type converter struct {
	src []byte
}

func (c *converter) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(c.src)
}

func pos(n *sitter.Node) nodes.Position {
	p := n.StartPoint()
	return nodes.Position{Line: int(p.Row) + 1, Column: int(p.Column) + 1}
}

// namedChildren returns the named children of n, comments excluded.
func namedChildren(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child == nil || child.Type() == "comment" {
			continue
		}
		out = append(out, child)
	}
	return out
}

// childrenByField returns every child attached to field name.
func childrenByField(n *sitter.Node, name string) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.FieldNameForChild(i) == name {
			out = append(out, n.Child(i))
		}
	}
	return out
}

// firstNamed returns the first named non-comment child, or nil.
func firstNamed(n *sitter.Node) *sitter.Node {
	children := namedChildren(n)
	if len(children) == 0 {
		return nil
	}
	return children[0]
}

// findChildByType returns the first direct child of the given type.
func findChildByType(n *sitter.Node, nodeType string) *sitter.Node {
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child.Type() == nodeType {
			return child
		}
	}
	return nil
}
