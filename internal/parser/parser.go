// Package parser provides tree-sitter based parsing of Python sources and
// stubs.
//
// Callers get the raw syntax tree plus the source it was parsed from;
// turning the tree into the checker's node model is the job of package
// pyast.
package parser

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// Language selects between source files and stubs. Both use the Python
// grammar; stubs tolerate partial parses.
type Language string

const (
	Python     Language = "python"
	PythonStub Language = "python-stub"
)

// Parser is a tree-sitter parser for one Language. It is not safe for
// concurrent use.
type Parser struct {
	ts   *sitter.Parser
	lang Language
}

// ParseResult is a parsed module.
type ParseResult struct {
	Tree     *sitter.Tree
	Root     *sitter.Node
	Source   []byte
	Language Language
}

// NewParser returns a parser for lang.
func NewParser(lang Language) (*Parser, error) {
	if lang != Python && lang != PythonStub {
		return nil, &UnsupportedLanguageError{Language: string(lang)}
	}
	ts := sitter.NewParser()
	ts.SetLanguage(python.GetLanguage())
	return &Parser{ts: ts, lang: lang}, nil
}

// Parse parses source.
func (p *Parser) Parse(source []byte) (*ParseResult, error) {
	return p.ParseCtx(context.Background(), source)
}

// ParseCtx parses source, giving up when ctx is cancelled.
func (p *Parser) ParseCtx(ctx context.Context, source []byte) (*ParseResult, error) {
	tree, err := p.ts.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, &ParseError{Message: err.Error()}
	}
	return &ParseResult{
		Tree:     tree,
		Root:     tree.RootNode(),
		Source:   source,
		Language: p.lang,
	}, nil
}

// Close releases the tree-sitter parser. The Parser is unusable afterwards.
func (p *Parser) Close() {
	if p.ts != nil {
		p.ts.Close()
		p.ts = nil
	}
}

// Close releases the tree.
func (r *ParseResult) Close() {
	if r.Tree != nil {
		r.Tree.Close()
		r.Tree, r.Root = nil, nil
	}
}

// SyntaxErrors returns one ParseError per ERROR or missing node, outermost
// first. Errors nested in an ERROR node are not repeated; the error is placed
// where the ERROR node stops making sense rather than where it starts.
func (r *ParseResult) SyntaxErrors() []*ParseError {
	if r.Root == nil || !r.Root.HasError() {
		return nil
	}
	var errs []*ParseError
	r.WalkNodes(func(n *sitter.Node) bool {
		switch {
		case !n.HasError():
			return false
		case n.IsMissing():
			errs = append(errs, newSyntaxError(n.StartPoint(), "missing "+n.Type()))
			return false
		case n.Type() == "ERROR":
			errs = append(errs, newSyntaxError(errorStart(n), "invalid syntax"))
			return false
		}
		return true
	})
	return errs
}

// errorStart finds the first token inside n that belongs to the error.
// tree-sitter often wraps whole valid statements from earlier lines into an
// ERROR node; those are skipped.
func errorStart(n *sitter.Node) sitter.Point {
	count := int(n.ChildCount())
	for i := 0; i < count; i++ {
		child := n.Child(i)
		switch {
		case child.IsMissing():
			return child.StartPoint()
		case child.HasError():
			return errorStart(child)
		case child.IsNamed() && i+1 < count && n.Child(i+1).StartPoint().Row > child.EndPoint().Row:
			continue
		}
		return child.StartPoint()
	}
	return n.StartPoint()
}

func newSyntaxError(at sitter.Point, msg string) *ParseError {
	return &ParseError{Message: msg, Line: at.Row + 1, Column: at.Column + 1}
}

// WalkNodes visits the tree depth-first. Returning false from visit skips
// the children of that node.
func (r *ParseResult) WalkNodes(visit func(*sitter.Node) bool) {
	if r.Root != nil {
		walk(r.Root, visit)
	}
}

func walk(n *sitter.Node, visit func(*sitter.Node) bool) {
	if !visit(n) {
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		walk(n.Child(i), visit)
	}
}
