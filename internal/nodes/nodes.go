// Package nodes defines the syntax tree, symbol and type model shared by the
// semantic analyzer, the checker and checker plugins.
//
// The model is intentionally close to what a Python type checker keeps in
// memory: expressions and statements produced by the front end, symbol tables
// populated by semantic analysis, and types attached to variables.
package nodes

// Position is a 1-based source location.
type Position struct {
	Line   int
	Column int
}

// Pos implements Context.
func (p Position) Pos() Position { return p }

// Context is anything that can anchor a diagnostic.
type Context interface {
	Pos() Position
}

// Expression is a node that produces a value.
type Expression interface {
	Context
	exprNode()
}

// Statement is a node in a block body.
type Statement interface {
	Context
	stmtNode()
}

// RefExpr is implemented by expressions that refer to a named symbol.
type RefExpr interface {
	Expression
	RefFullname() string
}

// NameExpr is a bare identifier. True, False and None are NameExprs too.
type NameExpr struct {
	Position
	Name string
	// Fullname is filled in by semantic analysis when the name resolves.
	Fullname string
}

// RefFullname returns the resolved fullname, or "" if unresolved.
func (e *NameExpr) RefFullname() string { return e.Fullname }

// MemberExpr is an attribute access such as fields.IntegerField.
type MemberExpr struct {
	Position
	Expr     Expression
	Name     string
	Fullname string
}

// RefFullname returns the resolved fullname, or "" if unresolved.
func (e *MemberExpr) RefFullname() string { return e.Fullname }

// StrExpr is a string literal. Implicitly concatenated literals are folded.
type StrExpr struct {
	Position
	Value string
}

// IntExpr is an integer literal.
type IntExpr struct {
	Position
	Value int64
}

// FloatExpr is a float literal.
type FloatExpr struct {
	Position
	Value float64
}

// ArgKind classifies a call argument.
type ArgKind int

const (
	ArgPos ArgKind = iota
	ArgNamed
	ArgStar
	ArgStar2
)

// CallExpr is a call. Args, ArgKinds and ArgNames are parallel slices;
// ArgNames holds "" for anything but ArgNamed.
type CallExpr struct {
	Position
	Callee   Expression
	Args     []Expression
	ArgKinds []ArgKind
	ArgNames []string
}

// KeywordArgs returns the named arguments of the call keyed by name.
// Positional and splatted arguments are left out.
func (e *CallExpr) KeywordArgs() map[string]Expression {
	kw := make(map[string]Expression)
	for i, kind := range e.ArgKinds {
		if kind == ArgNamed {
			kw[e.ArgNames[i]] = e.Args[i]
		}
	}
	return kw
}

// DictItem is one entry of a dict display. Key is nil for **splat entries.
type DictItem struct {
	Key   Expression
	Value Expression
}

// DictExpr is a dict display {k: v, ...}.
type DictExpr struct {
	Position
	Items []DictItem
}

// ListExpr is a list display.
type ListExpr struct {
	Position
	Items []Expression
}

// TupleExpr is a tuple display.
type TupleExpr struct {
	Position
	Items []Expression
}

// IndexExpr is a subscript such as Optional[int].
type IndexExpr struct {
	Position
	Base  Expression
	Index Expression
}

// OpExpr is a binary operation.
type OpExpr struct {
	Position
	Op    string
	Left  Expression
	Right Expression
}

// OtherExpr stands for any expression the front end does not model.
type OtherExpr struct {
	Position
	Kind string
	Text string
}

func (*NameExpr) exprNode()   {}
func (*MemberExpr) exprNode() {}
func (*StrExpr) exprNode()    {}
func (*IntExpr) exprNode()    {}
func (*FloatExpr) exprNode()  {}
func (*CallExpr) exprNode()   {}
func (*DictExpr) exprNode()   {}
func (*ListExpr) exprNode()   {}
func (*TupleExpr) exprNode()  {}
func (*IndexExpr) exprNode()  {}
func (*OpExpr) exprNode()     {}
func (*OtherExpr) exprNode()  {}

// ImportedName is one "name as alias" pair of an import.
type ImportedName struct {
	Name  string
	Alias string
}

// ImportStmt is "import a.b as c".
type ImportStmt struct {
	Position
	Ids []ImportedName
}

// ImportFromStmt is "from .a import b as c". Relative counts leading dots.
type ImportFromStmt struct {
	Position
	Module   string
	Relative int
	Names    []ImportedName
	Wildcard bool
}

// AssignmentStmt covers plain, chained and annotated assignments.
// Rvalue is nil for a bare annotation such as "x: int".
type AssignmentStmt struct {
	Position
	Lvalues    []Expression
	Rvalue     Expression
	Annotation Expression
}

// ExpressionStmt is an expression evaluated for its side effects.
type ExpressionStmt struct {
	Position
	Expr Expression
}

// ReturnStmt is a return statement; Expr may be nil.
type ReturnStmt struct {
	Position
	Expr Expression
}

// PassStmt is pass, and also stands in for statements without semantics here.
type PassStmt struct {
	Position
}

// CompoundStmt is if/for/while/with/try. Exprs are the header expressions,
// Targets the names the header binds (for targets, with and except aliases)
// and Body every nested block flattened in source order.
type CompoundStmt struct {
	Position
	Kind    string
	Exprs   []Expression
	Targets []Expression
	Body    []Statement
}

// ArgumentKind classifies a function parameter.
type ArgumentKind int

const (
	ArgRequired ArgumentKind = iota
	ArgOptional
	ArgStarParam
	ArgStar2Param
	ArgNamedOnly
	// ArgNamedOpt is a keyword-only parameter with a default.
	ArgNamedOpt
)

// Argument is a function parameter.
type Argument struct {
	Position
	Name       string
	Kind       ArgumentKind
	Annotation Expression
	// Type is the analyzed annotation, nil until semantic analysis.
	Type Type
}

// FuncDef is a function or method definition.
type FuncDef struct {
	Position
	Name       string
	Fullname   string
	Decorators []Expression
	Arguments  []*Argument
	Returns    Expression
	Body       []Statement
	// Info is the owning class for methods.
	Info         *TypeInfo
	ReturnType   Type
	IsStatic     bool
	IsClassMeth  bool
	IsOverloaded bool
}

// SymbolFullname implements SymbolNode.
func (f *FuncDef) SymbolFullname() string { return f.Fullname }

// ClassDef is a class definition.
type ClassDef struct {
	Position
	Name          string
	Fullname      string
	Decorators    []Expression
	BaseTypeExprs []Expression
	Defs          []Statement
	Info          *TypeInfo
}

func (*ImportStmt) stmtNode()     {}
func (*ImportFromStmt) stmtNode() {}
func (*AssignmentStmt) stmtNode() {}
func (*ExpressionStmt) stmtNode() {}
func (*ReturnStmt) stmtNode()     {}
func (*PassStmt) stmtNode()       {}
func (*CompoundStmt) stmtNode()   {}
func (*FuncDef) stmtNode()        {}
func (*ClassDef) stmtNode()       {}

// DottedName returns "a.b.c" for a chain of names and member accesses,
// and false for anything else.
func DottedName(e Expression) (string, bool) {
	switch x := e.(type) {
	case *NameExpr:
		return x.Name, true
	case *MemberExpr:
		base, ok := DottedName(x.Expr)
		if !ok {
			return "", false
		}
		return base + "." + x.Name, true
	default:
		return "", false
	}
}
