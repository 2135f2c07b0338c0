package pyast

import (
	"testing"

	"github.com/ovo-tools/ovocheck/internal/nodes"
	"github.com/ovo-tools/ovocheck/internal/parser"
)

func parse(t *testing.T, src string) []nodes.Statement {
	t.Helper()
	stmts, errs, err := Parse([]byte(src), parser.Python)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(errs) != 0 {
		t.Fatalf("unexpected syntax errors: %v", errs)
	}
	return stmts
}

func TestConvert_VersionedObjectClass(t *testing.T) {
	src := `from oslo_versionedobjects import base, fields as f


@base.VersionedObjectRegistry.register
class Instance(base.VersionedObject):
    fields = {
        'id': f.IntegerField(),
        "host": f.StringField(nullable=True),
    }
`
	stmts := parse(t, src)
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(stmts))
	}

	imp, ok := stmts[0].(*nodes.ImportFromStmt)
	if !ok {
		t.Fatalf("statement 0 is %T, want *ImportFromStmt", stmts[0])
	}
	if imp.Module != "oslo_versionedobjects" || len(imp.Names) != 2 {
		t.Fatalf("unexpected import: %+v", imp)
	}
	if imp.Names[1] != (nodes.ImportedName{Name: "fields", Alias: "f"}) {
		t.Errorf("aliased import = %+v", imp.Names[1])
	}

	cls, ok := stmts[1].(*nodes.ClassDef)
	if !ok {
		t.Fatalf("statement 1 is %T, want *ClassDef", stmts[1])
	}
	if cls.Name != "Instance" {
		t.Errorf("class name = %q", cls.Name)
	}
	if cls.Line != 5 {
		t.Errorf("class line = %d, want 5", cls.Line)
	}
	if len(cls.Decorators) != 1 {
		t.Fatalf("expected 1 decorator, got %d", len(cls.Decorators))
	}
	if name, _ := nodes.DottedName(cls.Decorators[0]); name != "base.VersionedObjectRegistry.register" {
		t.Errorf("decorator = %q", name)
	}
	if name, _ := nodes.DottedName(cls.BaseTypeExprs[0]); name != "base.VersionedObject" {
		t.Errorf("base = %q", name)
	}

	assign, ok := cls.Defs[0].(*nodes.AssignmentStmt)
	if !ok {
		t.Fatalf("class body[0] is %T, want *AssignmentStmt", cls.Defs[0])
	}
	dict, ok := assign.Rvalue.(*nodes.DictExpr)
	if !ok {
		t.Fatalf("rvalue is %T, want *DictExpr", assign.Rvalue)
	}
	if len(dict.Items) != 2 {
		t.Fatalf("expected 2 dict items, got %d", len(dict.Items))
	}

	key, ok := dict.Items[1].Key.(*nodes.StrExpr)
	if !ok || key.Value != "host" {
		t.Errorf("second key = %#v", dict.Items[1].Key)
	}
	call, ok := dict.Items[1].Value.(*nodes.CallExpr)
	if !ok {
		t.Fatalf("second value is %T, want *CallExpr", dict.Items[1].Value)
	}
	if name, _ := nodes.DottedName(call.Callee); name != "f.StringField" {
		t.Errorf("callee = %q", name)
	}
	nullable, ok := call.KeywordArgs()["nullable"].(*nodes.NameExpr)
	if !ok || nullable.Name != "True" {
		t.Errorf("nullable = %#v", call.KeywordArgs()["nullable"])
	}
}

func TestConvert_Assignments(t *testing.T) {
	stmts := parse(t, "a = b = 1\nx: int\ny: str = 'v'\nz += 2\n")
	if len(stmts) != 4 {
		t.Fatalf("expected 4 statements, got %d", len(stmts))
	}

	chained := stmts[0].(*nodes.AssignmentStmt)
	if len(chained.Lvalues) != 2 {
		t.Errorf("chained lvalues = %d, want 2", len(chained.Lvalues))
	}
	if lit, ok := chained.Rvalue.(*nodes.IntExpr); !ok || lit.Value != 1 {
		t.Errorf("chained rvalue = %#v", chained.Rvalue)
	}

	bare := stmts[1].(*nodes.AssignmentStmt)
	if bare.Rvalue != nil {
		t.Errorf("bare annotation should have nil rvalue, got %#v", bare.Rvalue)
	}
	if name, _ := nodes.DottedName(bare.Annotation); name != "int" {
		t.Errorf("annotation = %q", name)
	}

	annotated := stmts[2].(*nodes.AssignmentStmt)
	if s, ok := annotated.Rvalue.(*nodes.StrExpr); !ok || s.Value != "v" {
		t.Errorf("annotated rvalue = %#v", annotated.Rvalue)
	}

	aug := stmts[3].(*nodes.ExpressionStmt)
	if op, ok := aug.Expr.(*nodes.OpExpr); !ok || op.Op != "+" {
		t.Errorf("augmented assignment = %#v", aug.Expr)
	}
}

func TestConvert_FunctionParameters(t *testing.T) {
	src := `class C:
    def __init__(self, a: int, b: str = 'x', *args, c: bool = True, **kw) -> None:
        self.a = a
`
	stmts := parse(t, src)
	cls := stmts[0].(*nodes.ClassDef)
	fn, ok := cls.Defs[0].(*nodes.FuncDef)
	if !ok {
		t.Fatalf("class body[0] is %T, want *FuncDef", cls.Defs[0])
	}

	want := []struct {
		name string
		kind nodes.ArgumentKind
	}{
		{"self", nodes.ArgRequired},
		{"a", nodes.ArgRequired},
		{"b", nodes.ArgOptional},
		{"args", nodes.ArgStarParam},
		{"c", nodes.ArgNamedOpt},
		{"kw", nodes.ArgStar2Param},
	}
	if len(fn.Arguments) != len(want) {
		t.Fatalf("expected %d arguments, got %d", len(want), len(fn.Arguments))
	}
	for i, w := range want {
		got := fn.Arguments[i]
		if got.Name != w.name || got.Kind != w.kind {
			t.Errorf("argument %d = (%q, %d), want (%q, %d)", i, got.Name, got.Kind, w.name, w.kind)
		}
	}
	if fn.Returns == nil {
		t.Error("expected return annotation")
	}

	assign := fn.Body[0].(*nodes.AssignmentStmt)
	if name, _ := nodes.DottedName(assign.Lvalues[0]); name != "self.a" {
		t.Errorf("lvalue = %q", name)
	}
}

func TestConvert_Literals(t *testing.T) {
	tests := []struct {
		src  string
		want nodes.Expression
	}{
		{"'abc'", &nodes.StrExpr{Value: "abc"}},
		{`"a\nb"`, &nodes.StrExpr{Value: "a\nb"}},
		{`r"a\nb"`, &nodes.StrExpr{Value: `a\nb`}},
		{`'a' "b"`, &nodes.StrExpr{Value: "ab"}},
		{"'''doc'''", &nodes.StrExpr{Value: "doc"}},
		{"42", &nodes.IntExpr{Value: 42}},
		{"0x1f", &nodes.IntExpr{Value: 31}},
		{"1_000", &nodes.IntExpr{Value: 1000}},
		{"-3", &nodes.IntExpr{Value: -3}},
		{"2.5", &nodes.FloatExpr{Value: 2.5}},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			stmts := parse(t, tt.src+"\n")
			got := stmts[0].(*nodes.ExpressionStmt).Expr
			switch w := tt.want.(type) {
			case *nodes.StrExpr:
				if g, ok := got.(*nodes.StrExpr); !ok || g.Value != w.Value {
					t.Errorf("got %#v, want %q", got, w.Value)
				}
			case *nodes.IntExpr:
				if g, ok := got.(*nodes.IntExpr); !ok || g.Value != w.Value {
					t.Errorf("got %#v, want %d", got, w.Value)
				}
			case *nodes.FloatExpr:
				if g, ok := got.(*nodes.FloatExpr); !ok || g.Value != w.Value {
					t.Errorf("got %#v, want %v", got, w.Value)
				}
			}
		})
	}

	t.Run("f-string is opaque", func(t *testing.T) {
		stmts := parse(t, "f'{x}'\n")
		if _, ok := stmts[0].(*nodes.ExpressionStmt).Expr.(*nodes.OtherExpr); !ok {
			t.Errorf("expected OtherExpr for f-string")
		}
	})
}

func TestConvert_Subscript(t *testing.T) {
	stmts := parse(t, "x: Dict[str, int]\ny: Optional[int]\n")

	dict := stmts[0].(*nodes.AssignmentStmt).Annotation.(*nodes.IndexExpr)
	tuple, ok := dict.Index.(*nodes.TupleExpr)
	if !ok || len(tuple.Items) != 2 {
		t.Errorf("Dict index = %#v, want 2-tuple", dict.Index)
	}

	opt := stmts[1].(*nodes.AssignmentStmt).Annotation.(*nodes.IndexExpr)
	if name, _ := nodes.DottedName(opt.Index); name != "int" {
		t.Errorf("Optional index = %#v", opt.Index)
	}
}

// render prints an annotation back in source form.
func render(e nodes.Expression) string {
	switch x := e.(type) {
	case *nodes.NameExpr, *nodes.MemberExpr:
		name, _ := nodes.DottedName(x)
		return name
	case *nodes.IndexExpr:
		return render(x.Base) + "[" + render(x.Index) + "]"
	case *nodes.TupleExpr:
		out := ""
		for i, item := range x.Items {
			if i > 0 {
				out += ", "
			}
			out += render(item)
		}
		return out
	case *nodes.OpExpr:
		return render(x.Left) + " " + x.Op + " " + render(x.Right)
	default:
		return "?"
	}
}

func TestConvert_AnnotationForms(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"x: List[int]\n", "List[int]"},
		{"x: Dict[str, List[int]]\n", "Dict[str, List[int]]"},
		{"x: typing.Optional[int]\n", "typing.Optional[int]"},
		{"x: Optional[fields.Field]\n", "Optional[fields.Field]"},
		{"x: int | None\n", "int | None"},
		{"x: Tuple[int, str, float]\n", "Tuple[int, str, float]"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			stmts := parse(t, tt.src)
			got := render(stmts[0].(*nodes.AssignmentStmt).Annotation)
			if got != tt.want {
				t.Errorf("annotation = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConvert_SignatureAnnotations(t *testing.T) {
	stmts := parse(t, "def f(a: List[int], b: Optional[str] = None) -> Dict[str, int]:\n    pass\n")
	fn := stmts[0].(*nodes.FuncDef)

	var got []string
	for _, arg := range fn.Arguments {
		got = append(got, render(arg.Annotation))
	}
	got = append(got, render(fn.Returns))

	want := []string{"List[int]", "Optional[str]", "Dict[str, int]"}
	if len(got) != len(want) {
		t.Fatalf("annotations = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("annotation %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestConvert_Imports(t *testing.T) {
	stmts := parse(t, "import os.path as p, sys\nfrom .. import sibling\nfrom .pkg.mod import *\n")

	imp := stmts[0].(*nodes.ImportStmt)
	if len(imp.Ids) != 2 || imp.Ids[0] != (nodes.ImportedName{Name: "os.path", Alias: "p"}) {
		t.Errorf("import = %+v", imp.Ids)
	}

	rel := stmts[1].(*nodes.ImportFromStmt)
	if rel.Relative != 2 || rel.Module != "" || rel.Names[0].Name != "sibling" {
		t.Errorf("relative import = %+v", rel)
	}

	star := stmts[2].(*nodes.ImportFromStmt)
	if !star.Wildcard || star.Relative != 1 || star.Module != "pkg.mod" {
		t.Errorf("wildcard import = %+v", star)
	}
}

func TestConvert_CompoundStatements(t *testing.T) {
	src := `if flag:
    a = 1
elif other:
    a = 2
else:
    a = 3
`
	stmts := parse(t, src)
	stmt, ok := stmts[0].(*nodes.CompoundStmt)
	if !ok {
		t.Fatalf("statement is %T, want *CompoundStmt", stmts[0])
	}
	if len(stmt.Exprs) != 1 {
		t.Errorf("expected the condition as header expression, got %d", len(stmt.Exprs))
	}

	assignments := 0
	var walk func([]nodes.Statement)
	walk = func(body []nodes.Statement) {
		for _, s := range body {
			switch s := s.(type) {
			case *nodes.AssignmentStmt:
				assignments++
			case *nodes.CompoundStmt:
				walk(s.Body)
			}
		}
	}
	walk(stmt.Body)
	if assignments != 3 {
		t.Errorf("expected 3 nested assignments, got %d", assignments)
	}
}

func TestDecodeString(t *testing.T) {
	tests := []struct {
		lit  string
		want string
		ok   bool
	}{
		{`'x'`, "x", true},
		{`u"x"`, "x", true},
		{`b'x'`, "", false},
		{`"it\'s"`, "it's", true},
		{`"""a"b"""`, `a"b`, true},
	}
	for _, tt := range tests {
		got, ok := decodeString(tt.lit)
		if got != tt.want || ok != tt.ok {
			t.Errorf("decodeString(%s) = (%q, %v), want (%q, %v)", tt.lit, got, ok, tt.want, tt.ok)
		}
	}
}
