package checker

import (
	"strings"
	"testing"

	"github.com/ovo-tools/ovocheck/internal/diag"
	"github.com/ovo-tools/ovocheck/internal/nodes"
	"github.com/ovo-tools/ovocheck/internal/ovo"
	"github.com/ovo-tools/ovocheck/internal/parser"
	"github.com/ovo-tools/ovocheck/internal/plugin"
	"github.com/ovo-tools/ovocheck/internal/pyast"
	"github.com/ovo-tools/ovocheck/internal/semanal"
	"github.com/ovo-tools/ovocheck/internal/stubs"
)

func noEnv(string) (string, bool) { return "", false }

// check analyzes src as __main__ next to the bundled stubs, with the ovo
// plugin loaded, and returns every diagnostic.
func check(t *testing.T, src string, opts Options) []diag.Diagnostic {
	t.Helper()

	mods, err := stubs.Bundled()
	if err != nil {
		t.Fatalf("loading stubs: %v", err)
	}
	var files []*nodes.MypyFile
	for _, m := range mods {
		defs, _, err := pyast.Parse(m.Source, parser.PythonStub)
		if err != nil {
			t.Fatalf("parsing stub %s: %v", m.Name, err)
		}
		files = append(files, &nodes.MypyFile{Fullname: m.Name, Path: m.Path, IsStub: true, IsPkg: m.IsPkg, Defs: defs})
	}
	defs, syntaxErrs, err := pyast.Parse([]byte(src), parser.Python)
	if err != nil {
		t.Fatalf("parsing source: %v", err)
	}
	if len(syntaxErrs) != 0 {
		t.Fatalf("syntax errors: %v", syntaxErrs)
	}
	files = append(files, &nodes.MypyFile{Fullname: "__main__", Path: "main.py", Defs: defs})

	p := ovo.New(plugin.Options{}, ovo.WithEnv(noEnv))
	a := semanal.New(p, plugin.Options{}, diag.NewCollector())
	a.Analyze(files)
	New(a, opts).Check(files)
	return a.Errors().Diagnostics()
}

func messages(ds []diag.Diagnostic) string {
	var b strings.Builder
	for _, d := range ds {
		b.WriteString(d.String())
		b.WriteByte('\n')
	}
	return b.String()
}

const simpleOvo = `
from oslo_versionedobjects import base as ovo_base
from oslo_versionedobjects import fields

@ovo_base.VersionedObjectRegistry.objectify
class MyOvo(ovo_base.VersionedObject):
    fields = {
        'id': fields.IntegerField(),
        'name': fields.StringField(),
        'temperature': fields.FloatField(),
        'list_of_ints': fields.ListOfIntegersField(),
        'owner': fields.StringField(nullable=True),
    }

    def foo(self) -> None:
        return None

myobj: MyOvo
`

func TestCheck(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		want    []string
		notWant []string
	}{
		{
			name: "field types are revealed",
			src: simpleOvo + `
reveal_type(myobj.id)
reveal_type(myobj.name)
reveal_type(myobj.temperature)
reveal_type(myobj.list_of_ints)
reveal_type(myobj.owner)
reveal_type(myobj.list_of_ints[0])
`,
			want: []string{
				"main.py:20: note: Revealed type is 'builtins.int'",
				"Revealed type is 'builtins.str'",
				"Revealed type is 'builtins.float'",
				"Revealed type is 'builtins.list[builtins.int]'",
				"Revealed type is 'Union[builtins.str, None]'",
			},
			notWant: []string{"error:"},
		},
		{
			name: "field assignment is checked",
			src:  simpleOvo + "myobj.id = 'bob'\nmyobj.name = 'bob'\n",
			want: []string{`main.py:19: error: Incompatible types in assignment (expression has type "str", variable has type "int")`},
		},
		{
			name: "missing attributes",
			src:  simpleOvo + "myobj.nonexistent\nmyobj.nonexistent = 12\n",
			want: []string{
				`main.py:19: error: "MyOvo" has no attribute "nonexistent"`,
				`main.py:20: error: "MyOvo" has no attribute "nonexistent"`,
			},
		},
		{
			name: "field constructor arguments",
			src: `
from oslo_versionedobjects import base
from oslo_versionedobjects import fields

@base.VersionedObjectRegistry.register
class Thing(base.VersionedObject):
    fields = {
        'a': fields.IntegerField(read_only=123),
        'b': fields.IntegerField(nullable=True, default=[42]),
    }
`,
			want:    []string{`main.py:8: error: Argument "read_only" to "IntegerField" has incompatible type "int"; expected "bool"`},
			notWant: []string{"Unexpected keyword argument", "base class"},
		},
		{
			name: "return values",
			src: `
def f() -> int:
    return 'a'

def g() -> None:
    return 1

def h() -> int:
    return
`,
			want: []string{
				`main.py:3: error: Incompatible return value type (got "str", expected "int")`,
				`main.py:6: error: No return value expected`,
				`main.py:9: error: Return value expected`,
			},
		},
		{
			name: "call arity and argument types",
			src: `
def g(a: int, b: str) -> None:
    pass

g(1)
g(1, 'x', 3)
g(1, b='x', c=2)
g('x', 'y')
g(1, 'x', b='y')
g(*[1, 2])
`,
			want: []string{
				`main.py:5: error: Missing positional argument "b" in call to "g"`,
				`main.py:6: error: Too many arguments for "g"`,
				`main.py:7: error: Unexpected keyword argument "c" for "g"`,
				`main.py:8: error: Argument 1 to "g" has incompatible type "str"; expected "int"`,
				`main.py:9: error: "g" gets multiple values for keyword argument "b"`,
			},
			notWant: []string{"main.py:10:"},
		},
		{
			name: "keyword only parameters",
			src: `
def k(*, flag: bool, level: int = 0) -> None:
    pass

k()
k(flag=True)
`,
			want:    []string{`main.py:5: error: Missing named argument "flag" for "k"`},
			notWant: []string{"main.py:6:"},
		},
		{
			name: "methods",
			src: `
class C:
    def m(self, a: int) -> str:
        return str(a)

    @classmethod
    def make(cls, n: int) -> 'C':
        return cls()

c = C()
reveal_type(c.m(1))
c.m('x')
reveal_type(C.make(1))
C(1)
`,
			want: []string{
				"main.py:11: note: Revealed type is 'builtins.str'",
				`main.py:12: error: Argument 1 to "m" of "C" has incompatible type "str"; expected "int"`,
				"main.py:13: note: Revealed type is '__main__.C'",
				`main.py:14: error: Too many arguments for "C"`,
			},
		},
		{
			name: "optional member access",
			src: `
from typing import Optional

class Foo:
    bar: int = 0

x: Optional[Foo] = None
x.bar
`,
			want: []string{`main.py:8: error: Item "None" of "Optional[Foo]" has no attribute "bar"`},
		},
		{
			name: "base class declared type",
			src: `
class A:
    x: int = 0

class B(A):
    x = 'a'
`,
			want: []string{`main.py:6: error: Incompatible types in assignment (expression has type "str", base class "A" defined the type as "int")`},
		},
		{
			name: "undefined names",
			src: `
def h() -> None:
    print(undefined_thing)

def untyped():
    return also_undefined
`,
			want:    []string{`main.py:3: error: Name "undefined_thing" is not defined`},
			notWant: []string{"also_undefined"},
		},
		{
			name: "locals and loops",
			src: `
from typing import List

def total(xs: List[int]) -> int:
    result = 0
    for x in xs:
        result = result + x
    try:
        pass
    except ValueError as err:
        reveal_type(err)
    return result

def later() -> None:
    while True:
        if done:
            break
        done = True
`,
			want:    []string{"main.py:11: note: Revealed type is 'builtins.ValueError'"},
			notWant: []string{"error:"},
		},
		{
			name: "local annotations",
			src: `
def f() -> None:
    n: int = 'x'
    s = 'a'
    s = 1
`,
			want: []string{
				`main.py:3: error: Incompatible types in assignment (expression has type "str", variable has type "int")`,
				`main.py:5: error: Incompatible types in assignment (expression has type "int", variable has type "str")`,
			},
		},
		{
			name: "unresolved imports are permissive",
			src: `
import missing_module
from elsewhere import Thing

t = Thing(1, 2, x=3)
t.anything
missing_module.call().attr
`,
			notWant: []string{"error:"},
		},
		{
			name: "class body sees module names before its own",
			src: `
from oslo_versionedobjects import fields

class Plain:
    fields = {'id': fields.IntegerField(nullable=1)}
    other = fields
`,
			want: []string{`main.py:5: error: Argument "nullable" to "IntegerField" has incompatible type "int"; expected "bool"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := messages(check(t, tt.src, Options{}))
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("missing %q in:\n%s", w, out)
				}
			}
			for _, nw := range tt.notWant {
				if strings.Contains(out, nw) {
					t.Errorf("unexpected %q in:\n%s", nw, out)
				}
			}
		})
	}
}

func TestCheckUntypedDefs(t *testing.T) {
	src := `
def untyped():
    return undefined_thing
`
	if out := messages(check(t, src, Options{})); out != "" {
		t.Fatalf("untyped body checked by default:\n%s", out)
	}
	out := messages(check(t, src, Options{CheckUntypedDefs: true}))
	if !strings.Contains(out, `main.py:3: error: Name "undefined_thing" is not defined`) {
		t.Fatalf("untyped body not checked with CheckUntypedDefs:\n%s", out)
	}
}

func TestJoin(t *testing.T) {
	a, _ := analyzedForJoin(t)
	c := New(a, Options{})
	intT, boolT, strT := a.BuiltinType("int"), a.BuiltinType("bool"), a.BuiltinType("str")

	tests := []struct {
		name  string
		types []nodes.Type
		want  string
	}{
		{"empty", nil, "Any"},
		{"same", []nodes.Type{intT, intT}, "builtins.int"},
		{"widens to supertype", []nodes.Type{boolT, intT}, "builtins.int"},
		{"unrelated", []nodes.Type{intT, strT}, "builtins.object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.join(tt.types).String(); got != tt.want {
				t.Errorf("join = %s, want %s", got, tt.want)
			}
		})
	}
}

func analyzedForJoin(t *testing.T) (*semanal.Analyzer, []*nodes.MypyFile) {
	t.Helper()
	mods, err := stubs.Bundled()
	if err != nil {
		t.Fatalf("loading stubs: %v", err)
	}
	var files []*nodes.MypyFile
	for _, m := range mods {
		defs, _, err := pyast.Parse(m.Source, parser.PythonStub)
		if err != nil {
			t.Fatalf("parsing stub %s: %v", m.Name, err)
		}
		files = append(files, &nodes.MypyFile{Fullname: m.Name, Path: m.Path, IsStub: true, IsPkg: m.IsPkg, Defs: defs})
	}
	a := semanal.New(nil, plugin.Options{}, nil)
	a.Analyze(files)
	return a, files
}
