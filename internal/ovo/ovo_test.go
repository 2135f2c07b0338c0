package ovo

import (
	"bytes"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ovo-tools/ovocheck/internal/nodes"
	"github.com/ovo-tools/ovocheck/internal/plugin"
)

type failure struct {
	msg string
	ctx nodes.Context
}

// fakeAPI resolves names from a flat map keyed by the dotted name.
type fakeAPI struct {
	symbols  map[string]*nodes.SymbolTableNode
	failures []failure
	panicOn  string
}

func (f *fakeAPI) Fail(msg string, ctx nodes.Context) {
	f.failures = append(f.failures, failure{msg: msg, ctx: ctx})
}

func (f *fakeAPI) LookupQualified(name string, _ nodes.Context) *nodes.SymbolTableNode {
	if name == f.panicOn {
		panic("lookup exploded")
	}
	return f.symbols[name]
}

func (f *fakeAPI) LookupFullyQualifiedOrNone(fullname string) *nodes.SymbolTableNode {
	return f.symbols[fullname]
}

func (f *fakeAPI) ParseBool(expr nodes.Expression) (bool, bool) {
	name, ok := expr.(*nodes.NameExpr)
	if !ok {
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

func (f *fakeAPI) Options() plugin.Options { return plugin.Options{} }

type world struct {
	api    *fakeAPI
	intT   nodes.Type
	strT   nodes.Type
	object *nodes.TypeInfo
}

func classInfo(fullname string, mro ...*nodes.TypeInfo) *nodes.TypeInfo {
	name := fullname[strings.LastIndex(fullname, ".")+1:]
	info := nodes.NewTypeInfo(name, fullname, "", nil)
	info.MRO = append([]*nodes.TypeInfo{info}, mro...)
	return info
}

func newWorld() *world {
	object := classInfo("builtins.object")
	intT := nodes.NewInstance(classInfo("builtins.int", object))
	strT := nodes.NewInstance(classInfo("builtins.str", object))

	field := classInfo("oslo_versionedobjects.fields.Field", object)
	withMarker := func(fullname string, t nodes.Type) *nodes.TypeInfo {
		info := classInfo(fullname, field, object)
		info.Names[AutoTypeMarker] = &nodes.SymbolTableNode{Kind: nodes.MDEF, Node: &nodes.Var{Name: AutoTypeMarker, Type: t}}
		return info
	}
	untyped := classInfo("oslo_versionedobjects.fields.UntypedField", field, object)
	untyped.Names[AutoTypeMarker] = &nodes.SymbolTableNode{Kind: nodes.MDEF, Node: &nodes.Var{Name: AutoTypeMarker}}

	sym := func(n nodes.SymbolNode) *nodes.SymbolTableNode {
		return &nodes.SymbolTableNode{Kind: nodes.GDEF, Node: n}
	}
	api := &fakeAPI{symbols: map[string]*nodes.SymbolTableNode{
		"fields.IntegerField":  sym(withMarker("oslo_versionedobjects.fields.IntegerField", intT)),
		"fields.StringField":   sym(withMarker("oslo_versionedobjects.fields.StringField", strT)),
		"fields.MagicField":    sym(classInfo("oslo_versionedobjects.fields.MagicField", field, object)),
		"fields.UntypedField":  sym(untyped),
		"fields.NotAClass":     sym(&nodes.Var{Name: "NotAClass", Fullname: "oslo_versionedobjects.fields.NotAClass"}),
		"IntegerField":         sym(withMarker("oslo_versionedobjects.fields.IntegerField", intT)),
		"pkg.fields.UUIDField": sym(withMarker("oslo_versionedobjects.fields.UUIDField", strT)),
	}}
	return &world{api: api, intT: intT, strT: strT, object: object}
}

func name(n string) *nodes.NameExpr { return &nodes.NameExpr{Name: n} }

func str(s string) *nodes.StrExpr { return &nodes.StrExpr{Value: s} }

func dotted(path string) nodes.Expression {
	parts := strings.Split(path, ".")
	var e nodes.Expression = name(parts[0])
	for _, p := range parts[1:] {
		e = &nodes.MemberExpr{Expr: e, Name: p}
	}
	return e
}

// call builds field(kw1=v1, ...); kwargs alternate name, value.
func call(callee string, kwargs ...interface{}) *nodes.CallExpr {
	c := &nodes.CallExpr{Callee: dotted(callee)}
	for i := 0; i+1 < len(kwargs); i += 2 {
		c.Args = append(c.Args, kwargs[i+1].(nodes.Expression))
		c.ArgKinds = append(c.ArgKinds, nodes.ArgNamed)
		c.ArgNames = append(c.ArgNames, kwargs[i].(string))
	}
	return c
}

func fieldsAssign(rvalue nodes.Expression) *nodes.AssignmentStmt {
	return &nodes.AssignmentStmt{Lvalues: []nodes.Expression{name(FieldsAttr)}, Rvalue: rvalue}
}

func dict(items ...nodes.DictItem) *nodes.DictExpr {
	return &nodes.DictExpr{Items: items}
}

func entry(key string, value nodes.Expression) nodes.DictItem {
	return nodes.DictItem{Key: str(key), Value: value}
}

func (w *world) class(fullname string, body ...nodes.Statement) *nodes.ClassDef {
	info := classInfo(fullname, w.object)
	cls := &nodes.ClassDef{Name: info.Name, Fullname: fullname, Defs: body, Info: info}
	info.Defn = cls
	return cls
}

func (w *world) run(p *VersionedObjectPlugin, cls *nodes.ClassDef) {
	p.GenerateFieldDefs(&plugin.ClassDefContext{Cls: cls, API: w.api})
}

func memberType(t *testing.T, cls *nodes.ClassDef, member string) nodes.Type {
	t.Helper()
	sym, ok := cls.Info.Names[member]
	if !ok {
		t.Fatalf("member %q was not synthesized", member)
	}
	if sym.Kind != nodes.MDEF {
		t.Errorf("member %q has kind %v, want Mdef", member, sym.Kind)
	}
	v, ok := sym.Node.(*nodes.Var)
	if !ok {
		t.Fatalf("member %q is %T, want *nodes.Var", member, sym.Node)
	}
	if v.Info != cls.Info {
		t.Errorf("member %q is owned by %v", member, v.Info)
	}
	if v.Fullname != cls.Fullname+"."+member {
		t.Errorf("member fullname = %q", v.Fullname)
	}
	if !v.PluginGenerated {
		t.Errorf("member %q not flagged as plugin generated", member)
	}
	return v.Type
}

func TestGenerateFieldDefs_BasicTypes(t *testing.T) {
	w := newWorld()
	cls := w.class("__main__.MyOvo", fieldsAssign(dict(
		entry("id", call("fields.IntegerField")),
		entry("name", call("fields.StringField")),
		entry("bare", call("IntegerField")),
		entry("uuid", call("pkg.fields.UUIDField")),
	)))

	w.run(New(plugin.Options{}), cls)

	tests := map[string]string{
		"id":   "builtins.int",
		"name": "builtins.str",
		"bare": "builtins.int",
		"uuid": "builtins.str",
	}
	for member, want := range tests {
		if got := memberType(t, cls, member).String(); got != want {
			t.Errorf("%s: got %s, want %s", member, got, want)
		}
	}
	if len(w.api.failures) != 0 {
		t.Errorf("unexpected failures: %v", w.api.failures)
	}
}

func TestGenerateFieldDefs_Nullable(t *testing.T) {
	w := newWorld()
	cls := w.class("__main__.MyOvo", fieldsAssign(dict(
		entry("nullable_int", call("fields.IntegerField", "nullable", name("True"))),
		entry("not_nullable", call("fields.IntegerField", "nullable", name("False"))),
		entry("bad_nullable", call("fields.IntegerField", "nullable", &nodes.IntExpr{Value: 123})),
		entry("read_only", call("fields.IntegerField", "read_only", name("True"))),
		entry("nullable_magic", call("fields.MagicField", "nullable", name("True"))),
	)))

	w.run(New(plugin.Options{}), cls)

	tests := []struct {
		member string
		want   string
	}{
		{"nullable_int", "Union[builtins.int, None]"},
		{"not_nullable", "builtins.int"},
		{"bad_nullable", "builtins.int"},
		{"read_only", "builtins.int"},
		{"nullable_magic", "Union[Any, None]"},
	}
	for _, tt := range tests {
		t.Run(tt.member, func(t *testing.T) {
			if got := memberType(t, cls, tt.member).String(); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestGenerateFieldDefs_FallsBackToAny(t *testing.T) {
	tests := []struct {
		name    string
		callee  string
		panicOn string
	}{
		{"missing marker", "fields.MagicField", ""},
		{"marker without type", "fields.UntypedField", ""},
		{"not a class", "fields.NotAClass", ""},
		{"undefined name", "fields.DoesNotExist", ""},
		{"lookup panics", "fields.IntegerField", "fields.IntegerField"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newWorld()
			w.api.panicOn = tt.panicOn
			cls := w.class("__main__.MyOvo", fieldsAssign(dict(entry("magic", call(tt.callee)))))

			w.run(New(plugin.Options{}), cls)

			got := memberType(t, cls, "magic")
			anyType, ok := got.(*nodes.AnyType)
			if !ok {
				t.Fatalf("expected Any, got %s", got)
			}
			if anyType.Reason != nodes.ImplementationArtifact {
				t.Errorf("expected implementation artifact Any, got %v", anyType.Reason)
			}
			if len(w.api.failures) != 0 {
				t.Errorf("lookup problems must not be reported: %v", w.api.failures)
			}
		})
	}
}

func TestGenerateFieldDefs_ShapeErrors(t *testing.T) {
	t.Run("fields is not a dict", func(t *testing.T) {
		w := newWorld()
		rvalue := &nodes.CallExpr{Callee: name("dict")}
		cls := w.class("__main__.MyOvo", fieldsAssign(rvalue))

		w.run(New(plugin.Options{}), cls)

		if len(w.api.failures) != 1 || w.api.failures[0].msg != MsgFieldsNotDict {
			t.Fatalf("unexpected failures: %v", w.api.failures)
		}
		if w.api.failures[0].ctx != rvalue {
			t.Error("diagnostic should be attached to the rvalue")
		}
		if len(cls.Info.Names) != 0 {
			t.Errorf("nothing should be synthesized, got %v", cls.Info.Names.Keys())
		}
	})

	t.Run("bad entries are skipped", func(t *testing.T) {
		w := newWorld()
		computedKey := &nodes.OpExpr{Op: "+", Left: str("first"), Right: str("name")}
		notCall := name("SOME_FIELD")
		badCallee := &nodes.CallExpr{Callee: &nodes.CallExpr{Callee: name("factory")}}
		cls := w.class("__main__.MyOvo", fieldsAssign(dict(
			nodes.DictItem{Key: computedKey, Value: call("fields.StringField")},
			nodes.DictItem{Key: nil, Value: name("base_fields")},
			entry("not_a_call", notCall),
			entry("bad_callee", badCallee),
			entry("id", call("fields.IntegerField")),
		)))

		w.run(New(plugin.Options{}), cls)

		want := []failure{
			{MsgKeyNotStringLiteral, computedKey},
			{MsgKeyNotStringLiteral, nil},
			{MsgValueNotCall, notCall},
			{MsgFieldTypeNotName, badCallee.Callee},
		}
		if len(w.api.failures) != len(want) {
			t.Fatalf("got %d failures, want %d: %v", len(w.api.failures), len(want), w.api.failures)
		}
		for i, f := range want {
			if w.api.failures[i].msg != f.msg {
				t.Errorf("failure %d: got %q, want %q", i, w.api.failures[i].msg, f.msg)
			}
			if f.ctx != nil && w.api.failures[i].ctx != f.ctx {
				t.Errorf("failure %d attached to the wrong node", i)
			}
		}

		if keys := cls.Info.Names.Keys(); len(keys) != 1 || keys[0] != "id" {
			t.Errorf("expected only id to be synthesized, got %v", keys)
		}
	})
}

func TestGenerateFieldDefs_FieldsAssignmentLookup(t *testing.T) {
	t.Run("no fields", func(t *testing.T) {
		w := newWorld()
		cls := w.class("__main__.Base", &nodes.PassStmt{})
		w.run(New(plugin.Options{}), cls)
		if len(cls.Info.Names) != 0 || len(w.api.failures) != 0 {
			t.Error("class without fields must be left alone")
		}
	})

	t.Run("ambiguous fields", func(t *testing.T) {
		w := newWorld()
		cls := w.class("__main__.Twice",
			fieldsAssign(dict(entry("a", call("fields.IntegerField")))),
			fieldsAssign(dict(entry("b", call("fields.IntegerField")))),
		)
		w.run(New(plugin.Options{}), cls)
		if len(cls.Info.Names) != 0 || len(w.api.failures) != 0 {
			t.Error("ambiguous fields must be skipped silently")
		}
	})

	t.Run("annotation only and other targets are ignored", func(t *testing.T) {
		w := newWorld()
		cls := w.class("__main__.Other",
			&nodes.AssignmentStmt{Lvalues: []nodes.Expression{name(FieldsAttr)}, Annotation: name("dict")},
			&nodes.AssignmentStmt{Lvalues: []nodes.Expression{name("other")}, Rvalue: dict()},
			fieldsAssign(dict(entry("a", call("fields.IntegerField")))),
		)
		w.run(New(plugin.Options{}), cls)
		if _, ok := cls.Info.Names["a"]; !ok {
			t.Error("expected a to be synthesized")
		}
	})
}

func TestGenerateFieldDefs_Idempotent(t *testing.T) {
	w := newWorld()
	cls := w.class("__main__.MyOvo", fieldsAssign(dict(
		entry("id", call("fields.IntegerField")),
		entry("name", call("fields.StringField", "nullable", name("True"))),
	)))
	p := New(plugin.Options{})

	w.run(p, cls)
	first := map[string]string{}
	for _, k := range cls.Info.Names.Keys() {
		first[k] = memberType(t, cls, k).String()
	}

	w.run(p, cls)
	if len(cls.Info.Names) != len(first) {
		t.Fatalf("second run changed the member count: %v", cls.Info.Names.Keys())
	}
	for k, want := range first {
		if got := memberType(t, cls, k).String(); got != want {
			t.Errorf("%s drifted: %s -> %s", k, want, got)
		}
	}
}

func TestGenerateFieldDefs_OverwritesExistingMember(t *testing.T) {
	w := newWorld()
	cls := w.class("__main__.MyOvo", fieldsAssign(dict(entry("id", call("fields.IntegerField")))))
	cls.Info.Names["id"] = &nodes.SymbolTableNode{Kind: nodes.MDEF, Node: &nodes.Var{Name: "id", Type: w.strT}}

	w.run(New(plugin.Options{}), cls)

	if got := memberType(t, cls, "id").String(); got != "builtins.int" {
		t.Errorf("expected existing member to be replaced, got %s", got)
	}
}

func TestHooks(t *testing.T) {
	env := func(values map[string]string) LookupEnv {
		return func(key string) (string, bool) {
			v, ok := values[key]
			return v, ok
		}
	}

	tests := []struct {
		name      string
		env       map[string]string
		config    map[string][]string
		decorator string
		base      string
		wantDeco  bool
		wantBase  bool
	}{
		{
			name:      "default decorator trigger",
			decorator: "oslo_versionedobjects.base.VersionedObjectRegistry.objectify",
			base:      "oslo_versionedobjects.base.VersionedObject",
			wantDeco:  true,
		},
		{
			name:      "alias does not match default",
			decorator: "__main__.my_decorator",
		},
		{
			name:      "env decorator trigger",
			env:       map[string]string{DecoratorClassesEnv: "something my_decorator"},
			decorator: "__main__.my_decorator",
			wantDeco:  true,
		},
		{
			name:     "env base trigger",
			env:      map[string]string{BaseClassesEnv: "MyBase"},
			base:     "__main__.MyBase",
			wantBase: true,
		},
		{
			name:     "decorator triggers do not apply to bases",
			env:      map[string]string{DecoratorClassesEnv: "MyBase"},
			base:     "__main__.MyBase",
			wantBase: false,
		},
		{
			name:      "blank env keeps defaults",
			env:       map[string]string{DecoratorClassesEnv: "   "},
			decorator: "oslo_versionedobjects.base.VersionedObjectRegistry.register",
			wantDeco:  true,
		},
		{
			name:      "config file triggers",
			config:    map[string][]string{BaseClassesKey: {"NovaObject"}},
			base:      "nova.objects.base.NovaObject",
			decorator: "nova.objects.base.NovaObjectRegistry.register",
			wantBase:  true,
		},
		{
			name:     "env beats config file",
			env:      map[string]string{BaseClassesEnv: "Other"},
			config:   map[string][]string{BaseClassesKey: {"NovaObject"}},
			base:     "nova.objects.base.NovaObject",
			wantBase: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := plugin.Options{Settings: map[string]map[string][]string{Name: tt.config}}
			p := New(opts, WithEnv(env(tt.env)))

			if got := p.ClassDecoratorHook(tt.decorator) != nil; got != tt.wantDeco {
				t.Errorf("ClassDecoratorHook(%q) hooked = %v, want %v", tt.decorator, got, tt.wantDeco)
			}
			if got := p.BaseClassHook(tt.base) != nil; got != tt.wantBase {
				t.Errorf("BaseClassHook(%q) hooked = %v, want %v", tt.base, got, tt.wantBase)
			}
		})
	}
}

func TestSettingsAreReadPerHook(t *testing.T) {
	values := map[string]string{}
	p := New(plugin.Options{}, WithEnv(func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}))

	if p.ClassDecoratorHook("__main__.custom") != nil {
		t.Fatal("did not expect a hook before the override")
	}
	values[DecoratorClassesEnv] = "custom"
	if p.ClassDecoratorHook("__main__.custom") == nil {
		t.Error("expected the new setting to take effect on the next hook")
	}
}

func TestTriggerSet(t *testing.T) {
	ts := ParseTriggerSet("  VersionedObjectRegistry   my_decorator ")
	if len(ts) != 2 {
		t.Fatalf("expected 2 triggers, got %v", ts)
	}
	if !ts.Matches("a.VersionedObjectRegistry.register_if") {
		t.Error("expected substring match")
	}
	if ts.Matches("") {
		t.Error("empty fullname must not match")
	}
	if (TriggerSet{""}).Matches("anything") {
		t.Error("empty trigger must not match")
	}

	s := DefaultSettings()
	if !s.IsCandidate([]string{"x.VersionedObjectRegistry.objectify"}, nil) {
		t.Error("expected decorated class to be a candidate")
	}
	if s.IsCandidate([]string{"x.other"}, []string{"oslo_versionedobjects.base.VersionedObject"}) {
		t.Error("plain VersionedObject subclass must not be a candidate by default")
	}
}

func TestLogging(t *testing.T) {
	t.Run("verbose writes prefixed lines", func(t *testing.T) {
		var buf bytes.Buffer
		w := newWorld()
		cls := w.class("__main__.MyOvo", fieldsAssign(dict(
			entry("id", call("fields.IntegerField")),
			entry("magic", call("fields.MagicField")),
		)))

		w.run(New(plugin.Options{Verbosity: 1}, WithOutput(&buf)), cls)

		out := buf.String()
		if !strings.Contains(out, LogPrefix+"Defined o.vo field: __main__.MyOvo.id as builtins.int\n") {
			t.Errorf("missing definition log line in:\n%s", out)
		}
		if !strings.Contains(out, LogPrefix+"looking up fields.MagicField got exception") {
			t.Errorf("missing lookup failure line in:\n%s", out)
		}
	})

	t.Run("observer sees every record", func(t *testing.T) {
		core, logs := observer.New(zap.InfoLevel)
		w := newWorld()
		cls := w.class("__main__.MyOvo", fieldsAssign(dict(entry("id", call("fields.IntegerField")))))

		w.run(New(plugin.Options{Verbosity: 2}, WithLogger(zap.New(core))), cls)

		if logs.Len() != 1 {
			t.Fatalf("expected 1 record, got %d", logs.Len())
		}
		if msg := logs.All()[0].Message; !strings.HasPrefix(msg, LogPrefix) {
			t.Errorf("record without prefix: %q", msg)
		}
	})

	t.Run("quiet by default", func(t *testing.T) {
		core, logs := observer.New(zap.DebugLevel)
		w := newWorld()
		cls := w.class("__main__.MyOvo", fieldsAssign(dict(entry("id", call("fields.IntegerField")))))

		w.run(New(plugin.Options{}, WithLogger(zap.New(core))), cls)

		if logs.Len() != 0 {
			t.Errorf("expected no records at verbosity 0, got %d", logs.Len())
		}
	})
}

func TestEntryRegistered(t *testing.T) {
	p, err := plugin.Load([]string{Name}, "1.0", plugin.Options{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, ok := p.(*VersionedObjectPlugin); !ok {
		t.Errorf("expected *VersionedObjectPlugin, got %T", p)
	}
}
