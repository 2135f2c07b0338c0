package project

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ovo-tools/ovocheck/internal/build"
	"github.com/ovo-tools/ovocheck/internal/config"
	"github.com/ovo-tools/ovocheck/internal/ovo"
)

const models = `
from oslo_versionedobjects import base
from oslo_versionedobjects import fields

class MyBase(base.VersionedObject):
    pass

class Server(MyBase):
    fields = {
        'id': fields.IntegerField(),
    }

def server_id(s: Server) -> int:
    return s.id
`

func newProject(t *testing.T) string {
	t.Helper()
	t.Setenv(ovo.DecoratorClassesEnv, "")
	t.Setenv(ovo.BaseClassesEnv, "")

	root := t.TempDir()
	if _, err := config.SaveDefault(root); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, "app"), 0755); err != nil {
		t.Fatal(err)
	}
	for name, content := range map[string]string{"app/__init__.py": "", "app/models.py": models} {
		if err := os.WriteFile(filepath.Join(root, filepath.FromSlash(name)), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestOpen(t *testing.T) {
	root := newProject(t)

	p, err := Open(filepath.Join(root, "app"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if p.Root != root {
		t.Errorf("Root = %s, want %s", p.Root, root)
	}
	if p.ConfigDir != filepath.Join(root, config.ConfigDirName) {
		t.Errorf("ConfigDir = %s", p.ConfigDir)
	}

	bare := t.TempDir()
	p, err = Open(bare, nil)
	if err != nil {
		t.Fatalf("Open without config: %v", err)
	}
	if p.ConfigDir != "" || p.Root != bare {
		t.Errorf("project without config = %+v", p)
	}
}

func TestCheckUsesCache(t *testing.T) {
	root := newProject(t)
	p, err := Open(root, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	first, cached, err := p.Check(ctx, Request{})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if cached {
		t.Fatal("first run was served from the cache")
	}
	// MyBase is no trigger by default, so id is unknown.
	if first.ErrorCount() != 1 || !strings.Contains(first.Diagnostics[0].Message, `has no attribute "id"`) {
		t.Fatalf("diagnostics = %+v", first.Diagnostics)
	}

	second, cached, err := p.Check(ctx, Request{})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !cached || second.ErrorCount() != first.ErrorCount() {
		t.Errorf("second run cached=%v errors=%d", cached, second.ErrorCount())
	}

	// The trigger environment is part of the key.
	t.Setenv(ovo.BaseClassesEnv, "MyBase")
	third, cached, err := p.Check(ctx, Request{})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if cached || third.ErrorCount() != 0 {
		t.Errorf("run with MyBase trigger cached=%v diagnostics=%+v", cached, third.Diagnostics)
	}

	if _, cached, _ := p.Check(ctx, Request{NoCache: true}); cached {
		t.Error("NoCache request was served from the cache")
	}
}

func TestCheckInlineCode(t *testing.T) {
	p := New(t.TempDir(), config.DefaultConfig(), nil)
	res, cached, err := p.Check(context.Background(), Request{Code: "x: int = 'a'\n"})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if cached {
		t.Error("project without config dir used the cache")
	}
	if len(res.Diagnostics) != 1 || res.Diagnostics[0].File != build.InlinePath {
		t.Errorf("diagnostics = %+v", res.Diagnostics)
	}
}

func TestFingerprint(t *testing.T) {
	opts := config.DefaultConfig()
	base := New("/p", opts, nil).BuildOptions()
	src := []build.Source{{Path: "/p/a.py", Module: "a", Content: []byte("x = 1\n")}}

	key := func(o build.Options, s []build.Source) string {
		t.Helper()
		k, err := Fingerprint(o, s)
		if err != nil {
			t.Fatal(err)
		}
		return k
	}
	want := key(base, src)
	if key(base, src) != want {
		t.Fatal("fingerprint is not deterministic")
	}

	changedSrc := []build.Source{{Path: "/p/a.py", Module: "a", Content: []byte("x = 2\n")}}
	if key(base, changedSrc) == want {
		t.Error("source content not part of the key")
	}

	untyped := base
	untyped.CheckUntypedDefs = true
	if key(untyped, src) == want {
		t.Error("check_untyped_defs not part of the key")
	}

	cfg := config.DefaultConfig()
	cfg.Ovo.BaseClasses = []string{"MyBase"}
	if key(New("/p", cfg, nil).BuildOptions(), src) == want {
		t.Error("plugin settings not part of the key")
	}
}
