// Package build drives one checker run: it loads stubs and sources, parses
// them, runs semantic analysis with the configured plugins and then the
// checker, and collects diagnostics and the attributes plugins synthesized.
package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ovo-tools/ovocheck/internal/checker"
	"github.com/ovo-tools/ovocheck/internal/diag"
	"github.com/ovo-tools/ovocheck/internal/nodes"
	"github.com/ovo-tools/ovocheck/internal/parser"
	"github.com/ovo-tools/ovocheck/internal/plugin"
	"github.com/ovo-tools/ovocheck/internal/pyast"
	"github.com/ovo-tools/ovocheck/internal/semanal"
	"github.com/ovo-tools/ovocheck/internal/stubs"

	// Registers the versioned object plugin.
	_ "github.com/ovo-tools/ovocheck/internal/ovo"
)

// HostVersion is handed to plugin entry points.
const HostVersion = "0.1.0"

// InlinePath is the file name diagnostics for inline programs carry.
const InlinePath = "<string>"

// Source is one module to check.
type Source struct {
	// Path is the file the module was read from, or InlinePath.
	Path string
	// Module is the dotted module name.
	Module  string
	Content []byte
	IsPkg   bool
}

// Inline returns the source of a program passed on the command line. It is
// checked as __main__.
func Inline(code string) Source {
	return Source{Path: InlinePath, Module: "__main__", Content: []byte(code)}
}

// ReadFiles reads files and names their modules by their path relative to
// root. Files outside root are named by their base name.
func ReadFiles(root string, files []string) ([]Source, error) {
	sources := make([]Source, 0, len(files))
	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			return nil, &parser.FileReadError{Path: file, Err: err}
		}
		rel, err := filepath.Rel(root, file)
		if err != nil || strings.HasPrefix(rel, "..") {
			rel = filepath.Base(file)
		}
		name, isPkg := stubs.ModuleName(rel)
		if name == "" {
			name = filepath.Base(filepath.Dir(file))
		}
		sources = append(sources, Source{Path: file, Module: name, Content: content, IsPkg: isPkg})
	}
	return sources, nil
}

// Options configures a run.
type Options struct {
	// Plugins are registered plugin names, loaded in order.
	Plugins []string
	// Plugin replaces Plugins when set.
	Plugin plugin.Plugin
	// PluginOptions is passed to plugin constructors and hooks.
	PluginOptions plugin.Options
	// StubPaths are directories whose stubs take precedence over the
	// bundled ones, earlier directories first.
	StubPaths []string
	// CheckUntypedDefs also checks unannotated function bodies.
	CheckUntypedDefs bool
	// Logger receives progress messages. Defaults to a no-op logger.
	Logger *zap.Logger
}

// Field is an attribute a plugin synthesized.
type Field struct {
	Name string `yaml:"name" json:"name"`
	// Type is the full form reveal_type prints, e.g. builtins.list[builtins.int].
	Type string `yaml:"type" json:"type"`
	// DefinedIn is the class that declared the field.
	DefinedIn string `yaml:"defined_in" json:"defined_in"`
}

// ClassFields lists the synthesized attributes visible on one class,
// inherited ones included.
type ClassFields struct {
	Class  string  `yaml:"class" json:"class"`
	File   string  `yaml:"file" json:"file"`
	Line   int     `yaml:"line" json:"line"`
	Fields []Field `yaml:"fields" json:"fields"`
}

// Result is the outcome of a run.
type Result struct {
	Diagnostics []diag.Diagnostic `yaml:"diagnostics" json:"diagnostics"`
	Classes     []ClassFields     `yaml:"classes,omitempty" json:"classes,omitempty"`
	Modules     int               `yaml:"modules" json:"modules"`
}

// ErrorCount returns the number of error diagnostics.
func (r *Result) ErrorCount() int {
	return diag.CountErrors(r.Diagnostics)
}

// Build checks sources. Problems in the checked code are diagnostics in the
// result; the error return is for configuration problems and cancellation.
func Build(ctx context.Context, opts Options, sources []Source) (*Result, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	p := opts.Plugin
	if p == nil {
		loaded, err := plugin.Load(opts.Plugins, HostVersion, opts.PluginOptions)
		if err != nil {
			return nil, err
		}
		p = loaded
	}

	stubMods, err := stubs.Load(opts.StubPaths)
	if err != nil {
		return nil, err
	}

	errs := diag.NewCollector()
	var files []*nodes.MypyFile
	for _, m := range stubMods {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := parseModule(ctx, errs, m.Name, m.Path, m.Source, m.IsPkg, true)
		if err != nil {
			return nil, fmt.Errorf("parsing stub %s: %w", m.Name, err)
		}
		if f != nil {
			files = append(files, f)
		}
	}
	log.Debug("stubs loaded", zap.Int("modules", len(files)))

	checked := 0
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := parseModule(ctx, errs, src.Module, src.Path, src.Content, src.IsPkg, false)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", src.Path, err)
		}
		checked++
		if f == nil {
			log.Debug("skipping module with syntax errors", zap.String("module", src.Module))
			continue
		}
		files = append(files, f)
	}

	a := semanal.New(p, opts.PluginOptions, errs)
	a.Analyze(files)

	chk := checker.New(a, checker.Options{CheckUntypedDefs: opts.CheckUntypedDefs})
	for _, f := range files {
		if f.IsStub {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		log.Debug("checking module", zap.String("module", f.Fullname), zap.String("path", f.Path))
		chk.CheckModule(f)
	}

	return &Result{
		Diagnostics: errs.Diagnostics(),
		Classes:     collectFields(a),
		Modules:     checked,
	}, nil
}

// parseModule parses one module. A source module with syntax errors gets the
// errors reported and yields nil; stubs are converted from whatever parsed.
func parseModule(ctx context.Context, errs *diag.Collector, name, path string, content []byte, isPkg, isStub bool) (*nodes.MypyFile, error) {
	lang := parser.Python
	if isStub {
		lang = parser.PythonStub
	}
	p, err := parser.NewParser(lang)
	if err != nil {
		return nil, err
	}
	defer p.Close()

	result, err := p.ParseCtx(ctx, content)
	if err != nil {
		return nil, err
	}
	defer result.Close()

	if syntaxErrs := result.SyntaxErrors(); len(syntaxErrs) > 0 && !isStub {
		errs.SetFile(path)
		for _, se := range syntaxErrs {
			errs.Fail(nodes.Position{Line: int(se.Line), Column: int(se.Column)}, "Invalid syntax")
		}
		return nil, nil
	}

	return &nodes.MypyFile{
		Fullname: name,
		Path:     path,
		IsStub:   isStub,
		IsPkg:    isPkg,
		Defs:     pyast.Convert(result),
	}, nil
}

// collectFields reports the plugin generated attributes of every class in
// the checked modules.
func collectFields(a *semanal.Analyzer) []ClassFields {
	var out []ClassFields
	for _, info := range a.Classes() {
		m := a.Module(info.Module)
		if m == nil || m.IsStub {
			continue
		}

		seen := make(map[string]bool)
		var fields []Field
		for _, cls := range info.MRO {
			for _, name := range cls.Names.Keys() {
				v, ok := cls.Names[name].Node.(*nodes.Var)
				if !ok || !v.PluginGenerated || seen[name] {
					continue
				}
				seen[name] = true
				fields = append(fields, Field{Name: name, Type: v.Type.String(), DefinedIn: cls.Fullname})
			}
		}
		if len(fields) == 0 {
			continue
		}
		sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
		out = append(out, ClassFields{
			Class:  info.Fullname,
			File:   m.Path,
			Line:   info.Defn.Line,
			Fields: fields,
		})
	}
	return out
}
