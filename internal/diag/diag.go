// Package diag collects the diagnostics reported while checking Python code.
package diag

import (
	"fmt"
	"sort"

	"github.com/ovo-tools/ovocheck/internal/nodes"
)

// Severity of a diagnostic.
type Severity string

const (
	Error Severity = "error"
	Note  Severity = "note"
)

// Diagnostic is one reported problem or note.
type Diagnostic struct {
	File     string   `yaml:"file" json:"file"`
	Line     int      `yaml:"line" json:"line"`
	Column   int      `yaml:"column" json:"column"`
	Severity Severity `yaml:"severity" json:"severity"`
	Message  string   `yaml:"message" json:"message"`
}

// String renders the diagnostic the way Python type checkers do:
// "file:line: severity: message".
func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d: %s: %s", d.File, d.Line, d.Severity, d.Message)
}

// Collector accumulates diagnostics for a run. Identical reports at the same
// location are kept once.
type Collector struct {
	file  string
	list  []Diagnostic
	seen  map[Diagnostic]bool
	quiet bool
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{seen: make(map[Diagnostic]bool)}
}

// SetFile sets the file subsequent reports are attributed to.
func (c *Collector) SetFile(path string) {
	c.file = path
}

// File returns the current file.
func (c *Collector) File() string {
	return c.file
}

// SetQuiet drops reports until it is called again with false. Stub modules
// are analyzed quietly.
func (c *Collector) SetQuiet(quiet bool) {
	c.quiet = quiet
}

// Report adds a diagnostic anchored at ctx.
func (c *Collector) Report(ctx nodes.Context, sev Severity, msg string) {
	if c.quiet {
		return
	}
	var pos nodes.Position
	if ctx != nil {
		pos = ctx.Pos()
	}
	d := Diagnostic{File: c.file, Line: pos.Line, Column: pos.Column, Severity: sev, Message: msg}
	if c.seen[d] {
		return
	}
	c.seen[d] = true
	c.list = append(c.list, d)
}

// Fail reports an error.
func (c *Collector) Fail(ctx nodes.Context, msg string) {
	c.Report(ctx, Error, msg)
}

// Failf reports a formatted error.
func (c *Collector) Failf(ctx nodes.Context, format string, args ...any) {
	c.Report(ctx, Error, fmt.Sprintf(format, args...))
}

// Notef reports a formatted note.
func (c *Collector) Notef(ctx nodes.Context, format string, args ...any) {
	c.Report(ctx, Note, fmt.Sprintf(format, args...))
}

// Diagnostics returns everything collected, sorted.
func (c *Collector) Diagnostics() []Diagnostic {
	out := make([]Diagnostic, len(c.list))
	copy(out, c.list)
	Sort(out)
	return out
}

// ErrorCount returns the number of error diagnostics.
func (c *Collector) ErrorCount() int {
	return CountErrors(c.list)
}

// CountErrors returns the number of error diagnostics in ds.
func CountErrors(ds []Diagnostic) int {
	n := 0
	for _, d := range ds {
		if d.Severity == Error {
			n++
		}
	}
	return n
}

// Sort orders diagnostics by file, line and column. Reports at the same
// location keep their order.
func Sort(ds []Diagnostic) {
	sort.SliceStable(ds, func(i, j int) bool {
		a, b := ds[i], ds[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
}
