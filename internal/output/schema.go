package output

import (
	"github.com/ovo-tools/ovocheck/internal/build"
	"github.com/ovo-tools/ovocheck/internal/diag"
)

// CheckOutput is the result of ovocheck check.
type CheckOutput struct {
	Diagnostics []diag.Diagnostic `yaml:"diagnostics" json:"diagnostics"`
	Summary     Summary           `yaml:"summary" json:"summary"`
}

// Summary counts what a run found.
type Summary struct {
	Errors int `yaml:"errors" json:"errors"`
	Notes  int `yaml:"notes" json:"notes"`
	// FilesWithErrors is the number of distinct files with an error.
	FilesWithErrors int `yaml:"files_with_errors" json:"files_with_errors"`
	// Checked is the number of source modules checked.
	Checked int `yaml:"checked" json:"checked"`
	// Cached is set when the result was replayed from the cache.
	Cached bool `yaml:"cached,omitempty" json:"cached,omitempty"`
}

// NewCheckOutput summarizes a run.
func NewCheckOutput(res *build.Result, cached bool) *CheckOutput {
	out := &CheckOutput{
		Diagnostics: res.Diagnostics,
		Summary:     Summary{Checked: res.Modules, Cached: cached},
	}
	if out.Diagnostics == nil {
		out.Diagnostics = []diag.Diagnostic{}
	}
	files := make(map[string]bool)
	for _, d := range res.Diagnostics {
		switch d.Severity {
		case diag.Error:
			out.Summary.Errors++
			files[d.File] = true
		case diag.Note:
			out.Summary.Notes++
		}
	}
	out.Summary.FilesWithErrors = len(files)
	return out
}

// FieldsOutput is the result of ovocheck fields.
type FieldsOutput struct {
	Classes []build.ClassFields `yaml:"classes" json:"classes"`
}

// NewFieldsOutput wraps the classes of a run.
func NewFieldsOutput(res *build.Result) *FieldsOutput {
	classes := res.Classes
	if classes == nil {
		classes = []build.ClassFields{}
	}
	return &FieldsOutput{Classes: classes}
}
