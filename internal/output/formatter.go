package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/ovo-tools/ovocheck/internal/diag"
)

// Formatter writes a result in one output format.
type Formatter interface {
	// Format writes v to w.
	Format(w io.Writer, v interface{}) error
}

// GetFormatter returns the formatter for format. The color mode only
// affects text output.
func GetFormatter(format Format, mode ColorMode) (Formatter, error) {
	switch format {
	case FormatText:
		return NewTextFormatter(mode), nil
	case FormatYAML:
		return NewYAMLFormatter(), nil
	case FormatJSON:
		return NewJSONFormatter(), nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// YAMLFormatter formats results as YAML output.
type YAMLFormatter struct{}

// NewYAMLFormatter creates a new YAML formatter.
func NewYAMLFormatter() *YAMLFormatter {
	return &YAMLFormatter{}
}

// Format writes v as YAML.
func (f *YAMLFormatter) Format(w io.Writer, v interface{}) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	return encoder.Encode(v)
}

// JSONFormatter formats results as JSON output.
type JSONFormatter struct{}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

// Format writes v as indented JSON.
func (f *JSONFormatter) Format(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	return encoder.Encode(v)
}

// TextFormatter writes diagnostics the way mypy prints them, one per line,
// followed by a summary.
type TextFormatter struct {
	errorColor   *color.Color
	noteColor    *color.Color
	successColor *color.Color
	nameColor    *color.Color
	dimColor     *color.Color
}

// NewTextFormatter creates a text formatter. ColorAuto leaves the decision to
// the terminal detection of the color package.
func NewTextFormatter(mode ColorMode) *TextFormatter {
	f := &TextFormatter{
		errorColor:   color.New(color.FgRed, color.Bold),
		noteColor:    color.New(color.FgBlue),
		successColor: color.New(color.FgGreen, color.Bold),
		nameColor:    color.New(color.Bold),
		dimColor:     color.New(color.FgHiBlack),
	}
	for _, c := range []*color.Color{f.errorColor, f.noteColor, f.successColor, f.nameColor, f.dimColor} {
		switch mode {
		case ColorAlways:
			c.EnableColor()
		case ColorNever:
			c.DisableColor()
		}
	}
	return f
}

// Format writes a *CheckOutput or *FieldsOutput. Anything else is written
// as YAML.
func (f *TextFormatter) Format(w io.Writer, v interface{}) error {
	switch out := v.(type) {
	case *CheckOutput:
		return f.writeCheck(w, out)
	case *FieldsOutput:
		return f.writeFields(w, out)
	default:
		return NewYAMLFormatter().Format(w, v)
	}
}

func (f *TextFormatter) writeCheck(w io.Writer, out *CheckOutput) error {
	for _, d := range out.Diagnostics {
		sev := f.noteColor
		if d.Severity == diag.Error {
			sev = f.errorColor
		}
		if _, err := fmt.Fprintf(w, "%s:%d: %s %s\n", d.File, d.Line, sev.Sprintf("%s:", d.Severity), d.Message); err != nil {
			return err
		}
	}

	s := out.Summary
	var line string
	if s.Errors == 0 {
		line = f.successColor.Sprintf("Success: no issues found in %s", plural(s.Checked, "source file"))
	} else {
		line = f.errorColor.Sprintf("Found %s in %s (checked %s)",
			plural(s.Errors, "error"), plural(s.FilesWithErrors, "file"), plural(s.Checked, "source file"))
	}
	if s.Cached {
		line += f.dimColor.Sprint(" (cached)")
	}
	_, err := fmt.Fprintln(w, line)
	return err
}

func (f *TextFormatter) writeFields(w io.Writer, out *FieldsOutput) error {
	if len(out.Classes) == 0 {
		_, err := fmt.Fprintln(w, "No versioned object classes found")
		return err
	}
	for i, cls := range out.Classes {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "%s %s\n", f.nameColor.Sprint(cls.Class), f.dimColor.Sprintf("(%s:%d)", cls.File, cls.Line)); err != nil {
			return err
		}
		for _, field := range cls.Fields {
			line := fmt.Sprintf("    %s: %s", field.Name, field.Type)
			if field.DefinedIn != cls.Class {
				line += f.dimColor.Sprintf("  [from %s]", field.DefinedIn)
			}
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
	}
	return nil
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
