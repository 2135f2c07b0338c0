package parser

import "fmt"

// ParseError is a syntax error, or a failure of tree-sitter itself when
// Line is zero.
type ParseError struct {
	Message string
	File    string
	Line    uint32
	Column  uint32
}

func (e *ParseError) Error() string {
	switch {
	case e.Line == 0:
		return "parse: " + e.Message
	case e.File != "":
		return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
	default:
		return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Message)
	}
}

// UnsupportedLanguageError is returned by NewParser for anything but Python
// sources and stubs.
type UnsupportedLanguageError struct {
	Language string
}

func (e *UnsupportedLanguageError) Error() string {
	return fmt.Sprintf("unsupported language %q (want %s or %s)", e.Language, Python, PythonStub)
}

// FileReadError wraps a failure to read a source or stub file.
type FileReadError struct {
	Path string
	Err  error
}

func (e *FileReadError) Error() string {
	return fmt.Sprintf("reading %s: %v", e.Path, e.Err)
}

func (e *FileReadError) Unwrap() error { return e.Err }
