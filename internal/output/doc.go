// Package output renders ovocheck results.
//
// # Formats
//
//   - text (default): mypy style "file:line: severity: message" lines and a
//     summary line, colored with fatih/color
//   - yaml: the CheckOutput or FieldsOutput structure as YAML
//   - json: the same structure as JSON
//
// Text output for a failing run looks like:
//
//	app/models.py:12: error: "Server" has no attribute "hots"
//	Found 1 error in 1 file (checked 3 source files)
package output
