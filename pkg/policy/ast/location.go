package ast

import "fmt"

// Location identifies a position in a Rego source file. It is shared by the
// parser, analyzer and optimizer so that diagnostics from any stage point at
// the same coordinates.
type Location struct {
	File   string
	Line   int
	Column int
}

// String renders the location as "file:line:column".
func (l Location) String() string {
	if l.File == "" {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// IsValid reports whether the location carries a usable file and line.
func (l Location) IsValid() bool {
	return l.File != "" && l.Line > 0
}
