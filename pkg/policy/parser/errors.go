package parser

import (
	"fmt"

	"github.com/eunomia-sh/eunomia/pkg/policy/ast"
)

// ErrorKind categorizes a parse failure.
type ErrorKind string

const (
	// ErrMissingPackage is returned when a rule head or import appears
	// before any `package` declaration, or when a file has none.
	ErrMissingPackage ErrorKind = "missing_package"
	// ErrSyntax covers lexical and structural failures: unbalanced
	// braces, malformed rule heads, truncated statements.
	ErrSyntax ErrorKind = "syntax"
	// ErrIO covers failures reading the source (missing file, size
	// limit exceeded).
	ErrIO ErrorKind = "io"
)

// Error is a parse failure with source location, matching the format the
// rest of this codebase uses for every other subsystem's errors.
type Error struct {
	Kind     ErrorKind
	File     string
	Line     int
	Message  string
	Location ast.Location
}

func (e *Error) Error() string {
	if e.Location.IsValid() {
		return fmt.Sprintf("[%s] %s\n  --> %s", e.Kind, e.Message, e.Location.String())
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// IsRetryable is always false: a parse failure is a property of the input,
// not a transient condition.
func (e *Error) IsRetryable() bool { return false }
