package analyzer

import "fmt"

// ErrorKind categorizes an analysis failure.
type ErrorKind string

const (
	// ErrMissingDefault is raised when RequireDefault is enabled and no
	// default allow/deny rule is present.
	ErrMissingDefault ErrorKind = "missing_default"
	// ErrPackageHygiene is raised for a structurally invalid package name
	// (empty, or not a dotted identifier).
	ErrPackageHygiene ErrorKind = "package_hygiene"
)

// ValidationError is a hard analysis failure. Unlike a Warning it aborts the
// pipeline in strict mode (the Bundler's default).
type ValidationError struct {
	Kind    ErrorKind
	Package string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Package, e.Message)
}

// IsRetryable is always false: a validation failure is a property of the
// policy source, not a transient condition.
func (e *ValidationError) IsRetryable() bool { return false }
