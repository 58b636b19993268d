package bundle

import (
	"fmt"
	"strings"
)

// ErrorKind categorizes a compile failure.
type ErrorKind string

const (
	// ErrNoPolicies is returned when Compile is called with zero policies
	// added.
	ErrNoPolicies ErrorKind = "no_policies"
	// ErrValidation is returned when one or more policies fail analysis;
	// Offenders carries every failure, not just the first.
	ErrValidation ErrorKind = "validation"
	// ErrDuplicatePackage names the failure of two added policies declaring
	// the same package name. Compile does not return it as an Error's Kind:
	// each duplicate is listed among the Offenders of an ErrValidation.
	ErrDuplicatePackage ErrorKind = "duplicate_package"
	// ErrInvalidVersion is returned when the bundle's version does not
	// parse as SemVer, and also when the bundle name is empty.
	ErrInvalidVersion ErrorKind = "invalid_version"
)

// Error is a Bundler compile failure. When Kind is ErrValidation, Offenders
// lists every policy's analysis error, not just the first one encountered,
// matching the spec's "fail with BundleError listing all offenders".
type Error struct {
	Kind      ErrorKind
	Message   string
	Offenders []error
}

func (e *Error) Error() string {
	if len(e.Offenders) == 0 {
		return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	}
	parts := make([]string, len(e.Offenders))
	for i, o := range e.Offenders {
		parts[i] = o.Error()
	}
	return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Message, strings.Join(parts, "; "))
}

// IsRetryable is always false: a compile failure is a property of the input
// policies, not a transient condition.
func (e *Error) IsRetryable() bool { return false }
