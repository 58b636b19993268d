// Package analyzer runs static checks over a parsed Policy and produces an
// AnalysisResult: the imports and rule inventory the Bundler needs plus any
// warnings worth surfacing to the author. It never re-implements Rego
// scanning — it re-derives its findings from the same structural scan the
// parser uses, so the two stages can never disagree about what a rule head
// or import looks like.
package analyzer

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/eunomia-sh/eunomia/pkg/policy/ast"
	"github.com/eunomia-sh/eunomia/pkg/policy/parser"
)

// Analyzer runs the static checks described by the compiler's C3 stage. New
// returns one with RequireDefault enabled; the zero value leaves it
// disabled.
type Analyzer struct {
	// RequireDefault fails analysis when no default allow/deny rule is
	// present. Defaults to true; disable for helper-only policy files.
	RequireDefault bool
}

// New returns an Analyzer with the default configuration.
func New() *Analyzer {
	return &Analyzer{RequireDefault: true}
}

// WithRequireDefault toggles the require-default check.
func (a *Analyzer) WithRequireDefault(require bool) *Analyzer {
	a.RequireDefault = require
	return a
}

// Analyze inspects a Policy and returns its AnalysisResult, or a
// ValidationError if a structural check fails. Structural concerns (package
// hygiene) are checked before semantic ones (duplication, import hygiene):
// once the package itself is malformed, downstream findings about its rules
// would just be noise on top of the real problem.
func (a *Analyzer) Analyze(policy *ast.Policy) (*ast.AnalysisResult, error) {
	if err := checkPackageHygiene(policy.PackageName); err != nil {
		return nil, err
	}

	st, err := parser.ExtractStructure(policy.Source, policy.FilePath)
	if err != nil {
		return nil, err
	}

	result := &ast.AnalysisResult{
		Rules: st.Rules,
	}

	seenImports := make(map[string]bool, len(st.Imports))
	for _, imp := range st.Imports {
		result.Imports = append(result.Imports, imp.Path)
		if seenImports[imp.Path] {
			result.Warnings = append(result.Warnings, ast.Warning{
				Line:     imp.Location.Line,
				Message:  fmt.Sprintf("duplicate import %q", imp.Path),
				Severity: ast.SeverityWarning,
			})
		}
		seenImports[imp.Path] = true
	}

	seenRuleNames := make(map[string]bool, len(st.Rules))
	for _, rule := range st.Rules {
		switch {
		case rule.Kind == ast.RuleKindDefault && rule.Name == "allow":
			result.HasDefaultAllow = true
		case rule.Kind == ast.RuleKindDefault && rule.Name == "deny":
			result.HasDefaultDeny = true
		}

		key := rule.Name + "/" + string(rule.Kind)
		if seenRuleNames[key] && !hasDisjunctMarker(rule.Body) {
			result.Warnings = append(result.Warnings, ast.Warning{
				Line:     rule.Location.Line,
				Message:  fmt.Sprintf("rule %q redefined; Rego treats this as a partial set unless intentional", rule.Name),
				Severity: ast.SeverityWarning,
			})
		}
		seenRuleNames[key] = true
	}

	if segments := strings.Split(policy.PackageName, "."); len(segments) < 2 {
		result.Warnings = append(result.Warnings, ast.Warning{
			Line:     policy.Location.Line,
			Message:  fmt.Sprintf("package %q has a single segment; prefer a namespaced dotted identifier", policy.PackageName),
			Severity: ast.SeverityWarning,
		})
	}

	if a.RequireDefault && !result.HasDefaultAllow && !result.HasDefaultDeny {
		return nil, &ValidationError{
			Kind:    ErrMissingDefault,
			Package: policy.PackageName,
			Message: "missing default rule",
		}
	}

	return result, nil
}

func checkPackageHygiene(name string) error {
	if strings.TrimSpace(name) == "" {
		return &ValidationError{
			Kind:    ErrPackageHygiene,
			Package: name,
			Message: "package name must not be empty",
		}
	}
	for _, seg := range strings.Split(name, ".") {
		valid := seg != "" && !unicode.IsDigit(rune(seg[0]))
		for _, r := range seg {
			if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
				valid = false
			}
		}
		if !valid {
			return &ValidationError{
				Kind:    ErrPackageHygiene,
				Package: name,
				Message: fmt.Sprintf("package name %q is not a dotted identifier", name),
			}
		}
	}
	return nil
}

// hasDisjunctMarker reports whether a rule body looks like it is deliberately
// contributing to a partial set/rule rather than accidentally redefining a
// complete one. Rego's partial-rule idiom is "some" comprehensions or a body
// that differs from a prior definition only in its guard, which this
// textual scan cannot distinguish precisely — so it only suppresses the
// warning when the body explicitly uses "some " or "else", the two forms
// that most commonly explain an intentional second head.
func hasDisjunctMarker(body string) bool {
	return strings.Contains(body, "some ") || strings.Contains(body, "else")
}
