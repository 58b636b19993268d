// Package ast defines the data carried between every stage of the bundle
// compilation pipeline: the parsed representation of one Rego source file
// and the findings an analysis pass produces about it.
package ast

import (
	"strings"
	"time"
)

// Policy is an immutable value describing one Rego source file. The parser
// produces it; the analyzer, optimizer and bundler all consume it without
// mutating it in place — every transform returns a new Policy.
type Policy struct {
	// PackageName is the dotted identifier declared by the source's
	// `package` statement, e.g. "users.authz".
	PackageName string

	// Source is the raw policy text, byte-for-byte as read from disk or
	// supplied in memory.
	Source string

	// FilePath is the path the source was read from, empty for in-memory
	// policies.
	FilePath string

	CreatedAt time.Time

	// Description is an optional human-readable summary, populated from a
	// leading "# METADATA" block when present.
	Description string

	// Authors preserves the order supplied by the caller; it is never
	// sorted or deduplicated.
	Authors []string

	// Location points at the `package` declaration.
	Location Location
}

// PackageNameMatchesSource reports whether p.PackageName is consistent with
// the `package` declaration found in p.Source. It does not re-parse the
// source; it performs the same lightweight scan the parser uses to extract
// the package line, so it stays cheap to call from invariant checks and
// tests.
func (p *Policy) PackageNameMatchesSource() bool {
	for _, line := range strings.Split(p.Source, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if !strings.HasPrefix(trimmed, "package ") {
			return false
		}
		return strings.TrimSpace(strings.TrimPrefix(trimmed, "package")) == p.PackageName
	}
	return false
}

// RuleKind categorizes a rule head recognized by the parser.
type RuleKind string

const (
	RuleKindAllow   RuleKind = "allow"
	RuleKindDeny    RuleKind = "deny"
	RuleKindHelper  RuleKind = "helper"
	RuleKindDefault RuleKind = "default"
)

// Rule describes one rule head found in a Policy's source. The body is kept
// as an opaque text span — the parser never interprets rule bodies.
type Rule struct {
	Name     string
	Kind     RuleKind
	Body     string
	Location Location
}

// Severity classifies an Analyzer warning.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// Warning is a non-fatal Analyzer finding attached to a specific line.
type Warning struct {
	Line     int
	Message  string
	Severity Severity
}

// AnalysisResult is the per-policy output of the Analyzer (C3).
type AnalysisResult struct {
	Imports         []string
	Rules           []Rule
	HasDefaultAllow bool
	HasDefaultDeny  bool
	Warnings        []Warning
}

// RuleNames returns the names of every rule, in source order — used by the
// optimizer round-trip invariant to compare rule sets without caring about
// body text or location.
func (r *AnalysisResult) RuleNames() []string {
	names := make([]string, 0, len(r.Rules))
	for _, rule := range r.Rules {
		names = append(names, rule.Name)
	}
	return names
}
