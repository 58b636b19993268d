package analyzer

import (
	"testing"

	"github.com/eunomia-sh/eunomia/pkg/policy/parser"
)

func TestAnalyzeMissingDefault(t *testing.T) {
	p := parser.NewParser()
	policy, err := p.ParseBytes([]byte("package x\nfoo := 1\n"), "x.rego")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	_, err = New().Analyze(policy)
	if err == nil {
		t.Fatal("expected ValidationError for missing default rule")
	}
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if ve.Kind != ErrMissingDefault {
		t.Errorf("Kind = %q, want %q", ve.Kind, ErrMissingDefault)
	}
}

func TestAnalyzeDefaultAllowSatisfiesRequireDefault(t *testing.T) {
	p := parser.NewParser()
	policy, err := p.ParseBytes([]byte("package users.authz\ndefault allow := false\n"), "authz.rego")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	result, err := New().Analyze(policy)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !result.HasDefaultAllow {
		t.Error("HasDefaultAllow = false, want true")
	}
	if result.HasDefaultDeny {
		t.Error("HasDefaultDeny = true, want false")
	}
}

func TestAnalyzeRequireDefaultDisabled(t *testing.T) {
	p := parser.NewParser()
	policy, err := p.ParseBytes([]byte("package x.y\nhelper := 1\n"), "helper.rego")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	_, err = New().WithRequireDefault(false).Analyze(policy)
	if err != nil {
		t.Fatalf("analyze with RequireDefault disabled: %v", err)
	}
}

func TestAnalyzeSingleSegmentPackageWarns(t *testing.T) {
	p := parser.NewParser()
	policy, err := p.ParseBytes([]byte("package x\ndefault allow := false\n"), "x.rego")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	result, err := New().Analyze(policy)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	found := false
	for _, w := range result.Warnings {
		if w.Severity == "warning" {
			found = true
		}
	}
	if !found {
		t.Error("expected a warning about the single-segment package name")
	}
}

func TestAnalyzeDuplicateImportWarns(t *testing.T) {
	p := parser.NewParser()
	source := "package x.y\nimport data.lib\nimport data.lib\ndefault allow := false\n"
	policy, err := p.ParseBytes([]byte(source), "x.rego")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	result, err := New().Analyze(policy)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(result.Warnings) == 0 {
		t.Error("expected a duplicate-import warning")
	}
}

func TestAnalyzeDuplicateRuleWarnsNotErrors(t *testing.T) {
	p := parser.NewParser()
	source := "package x.y\ndefault allow := false\nhelper := 1\nhelper := 2\n"
	policy, err := p.ParseBytes([]byte(source), "x.rego")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	result, err := New().Analyze(policy)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	found := false
	for _, w := range result.Warnings {
		if w.Message != "" {
			found = true
		}
	}
	if !found {
		t.Error("expected a warning, not an error, for duplicate helper rule")
	}
}
