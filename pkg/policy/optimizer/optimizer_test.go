package optimizer

import (
	"strings"
	"testing"

	"github.com/eunomia-sh/eunomia/pkg/policy/analyzer"
	"github.com/eunomia-sh/eunomia/pkg/policy/parser"
)

func TestOptimizePreservesMetadataBlock(t *testing.T) {
	source := "# METADATA\n# description: x\npackage y\ndefault allow := false\n"
	out := Optimize(source, Options{StripComments: true})
	if !strings.Contains(out, "# METADATA") {
		t.Error("expected \"# METADATA\" line to be preserved")
	}
	if !strings.Contains(out, "# description: x") {
		t.Error("expected metadata description line to be preserved")
	}
}

func TestOptimizeStripsTrailingComment(t *testing.T) {
	out := Optimize("x := 1 # inline\n", Options{StripComments: true})
	if strings.Contains(out, "#") {
		t.Errorf("expected trailing comment to be stripped, got %q", out)
	}
	if !strings.Contains(out, "x := 1") {
		t.Errorf("expected code to survive, got %q", out)
	}
}

func TestOptimizeCollapsesBlankRuns(t *testing.T) {
	source := "package x.y\n\n\n\ndefault allow := false\n"
	out := Optimize(source, Options{MinimizeWhitespace: true})
	if strings.Contains(out, "\n\n\n") {
		t.Errorf("expected blank run collapsed, got %q", out)
	}
}

func TestOptimizeLeavesStringLiteralsAlone(t *testing.T) {
	source := "package x.y\nmsg := `line one\n# not a comment\nline two`\ndefault allow := false\n"
	out := Optimize(source, Options{StripComments: true, MinimizeWhitespace: true})
	if !strings.Contains(out, "# not a comment") {
		t.Error("expected raw-string content to survive untouched")
	}
}

func TestOptimizeRoundTripPreservesRulesAndImports(t *testing.T) {
	source := "# METADATA\n# owner: team\npackage users.authz\nimport data.lib.http\n\n\ndefault allow := false # safe default\n\nallow if {\n\tinput.method == \"GET\" # read only\n}\n"

	p := parser.NewParser()
	before, err := p.ParseBytes([]byte(source), "authz.rego")
	if err != nil {
		t.Fatalf("parse before: %v", err)
	}
	beforeResult, err := analyzer.New().Analyze(before)
	if err != nil {
		t.Fatalf("analyze before: %v", err)
	}

	optimized := Optimize(source, Options{StripComments: true, MinimizeWhitespace: true})
	after, err := p.ParseBytes([]byte(optimized), "authz.rego")
	if err != nil {
		t.Fatalf("parse after: %v\n--- optimized ---\n%s", err, optimized)
	}
	afterResult, err := analyzer.New().Analyze(after)
	if err != nil {
		t.Fatalf("analyze after: %v", err)
	}

	if strings.Join(beforeResult.RuleNames(), ",") != strings.Join(afterResult.RuleNames(), ",") {
		t.Errorf("rule names changed: before=%v after=%v", beforeResult.RuleNames(), afterResult.RuleNames())
	}
	if strings.Join(beforeResult.Imports, ",") != strings.Join(afterResult.Imports, ",") {
		t.Errorf("imports changed: before=%v after=%v", beforeResult.Imports, afterResult.Imports)
	}
}
