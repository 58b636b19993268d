package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/eunomia-sh/eunomia/pkg/cli"
	"github.com/eunomia-sh/eunomia/pkg/policy/analyzer"
	"github.com/eunomia-sh/eunomia/pkg/policy/parser"
)

var policyTestFlags struct {
	testsFile      string
	requireDefault bool
}

var policyTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Run structural checks against policy source",
	Long: `test loads a YAML suite of test cases, each naming a ".rego" file and
the rule names, default-rule presence, and warning count its analysis is
expected to produce, and reports which fixtures match.

Test Case Format (YAML):
  tests:
    - name: "orders package exposes an allow rule"
      policy: "testdata/orders.rego"
      expect:
        rules: ["allow", "deny"]
        has_default: true
        warnings: 0
        error: false`,
	RunE: runPolicyTests,
}

func init() {
	rootCmd.AddCommand(policyTestCmd)

	policyTestCmd.Flags().StringVarP(&policyTestFlags.testsFile, "tests", "t", "", "test case file")
	policyTestCmd.Flags().BoolVar(&policyTestFlags.requireDefault, "require-default", false, "require a default allow/deny rule in every package")
	_ = policyTestCmd.MarkFlagRequired("tests")
}

// policyTestSuite is a collection of structural test cases over policy
// source files.
type policyTestSuite struct {
	Tests []policyTestCase `yaml:"tests"`
}

type policyTestCase struct {
	Name   string             `yaml:"name"`
	Policy string             `yaml:"policy"`
	Expect policyExpectation  `yaml:"expect"`
}

type policyExpectation struct {
	Rules      []string `yaml:"rules"`
	HasDefault bool     `yaml:"has_default"`
	Warnings   int      `yaml:"warnings"`
	Error      bool     `yaml:"error"`
}

type policyTestResult struct {
	Name     string
	Passed   bool
	Detail   string
	Duration time.Duration
}

func runPolicyTests(cmd *cobra.Command, args []string) error {
	suite, err := loadPolicyTestSuite(policyTestFlags.testsFile)
	if err != nil {
		return cli.NewCommandError("test", fmt.Errorf("load test cases: %w", err))
	}
	if len(suite.Tests) == 0 {
		return fmt.Errorf("no test cases found in %s", policyTestFlags.testsFile)
	}

	p := parser.NewParser()
	a := analyzer.New().WithRequireDefault(policyTestFlags.requireDefault)

	fmt.Println("Running policy tests...")
	fmt.Println()

	results := make([]policyTestResult, 0, len(suite.Tests))
	passed, failed := 0, 0

	for _, tc := range suite.Tests {
		result := runPolicyTestCase(p, a, tc)
		results = append(results, result)
		if result.Passed {
			passed++
			fmt.Printf("✓ %s (%.1fms)\n", tc.Name, result.Duration.Seconds()*1000)
		} else {
			failed++
			fmt.Printf("✗ %s\n  %s\n", tc.Name, result.Detail)
		}
	}

	fmt.Println()
	fmt.Println("Summary:")
	fmt.Printf("  %d tests run, %d passed, %d failed\n", len(suite.Tests), passed, failed)

	if failed > 0 {
		fmt.Println()
		fmt.Println("Failed tests:")
		for _, result := range results {
			if !result.Passed {
				fmt.Printf("  - %s\n", result.Name)
			}
		}
		return cli.NewCommandError("test", fmt.Errorf("%d of %d test cases failed", failed, len(suite.Tests)))
	}
	return nil
}

func loadPolicyTestSuite(path string) (*policyTestSuite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	var suite policyTestSuite
	if err := yaml.Unmarshal(data, &suite); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	return &suite, nil
}

func runPolicyTestCase(p *parser.Parser, a *analyzer.Analyzer, tc policyTestCase) policyTestResult {
	start := time.Now()
	result := policyTestResult{Name: tc.Name}

	policy, err := p.Parse(tc.Policy)
	if err != nil {
		result.Duration = time.Since(start)
		if tc.Expect.Error {
			result.Passed = true
		} else {
			result.Detail = fmt.Sprintf("unexpected parse error: %v", err)
		}
		return result
	}

	analysis, err := a.Analyze(policy)
	result.Duration = time.Since(start)
	if err != nil {
		if tc.Expect.Error {
			result.Passed = true
		} else {
			result.Detail = fmt.Sprintf("unexpected analysis error: %v", err)
		}
		return result
	}
	if tc.Expect.Error {
		result.Detail = "expected an error but analysis succeeded"
		return result
	}

	gotRules := analysis.RuleNames()
	sort.Strings(gotRules)
	wantRules := append([]string(nil), tc.Expect.Rules...)
	sort.Strings(wantRules)
	if !equalStrings(gotRules, wantRules) {
		result.Detail = fmt.Sprintf("rules: want %v, got %v", wantRules, gotRules)
		return result
	}

	hasDefault := analysis.HasDefaultAllow || analysis.HasDefaultDeny
	if hasDefault != tc.Expect.HasDefault {
		result.Detail = fmt.Sprintf("has_default: want %v, got %v", tc.Expect.HasDefault, hasDefault)
		return result
	}

	if len(analysis.Warnings) != tc.Expect.Warnings {
		result.Detail = fmt.Sprintf("warnings: want %d, got %d", tc.Expect.Warnings, len(analysis.Warnings))
		return result
	}

	result.Passed = true
	return result
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
