package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eunomia-sh/eunomia/pkg/policy/analyzer"
	"github.com/eunomia-sh/eunomia/pkg/policy/parser"
)

var validateFlags struct {
	dir            string
	recursive      bool
	requireDefault bool
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Parse and analyze policy source without producing a bundle",
	Long: `validate runs the parser and analyzer over every ".rego" file under
--dir and reports every offending package, matching the errors a "build"
of the same tree would raise.`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateFlags.dir, "dir", ".", "directory containing .rego policy files")
	validateCmd.Flags().BoolVar(&validateFlags.recursive, "recursive", true, "descend into subdirectories of --dir")
	validateCmd.Flags().BoolVar(&validateFlags.requireDefault, "require-default", false, "require a default allow/deny rule in every package")
}

func runValidate(cmd *cobra.Command, args []string) error {
	p := parser.NewParser()
	if !validateFlags.recursive {
		p = p.WithMaxDepth(0)
	}
	policies, err := p.ParseDir(validateFlags.dir)
	if err != nil {
		return err
	}
	if len(policies) == 0 {
		return fmt.Errorf("no .rego files found under %s", validateFlags.dir)
	}

	a := analyzer.New().WithRequireDefault(validateFlags.requireDefault)

	var offenders []error
	for _, p := range policies {
		result, err := a.Analyze(p)
		if err != nil {
			offenders = append(offenders, fmt.Errorf("%s: %w", p.PackageName, err))
			fmt.Printf("✗ %s\n  %v\n", p.PackageName, err)
			continue
		}
		fmt.Printf("✓ %s (%d rules, %d imports)\n", p.PackageName, len(result.Rules), len(result.Imports))
		for _, w := range result.Warnings {
			fmt.Printf("  warning: line %d: %s\n", w.Line, w.Message)
		}
	}

	fmt.Println()
	fmt.Printf("%d packages checked, %d failed\n", len(policies), len(offenders))
	if len(offenders) > 0 {
		return offenders[0]
	}
	return nil
}
