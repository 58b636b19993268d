package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/eunomia-sh/eunomia/pkg/bundle"
	"github.com/eunomia-sh/eunomia/pkg/bundle/sign"
	"github.com/eunomia-sh/eunomia/pkg/policy/analyzer"
	"github.com/eunomia-sh/eunomia/pkg/policy/parser"
	"github.com/eunomia-sh/eunomia/pkg/telemetry/tracing"
)

var (
	cfgFile string
	verbose bool

	processTracer *tracing.Tracer
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "eunomia.yaml", "path to the eunomia config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

var rootCmd = &cobra.Command{
	Use:   "eunomia",
	Short: "Compile, sign, and distribute authorization policy bundles",
	Long: `eunomia ingests Rego policy source, validates and compiles it into
a versioned bundle, signs it, publishes it to an OCI-compatible registry,
and drives staged rollout to enforcement instances with health gating and
automatic rollback.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			// Unreadable config surfaces as a normal command error once the
			// command itself calls loadConfig again; tracing just stays off.
			return nil
		}
		t, err := newTracer(cfg, "eunomia-cli")
		if err != nil {
			return nil
		}
		processTracer = t
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if processTracer != nil {
			_ = processTracer.Shutdown(context.Background())
		}
	},
}

// Execute runs the root command and translates the returned error into the
// documented exit codes: 0 success, 1 user error, 2 validation failure, 3
// signature failure.
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(exitCodeFor(err))
}

func exitCodeFor(err error) int {
	var bundleErr *bundle.Error
	if errors.As(err, &bundleErr) {
		return 2
	}
	var parseErr *parser.Error
	if errors.As(err, &parseErr) {
		return 2
	}
	var validationErr *analyzer.ValidationError
	if errors.As(err, &validationErr) {
		return 2
	}
	var signErr *sign.Error
	if errors.As(err, &signErr) {
		return 3
	}
	return 1
}
