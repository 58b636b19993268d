package bundle

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/eunomia-sh/eunomia/pkg/policy/analyzer"
	"github.com/eunomia-sh/eunomia/pkg/policy/ast"
	"github.com/eunomia-sh/eunomia/pkg/policy/optimizer"
	"github.com/eunomia-sh/eunomia/pkg/policy/parser"
)

// Builder assembles a Bundle from a service name, version and a sequence of
// policies. Construct one with NewBuilder, chain the With* configuration
// methods and AddPolicy calls, then call Compile.
type Builder struct {
	name       string
	version    string
	gitCommit  string
	optimize   bool
	noValidate bool
	metadata   map[string]string
	policies   []*ast.Policy
	analyzer   *analyzer.Analyzer
	optOptions optimizer.Options
}

// NewBuilder constructs a Builder for the given service name and version.
func NewBuilder(name, version string) *Builder {
	return &Builder{
		name:     name,
		version:  version,
		metadata: make(map[string]string),
		analyzer: analyzer.New(),
		optOptions: optimizer.Options{
			StripComments:      true,
			MinimizeWhitespace: true,
		},
	}
}

// WithGitCommit records the opaque commit SHA the bundle was built from.
func (b *Builder) WithGitCommit(commit string) *Builder {
	b.gitCommit = commit
	return b
}

// WithOptimize enables the textual optimizer (C4) over each policy's source
// before the manifest is built.
func (b *Builder) WithOptimize(optimize bool) *Builder {
	b.optimize = optimize
	return b
}

// WithNoValidate skips the analyzer pass entirely. Off by default: strict
// validation is the Bundler's default per the spec.
func (b *Builder) WithNoValidate(noValidate bool) *Builder {
	b.noValidate = noValidate
	return b
}

// WithRequireDefault forwards to the embedded Analyzer's configuration.
func (b *Builder) WithRequireDefault(require bool) *Builder {
	b.analyzer = b.analyzer.WithRequireDefault(require)
	return b
}

// WithMetadata sets one free-form metadata key/value pair on the bundle.
func (b *Builder) WithMetadata(key, value string) *Builder {
	b.metadata[key] = value
	return b
}

// AddPolicy queues a parsed Policy for inclusion. Order is preserved for
// diagnostics but does not affect the compiled manifest, whose policy
// entries are always sorted by package name.
func (b *Builder) AddPolicy(p *ast.Policy) *Builder {
	b.policies = append(b.policies, p)
	return b
}

// AddDir parses every ".rego" file directly under dir (non-recursive unless
// recursive is true) and queues each as a policy, extending the directory
// ingestion mode described in the compiler's expanded spec.
func (b *Builder) AddDir(dir string, recursive bool) error {
	p := parser.NewParser()
	if !recursive {
		p = p.WithMaxDepth(0)
	}
	policies, err := p.ParseDir(dir)
	if err != nil {
		return err
	}
	for _, pol := range policies {
		b.AddPolicy(pol)
	}
	return nil
}

// Compile runs the full C2→C3→C4→C5 pipeline over the queued policies and
// returns the resulting Bundle.
func (b *Builder) Compile() (*Bundle, error) {
	if len(b.policies) == 0 {
		return nil, &Error{Kind: ErrNoPolicies, Message: "bundle must contain at least one policy"}
	}
	if strings.TrimSpace(b.name) == "" {
		return nil, &Error{Kind: ErrInvalidVersion, Message: "bundle name must not be empty"}
	}
	if _, err := semver.NewVersion(b.version); err != nil {
		return nil, &Error{Kind: ErrInvalidVersion, Message: fmt.Sprintf("version %q is not valid SemVer: %v", b.version, err)}
	}

	var offenders []error
	seen := make(map[string]bool, len(b.policies))
	for _, p := range b.policies {
		if seen[p.PackageName] {
			offenders = append(offenders, fmt.Errorf("duplicate package %q", p.PackageName))
			continue
		}
		seen[p.PackageName] = true

		if b.noValidate {
			continue
		}
		if _, err := b.analyzer.Analyze(p); err != nil {
			offenders = append(offenders, fmt.Errorf("%s: %w", p.PackageName, err))
		}
	}
	if len(offenders) > 0 {
		return nil, &Error{Kind: ErrValidation, Message: "one or more policies failed validation", Offenders: offenders}
	}

	policyMap := make(map[string]*ast.Policy, len(b.policies))
	for _, p := range b.policies {
		final := p
		if b.optimize {
			optimized := *p
			optimized.Source = optimizer.Optimize(p.Source, b.optOptions)
			final = &optimized
		}
		policyMap[final.PackageName] = final
	}

	bundle := &Bundle{
		Name:      b.name,
		Version:   b.version,
		CreatedAt: time.Now().UTC(),
		GitCommit: b.gitCommit,
		Policies:  policyMap,
		Metadata:  copyMetadata(b.metadata),
	}
	bundle.ManifestDigest = BuildManifest(bundle).Digest()
	return bundle, nil
}

func copyMetadata(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// packageFileName returns the on-disk layer path for a policy's package
// name, "policies/<package>.rego".
func packageFileName(packageName string) string {
	return filepath.Join("policies", packageName+".rego")
}
