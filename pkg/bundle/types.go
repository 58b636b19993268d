// Package bundle implements the compiler's C5 stage: composing parsed,
// analyzed policies into a content-addressed Bundle artifact, and the
// canonical manifest serialization that both the digest and the signer
// operate on.
package bundle

import (
	"sort"
	"time"

	"github.com/eunomia-sh/eunomia/pkg/policy/ast"
)

// Bundle is the compiled artifact produced by Builder.Compile. Every field
// is populated; Policies is keyed by package name and every entry's
// PackageName is guaranteed to equal its key (enforced at Compile time).
type Bundle struct {
	Name           string
	Version        string
	CreatedAt      time.Time
	GitCommit      string
	Policies       map[string]*ast.Policy
	Metadata       map[string]string
	ManifestDigest string
}

// PolicyCount returns the number of policies the bundle carries.
func (b *Bundle) PolicyCount() int {
	return len(b.Policies)
}

// FileName returns the conventional on-disk archive name for the bundle,
// "<name>-<version>.tar.gz".
func (b *Bundle) FileName() string {
	return b.Name + "-" + b.Version + ".tar.gz"
}

// SortedPackageNames returns the bundle's package names in ascending order,
// the order the canonical manifest and the on-disk archive both use.
func (b *Bundle) SortedPackageNames() []string {
	names := make([]string, 0, len(b.Policies))
	for name := range b.Policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
