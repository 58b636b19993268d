package bundle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/eunomia-sh/eunomia/pkg/policy/ast"
	"github.com/eunomia-sh/eunomia/pkg/policy/parser"
)

func parsePolicy(t *testing.T, source, path string) *ast.Policy {
	t.Helper()
	p, err := parser.NewParser().ParseBytes([]byte(source), path)
	if err != nil {
		t.Fatalf("parse %s: %v", path, err)
	}
	return p
}

func TestBuildAndSign(t *testing.T) {
	p := parsePolicy(t, "package users.authz\ndefault allow := false\n", "authz.rego")

	b, err := NewBuilder("users", "1.0.0").AddPolicy(p).Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if b.PolicyCount() != 1 {
		t.Errorf("PolicyCount() = %d, want 1", b.PolicyCount())
	}
	if b.FileName() != "users-1.0.0.tar.gz" {
		t.Errorf("FileName() = %q, want %q", b.FileName(), "users-1.0.0.tar.gz")
	}

	b2, err := NewBuilder("users", "1.0.0").AddPolicy(p).Compile()
	if err != nil {
		t.Fatalf("compile again: %v", err)
	}
	if b.ManifestDigest != b2.ManifestDigest {
		t.Errorf("manifest digest unstable across runs: %q != %q", b.ManifestDigest, b2.ManifestDigest)
	}
}

func TestCompileNoPoliciesFails(t *testing.T) {
	_, err := NewBuilder("users", "1.0.0").Compile()
	if err == nil {
		t.Fatal("expected error for empty bundle")
	}
	be, ok := err.(*Error)
	if !ok || be.Kind != ErrNoPolicies {
		t.Fatalf("expected ErrNoPolicies, got %v", err)
	}
}

func TestCompileInvalidVersionFails(t *testing.T) {
	p := parsePolicy(t, "package x.y\ndefault allow := false\n", "x.rego")
	_, err := NewBuilder("users", "not-a-version").AddPolicy(p).Compile()
	if err == nil {
		t.Fatal("expected error for invalid SemVer version")
	}
}

func TestCompileValidationFailureListsOffenders(t *testing.T) {
	good := parsePolicy(t, "package a\ndefault allow := false\n", "a.rego")
	bad := parsePolicy(t, "package b\nfoo := 1\n", "b.rego")

	_, err := NewBuilder("svc", "1.0.0").AddPolicy(good).AddPolicy(bad).Compile()
	if err == nil {
		t.Fatal("expected validation error")
	}
	be, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if len(be.Offenders) != 1 {
		t.Errorf("Offenders = %d, want 1", len(be.Offenders))
	}
}

func TestManifestDigestOrderIndependent(t *testing.T) {
	a := parsePolicy(t, "package a\ndefault allow := false\n", "a.rego")
	b := parsePolicy(t, "package b\ndefault allow := false\n", "b.rego")

	ab, err := NewBuilder("svc", "1.0.0").AddPolicy(a).AddPolicy(b).Compile()
	if err != nil {
		t.Fatalf("compile ab: %v", err)
	}
	ba, err := NewBuilder("svc", "1.0.0").AddPolicy(b).AddPolicy(a).Compile()
	if err != nil {
		t.Fatalf("compile ba: %v", err)
	}
	if ab.ManifestDigest != ba.ManifestDigest {
		t.Errorf("digest depends on add_policy order: %q != %q", ab.ManifestDigest, ba.ManifestDigest)
	}
}

func TestWriteAndFromFileRoundTrip(t *testing.T) {
	p := parsePolicy(t, "package users.authz\ndefault allow := false\n", "authz.rego")
	b, err := NewBuilder("users", "1.0.0").AddPolicy(p).Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, b.FileName())
	if err := b.Write(path); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("archive not written: %v", err)
	}

	loaded, err := FromFile(path)
	if err != nil {
		t.Fatalf("from file: %v", err)
	}
	if loaded.ManifestDigest != b.ManifestDigest {
		t.Errorf("digest mismatch after round trip: %q != %q", loaded.ManifestDigest, b.ManifestDigest)
	}
	if loaded.Policies["users.authz"].Source != p.Source {
		t.Error("policy source mismatch after round trip")
	}
}
