package parser

import (
	"strings"
	"testing"
)

func TestParser_ParseBytes_Simple(t *testing.T) {
	src := `package users.authz

import input.request as req

default allow := false

allow if {
	req.method == "GET"
}
`
	p := NewParser()
	policy, err := p.ParseBytes([]byte(src), "users.rego")
	if err != nil {
		t.Fatalf("ParseBytes() failed: %v", err)
	}
	if policy.PackageName != "users.authz" {
		t.Errorf("PackageName = %q, want %q", policy.PackageName, "users.authz")
	}
	if policy.FilePath != "users.rego" {
		t.Errorf("FilePath = %q, want %q", policy.FilePath, "users.rego")
	}
	if !policy.PackageNameMatchesSource() {
		t.Error("PackageNameMatchesSource() = false, want true")
	}
}

func TestParser_ParseBytes_MissingPackage(t *testing.T) {
	src := `default allow := false
`
	p := NewParser()
	_, err := p.ParseBytes([]byte(src), "bad.rego")
	if err == nil {
		t.Fatal("ParseBytes() succeeded, want MissingPackage error")
	}
	perr, ok := err.(*Error)
	if !ok {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if perr.Kind != ErrMissingPackage {
		t.Errorf("Kind = %q, want %q", perr.Kind, ErrMissingPackage)
	}
}

func TestParser_ParseBytes_UnterminatedBlock(t *testing.T) {
	src := `package users.authz

allow if {
	input.method == "GET"
`
	p := NewParser()
	_, err := p.ParseBytes([]byte(src), "bad.rego")
	if err == nil {
		t.Fatal("ParseBytes() succeeded, want syntax error")
	}
	perr, ok := err.(*Error)
	if !ok {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if perr.Kind != ErrSyntax {
		t.Errorf("Kind = %q, want %q", perr.Kind, ErrSyntax)
	}
}

func TestParser_ParseBytes_MetadataBlock(t *testing.T) {
	src := `package users.authz

# METADATA
# Restricts access to admin users only.
# Owner: platform-security

default allow := false
`
	p := NewParser()
	policy, err := p.ParseBytes([]byte(src), "users.rego")
	if err != nil {
		t.Fatalf("ParseBytes() failed: %v", err)
	}
	want := "Restricts access to admin users only.\nOwner: platform-security"
	if policy.Description != want {
		t.Errorf("Description = %q, want %q", policy.Description, want)
	}
}

func TestParser_ParseBytes_RawStringIgnored(t *testing.T) {
	src := "package users.authz\n\ndefault msg := `this { is not a brace block`\n"
	p := NewParser()
	policy, err := p.ParseBytes([]byte(src), "users.rego")
	if err != nil {
		t.Fatalf("ParseBytes() failed: %v", err)
	}
	if policy.PackageName != "users.authz" {
		t.Errorf("PackageName = %q, want %q", policy.PackageName, "users.authz")
	}
}

func TestExtractStructure_Imports(t *testing.T) {
	src := `package users.authz

import input.request
import data.roles as roles

allow if {
	roles.is_admin
}
`
	st, err := ExtractStructure(src, "users.rego")
	if err != nil {
		t.Fatalf("ExtractStructure() failed: %v", err)
	}
	if len(st.Imports) != 2 {
		t.Fatalf("len(Imports) = %d, want 2", len(st.Imports))
	}
	if st.Imports[1].Alias != "roles" {
		t.Errorf("Imports[1].Alias = %q, want %q", st.Imports[1].Alias, "roles")
	}
	if len(st.Rules) != 1 || st.Rules[0].Name != "allow" {
		t.Fatalf("Rules = %+v, want single 'allow' rule", st.Rules)
	}
}

func TestExtractStructure_ImportBeforePackage(t *testing.T) {
	src := `import input.request
package users.authz
`
	_, err := ExtractStructure(src, "bad.rego")
	if err == nil {
		t.Fatal("ExtractStructure() succeeded, want MissingPackage error")
	}
	if perr, ok := err.(*Error); !ok || perr.Kind != ErrMissingPackage {
		t.Errorf("err = %v, want MissingPackage", err)
	}
}

func TestParser_Parse_FileNotFound(t *testing.T) {
	p := NewParser()
	_, err := p.Parse("/nonexistent/path/policy.rego")
	if err == nil {
		t.Fatal("Parse() succeeded, want IO error")
	}
	if perr, ok := err.(*Error); !ok || perr.Kind != ErrIO {
		t.Errorf("err = %v, want ErrIO", err)
	}
}

func TestParser_ParseBytes_MaxFileSize(t *testing.T) {
	src := "package users.authz\n\ndefault allow := false\n"
	p := NewParser().WithMaxFileSize(4)
	// WithMaxFileSize only gates Parse (disk reads), not ParseBytes; confirm
	// ParseBytes still succeeds regardless of the configured limit.
	if _, err := p.ParseBytes([]byte(src), "users.rego"); err != nil {
		t.Fatalf("ParseBytes() failed: %v", err)
	}
}

func TestError_Error_IncludesMessage(t *testing.T) {
	err := &Error{
		Kind:    ErrSyntax,
		File:    "users.rego",
		Line:    3,
		Message: "bad rule",
	}
	if !strings.Contains(err.Error(), "bad rule") {
		t.Errorf("Error() = %q, want it to contain the message", err.Error())
	}
	if err.IsRetryable() {
		t.Error("IsRetryable() = true, want false")
	}
}
