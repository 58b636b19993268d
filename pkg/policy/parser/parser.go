// Package parser turns Rego source files into Policy values. It recognizes
// just enough of the Rego grammar to extract package/import/rule-head
// structure; it never evaluates or fully parses rule bodies.
package parser

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/eunomia-sh/eunomia/pkg/policy/ast"
)

const (
	defaultMaxFileSize = 1 << 20 // 1 MiB
	defaultMaxDepth    = 16
)

// Parser converts Rego source into Policy values. Its zero value is not
// usable; construct one with NewParser.
type Parser struct {
	maxFileSize int64
	maxDepth    int
	strictMode  bool
}

// NewParser returns a Parser configured with sensible defaults.
func NewParser() *Parser {
	return &Parser{
		maxFileSize: defaultMaxFileSize,
		maxDepth:    defaultMaxDepth,
	}
}

// WithMaxFileSize overrides the maximum size, in bytes, of a single source
// file the parser will read.
func (p *Parser) WithMaxFileSize(n int64) *Parser {
	p.maxFileSize = n
	return p
}

// WithMaxDepth overrides the maximum directory depth ParseDir will descend.
func (p *Parser) WithMaxDepth(n int) *Parser {
	p.maxDepth = n
	return p
}

// WithStrictMode records a strict-mode flag on the Parser. Parsing does not
// consult it: a top-level statement the structural scan does not recognize
// is always rejected with ErrSyntax.
func (p *Parser) WithStrictMode(strict bool) *Parser {
	p.strictMode = strict
	return p
}

// Parse reads and parses a single Rego source file.
func (p *Parser) Parse(path string) (*ast.Policy, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &Error{Kind: ErrIO, File: path, Message: err.Error()}
	}
	if info.Size() > p.maxFileSize {
		return nil, &Error{
			Kind:    ErrIO,
			File:    path,
			Message: fmt.Sprintf("file exceeds maximum size of %d bytes", p.maxFileSize),
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Kind: ErrIO, File: path, Message: err.Error()}
	}
	return p.ParseBytes(data, path)
}

// ParseBytes parses source already held in memory. sourcePath is recorded on
// the resulting Policy and used in diagnostics; it may be empty.
func (p *Parser) ParseBytes(data []byte, sourcePath string) (*ast.Policy, error) {
	source := string(data)
	st, err := ExtractStructure(source, sourcePath)
	if err != nil {
		return nil, err
	}
	if st.PackageName == "" {
		return nil, &Error{
			Kind:    ErrMissingPackage,
			File:    sourcePath,
			Message: "source has no package declaration",
		}
	}

	policy := &ast.Policy{
		PackageName: st.PackageName,
		Source:      source,
		FilePath:    sourcePath,
		CreatedAt:   time.Now().UTC(),
		Description: st.Description,
		Location:    st.PackageLocation,
	}
	return policy, nil
}

// ParseDir walks a directory tree and parses every file with a .rego
// extension, returning one Policy per file. Unlike the composable, multi-file
// model this parser's ancestor supported, Rego source is one package per
// file, so no merging of rules or variables across files happens here — each
// file becomes its own independent Policy for the bundler to ingest.
func (p *Parser) ParseDir(root string) ([]*ast.Policy, error) {
	baseDepth := strings.Count(filepath.Clean(root), string(filepath.Separator))
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			depth := strings.Count(filepath.Clean(path), string(filepath.Separator)) - baseDepth
			if depth > p.maxDepth {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, ".rego") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, &Error{Kind: ErrIO, File: root, Message: err.Error()}
	}
	sort.Strings(paths)

	policies := make([]*ast.Policy, 0, len(paths))
	for _, path := range paths {
		policy, err := p.Parse(path)
		if err != nil {
			return nil, err
		}
		policies = append(policies, policy)
	}
	return policies, nil
}
