package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/eunomia-sh/eunomia/pkg/policy/ast"
)

var (
	packageRe = regexp.MustCompile(`^package\s+([A-Za-z_][\w.]*)\s*$`)
	importRe  = regexp.MustCompile(`^import\s+([A-Za-z_][\w.]*)(?:\s+as\s+([A-Za-z_]\w*))?\s*$`)
	defaultRe = regexp.MustCompile(`^default\s+([A-Za-z_]\w*)\s*:=\s*(.+)$`)
	assignRe  = regexp.MustCompile(`^([A-Za-z_]\w*)\s*:=\s*(.+)$`)
	ifBlockRe = regexp.MustCompile(`^([A-Za-z_]\w*)\s+if\s*\{\s*$`)
	keyRuleRe = regexp.MustCompile(`^([A-Za-z_]\w*)\[[^\]]+\]\s*\{\s*$`)
)

// ImportDecl is one `import` statement, optionally aliased.
type ImportDecl struct {
	Path     string
	Alias    string
	Location ast.Location
}

// Structure is the result of scanning a Rego source file for the grammar
// this codebase understands: the package declaration, import statements and
// rule heads. The Parser builds a Policy from it; the Analyzer re-derives an
// AnalysisResult from it so neither stage has to re-implement the scan.
type Structure struct {
	PackageName     string
	PackageLocation ast.Location
	Imports         []ImportDecl
	Rules           []ast.Rule
	// Description is populated from a leading "# METADATA" comment block,
	// joining subsequent "# ..." lines until the first non-comment line.
	Description string
}

// ExtractStructure scans Rego source for package/import/rule-head syntax.
// It is lenient about unrecognized expression forms inside rule bodies —
// they are kept verbatim as the rule's Body text — but a rule head
// encountered before any `package` declaration is a hard MissingPackage
// error, and an unterminated `{` block is a syntax error.
func ExtractStructure(source, file string) (*Structure, error) {
	lines := ScanLines(source)
	st := &Structure{}

	var metadataLines []string
	inMetadata := false

	i := 0
	for i < len(lines) {
		line := lines[i]
		if line.InRawString {
			i++
			continue
		}
		trimmed := strings.TrimSpace(line.Text)

		switch {
		case trimmed == "":
			i++
			continue

		case trimmed == "# METADATA":
			inMetadata = true
			i++
			continue

		case inMetadata && strings.HasPrefix(trimmed, "#"):
			metadataLines = append(metadataLines, strings.TrimSpace(strings.TrimPrefix(trimmed, "#")))
			i++
			continue

		case IsCommentLine(trimmed):
			inMetadata = false
			i++
			continue

		default:
			inMetadata = false
		}

		if m := packageRe.FindStringSubmatch(trimmed); m != nil {
			st.PackageName = m[1]
			st.PackageLocation = ast.Location{File: file, Line: line.Number, Column: 1}
			i++
			continue
		}

		if m := importRe.FindStringSubmatch(trimmed); m != nil {
			if st.PackageName == "" {
				return nil, &Error{
					Kind:     ErrMissingPackage,
					File:     file,
					Line:     line.Number,
					Message:  "import statement before package declaration",
					Location: ast.Location{File: file, Line: line.Number, Column: 1},
				}
			}
			st.Imports = append(st.Imports, ImportDecl{
				Path:     m[1],
				Alias:    m[2],
				Location: ast.Location{File: file, Line: line.Number, Column: 1},
			})
			i++
			continue
		}

		// Any rule head requires a package declaration first.
		if st.PackageName == "" && looksLikeRuleHead(trimmed) {
			return nil, &Error{
				Kind:     ErrMissingPackage,
				File:     file,
				Line:     line.Number,
				Message:  "rule defined before package declaration",
				Location: ast.Location{File: file, Line: line.Number, Column: 1},
			}
		}

		if m := defaultRe.FindStringSubmatch(trimmed); m != nil {
			st.Rules = append(st.Rules, ast.Rule{
				Name:     m[1],
				Kind:     ast.RuleKindDefault,
				Body:     m[2],
				Location: ast.Location{File: file, Line: line.Number, Column: 1},
			})
			i++
			continue
		}

		if m := ifBlockRe.FindStringSubmatch(trimmed); m != nil {
			body, end, err := consumeBlock(lines, i+1, file)
			if err != nil {
				return nil, err
			}
			st.Rules = append(st.Rules, ast.Rule{
				Name:     m[1],
				Kind:     ruleKindForName(m[1]),
				Body:     body,
				Location: ast.Location{File: file, Line: line.Number, Column: 1},
			})
			i = end
			continue
		}

		if m := keyRuleRe.FindStringSubmatch(trimmed); m != nil {
			body, end, err := consumeBlock(lines, i+1, file)
			if err != nil {
				return nil, err
			}
			st.Rules = append(st.Rules, ast.Rule{
				Name:     m[1],
				Kind:     ruleKindForName(m[1]),
				Body:     body,
				Location: ast.Location{File: file, Line: line.Number, Column: 1},
			})
			i = end
			continue
		}

		if m := assignRe.FindStringSubmatch(trimmed); m != nil {
			body, end := consumeContinuation(lines, i+1, m[2])
			st.Rules = append(st.Rules, ast.Rule{
				Name:     m[1],
				Kind:     ruleKindForName(m[1]),
				Body:     body,
				Location: ast.Location{File: file, Line: line.Number, Column: 1},
			})
			i = end
			continue
		}

		return nil, &Error{
			Kind:     ErrSyntax,
			File:     file,
			Line:     line.Number,
			Message:  fmt.Sprintf("unrecognized statement: %q", trimmed),
			Location: ast.Location{File: file, Line: line.Number, Column: 1},
		}
	}

	st.Description = strings.TrimSpace(strings.Join(metadataLines, "\n"))
	return st, nil
}

func looksLikeRuleHead(trimmed string) bool {
	return defaultRe.MatchString(trimmed) || ifBlockRe.MatchString(trimmed) ||
		keyRuleRe.MatchString(trimmed) || assignRe.MatchString(trimmed)
}

func ruleKindForName(name string) ast.RuleKind {
	switch name {
	case "allow":
		return ast.RuleKindAllow
	case "deny":
		return ast.RuleKindDeny
	default:
		return ast.RuleKindHelper
	}
}

// consumeBlock reads lines starting at index start (the line following an
// opening `{`) until the running count of `{` minus `}` drops to zero on a
// line, returning the joined body text before that line and the index of
// the line after it.
func consumeBlock(lines []LineInfo, start int, file string) (string, int, error) {
	depth := 1
	var body []string
	i := start
	for i < len(lines) {
		line := lines[i]
		if !line.InRawString {
			trimmed := strings.TrimSpace(line.Text)
			depth += strings.Count(trimmed, "{") - strings.Count(trimmed, "}")
			if depth <= 0 {
				return strings.Join(body, "\n"), i + 1, nil
			}
		}
		body = append(body, line.Text)
		i++
	}
	return "", 0, &Error{
		Kind:    ErrSyntax,
		File:    file,
		Line:    start,
		Message: "unterminated rule block: missing closing '}'",
	}
}

// consumeContinuation appends subsequent non-blank lines to a single-line
// `:=` assignment until a blank line is reached, to accommodate multi-line
// literal values (arrays, objects) written across several lines without
// braces delimiting a rule body.
func consumeContinuation(lines []LineInfo, start int, firstLine string) (string, int) {
	body := []string{firstLine}
	i := start
	for i < len(lines) {
		line := lines[i]
		if IsBlank(line.Text) {
			break
		}
		if !line.InRawString && looksLikeRuleHead(strings.TrimSpace(line.Text)) {
			break
		}
		body = append(body, strings.TrimSpace(line.Text))
		i++
	}
	return strings.Join(body, " "), i
}
