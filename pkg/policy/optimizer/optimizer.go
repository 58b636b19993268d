// Package optimizer applies textual, semantics-preserving reductions to
// Rego source: comment stripping and whitespace collapsing. It is
// deliberately textual rather than AST-based (see the compiler's C4 design
// note) and shares its line-classification primitives with the parser's
// lexer so a string literal is never mistaken for a comment in either
// stage.
package optimizer

import (
	"strings"

	"github.com/eunomia-sh/eunomia/pkg/policy/parser"
)

// Options configures which reductions Optimize applies.
type Options struct {
	// StripComments drops pure comment lines and trailing "code #comment"
	// fragments, except inside a "# METADATA" block, which is always
	// preserved verbatim.
	StripComments bool
	// MinimizeWhitespace right-trims every line and collapses runs of
	// blank lines to a single blank line.
	MinimizeWhitespace bool
}

// Optimize applies the configured reductions to source and returns the
// transformed text. It never touches a line flagged as being inside an open
// raw-string literal by parser.ScanLines, and it never strips a "#"-prefixed
// line that is part of a "# METADATA" block.
func Optimize(source string, opts Options) string {
	if !opts.StripComments && !opts.MinimizeWhitespace {
		return source
	}

	lines := parser.ScanLines(source)
	out := make([]string, 0, len(lines))

	inMetadata := false
	for _, line := range lines {
		text := line.Text

		if line.InRawString {
			out = append(out, text)
			continue
		}

		trimmed := strings.TrimSpace(text)

		if trimmed == "# METADATA" {
			inMetadata = true
			out = append(out, text)
			continue
		}
		if inMetadata && strings.HasPrefix(trimmed, "#") {
			out = append(out, text)
			continue
		}
		inMetadata = false

		if opts.StripComments {
			if parser.IsCommentLine(trimmed) {
				continue
			}
			if idx := findTrailingCommentStart(text); idx >= 0 {
				text = strings.TrimRight(text[:idx], " \t")
			}
		}

		if opts.MinimizeWhitespace {
			text = strings.TrimRight(text, " \t")
		}

		out = append(out, text)
	}

	result := strings.Join(out, "\n")
	if opts.MinimizeWhitespace {
		result = collapseBlankRuns(result)
	}
	return result
}

// findTrailingCommentStart returns the byte offset of a "#" that starts a
// trailing comment fragment on an otherwise non-comment line, or -1 if the
// line has no such fragment. It walks the line outside of any double-quoted
// span so a "#" appearing inside a string literal is never mistaken for a
// comment marker.
func findTrailingCommentStart(text string) int {
	inQuote := false
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '"':
			if i == 0 || text[i-1] != '\\' {
				inQuote = !inQuote
			}
		case '#':
			if !inQuote {
				return i
			}
		}
	}
	return -1
}

// collapseBlankRuns replaces every run of two or more consecutive blank
// lines with a single blank line.
func collapseBlankRuns(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blankRun := false
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			if blankRun {
				continue
			}
			blankRun = true
		} else {
			blankRun = false
		}
		out = append(out, l)
	}
	return strings.Join(out, "\n")
}
