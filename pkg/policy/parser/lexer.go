package parser

import "strings"

// LineInfo is one line of Rego source annotated with the lexical context the
// Parser (C2) and Optimizer (C4) both need: whether the line begins already
// inside an open raw-string literal. Rego's backtick-delimited strings can
// span multiple lines, and neither the parser's structural scan nor the
// optimizer's comment/whitespace stripping is allowed to touch their
// contents — so both stages share this scan instead of each reimplementing
// it slightly differently.
type LineInfo struct {
	Number      int
	Text        string
	InRawString bool
}

// ScanLines splits source into annotated lines.
func ScanLines(source string) []LineInfo {
	rawLines := strings.Split(source, "\n")
	infos := make([]LineInfo, len(rawLines))
	inString := false
	for i, text := range rawLines {
		infos[i] = LineInfo{Number: i + 1, Text: text, InRawString: inString}
		inString = nextRawStringState(text, inString)
	}
	return infos
}

// nextRawStringState toggles the raw-string context once per backtick on the
// line; it does not special-case backticks inside `#` comments because Rego
// comments cannot themselves contain an unterminated backtick without also
// being inside a string already (the tokenizer this mirrors is line-based,
// not character-precise, which matches the textual — not semantic — nature
// of the optimizer this feeds).
func nextRawStringState(line string, inString bool) bool {
	for _, r := range line {
		if r == '`' {
			inString = !inString
		}
	}
	return inString
}

// IsCommentLine reports whether a trimmed line is a pure comment line.
func IsCommentLine(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "#")
}

// IsBlank reports whether a line contains only whitespace.
func IsBlank(text string) bool {
	return strings.TrimSpace(text) == ""
}
