// Package diag renders asmproc's diagnostics — preprocessor/postprocessor
// errors, splice warnings, and source snippets — with the same
// fatih/color palette conventions used elsewhere in the toolchain's CLI.
package diag

import (
	"regexp"
	"strings"

	"github.com/fatih/color"
)

var (
	cKeywordColor      = color.New(color.FgMagenta, color.Bold)
	cTypeColor         = color.New(color.FgCyan)
	cStringColor       = color.New(color.FgGreen)
	cNumberColor       = color.New(color.FgYellow)
	cCommentColor      = color.New(color.FgHiBlack)
	cPreprocessorColor = color.New(color.FgBlue)
	cOperatorColor     = color.New(color.FgRed)
	cFunctionColor     = color.New(color.FgHiYellow)
)

var cKeywords = map[string]bool{
	"auto": true, "break": true, "case": true, "const": true,
	"continue": true, "default": true, "do": true, "else": true,
	"enum": true, "extern": true, "for": true, "goto": true,
	"if": true, "inline": true, "register": true, "restrict": true,
	"return": true, "sizeof": true, "static": true, "struct": true,
	"switch": true, "typedef": true, "union": true, "volatile": true,
	"while": true,
}

var cTypes = map[string]bool{
	"void": true, "char": true, "short": true, "int": true,
	"long": true, "float": true, "double": true, "signed": true,
	"unsigned": true, "size_t": true,
	"int8_t": true, "int16_t": true, "int32_t": true, "int64_t": true,
	"uint8_t": true, "uint16_t": true, "uint32_t": true, "uint64_t": true,
	"NULL": true, "true": true, "false": true,
}

var (
	cStringPattern       = regexp.MustCompile(`"(?:[^"\\]|\\.)*"`)
	cLineCommentPattern  = regexp.MustCompile(`//.*$`)
	cNumberPattern       = regexp.MustCompile(`\b(?:0[xX][0-9a-fA-F]+|[0-9]+(?:\.[0-9]+)?)[uUlLfF]*\b`)
	cPreprocessorPattern = regexp.MustCompile(`^\s*#\s*\w+`)
	cIdentifierPattern   = regexp.MustCompile(`\b[a-zA-Z_][a-zA-Z0-9_]*\b`)
	cFunctionCallPattern = regexp.MustCompile(`\b([a-zA-Z_][a-zA-Z0-9_]*)\s*\(`)
	cOperatorPattern     = regexp.MustCompile(`[+\-*/%&|^!~<>=?:]+|&&|\|\||<<|>>|->|\.`)

	asmMnemonicColor = color.New(color.FgHiYellow)
	asmRegColor      = color.New(color.FgGreen)
	asmDirectiveColor = color.New(color.FgBlue)
)

type token struct {
	text  string
	color *color.Color
	start int
	end   int
}

// HighlightC applies C syntax highlighting to code. No command in this
// repository calls it.
func HighlightC(code string) string {
	if code == "" {
		return ""
	}
	var tokens []token

	for _, m := range cStringPattern.FindAllStringIndex(code, -1) {
		tokens = append(tokens, token{code[m[0]:m[1]], cStringColor, m[0], m[1]})
	}
	for _, m := range cLineCommentPattern.FindAllStringIndex(code, -1) {
		if !overlapsAny(m[0], m[1], tokens) {
			tokens = append(tokens, token{code[m[0]:m[1]], cCommentColor, m[0], m[1]})
		}
	}
	if strings.HasPrefix(strings.TrimSpace(code), "#") {
		for _, m := range cPreprocessorPattern.FindAllStringIndex(code, -1) {
			if !overlapsAny(m[0], m[1], tokens) {
				tokens = append(tokens, token{code[m[0]:m[1]], cPreprocessorColor, m[0], m[1]})
			}
		}
	}
	for _, m := range cNumberPattern.FindAllStringIndex(code, -1) {
		if !overlapsAny(m[0], m[1], tokens) {
			tokens = append(tokens, token{code[m[0]:m[1]], cNumberColor, m[0], m[1]})
		}
	}
	for _, m := range cFunctionCallPattern.FindAllStringSubmatchIndex(code, -1) {
		if len(m) >= 4 && m[2] >= 0 && !overlapsAny(m[2], m[3], tokens) {
			name := code[m[2]:m[3]]
			if !cKeywords[name] && !cTypes[name] {
				tokens = append(tokens, token{name, cFunctionColor, m[2], m[3]})
			}
		}
	}
	for _, m := range cIdentifierPattern.FindAllStringIndex(code, -1) {
		if overlapsAny(m[0], m[1], tokens) {
			continue
		}
		word := code[m[0]:m[1]]
		if cKeywords[word] {
			tokens = append(tokens, token{word, cKeywordColor, m[0], m[1]})
		} else if cTypes[word] {
			tokens = append(tokens, token{word, cTypeColor, m[0], m[1]})
		}
	}
	for _, m := range cOperatorPattern.FindAllStringIndex(code, -1) {
		if !overlapsAny(m[0], m[1], tokens) {
			tokens = append(tokens, token{code[m[0]:m[1]], cOperatorColor, m[0], m[1]})
		}
	}

	return render(code, tokens)
}

// HighlightAsm applies a much smaller palette to MIPS assembly text:
// directives in blue, registers in green, everything else default. No
// command in this repository calls it.
func HighlightAsm(code string) string {
	if code == "" {
		return ""
	}
	var tokens []token
	for _, line := range splitLinesKeepOffsets(code) {
		trimmed := strings.TrimLeft(line.text, " \t")
		lead := len(line.text) - len(trimmed)
		if strings.HasPrefix(trimmed, ".") {
			end := strings.IndexAny(trimmed, " \t")
			if end < 0 {
				end = len(trimmed)
			}
			tokens = append(tokens, token{trimmed[:end], asmDirectiveColor, line.start + lead, line.start + lead + end})
		}
	}
	for _, m := range regexp.MustCompile(`\$[a-z0-9]+`).FindAllStringIndex(code, -1) {
		if !overlapsAny(m[0], m[1], tokens) {
			tokens = append(tokens, token{code[m[0]:m[1]], asmRegColor, m[0], m[1]})
		}
	}
	for _, m := range regexp.MustCompile(`^\s*[a-z][a-z0-9.]*`).FindAllStringIndex(code, -1) {
		if !overlapsAny(m[0], m[1], tokens) {
			tokens = append(tokens, token{code[m[0]:m[1]], asmMnemonicColor, m[0], m[1]})
		}
	}
	return render(code, tokens)
}

type lineSpan struct {
	text  string
	start int
}

func splitLinesKeepOffsets(code string) []lineSpan {
	var spans []lineSpan
	pos := 0
	for _, l := range strings.Split(code, "\n") {
		spans = append(spans, lineSpan{text: l, start: pos})
		pos += len(l) + 1
	}
	return spans
}

func overlapsAny(start, end int, tokens []token) bool {
	for _, t := range tokens {
		if start < t.end && end > t.start {
			return true
		}
	}
	return false
}

func render(code string, tokens []token) string {
	if len(tokens) == 0 {
		return code
	}
	for i := 1; i < len(tokens); i++ {
		key := tokens[i]
		j := i - 1
		for j >= 0 && tokens[j].start > key.start {
			tokens[j+1] = tokens[j]
			j--
		}
		tokens[j+1] = key
	}

	var b strings.Builder
	pos := 0
	for _, t := range tokens {
		if t.start > pos {
			b.WriteString(code[pos:t.start])
		}
		b.WriteString(t.color.Sprint(t.text))
		pos = t.end
	}
	if pos < len(code) {
		b.WriteString(code[pos:])
	}
	return b.String()
}
