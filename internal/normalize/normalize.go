// Package normalize implements the text-cleaning and tokenization rules
// shared by the BM25 engine and the metadata extractor.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Clean strips control characters (keeping newline and tab), collapses
// runs of horizontal whitespace to a single space, and collapses three or
// more consecutive newlines down to two. It never fails.
func Clean(s string) string {
	s = norm.NFC.String(s)

	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\t' {
			sb.WriteRune(r)
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		sb.WriteRune(r)
	}
	cleaned := sb.String()

	cleaned = collapseHorizontalWhitespace(cleaned)
	cleaned = collapseNewlines(cleaned)
	return cleaned
}

func collapseHorizontalWhitespace(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	prevSpace := false
	for _, r := range s {
		if r == '\n' {
			sb.WriteRune(r)
			prevSpace = false
			continue
		}
		if unicode.IsSpace(r) {
			if !prevSpace {
				sb.WriteRune(' ')
			}
			prevSpace = true
			continue
		}
		prevSpace = false
		sb.WriteRune(r)
	}
	return sb.String()
}

func collapseNewlines(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	blankRun := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			blankRun++
			if blankRun <= 2 {
				out = append(out, "")
			}
			continue
		}
		blankRun = 0
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// minTokenLength is the shortest token kept by Tokenize.
const minTokenLength = 2

// Tokenize lowercases s, substitutes every non-alphanumeric, non-underscore
// rune with whitespace, splits on whitespace, and discards tokens shorter
// than minTokenLength. Deterministic, no failure modes.
func Tokenize(s string) []string {
	s = norm.NFC.String(strings.ToLower(s))

	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			sb.WriteRune(r)
		} else {
			sb.WriteRune(' ')
		}
	}

	fields := strings.Fields(sb.String())
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) >= minTokenLength {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
