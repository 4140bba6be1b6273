package ner

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/tarunchinta/epsteinai/internal/model"
)

var orgSuffixes = []string{
	"Inc", "Inc.", "Corp", "Corp.", "Corporation", "LLC", "L.L.C.",
	"Foundation", "Department", "Bureau", "Company", "Co.", "Association",
	"Agency", "Committee", "Office", "Group", "Ltd", "Ltd.",
}

var gazetteerLocations = map[string]struct{}{
	"paris": {}, "london": {}, "new york": {}, "washington": {},
	"florida": {}, "palm beach": {}, "manhattan": {}, "little st. james": {},
	"united states": {}, "united kingdom": {}, "france": {},
}

var titleCasedRun = regexp.MustCompile(`\b([A-Z][a-zA-Z.&']*(?:\s+[A-Z][a-zA-Z.&']*)*)\b`)

// PatternRecognizer is a deterministic, dependency-free stand-in for a
// real NER model: it flags runs of title-cased words as PERSON, runs
// whose last word is a known organizational suffix as ORG, and
// matches against a small closed gazetteer for LOC/GPE. It never errors
// and never makes a network call, so the engine is runnable and testable
// offline; swap in a model-backed Recognizer for production extraction
// quality.
type PatternRecognizer struct{}

// NewPatternRecognizer returns a PatternRecognizer.
func NewPatternRecognizer() *PatternRecognizer {
	return &PatternRecognizer{}
}

// Extract implements Recognizer.
func (p *PatternRecognizer) Extract(_ context.Context, text string) ([]Span, error) {
	var spans []Span

	locs := matchGazetteer(text)
	spans = append(spans, locs...)

	matches := titleCasedRun.FindAllStringIndex(text, -1)
	for _, m := range matches {
		start, end := m[0], m[1]
		surface := text[start:end]
		if overlapsAny(start, end, locs) {
			continue
		}
		typ := model.EntityPerson
		if endsWithOrgSuffix(surface) {
			typ = model.EntityOrg
		}
		if countWords(surface) >= 1 {
			spans = append(spans, Span{Text: surface, Type: typ, Start: start, End: end})
		}
	}

	return spans, nil
}

func matchGazetteer(text string) []Span {
	var spans []Span
	lower := strings.ToLower(text)
	for loc := range gazetteerLocations {
		idx := 0
		for {
			pos := strings.Index(lower[idx:], loc)
			if pos < 0 {
				break
			}
			start := idx + pos
			end := start + len(loc)
			spans = append(spans, Span{Text: text[start:end], Type: model.EntityLoc, Start: start, End: end})
			idx = end
		}
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })
	return spans
}

func overlapsAny(start, end int, spans []Span) bool {
	for _, s := range spans {
		if start < s.End && end > s.Start {
			return true
		}
	}
	return false
}

func endsWithOrgSuffix(surface string) bool {
	words := strings.Fields(surface)
	if len(words) == 0 {
		return false
	}
	last := words[len(words)-1]
	for _, suffix := range orgSuffixes {
		if last == suffix {
			return true
		}
	}
	return false
}

func countWords(s string) int {
	n := 0
	inWord := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			inWord = false
			continue
		}
		if !inWord {
			n++
			inWord = true
		}
	}
	return n
}
