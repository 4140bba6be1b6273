// Package entity implements the two pure, deterministic building blocks
// the rest of the engine shares for working with named-entity surface
// forms: a validator that rejects noisy NER output, and a fuzzy matcher
// used for consolidation, scoring, and query-time lookup.
package entity

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/tarunchinta/epsteinai/internal/model"
)

var (
	leadingDatePattern = regexp.MustCompile(`^\d{2}-\d{2}-\d{4}`)
	leadingSymbolBlock = regexp.MustCompile(`^[%&@#$]+`)
	pureDigits         = regexp.MustCompile(`^\d+$`)

	bracketChars = "{}[]<>"

	htmlEntities = []string{"&lt;", "&gt;", "&nbsp;", "&amp;", "&quot;", "&#39;"}

	structuredDataKeys = []string{"textStyle", "layout", "identifier"}

	weekdays = map[string]struct{}{
		"monday": {}, "tuesday": {}, "wednesday": {}, "thursday": {},
		"friday": {}, "saturday": {}, "sunday": {},
		"mon": {}, "tue": {}, "wed": {}, "thu": {}, "fri": {}, "sat": {}, "sun": {},
	}
	months = map[string]struct{}{
		"january": {}, "february": {}, "march": {}, "april": {}, "may": {},
		"june": {}, "july": {}, "august": {}, "september": {}, "october": {},
		"november": {}, "december": {},
		"jan": {}, "feb": {}, "mar": {}, "apr": {}, "jun": {}, "jul": {},
		"aug": {}, "sep": {}, "sept": {}, "oct": {}, "nov": {}, "dec": {},
	}

	personStopWords = map[string]struct{}{
		"the": {}, "and": {}, "page": {}, "chapter": {}, "section": {},
	}
)

// Validate reports whether surface form s is plausibly a real named
// entity of type t, applying §4.2's rejection rules. It is pure and never
// raises.
func Validate(s string, t model.EntityType) bool {
	if !lengthOK(s) {
		return false
	}
	if containsAny(s, bracketChars) {
		return false
	}
	if leadingDatePattern.MatchString(s) {
		return false
	}
	if leadingSymbolBlock.MatchString(s) {
		return false
	}
	if pureDigits.MatchString(s) {
		return false
	}
	if containsStructuredDataKey(s) {
		return false
	}
	if containsHTMLEntity(s) || strings.Contains(s, "\n") {
		return false
	}
	if isDayOrMonthToken(s) {
		return false
	}
	if !hasAlphabetic(s) {
		return false
	}

	switch t {
	case model.EntityPerson:
		if !validPerson(s) {
			return false
		}
	case model.EntityOrg:
		if !validOrg(s) {
			return false
		}
	case model.EntityLoc:
		if !validLoc(s) {
			return false
		}
	}

	return true
}

func lengthOK(s string) bool {
	n := len([]rune(s))
	return n >= 3 && n <= 100
}

func containsAny(s, chars string) bool {
	return strings.ContainsAny(s, chars)
}

func containsStructuredDataKey(s string) bool {
	for _, key := range structuredDataKeys {
		if strings.Contains(s, key) {
			return true
		}
	}
	return false
}

func containsHTMLEntity(s string) bool {
	lower := strings.ToLower(s)
	for _, e := range htmlEntities {
		if strings.Contains(lower, e) {
			return true
		}
	}
	return false
}

func isDayOrMonthToken(s string) bool {
	lower := strings.ToLower(strings.TrimSpace(s))
	if _, ok := weekdays[lower]; ok {
		return true
	}
	if _, ok := months[lower]; ok {
		return true
	}
	return false
}

func hasAlphabetic(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func validPerson(s string) bool {
	if len([]rune(s)) > 5 && isAllUpper(s) {
		return false
	}
	for _, word := range strings.Fields(strings.ToLower(s)) {
		if _, ok := personStopWords[word]; ok {
			return false
		}
	}
	return true
}

func isAllUpper(s string) bool {
	sawLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			sawLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return sawLetter
}

func validOrg(s string) bool {
	total := len([]rune(s))
	if total == 0 {
		return false
	}
	nonAlnumNonSpace := 0
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			nonAlnumNonSpace++
		}
	}
	return float64(nonAlnumNonSpace)/float64(total) <= 0.30
}

func validLoc(s string) bool {
	first := []rune(s)[0]
	if strings.ContainsRune("&%#@", first) {
		return false
	}
	count := 0
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || r == '-' || r == '.' {
			continue
		}
		count++
	}
	return count <= 2
}
