package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeStripsHonorificsAndInitials(t *testing.T) {
	assert.Equal(t, "maxwell", Normalize("G. Maxwell"))
	assert.Equal(t, "maxwell", Normalize("Dr. Maxwell"))
	assert.Equal(t, "united states", Normalize("The United States"))
}

func TestFuzzyMatchExactAndSubstring(t *testing.T) {
	m := NewMatcher()
	assert.True(t, m.FuzzyMatch("Jeffrey Epstein", "jeffrey epstein"))
	assert.True(t, m.FuzzyMatch("Epstein", "Jeffrey Epstein"))
}

func TestFuzzyMatchRatioThreshold(t *testing.T) {
	m := NewMatcher()
	assert.True(t, m.FuzzyMatch("Ghislaine Maxwell", "Ghislaine Maxwel"))
	assert.False(t, m.FuzzyMatch("Ghislaine Maxwell", "John Smith"))
}

// Property 5: matcher symmetry.
func TestFuzzyMatchSymmetry(t *testing.T) {
	m := NewMatcher()
	pairs := [][2]string{
		{"Jeffrey Epstein", "epstein"},
		{"United States", "U.S."},
		{"Alan Dershowitz", "Dershowitz"},
	}
	for _, p := range pairs {
		assert.Equal(t, m.FuzzyMatch(p[0], p[1]), m.FuzzyMatch(p[1], p[0]))
	}
}

func TestFuzzyMatchReflexiveForNonEmpty(t *testing.T) {
	m := NewMatcher()
	assert.True(t, m.FuzzyMatch("Maxwell", "Maxwell"))
}

func TestMatchAny(t *testing.T) {
	m := NewMatcher()
	query := map[string]struct{}{"Maxwell": {}}
	doc := map[string]struct{}{"Ghislaine Maxwell": {}, "Paris": {}}
	assert.True(t, m.MatchAny(query, doc))

	doc2 := map[string]struct{}{"Paris": {}}
	assert.False(t, m.MatchAny(query, doc2))
}

func TestMatchScore(t *testing.T) {
	m := NewMatcher()
	query := map[string]struct{}{"Maxwell": {}, "Paris": {}}
	doc := map[string]struct{}{"Ghislaine Maxwell": {}}
	assert.InDelta(t, 0.5, m.MatchScore(query, doc), 0.001)

	assert.Equal(t, 0.0, m.MatchScore(map[string]struct{}{}, doc))
}
