package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tarunchinta/epsteinai/internal/model"
)

// S2 — Validator rejection.
func TestValidateS2Scenario(t *testing.T) {
	candidates := []string{"Jeffrey Epstein", "%%", "Page 33", `","textStyle":`, "ALLCAPSCORP"}
	var kept []string
	for _, c := range candidates {
		if Validate(c, model.EntityPerson) {
			kept = append(kept, c)
		}
	}
	assert.Equal(t, []string{"Jeffrey Epstein"}, kept)
}

func TestValidateLengthBounds(t *testing.T) {
	assert.False(t, Validate("ab", model.EntityPerson))
	assert.False(t, Validate(stringRepeat("a", 101), model.EntityPerson))
	assert.True(t, Validate("Abe", model.EntityPerson))
}

func TestValidateRejectsBracketsAndDates(t *testing.T) {
	assert.False(t, Validate("{json}", model.EntityOrg))
	assert.False(t, Validate("01-02-2020 meeting", model.EntityLoc))
}

func TestValidateRejectsPureDigitsAndSymbolBlock(t *testing.T) {
	assert.False(t, Validate("123456", model.EntityOrg))
	assert.False(t, Validate("%%% corp", model.EntityOrg))
}

func TestValidateRejectsHTMLEntitiesAndNewline(t *testing.T) {
	assert.False(t, Validate("Foo&nbsp;Bar", model.EntityOrg))
	assert.False(t, Validate("Foo\nBar", model.EntityOrg))
}

func TestValidateRejectsWeekdayAndMonth(t *testing.T) {
	assert.False(t, Validate("Monday", model.EntityPerson))
	assert.False(t, Validate("January", model.EntityPerson))
}

func TestValidatePersonAllCaps(t *testing.T) {
	assert.False(t, Validate("ALLCAPSCORP", model.EntityPerson))
	assert.True(t, Validate("ABC", model.EntityPerson)) // 3 chars, not > 5
}

func TestValidateOrgPunctuationRatio(t *testing.T) {
	assert.True(t, Validate("AT&T Corp", model.EntityOrg))
	assert.False(t, Validate("!!!@@@###$$$", model.EntityOrg))
}

func TestValidateLocSymbolPrefix(t *testing.T) {
	assert.False(t, Validate("&Paris District", model.EntityLoc))
	assert.True(t, Validate("Paris", model.EntityLoc))
}

// Property 4: validator purity.
func TestValidatePurity(t *testing.T) {
	got1 := Validate("Jeffrey Epstein", model.EntityPerson)
	got2 := Validate("Jeffrey Epstein", model.EntityPerson)
	assert.Equal(t, got1, got2)
}

func stringRepeat(s string, n int) string {
	out := make([]byte, 0, len(s)*n)
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}
