package bm25

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarunchinta/epsteinai/internal/model"
)

func s1Docs() []model.Document {
	return []model.Document{
		{ID: "d1", RawText: "Jeffrey Epstein met with Maxwell in Paris."},
		{ID: "d2", RawText: "Flight logs show trips to Paris and London."},
		{ID: "d3", RawText: "Maxwell sent emails about financial transactions."},
	}
}

// S1 — Lexical only.
func TestSearchS1Scenario(t *testing.T) {
	e := NewEngine(DefaultConfig())
	require.NoError(t, e.Build(s1Docs()))

	results, err := e.Search("Maxwell Paris", 5)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "d1", results[0].DocID)
	assert.Greater(t, results[0].Score, 0.0)

	byID := map[string]float64{}
	for _, r := range results {
		byID[r.DocID] = r.Score
	}
	assert.Greater(t, byID["d1"], byID["d2"])
	assert.Greater(t, byID["d1"], byID["d3"])
}

func TestSearchEmptyQueryReturnsEmpty(t *testing.T) {
	e := NewEngine(DefaultConfig())
	require.NoError(t, e.Build(s1Docs()))
	results, err := e.Search("!!!", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchStableTieBreakByDocID(t *testing.T) {
	docs := []model.Document{
		{ID: "z1", RawText: "apple banana"},
		{ID: "a1", RawText: "apple banana"},
	}
	e := NewEngine(DefaultConfig())
	require.NoError(t, e.Build(docs))
	results, err := e.Search("apple banana", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a1", results[0].DocID)
	assert.InDelta(t, results[0].Score, results[1].Score, 1e-9)
}

// Property 2: BM25 monotonicity — adding a document containing only terms
// absent from the query does not change relative ordering of previously
// returned results.
func TestMonotonicityUnderIrrelevantAddition(t *testing.T) {
	e := NewEngine(DefaultConfig())
	require.NoError(t, e.Build(s1Docs()))
	before, err := e.Search("Maxwell Paris", 10)
	require.NoError(t, err)

	docsPlus := append(append([]model.Document{}, s1Docs()...),
		model.Document{ID: "d4", RawText: "Completely unrelated zoology botany chemistry."})
	require.NoError(t, e.Build(docsPlus))
	after, err := e.Search("Maxwell Paris", 10)
	require.NoError(t, err)

	var beforeOrder, afterOrder []string
	for _, r := range before {
		beforeOrder = append(beforeOrder, r.DocID)
	}
	for _, r := range after {
		if r.DocID != "d4" {
			afterOrder = append(afterOrder, r.DocID)
		}
	}
	assert.Equal(t, beforeOrder, afterOrder)
}

// Property 1: determinism.
func TestSearchDeterministic(t *testing.T) {
	e := NewEngine(DefaultConfig())
	require.NoError(t, e.Build(s1Docs()))
	r1, err := e.Search("Maxwell Paris", 5)
	require.NoError(t, err)
	r2, err := e.Search("Maxwell Paris", 5)
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short text", Preview("short text"))
	long := make([]byte, 250)
	for i := range long {
		long[i] = 'a'
	}
	p := Preview(string(long))
	assert.True(t, len(p) == 203) // 200 chars + "..."
	assert.Equal(t, "...", p[200:])
}

func TestStats(t *testing.T) {
	e := NewEngine(DefaultConfig())
	require.NoError(t, e.Build(s1Docs()))
	stats := e.Stats()
	assert.Equal(t, 3, stats.DocumentCount)
	assert.Greater(t, stats.TermCount, 0)
	assert.Greater(t, stats.AvgDocLength, 0.0)
}
