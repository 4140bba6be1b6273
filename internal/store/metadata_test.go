package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarunchinta/epsteinai/internal/entity"
	"github.com/tarunchinta/epsteinai/internal/model"
)

func newTestStore(t *testing.T) *MetadataStore {
	t.Helper()
	s, err := NewMetadataStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func metaWith(docID string, people, orgs, locs []string, dates ...string) *model.DocumentMetadata {
	m := model.NewDocumentMetadata(docID)
	m.WordCount = 100
	for _, p := range people {
		m.People[p] = struct{}{}
	}
	for _, o := range orgs {
		m.Organizations[o] = struct{}{}
	}
	for _, l := range locs {
		m.Locations[l] = struct{}{}
	}
	for _, d := range dates {
		m.Dates[d] = struct{}{}
	}
	return m
}

func TestPutGet_RoundTrips(t *testing.T) {
	s := newTestStore(t)
	m := metaWith("doc1", []string{"Jeffrey Epstein"}, []string{"Acme Corp"}, []string{"New York"}, "2015-03-01")
	m.Emails["foo@bar.com"] = struct{}{}

	require.NoError(t, s.Put(m))

	got, ok, err := s.Get("doc1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 100, got.WordCount)
	assert.Contains(t, got.People, "Jeffrey Epstein")
	assert.Contains(t, got.Organizations, "Acme Corp")
	assert.Contains(t, got.Locations, "New York")
	assert.Contains(t, got.Dates, "2015-03-01")
	assert.Contains(t, got.Emails, "foo@bar.com")
}

func TestGet_MissingDocument(t *testing.T) {
	s := newTestStore(t)
	_, ok, err := s.Get("nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPut_IsAtomicReplace(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Put(metaWith("doc1", []string{"Alice"}, nil, nil)))
	require.NoError(t, s.Put(metaWith("doc1", []string{"Bob"}, nil, nil)))

	got, ok, err := s.Get("doc1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotContains(t, got.People, "Alice")
	assert.Contains(t, got.People, "Bob")
}

func TestFilter_ANDAcrossTypes_ORWithinType(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Put(metaWith("doc1", []string{"Alice"}, []string{"Acme"}, nil)))
	require.NoError(t, s.Put(metaWith("doc2", []string{"Bob"}, []string{"Acme"}, nil)))
	require.NoError(t, s.Put(metaWith("doc3", []string{"Alice"}, []string{"Globex"}, nil)))

	ids := []string{"doc1", "doc2", "doc3"}

	result, err := s.Filter(ids, FilterCriteria{People: []string{"Alice", "Bob"}, Organizations: []string{"Acme"}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"doc1", "doc2"}, result)
}

func TestFilter_EmptyCriteriaReturnsAllCandidates(t *testing.T) {
	s := newTestStore(t)
	ids := []string{"doc1", "doc2"}
	result, err := s.Filter(ids, FilterCriteria{})
	require.NoError(t, err)
	assert.Equal(t, ids, result)
}

func TestFilter_DateRange(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Put(metaWith("doc1", nil, nil, nil, "2015-01-01")))
	require.NoError(t, s.Put(metaWith("doc2", nil, nil, nil, "2020-01-01")))

	result, err := s.Filter([]string{"doc1", "doc2"}, FilterCriteria{DateRange: &DateRange{Low: "2014-01-01", High: "2016-01-01"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"doc1"}, result)
}

func TestFilterFuzzy_MatchesApproximateNames(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Put(metaWith("doc1", []string{"Jeffrey Epstein"}, nil, nil)))
	require.NoError(t, s.Put(metaWith("doc2", []string{"John Smith"}, nil, nil)))

	matcher := entity.NewMatcher()
	result, err := s.FilterFuzzy([]string{"doc1", "doc2"}, FilterCriteria{People: []string{"Jeffery Epstien"}}, matcher)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc1"}, result)
}

func TestFilterFuzzy_MissingMetadataTreatedAsEmptySet(t *testing.T) {
	s := newTestStore(t)
	matcher := entity.NewMatcher()
	result, err := s.FilterFuzzy([]string{"ghost"}, FilterCriteria{People: []string{"Anyone"}}, matcher)
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestAllEntities_UnionsAcrossDocuments(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Put(metaWith("doc1", []string{"Alice"}, nil, nil)))
	require.NoError(t, s.Put(metaWith("doc2", []string{"Bob"}, nil, nil)))

	all, err := s.AllEntities()
	require.NoError(t, err)
	assert.Contains(t, all[model.EntityPerson], "Alice")
	assert.Contains(t, all[model.EntityPerson], "Bob")
}

func TestFrequencies_CountsDistinctDocuments(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Put(metaWith("doc1", []string{"Alice"}, nil, nil)))
	require.NoError(t, s.Put(metaWith("doc2", []string{"Alice"}, nil, nil)))
	require.NoError(t, s.Put(metaWith("doc3", []string{"Bob"}, nil, nil)))

	freq, err := s.Frequencies(model.EntityPerson)
	require.NoError(t, err)
	assert.Equal(t, 2, freq["Alice"])
	assert.Equal(t, 1, freq["Bob"])
}

func TestCooccurrences_OrderedByCountDescending(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Put(metaWith("doc1", []string{"Alice", "Bob"}, nil, nil)))
	require.NoError(t, s.Put(metaWith("doc2", []string{"Alice", "Bob"}, nil, nil)))
	require.NoError(t, s.Put(metaWith("doc3", []string{"Alice", "Carol"}, nil, nil)))

	pairs, err := s.Cooccurrences("Alice", model.EntityPerson, 10)
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, "Bob", pairs[0].Canonical)
	assert.Equal(t, 2, pairs[0].Count)
	assert.Equal(t, "Carol", pairs[1].Canonical)
	assert.Equal(t, 1, pairs[1].Count)
}

func TestAllDocIDs_ReturnsEveryStoredDocument(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Put(metaWith("doc1", nil, nil, nil)))
	require.NoError(t, s.Put(metaWith("doc2", nil, nil, nil)))

	ids, err := s.AllDocIDs()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"doc1", "doc2"}, ids)
}
