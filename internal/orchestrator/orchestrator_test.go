package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarunchinta/epsteinai/internal/bm25"
	"github.com/tarunchinta/epsteinai/internal/entity"
	"github.com/tarunchinta/epsteinai/internal/model"
	"github.com/tarunchinta/epsteinai/internal/ner"
	"github.com/tarunchinta/epsteinai/internal/queryextract"
	"github.com/tarunchinta/epsteinai/internal/scoring"
	"github.com/tarunchinta/epsteinai/internal/store"
)

type noopRecognizer struct{}

func (noopRecognizer) Extract(ctx context.Context, text string) ([]ner.Span, error) {
	return nil, nil
}

func buildFixture(t *testing.T, docs []model.Document, metas []*model.DocumentMetadata) (*Orchestrator, *bm25.Engine, *store.MetadataStore) {
	t.Helper()

	idx := bm25.NewEngine(bm25.DefaultConfig())
	require.NoError(t, idx.Build(docs))

	metaStore, err := store.NewMetadataStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = metaStore.Close() })
	for _, m := range metas {
		require.NoError(t, metaStore.Put(m))
	}

	lookup := model.NewEntityLookupIndex()
	for _, m := range metas {
		for name := range m.People {
			lookup.Add(entity.Normalize(name), model.LookupKey{Canonical: name, Type: model.EntityPerson})
		}
	}

	extractor := queryextract.New(noopRecognizer{}, lookup, queryextract.CanonicalNames{ByType: map[model.EntityType][]string{}}, 2000)
	matcher := entity.NewMatcher()
	scorer := scoring.New(scoring.DefaultWeights(), matcher)

	return New(idx, metaStore, extractor, scorer, matcher), idx, metaStore
}

func TestSearch_NoEntitiesReturnsBM25Unfiltered(t *testing.T) {
	docs := []model.Document{
		{ID: "doc1", RawText: "epstein investigation files about finance"},
		{ID: "doc2", RawText: "unrelated weather report"},
	}
	o, _, _ := buildFixture(t, docs, nil)

	result, err := o.Search(context.Background(), "finance", Options{TopK: 10, Strategy: StrategyAdaptive, MinCandidates: 50, MaxCandidates: 100})
	require.NoError(t, err)
	require.Len(t, result.Results, 1)
	assert.Equal(t, "doc1", result.Results[0].DocID)
}

func TestSearch_ZeroBM25HitsReturnsEmpty(t *testing.T) {
	docs := []model.Document{{ID: "doc1", RawText: "hello world"}}
	o, _, _ := buildFixture(t, docs, nil)

	result, err := o.Search(context.Background(), "zzzznotpresent", Options{TopK: 10, Strategy: StrategyNone})
	require.NoError(t, err)
	assert.Empty(t, result.Results)
}

func TestSearch_StrictFiltersOnExplicitPersonFilter(t *testing.T) {
	docs := []model.Document{
		{ID: "doc1", RawText: "meeting notes about travel plans"},
		{ID: "doc2", RawText: "meeting notes about travel plans again"},
	}
	meta1 := model.NewDocumentMetadata("doc1")
	meta1.People["Jeffrey Epstein"] = struct{}{}
	meta2 := model.NewDocumentMetadata("doc2")
	meta2.People["Someone Else"] = struct{}{}

	o, _, _ := buildFixture(t, docs, []*model.DocumentMetadata{meta1, meta2})

	filters := model.NewQueryEntities()
	filters.People["Jeffrey Epstein"] = struct{}{}

	result, err := o.Search(context.Background(), "meeting notes", Options{
		TopK: 10, Strategy: StrategyStrict, ExplicitFilters: &filters,
	})
	require.NoError(t, err)
	require.Len(t, result.Results, 1)
	assert.Equal(t, "doc1", result.Results[0].DocID)
}

func TestSearch_BoostReordersByFinalScore(t *testing.T) {
	docs := []model.Document{
		{ID: "doc1", RawText: "travel plans travel plans"},
		{ID: "doc2", RawText: "travel plans"},
	}
	meta2 := model.NewDocumentMetadata("doc2")
	meta2.People["Jeffrey Epstein"] = struct{}{}

	o, _, _ := buildFixture(t, docs, []*model.DocumentMetadata{model.NewDocumentMetadata("doc1"), meta2})

	filters := model.NewQueryEntities()
	filters.People["Jeffrey Epstein"] = struct{}{}

	result, err := o.Search(context.Background(), "travel plans", Options{
		TopK: 10, Strategy: StrategyBoost, ExplicitFilters: &filters,
	})
	require.NoError(t, err)
	require.Len(t, result.Results, 2)
	assert.Equal(t, "doc2", result.Results[0].DocID) // boosted past doc1's higher raw BM25 score
}

func TestSearch_AdaptiveFallsBackThroughChain(t *testing.T) {
	docs := []model.Document{
		{ID: "doc1", RawText: "travel plans to new york"},
		{ID: "doc2", RawText: "travel plans to boston"},
	}
	meta1 := model.NewDocumentMetadata("doc1")
	meta1.People["Jeffrey Epstein"] = struct{}{}

	o, _, _ := buildFixture(t, docs, []*model.DocumentMetadata{meta1})

	filters := model.NewQueryEntities()
	filters.People["Jeffrey Epstein"] = struct{}{}

	result, err := o.Search(context.Background(), "travel plans", Options{
		TopK: 10, Strategy: StrategyAdaptive, MinCandidates: 50, MaxCandidates: 100, ExplicitFilters: &filters,
	})
	require.NoError(t, err)
	assert.Equal(t, StrategyBoost, result.UsedStrategy)
	assert.Len(t, result.Results, 2)
}

func TestSearch_PopulatesPreviewFromIndex(t *testing.T) {
	docs := []model.Document{
		{ID: "doc1", RawText: "epstein investigation files about finance"},
	}
	o, idx, _ := buildFixture(t, docs, nil)

	result, err := o.Search(context.Background(), "finance", Options{TopK: 10, Strategy: StrategyNone})
	require.NoError(t, err)
	require.Len(t, result.Results, 1)

	want, ok := idx.Preview("doc1")
	require.True(t, ok)
	assert.NotEmpty(t, result.Results[0].Preview)
	assert.Equal(t, want, result.Results[0].Preview)
}

func TestSearch_BoostCapsToMaxCandidates(t *testing.T) {
	docs := []model.Document{
		{ID: "doc1", RawText: "travel plans to new york"},
		{ID: "doc2", RawText: "travel plans to boston"},
		{ID: "doc3", RawText: "travel plans to chicago"},
	}
	meta1 := model.NewDocumentMetadata("doc1")
	meta1.People["Jeffrey Epstein"] = struct{}{}

	o, _, _ := buildFixture(t, docs, []*model.DocumentMetadata{meta1})

	filters := model.NewQueryEntities()
	filters.People["Jeffrey Epstein"] = struct{}{}

	result, err := o.Search(context.Background(), "travel plans", Options{
		TopK: 10, Strategy: StrategyBoost, MaxCandidates: 2, ExplicitFilters: &filters,
	})
	require.NoError(t, err)
	assert.Len(t, result.Results, 2) // capped below top_k by max_candidates
	assert.Equal(t, "doc1", result.Results[0].DocID)
}

func TestSearch_MissingMetadataTreatedAsEmptySets(t *testing.T) {
	docs := []model.Document{{ID: "doc1", RawText: "travel plans"}}
	o, _, _ := buildFixture(t, docs, nil) // no metadata stored for doc1

	filters := model.NewQueryEntities()
	filters.People["Jeffrey Epstein"] = struct{}{}

	result, err := o.Search(context.Background(), "travel plans", Options{
		TopK: 10, Strategy: StrategyStrict, ExplicitFilters: &filters,
	})
	require.NoError(t, err)
	assert.Empty(t, result.Results)
}
