// Package orchestrator implements the Enhanced Search Orchestrator
// (§4.10): BM25 retrieval, query entity extraction, and strategy
// dispatch (strict/loose/boost/adaptive/none) over the merged result.
package orchestrator

import (
	"context"
	"fmt"
	"sort"

	"github.com/tarunchinta/epsteinai/internal/bm25"
	"github.com/tarunchinta/epsteinai/internal/entity"
	"github.com/tarunchinta/epsteinai/internal/model"
	"github.com/tarunchinta/epsteinai/internal/queryextract"
	"github.com/tarunchinta/epsteinai/internal/scoring"
	"github.com/tarunchinta/epsteinai/internal/store"
)

// bm25CandidatePoolSize is the fixed BM25 retrieval width feeding every
// strategy, per §4.10 step 1.
const bm25CandidatePoolSize = 500

// Strategy names the result-filtering/ranking policy applied after
// lexical retrieval.
type Strategy string

const (
	StrategyStrict   Strategy = "strict"
	StrategyLoose    Strategy = "loose"
	StrategyBoost    Strategy = "boost"
	StrategyAdaptive Strategy = "adaptive"
	StrategyNone     Strategy = "none"
)

// Options configures one search call.
type Options struct {
	TopK            int
	Strategy        Strategy
	MinCandidates   int
	MaxCandidates   int
	ExplicitFilters *model.QueryEntities
}

// Result is the orchestrator's return value: the ranked results plus the
// sub-strategy actually used (meaningful only for StrategyAdaptive).
type Result struct {
	Results      []model.RankedResult
	UsedStrategy Strategy
}

// Orchestrator wires the BM25 index, metadata store, query extractor,
// and scorer into the §4.10 search pipeline.
type Orchestrator struct {
	index     bm25.Index
	metaStore *store.MetadataStore
	extractor *queryextract.Extractor
	scorer    *scoring.Scorer
	matcher   *entity.Matcher
}

// New returns an Orchestrator over the given components.
func New(index bm25.Index, metaStore *store.MetadataStore, extractor *queryextract.Extractor, scorer *scoring.Scorer, matcher *entity.Matcher) *Orchestrator {
	return &Orchestrator{index: index, metaStore: metaStore, extractor: extractor, scorer: scorer, matcher: matcher}
}

// Search runs the full four-step pipeline and returns up to opts.TopK
// ranked results.
func (o *Orchestrator) Search(ctx context.Context, query string, opts Options) (Result, error) {
	if opts.TopK <= 0 {
		return Result{}, fmt.Errorf("orchestrator: top_k must be positive, got %d", opts.TopK)
	}

	// Step 1: lexical retrieval.
	bm25Hits, err := o.index.Search(query, bm25CandidatePoolSize)
	if err != nil {
		return Result{}, fmt.Errorf("orchestrator: bm25 search: %w", err)
	}
	if len(bm25Hits) == 0 {
		return Result{Results: nil, UsedStrategy: opts.Strategy}, nil
	}

	candidates := toRankedResults(bm25Hits)

	// Step 2: entity recognition, merged with explicit filters.
	queryEntities, err := o.extractor.Extract(ctx, query)
	if err != nil {
		return Result{}, fmt.Errorf("orchestrator: query entity extraction: %w", err)
	}
	if opts.ExplicitFilters != nil {
		queryEntities.Merge(*opts.ExplicitFilters)
	}

	noSignal := queryEntities.Empty() && opts.ExplicitFilters == nil
	if noSignal || opts.Strategy == StrategyNone {
		results := truncate(candidates, opts.TopK)
		o.populatePreviews(results)
		return Result{Results: results, UsedStrategy: opts.Strategy}, nil
	}

	// Step 3: strategy dispatch.
	used := opts.Strategy
	var filtered []model.RankedResult
	switch opts.Strategy {
	case StrategyStrict:
		filtered, err = o.applyStrict(candidates, queryEntities)
	case StrategyLoose:
		filtered, err = o.applyLoose(candidates, queryEntities)
	case StrategyBoost:
		filtered = o.applyBoost(candidates, queryEntities)
	case StrategyAdaptive:
		filtered, used, err = o.applyAdaptive(candidates, queryEntities, opts.MinCandidates)
	default:
		return Result{}, fmt.Errorf("orchestrator: unknown strategy %q", opts.Strategy)
	}
	if err != nil {
		return Result{}, err
	}

	o.populateMatchedEntities(filtered, queryEntities)

	// Step 4: cap to max_candidates, truncate to top_k, populate previews.
	filtered = capCandidates(filtered, opts.MaxCandidates)
	results := truncate(filtered, opts.TopK)
	o.populatePreviews(results)
	return Result{Results: results, UsedStrategy: used}, nil
}

// capCandidates bounds results to at most max entries, preserving order.
// max <= 0 means unbounded (the parameter was left unset by the caller).
func capCandidates(results []model.RankedResult, max int) []model.RankedResult {
	if max > 0 && len(results) > max {
		return results[:max]
	}
	return results
}

// populatePreviews fills Preview for every returned result from the BM25
// index's stored raw text (§3, §4.7: preview is a deterministic function
// of raw_text populated by the engine).
func (o *Orchestrator) populatePreviews(results []model.RankedResult) {
	for i := range results {
		if preview, ok := o.index.Preview(results[i].DocID); ok {
			results[i].Preview = preview
		}
	}
}

// populateMatchedEntities fills MatchedEntities for results that a
// non-boost strategy left unset (boost fills it during scoring).
func (o *Orchestrator) populateMatchedEntities(results []model.RankedResult, query model.QueryEntities) {
	for i := range results {
		if !results[i].MatchedEntities.Empty() {
			continue
		}
		meta, ok, err := o.metaStore.Get(results[i].DocID)
		if err != nil || !ok {
			continue
		}
		results[i].MatchedEntities = matchedEntities(query, meta, o.matcher)
	}
}

func (o *Orchestrator) applyStrict(candidates []model.RankedResult, query model.QueryEntities) ([]model.RankedResult, error) {
	ids := candidateIDs(candidates)
	criteria := criteriaFrom(query)
	surviving, err := o.metaStore.FilterFuzzy(ids, criteria, o.matcher)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: strict filter: %w", err)
	}
	keep := toSet(surviving)
	return filterByIDPreserveOrder(candidates, keep), nil
}

func (o *Orchestrator) applyLoose(candidates []model.RankedResult, query model.QueryEntities) ([]model.RankedResult, error) {
	var out []model.RankedResult
	for _, r := range candidates {
		meta, ok, err := o.metaStore.Get(r.DocID)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: loose filter: %w", err)
		}
		if !ok {
			continue // missing metadata => empty sets => never matches (§4.10 failure semantics)
		}
		if o.anyTypeMatches(query, meta) {
			out = append(out, r)
		}
	}
	return out, nil
}

// anyTypeMatches reports whether any query entity of any type
// fuzzy-matches (or, for dates, exactly matches) the document's
// corresponding set, per the loose strategy's semantics.
func (o *Orchestrator) anyTypeMatches(query model.QueryEntities, doc *model.DocumentMetadata) bool {
	if fuzzyAnyMatch(query.People, doc.People, o.matcher) {
		return true
	}
	if fuzzyAnyMatch(query.Organizations, doc.Organizations, o.matcher) {
		return true
	}
	if fuzzyAnyMatch(query.Locations, doc.Locations, o.matcher) {
		return true
	}
	for d := range query.Dates {
		if _, ok := doc.Dates[d]; ok {
			return true
		}
	}
	return false
}

func fuzzyAnyMatch(query, doc map[string]struct{}, matcher *entity.Matcher) bool {
	for q := range query {
		for d := range doc {
			if matcher.FuzzyMatch(q, d) {
				return true
			}
		}
	}
	return false
}

func (o *Orchestrator) applyBoost(candidates []model.RankedResult, query model.QueryEntities) []model.RankedResult {
	out := make([]model.RankedResult, len(candidates))
	copy(out, candidates)

	for i := range out {
		meta, ok, err := o.metaStore.Get(out[i].DocID)
		if err != nil || !ok {
			out[i].MetadataBoost = 0
			out[i].FinalScore = out[i].BM25Score
			continue
		}
		boost := o.scorer.Boost(query, meta)
		out[i].MetadataBoost = boost
		out[i].FinalScore = out[i].BM25Score + boost
		out[i].MatchedEntities = matchedEntities(query, meta, o.matcher)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FinalScore > out[j].FinalScore
	})
	return out
}

func (o *Orchestrator) applyAdaptive(candidates []model.RankedResult, query model.QueryEntities, minCandidates int) ([]model.RankedResult, Strategy, error) {
	strict, err := o.applyStrict(candidates, query)
	if err != nil {
		return nil, StrategyStrict, err
	}
	if len(strict) >= minCandidates {
		return strict, StrategyStrict, nil
	}

	loose, err := o.applyLoose(candidates, query)
	if err != nil {
		return nil, StrategyLoose, err
	}
	if len(loose) >= minCandidates {
		return loose, StrategyLoose, nil
	}

	return o.applyBoost(candidates, query), StrategyBoost, nil
}

func toRankedResults(hits []model.BM25Result) []model.RankedResult {
	out := make([]model.RankedResult, len(hits))
	for i, h := range hits {
		out[i] = model.RankedResult{
			DocID:      h.DocID,
			BM25Score:  h.Score,
			FinalScore: h.Score,
		}
	}
	return out
}

func truncate(results []model.RankedResult, topK int) []model.RankedResult {
	if len(results) > topK {
		return results[:topK]
	}
	return results
}

func candidateIDs(results []model.RankedResult) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.DocID
	}
	return ids
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func filterByIDPreserveOrder(results []model.RankedResult, keep map[string]struct{}) []model.RankedResult {
	out := make([]model.RankedResult, 0, len(results))
	for _, r := range results {
		if _, ok := keep[r.DocID]; ok {
			out = append(out, r)
		}
	}
	return out
}

func criteriaFrom(query model.QueryEntities) store.FilterCriteria {
	return store.FilterCriteria{
		People:        toSlice(query.People),
		Organizations: toSlice(query.Organizations),
		Locations:     toSlice(query.Locations),
	}
}

func toSlice(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	return out
}

func matchedEntities(query model.QueryEntities, doc *model.DocumentMetadata, matcher *entity.Matcher) model.QueryEntities {
	out := model.NewQueryEntities()
	intersectFuzzy(query.People, doc.People, out.People, matcher)
	intersectFuzzy(query.Organizations, doc.Organizations, out.Organizations, matcher)
	intersectFuzzy(query.Locations, doc.Locations, out.Locations, matcher)
	for d := range query.Dates {
		if _, ok := doc.Dates[d]; ok {
			out.Dates[d] = struct{}{}
		}
	}
	return out
}

func intersectFuzzy(query, doc, into map[string]struct{}, matcher *entity.Matcher) {
	for q := range query {
		for d := range doc {
			if matcher.FuzzyMatch(q, d) {
				into[q] = struct{}{}
				break
			}
		}
	}
}
