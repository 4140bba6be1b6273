// Package scoring implements the Metadata Scorer (§4.9): a weighted
// boost derived from how many query entities fuzzy-match a document's
// stored metadata.
package scoring

import (
	"github.com/tarunchinta/epsteinai/internal/entity"
	"github.com/tarunchinta/epsteinai/internal/model"
)

// Weights holds the per-entity-type contribution to the boost score.
type Weights struct {
	Person float64
	Loc    float64
	Org    float64
	Date   float64
}

// DefaultWeights mirrors the spec's default w_p=2.0, w_l=1.5, w_o=1.5,
// w_d=1.0.
func DefaultWeights() Weights {
	return Weights{Person: 2.0, Loc: 1.5, Org: 1.5, Date: 1.0}
}

// Scorer computes metadata boosts for documents given a set of query
// entities.
type Scorer struct {
	weights Weights
	matcher *entity.Matcher
}

// New returns a Scorer using the given weights and fuzzy matcher.
func New(weights Weights, matcher *entity.Matcher) *Scorer {
	return &Scorer{weights: weights, matcher: matcher}
}

// Boost computes the unnormalized weighted boost for a document given
// the query's extracted entities and the document's stored metadata:
//
//	boost = w_p*matchCount(people) + w_l*matchCount(locations)
//	      + w_o*matchCount(orgs) + w_d*matchCount(dates)
//
// matchCount counts, for each query entity of a type, whether it
// fuzzy-matches at least one of the document's entities of that type.
func (s *Scorer) Boost(query model.QueryEntities, doc *model.DocumentMetadata) float64 {
	if doc == nil {
		return 0
	}
	var boost float64
	boost += s.weights.Person * s.matchCount(query.People, doc.People)
	boost += s.weights.Loc * s.matchCount(query.Locations, doc.Locations)
	boost += s.weights.Org * s.matchCount(query.Organizations, doc.Organizations)
	boost += s.weights.Date * float64(exactMatchCount(query.Dates, doc.Dates))
	return boost
}

// NormalizedBoost rescales Boost into [0, 1] by dividing by the maximum
// possible boost for the given query (every query entity matching).
func (s *Scorer) NormalizedBoost(query model.QueryEntities, doc *model.DocumentMetadata) float64 {
	max := s.weights.Person*float64(len(query.People)) +
		s.weights.Loc*float64(len(query.Locations)) +
		s.weights.Org*float64(len(query.Organizations)) +
		s.weights.Date*float64(len(query.Dates))
	if max == 0 {
		return 0
	}
	return s.Boost(query, doc) / max
}

func (s *Scorer) matchCount(querySet, docSet map[string]struct{}) float64 {
	var count float64
	for q := range querySet {
		for d := range docSet {
			if s.matcher.FuzzyMatch(q, d) {
				count++
				break
			}
		}
	}
	return count
}

// exactMatchCount counts query dates present verbatim in the document's
// date set: dates are surface strings, not fuzzy-compared.
func exactMatchCount(querySet, docSet map[string]struct{}) int {
	var count int
	for q := range querySet {
		if _, ok := docSet[q]; ok {
			count++
		}
	}
	return count
}
