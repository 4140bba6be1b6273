// Package queryextract implements the Query Entity Extractor (§4.8):
// three tiers (NER, lookup, bounded substring scan) combined by union
// into a QueryEntities.
package queryextract

import (
	"context"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tarunchinta/epsteinai/internal/entity"
	"github.com/tarunchinta/epsteinai/internal/model"
	"github.com/tarunchinta/epsteinai/internal/ner"
)

// substringCacheSize bounds the per-process cache of substring-tier
// results keyed by query text, amortizing repeated queries against the
// ≤150ms performance contract.
const substringCacheSize = 1024

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "in": {}, "on": {}, "at": {},
	"to": {}, "from": {}, "by": {}, "about": {}, "investigation": {},
	"case": {}, "documents": {}, "files": {},
}

// CanonicalNames holds the corpus's canonical names per entity type, in
// frequency-descending order, used to bound the substring tier's scan
// to the most-frequent entries per type.
type CanonicalNames struct {
	ByType map[model.EntityType][]string
}

// Extractor runs the three-tier query entity extraction.
type Extractor struct {
	recognizer   ner.Recognizer
	lookup       *model.EntityLookupIndex
	names        CanonicalNames
	substringCap int

	substringCache *lru.Cache[string, model.QueryEntities]
}

// New returns an Extractor. substringCap bounds the per-type scan size
// of the substring tier (spec default 2000).
func New(recognizer ner.Recognizer, lookup *model.EntityLookupIndex, names CanonicalNames, substringCap int) *Extractor {
	cache, _ := lru.New[string, model.QueryEntities](substringCacheSize)
	return &Extractor{
		recognizer:     recognizer,
		lookup:         lookup,
		names:          names,
		substringCap:   substringCap,
		substringCache: cache,
	}
}

// Extract returns the union of the NER, lookup, and substring tiers for
// query.
func (e *Extractor) Extract(ctx context.Context, query string) (model.QueryEntities, error) {
	result := model.NewQueryEntities()

	nerEntities, err := e.nerTier(ctx, query)
	if err != nil {
		return result, err
	}
	result.Merge(nerEntities)

	tokens := queryTokens(query)
	result.Merge(e.lookupTier(tokens))
	result.Merge(e.substringTier(query, tokens))

	return result, nil
}

// nerTier feeds the raw query to the same recognizer used for documents
// and keeps validated PERSON/ORG/LOC spans.
func (e *Extractor) nerTier(ctx context.Context, query string) (model.QueryEntities, error) {
	out := model.NewQueryEntities()
	spans, err := e.recognizer.Extract(ctx, query)
	if err != nil {
		return out, err
	}
	for _, span := range spans {
		if !entity.Validate(span.Text, span.Type) {
			continue
		}
		if set := out.SetFor(span.Type); set != nil {
			set[span.Text] = struct{}{}
		}
	}
	return out, nil
}

// lookupTier resolves each remaining token through the EntityLookupIndex.
func (e *Extractor) lookupTier(tokens []string) model.QueryEntities {
	out := model.NewQueryEntities()
	for _, tok := range tokens {
		if len(tok) < 3 {
			continue
		}
		normalized := entity.Normalize(tok)
		for _, key := range e.lookup.Lookup(normalized) {
			if set := out.SetFor(key.Type); set != nil {
				set[key.Canonical] = struct{}{}
			}
		}
	}
	return out
}

// substringTier scans the bounded, most-frequent canonical names per
// type for a token-as-substring match, first match wins per token.
// Results are memoized per full query string.
func (e *Extractor) substringTier(query string, tokens []string) model.QueryEntities {
	if cached, ok := e.substringCache.Get(query); ok {
		return cached
	}

	out := model.NewQueryEntities()
	for _, tok := range tokens {
		if len(tok) < 4 {
			continue
		}
		for t, names := range e.names.ByType {
			set := out.SetFor(t)
			if set == nil {
				continue
			}
			bound := len(names)
			if e.substringCap >= 0 && bound > e.substringCap {
				bound = e.substringCap
			}
			for _, canonical := range names[:bound] {
				if _, already := set[canonical]; already {
					continue
				}
				if strings.Contains(strings.ToLower(canonical), tok) {
					set[canonical] = struct{}{}
					break
				}
			}
		}
	}

	e.substringCache.Add(query, out)
	return out
}

// queryTokens tokenizes on whitespace, lowercases, and drops tokens
// shorter than 3 characters or in the stop-word set.
func queryTokens(query string) []string {
	fields := strings.Fields(query)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		tok := strings.ToLower(f)
		if len(tok) < 3 {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		out = append(out, tok)
	}
	return out
}
