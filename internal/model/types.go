// Package model defines the shared data types that flow between the
// retrieval engine's components: documents, tokens, entity metadata,
// queries, and ranked results.
package model

// EntityType identifies the category of a named entity.
type EntityType string

const (
	EntityPerson EntityType = "PERSON"
	EntityOrg    EntityType = "ORG"
	EntityLoc    EntityType = "LOC"
)

// Document is an immutable corpus entry.
type Document struct {
	ID           string
	Filename     string
	RawText      string
	ByteEncoding string
}

// TokenizedDocument is the token-stream view of a Document used to build
// the BM25 index. Order is preserved even though BM25 only consumes
// multiset (bag-of-words) semantics.
type TokenizedDocument struct {
	DocID  string
	Tokens []string
}

// DocumentMetadata is the per-document set of canonicalized entities
// produced by extraction and consolidation.
type DocumentMetadata struct {
	DocID         string
	WordCount     int
	People        map[string]struct{}
	Organizations map[string]struct{}
	Locations     map[string]struct{}
	Dates         map[string]struct{}
	Emails        map[string]struct{}
}

// NewDocumentMetadata returns an empty DocumentMetadata for docID.
func NewDocumentMetadata(docID string) *DocumentMetadata {
	return &DocumentMetadata{
		DocID:         docID,
		People:        map[string]struct{}{},
		Organizations: map[string]struct{}{},
		Locations:     map[string]struct{}{},
		Dates:         map[string]struct{}{},
		Emails:        map[string]struct{}{},
	}
}

// SetFor returns the mutable entity-name set for the given type.
// Dates and emails are not typed entities and are not reachable here.
func (m *DocumentMetadata) SetFor(t EntityType) map[string]struct{} {
	switch t {
	case EntityPerson:
		return m.People
	case EntityOrg:
		return m.Organizations
	case EntityLoc:
		return m.Locations
	default:
		return nil
	}
}

// CanonicalName is the preferred surface form selected by consolidation
// to represent a group of variants referring to the same real entity.
type CanonicalName = string

// ConsolidationGroup maps a set of surface-form variants onto a single
// canonical name within one entity type.
type ConsolidationGroup struct {
	Canonical CanonicalName
	Type      EntityType
	Variants  map[string]struct{}
	// DocIDs is the union (not sum) of the contributing variants' document sets.
	DocIDs map[string]struct{}
}

// EntityLookupIndex maps a normalized surface form to the set of
// (CanonicalName, EntityType) pairs it can resolve to. Built from the
// union of canonical names and their consolidation variants.
type EntityLookupIndex struct {
	entries map[string]map[LookupKey]struct{}
}

// LookupKey identifies one canonical name within one entity type.
type LookupKey struct {
	Canonical CanonicalName
	Type      EntityType
}

// NewEntityLookupIndex returns an empty lookup index.
func NewEntityLookupIndex() *EntityLookupIndex {
	return &EntityLookupIndex{entries: map[string]map[LookupKey]struct{}{}}
}

// Add associates normalizedForm with the given canonical/type pair.
func (idx *EntityLookupIndex) Add(normalizedForm string, key LookupKey) {
	if idx.entries[normalizedForm] == nil {
		idx.entries[normalizedForm] = map[LookupKey]struct{}{}
	}
	idx.entries[normalizedForm][key] = struct{}{}
}

// Lookup returns the set of (canonical, type) pairs registered for
// normalizedForm, or nil if none.
func (idx *EntityLookupIndex) Lookup(normalizedForm string) []LookupKey {
	set, ok := idx.entries[normalizedForm]
	if !ok {
		return nil
	}
	out := make([]LookupKey, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

// QueryEntities is the subset of typed entities inferred from a query.
type QueryEntities struct {
	People        map[string]struct{}
	Organizations map[string]struct{}
	Locations     map[string]struct{}
	Dates         map[string]struct{}
}

// NewQueryEntities returns an empty QueryEntities.
func NewQueryEntities() QueryEntities {
	return QueryEntities{
		People:        map[string]struct{}{},
		Organizations: map[string]struct{}{},
		Locations:     map[string]struct{}{},
		Dates:         map[string]struct{}{},
	}
}

// SetFor returns the mutable entity-name set for the given type.
func (q *QueryEntities) SetFor(t EntityType) map[string]struct{} {
	switch t {
	case EntityPerson:
		return q.People
	case EntityOrg:
		return q.Organizations
	case EntityLoc:
		return q.Locations
	default:
		return nil
	}
}

// Empty reports whether every entity set (including dates) is empty.
func (q *QueryEntities) Empty() bool {
	return len(q.People) == 0 && len(q.Organizations) == 0 &&
		len(q.Locations) == 0 && len(q.Dates) == 0
}

// Merge folds other into q, unioning every set.
func (q *QueryEntities) Merge(other QueryEntities) {
	for v := range other.People {
		q.People[v] = struct{}{}
	}
	for v := range other.Organizations {
		q.Organizations[v] = struct{}{}
	}
	for v := range other.Locations {
		q.Locations[v] = struct{}{}
	}
	for v := range other.Dates {
		q.Dates[v] = struct{}{}
	}
}

// RankedResult is a single scored document returned from search.
type RankedResult struct {
	DocID           string
	BM25Score       float64
	MetadataBoost   float64
	FinalScore      float64
	MatchedEntities QueryEntities
	Preview         string
}

// BM25Result is a single raw BM25 hit, before any metadata boost is applied.
type BM25Result struct {
	DocID string
	Score float64
}

// IndexStats summarizes a built BM25Index.
type IndexStats struct {
	DocumentCount int
	TermCount     int
	AvgDocLength  float64
}
