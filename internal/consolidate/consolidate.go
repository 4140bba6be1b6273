// Package consolidate implements the canonical-entity consolidation
// engine (§4.4): grouping raw surface-form variants of the same
// real-world entity and electing one canonical name per group.
package consolidate

import (
	"sort"
	"strings"

	"github.com/tarunchinta/epsteinai/internal/entity"
	"github.com/tarunchinta/epsteinai/internal/model"
)

// SurfaceEntry is one observed (surface form, doc set) pair extracted
// from the corpus prior to consolidation.
type SurfaceEntry struct {
	Surface string
	Type    model.EntityType
	DocIDs  map[string]struct{}
}

// AliasMap is a static, closed mapping from a raw surface form to the
// canonical name it should resolve to (e.g. "US" -> "United States").
// Keys are matched case-insensitively after grouping-normalization.
type AliasMap map[string]string

// groupKey returns the normalization used to decide whether two surface
// forms belong to the same consolidation group: §4.3 Normalize, with
// dots removed, a leading "The" stripped, and a trailing possessive
// stripped.
func groupKey(s string) string {
	n := entity.Normalize(s)
	n = strings.ReplaceAll(n, ".", "")
	n = strings.TrimPrefix(n, "the ")
	n = strings.TrimSuffix(n, "'s")
	n = strings.TrimSpace(n)
	return n
}

// Consolidate partitions entries (all of the same EntityType) into
// consolidation groups and selects one canonical name per group. Grouping
// additionally unions any entries connected through aliases, even when
// their normalized forms are not themselves equal.
func Consolidate(entries []SurfaceEntry, aliases AliasMap) []*model.ConsolidationGroup {
	if len(entries) == 0 {
		return nil
	}
	typ := entries[0].Type

	uf := newUnionFind()
	for _, e := range entries {
		uf.add(groupKey(e.Surface))
	}

	// Union by alias: if a surface form's group key resolves through the
	// alias map to a target, union its group with the target's group key.
	for _, e := range entries {
		key := groupKey(e.Surface)
		if target, ok := lookupAlias(aliases, e.Surface); ok {
			uf.union(key, groupKey(target))
		}
	}

	byRoot := map[string][]SurfaceEntry{}
	for _, e := range entries {
		root := uf.find(groupKey(e.Surface))
		byRoot[root] = append(byRoot[root], e)
	}

	groups := make([]*model.ConsolidationGroup, 0, len(byRoot))
	for _, members := range byRoot {
		groups = append(groups, buildGroup(members, typ, aliases))
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].Canonical < groups[j].Canonical })
	return groups
}

func lookupAlias(aliases AliasMap, surface string) (string, bool) {
	for k, v := range aliases {
		if strings.EqualFold(k, surface) {
			return v, true
		}
	}
	return "", false
}

// buildGroup selects the canonical name for a set of co-grouped surface
// forms and aggregates their document sets by union.
func buildGroup(members []SurfaceEntry, typ model.EntityType, aliases AliasMap) *model.ConsolidationGroup {
	variants := map[string]struct{}{}
	docCounts := map[string]int{}
	docSets := map[string]map[string]struct{}{}

	var aliasTarget string
	for _, m := range members {
		variants[m.Surface] = struct{}{}
		docCounts[m.Surface] = len(m.DocIDs)
		docSets[m.Surface] = m.DocIDs
		if target, ok := lookupAlias(aliases, m.Surface); ok && aliasTarget == "" {
			aliasTarget = target
		}
	}

	canonical := selectCanonical(members, aliasTarget, docCounts)

	union := map[string]struct{}{}
	for _, docs := range docSets {
		for id := range docs {
			union[id] = struct{}{}
		}
	}

	return &model.ConsolidationGroup{
		Canonical: canonical,
		Type:      typ,
		Variants:  variants,
		DocIDs:    union,
	}
}

// selectCanonical implements §4.4's tie-break chain: predefined-mapping
// target first, else the longest surface form, tie-broken by highest
// document_count, tie-broken lexicographically.
func selectCanonical(members []SurfaceEntry, aliasTarget string, docCounts map[string]int) string {
	if aliasTarget != "" {
		return aliasTarget
	}

	best := members[0].Surface
	for _, m := range members[1:] {
		if better(m.Surface, best, docCounts) {
			best = m.Surface
		}
	}
	return best
}

func better(candidate, current string, docCounts map[string]int) bool {
	cl, bl := len([]rune(candidate)), len([]rune(current))
	if cl != bl {
		return cl > bl
	}
	cc, bc := docCounts[candidate], docCounts[current]
	if cc != bc {
		return cc > bc
	}
	return candidate < current
}

// BuildLookupIndex constructs an EntityLookupIndex from the union of all
// canonical names and their consolidation variants, keyed by their §4.3
// normalized form, for tier-2 query extraction.
func BuildLookupIndex(groups []*model.ConsolidationGroup) *model.EntityLookupIndex {
	idx := model.NewEntityLookupIndex()
	for _, g := range groups {
		key := model.LookupKey{Canonical: g.Canonical, Type: g.Type}
		idx.Add(entity.Normalize(g.Canonical), key)
		for v := range g.Variants {
			idx.Add(entity.Normalize(v), key)
		}
	}
	return idx
}

// unionFind is a minimal disjoint-set structure over string keys, used to
// merge consolidation groups connected through the alias map.
type unionFind struct {
	parent map[string]string
}

func newUnionFind() *unionFind {
	return &unionFind{parent: map[string]string{}}
}

func (u *unionFind) add(k string) {
	if _, ok := u.parent[k]; !ok {
		u.parent[k] = k
	}
}

func (u *unionFind) find(k string) string {
	u.add(k)
	if u.parent[k] != k {
		u.parent[k] = u.find(u.parent[k])
	}
	return u.parent[k]
}

func (u *unionFind) union(a, b string) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[ra] = rb
	}
}

// DefaultAliasMap is the predefined, closed dictionary of common entity
// aliases seeded for the reference corpus. Consumers may extend or
// replace it via config; it is a static lookup, never inferred at runtime.
var DefaultAliasMap = AliasMap{
	"U.S.":   "United States",
	"US":      "United States",
	"USA":     "United States",
	"America": "United States",
	"U.K.":    "United Kingdom",
	"UK":      "United Kingdom",
	"FBI":     "Federal Bureau of Investigation",
	"DOJ":     "Department of Justice",
	"NYC":     "New York City",
	"NY":      "New York",
	"LA":      "Los Angeles",
}
