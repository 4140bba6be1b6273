package consolidate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tarunchinta/epsteinai/internal/model"
)

func docSet(ids ...string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

// S3 — Consolidation.
func TestConsolidateS3Scenario(t *testing.T) {
	entries := []SurfaceEntry{
		{Surface: "U.S.", Type: model.EntityLoc, DocIDs: docSet("d1", "d2", "d3", "d4", "d5", "d6", "d7", "d8", "d9", "d10")},
		{Surface: "US", Type: model.EntityLoc, DocIDs: docSet("d11", "d12", "d13", "d14", "d15")},
		{Surface: "United States", Type: model.EntityLoc, DocIDs: docSet(
			"d16", "d17", "d18", "d19", "d20", "d21", "d22", "d23", "d24", "d25",
			"d26", "d27", "d28", "d29", "d30", "d31", "d32", "d33", "d34", "d35")},
		{Surface: "America", Type: model.EntityLoc, DocIDs: docSet("d36", "d37", "d38")},
	}
	aliases := AliasMap{
		"U.S.":   "United States",
		"US":      "United States",
		"America": "United States",
	}

	groups := Consolidate(entries, aliases)
	require.Len(t, groups, 1)
	require.Equal(t, "United States", groups[0].Canonical)
	require.Len(t, groups[0].DocIDs, 38)
}

func TestConsolidateNoAliasSeparateGroups(t *testing.T) {
	entries := []SurfaceEntry{
		{Surface: "Paris", Type: model.EntityLoc, DocIDs: docSet("d1")},
		{Surface: "London", Type: model.EntityLoc, DocIDs: docSet("d2")},
	}
	groups := Consolidate(entries, nil)
	require.Len(t, groups, 2)
}

func TestConsolidateGroupsByNormalizedForm(t *testing.T) {
	entries := []SurfaceEntry{
		{Surface: "Ghislaine Maxwell", Type: model.EntityPerson, DocIDs: docSet("d1")},
		{Surface: "ghislaine maxwell", Type: model.EntityPerson, DocIDs: docSet("d2")},
	}
	groups := Consolidate(entries, nil)
	require.Len(t, groups, 1)
	require.Len(t, groups[0].DocIDs, 2)
}

// Property 6: consolidation partition — each surface form maps to exactly
// one canonical; aggregated doc set equals union, not sum.
func TestConsolidatePartitionInvariant(t *testing.T) {
	entries := []SurfaceEntry{
		{Surface: "The Epstein Foundation", Type: model.EntityOrg, DocIDs: docSet("d1", "d2")},
		{Surface: "Epstein Foundation's", Type: model.EntityOrg, DocIDs: docSet("d2", "d3")},
	}
	groups := Consolidate(entries, nil)
	require.Len(t, groups, 1)
	require.Len(t, groups[0].DocIDs, 3) // union of {d1,d2} and {d2,d3}, not sum of 4
}

func TestConsolidateDeterministic(t *testing.T) {
	entries := []SurfaceEntry{
		{Surface: "U.S.", Type: model.EntityLoc, DocIDs: docSet("d1")},
		{Surface: "United States", Type: model.EntityLoc, DocIDs: docSet("d2")},
	}
	aliases := AliasMap{"U.S.": "United States"}

	g1 := Consolidate(entries, aliases)
	g2 := Consolidate(entries, aliases)
	require.Equal(t, g1, g2)
}

func TestBuildLookupIndex(t *testing.T) {
	entries := []SurfaceEntry{
		{Surface: "Jeffrey Epstein", Type: model.EntityPerson, DocIDs: docSet("d1")},
	}
	groups := Consolidate(entries, nil)
	idx := BuildLookupIndex(groups)

	keys := idx.Lookup("jeffrey epstein")
	require.Len(t, keys, 1)
	require.Equal(t, "Jeffrey Epstein", keys[0].Canonical)
	require.Equal(t, model.EntityPerson, keys[0].Type)
}
