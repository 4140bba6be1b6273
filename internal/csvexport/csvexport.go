// Package csvexport implements the three CSV layouts described in §6:
// entities with frequencies, documents, and a co-occurrence matrix.
package csvexport

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/tarunchinta/epsteinai/internal/model"
	"github.com/tarunchinta/epsteinai/internal/store"
)

// entityTypeOrder fixes a deterministic ordering for the "sorted by type"
// requirement.
var entityTypeOrder = []model.EntityType{model.EntityPerson, model.EntityOrg, model.EntityLoc}

// WriteFrequencies writes the "entities with frequencies" layout:
// `Entity Type, Entity, Document Count`, sorted by type then by
// descending document count (ties broken lexicographically).
func WriteFrequencies(w io.Writer, st *store.MetadataStore) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write([]string{"Entity Type", "Entity", "Document Count"}); err != nil {
		return err
	}

	for _, t := range entityTypeOrder {
		freq, err := st.Frequencies(t)
		if err != nil {
			return fmt.Errorf("csvexport: frequencies for %s: %w", t, err)
		}
		for _, row := range sortedByCountDesc(freq) {
			if err := cw.Write([]string{string(t), row.name, fmt.Sprintf("%d", row.count)}); err != nil {
				return err
			}
		}
	}
	return cw.Error()
}

// WriteDocuments writes the "documents" layout: `Entity, Document Count,
// Document IDs`, where Document IDs is the entity's sorted document IDs
// joined with semicolons. Fields are quoted only where CSV encoding needs
// it (a comma, quote or line break in the value); a semicolon-joined ID
// list alone is written unquoted. docIDsByEntity maps each canonical name
// of the given type to the set of documents containing it, as returned by
// MetadataStore.DocsByEntity.
func WriteDocuments(w io.Writer, docIDsByEntity map[string]map[string]struct{}) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write([]string{"Entity", "Document Count", "Document IDs"}); err != nil {
		return err
	}

	names := make([]string, 0, len(docIDsByEntity))
	for name := range docIDsByEntity {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ids := sortedKeys(docIDsByEntity[name])
		if err := cw.Write([]string{name, fmt.Sprintf("%d", len(ids)), strings.Join(ids, ";")}); err != nil {
			return err
		}
	}
	return cw.Error()
}

// WriteCooccurrenceMatrix writes a square matrix of entity names on both
// axes; cell (i, j) is the number of documents containing both names[i]
// and names[j], with the diagonal fixed at 0 by convention.
func WriteCooccurrenceMatrix(w io.Writer, st *store.MetadataStore, entityType model.EntityType, names []string) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := append([]string{""}, names...)
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, row := range names {
		pairs, err := st.Cooccurrences(row, entityType, -1)
		if err != nil {
			return fmt.Errorf("csvexport: cooccurrences for %q: %w", row, err)
		}
		counts := make(map[string]int, len(pairs))
		for _, p := range pairs {
			counts[p.Canonical] = p.Count
		}

		record := make([]string, 0, len(names)+1)
		record = append(record, row)
		for _, col := range names {
			if col == row {
				record = append(record, "0")
				continue
			}
			record = append(record, fmt.Sprintf("%d", counts[col]))
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	return cw.Error()
}

type nameCount struct {
	name  string
	count int
}

func sortedByCountDesc(freq map[string]int) []nameCount {
	rows := make([]nameCount, 0, len(freq))
	for name, count := range freq {
		rows = append(rows, nameCount{name: name, count: count})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].count != rows[j].count {
			return rows[i].count > rows[j].count
		}
		return rows[i].name < rows[j].name
	})
	return rows
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
