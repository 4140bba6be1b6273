// Package store implements the Metadata Store (§4.6): the persisted
// inverted index over entities and the per-document metadata lookup that
// sits beside the BM25 index.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/tarunchinta/epsteinai/internal/entity"
	"github.com/tarunchinta/epsteinai/internal/lock"
	"github.com/tarunchinta/epsteinai/internal/model"
)

// fuzzyCacheSize bounds the per-process cache of document entity sets
// consulted by FilterFuzzy's naive scan (§4.6: "naive per-document scan
// path is acceptable only for fuzzy filtering where indexed lookup is
// not feasible").
const fuzzyCacheSize = 4096

// FilterCriteria selects candidate documents by entity membership and
// date range. Within a field, values are OR'd; across fields, AND'd.
// A zero-value field (nil slice, nil range) is not applied.
type FilterCriteria struct {
	People        []string
	Organizations []string
	Locations     []string
	DateRange     *DateRange
}

// DateRange is an inclusive [Low, High] lexicographic bound, per §6's
// documented limitation: comparison is over raw surface forms, correct
// only for ISO-8601 inputs.
type DateRange struct {
	Low  string
	High string
}

// Empty reports whether c applies no restriction at all.
func (c FilterCriteria) Empty() bool {
	return len(c.People) == 0 && len(c.Organizations) == 0 &&
		len(c.Locations) == 0 && c.DateRange == nil
}

// CooccurrencePair is one entry of a co-occurrence result: another
// canonical name paired with the number of documents it shares with the
// queried canonical.
type CooccurrencePair struct {
	Canonical string
	Count     int
}

// MetadataStore is the §4.6 persistence contract: single-writer,
// multi-reader, backed by one on-disk relational database per §6's
// schema.
type MetadataStore struct {
	path string
	db   *sql.DB
	lock *lock.FileLock

	mu         sync.RWMutex
	fuzzyCache *lru.Cache[string, *model.DocumentMetadata]
}

// NewMetadataStore opens (creating if needed) the SQLite-backed store at
// path. An empty path opens an in-memory database, useful for tests.
func NewMetadataStore(path string) (*MetadataStore, error) {
	dsn := ":memory:"
	var fl *lock.FileLock
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("metadata store: create dir: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
		var err error
		fl, err = lock.New(path + ".lock")
		if err != nil {
			return nil, fmt.Errorf("metadata store: lock: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("metadata store: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	cache, _ := lru.New[string, *model.DocumentMetadata](fuzzyCacheSize)

	s := &MetadataStore{path: path, db: db, lock: fl, fuzzyCache: cache}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *MetadataStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (doc_id TEXT PRIMARY KEY, word_count INTEGER NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS people (id INTEGER PRIMARY KEY AUTOINCREMENT, doc_id TEXT NOT NULL, name TEXT NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS organizations (id INTEGER PRIMARY KEY AUTOINCREMENT, doc_id TEXT NOT NULL, name TEXT NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS locations (id INTEGER PRIMARY KEY AUTOINCREMENT, doc_id TEXT NOT NULL, name TEXT NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS dates (id INTEGER PRIMARY KEY AUTOINCREMENT, doc_id TEXT NOT NULL, date_str TEXT NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS emails (id INTEGER PRIMARY KEY AUTOINCREMENT, doc_id TEXT NOT NULL, email TEXT NOT NULL)`,
		`CREATE INDEX IF NOT EXISTS idx_people_name ON people(name)`,
		`CREATE INDEX IF NOT EXISTS idx_people_doc ON people(doc_id)`,
		`CREATE INDEX IF NOT EXISTS idx_orgs_name ON organizations(name)`,
		`CREATE INDEX IF NOT EXISTS idx_orgs_doc ON organizations(doc_id)`,
		`CREATE INDEX IF NOT EXISTS idx_locs_name ON locations(name)`,
		`CREATE INDEX IF NOT EXISTS idx_locs_doc ON locations(doc_id)`,
		`CREATE INDEX IF NOT EXISTS idx_dates_str ON dates(date_str)`,
		`CREATE INDEX IF NOT EXISTS idx_dates_doc ON dates(doc_id)`,
		`CREATE INDEX IF NOT EXISTS idx_emails_doc ON emails(doc_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("metadata store: migrate: %w", err)
		}
	}
	return nil
}

// entityTable returns the table name backing EntityType t.
func entityTable(t model.EntityType) (string, bool) {
	switch t {
	case model.EntityPerson:
		return "people", true
	case model.EntityOrg:
		return "organizations", true
	case model.EntityLoc:
		return "locations", true
	default:
		return "", false
	}
}

// Put upserts all entity sets for metadata.DocID atomically: §6's
// "delete then re-insert inside a single transaction". On failure the
// transaction rolls back, leaving the store in its pre-call state
// (Testable Property 7), and the call is retried once per §7's StoreFault
// policy.
func (s *MetadataStore) Put(metadata *model.DocumentMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lock != nil {
		if err := s.lock.Lock(); err != nil {
			return fmt.Errorf("metadata store: acquire writer lock: %w", err)
		}
		defer s.lock.Unlock()
	}

	err := s.put(metadata)
	if err != nil {
		err = s.put(metadata) // retry once, per §7
	}
	if err == nil {
		s.fuzzyCache.Remove(metadata.DocID)
	}
	return err
}

func (s *MetadataStore) put(metadata *model.DocumentMetadata) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("metadata store: begin: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"people", "organizations", "locations", "dates", "emails"} {
		if _, err := tx.Exec(fmt.Sprintf(`DELETE FROM %s WHERE doc_id = ?`, table), metadata.DocID); err != nil {
			return fmt.Errorf("metadata store: clear %s: %w", table, err)
		}
	}

	if _, err := tx.Exec(
		`INSERT INTO documents(doc_id, word_count) VALUES (?, ?)
		 ON CONFLICT(doc_id) DO UPDATE SET word_count = excluded.word_count`,
		metadata.DocID, metadata.WordCount); err != nil {
		return fmt.Errorf("metadata store: upsert document: %w", err)
	}

	insertSet := func(table string, values map[string]struct{}, col string) error {
		for v := range values {
			if _, err := tx.Exec(fmt.Sprintf(`INSERT INTO %s(doc_id, %s) VALUES (?, ?)`, table, col), metadata.DocID, v); err != nil {
				return fmt.Errorf("metadata store: insert %s: %w", table, err)
			}
		}
		return nil
	}
	if err := insertSet("people", metadata.People, "name"); err != nil {
		return err
	}
	if err := insertSet("organizations", metadata.Organizations, "name"); err != nil {
		return err
	}
	if err := insertSet("locations", metadata.Locations, "name"); err != nil {
		return err
	}
	if err := insertSet("dates", metadata.Dates, "date_str"); err != nil {
		return err
	}
	if err := insertSet("emails", metadata.Emails, "email"); err != nil {
		return err
	}

	return tx.Commit()
}

// Get returns the DocumentMetadata for docID, or (nil, false) if absent.
func (s *MetadataStore) Get(docID string) (*model.DocumentMetadata, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(docID)
}

func (s *MetadataStore) get(docID string) (*model.DocumentMetadata, bool, error) {
	var wordCount int
	err := s.db.QueryRow(`SELECT word_count FROM documents WHERE doc_id = ?`, docID).Scan(&wordCount)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("metadata store: get document: %w", err)
	}

	meta := model.NewDocumentMetadata(docID)
	meta.WordCount = wordCount

	if err := s.loadSet(docID, "people", "name", meta.People); err != nil {
		return nil, false, err
	}
	if err := s.loadSet(docID, "organizations", "name", meta.Organizations); err != nil {
		return nil, false, err
	}
	if err := s.loadSet(docID, "locations", "name", meta.Locations); err != nil {
		return nil, false, err
	}
	if err := s.loadSet(docID, "dates", "date_str", meta.Dates); err != nil {
		return nil, false, err
	}
	if err := s.loadSet(docID, "emails", "email", meta.Emails); err != nil {
		return nil, false, err
	}
	return meta, true, nil
}

func (s *MetadataStore) loadSet(docID, table, col string, into map[string]struct{}) error {
	rows, err := s.db.Query(fmt.Sprintf(`SELECT %s FROM %s WHERE doc_id = ?`, col, table), docID)
	if err != nil {
		return fmt.Errorf("metadata store: load %s: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return fmt.Errorf("metadata store: scan %s: %w", table, err)
		}
		into[v] = struct{}{}
	}
	return rows.Err()
}

// Filter returns the subset of candidateIDs satisfying ALL provided
// criteria (AND across entity types, OR within a type's value list),
// matched by exact equality against stored canonical names via indexed
// lookups.
func (s *MetadataStore) Filter(candidateIDs []string, criteria FilterCriteria) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if criteria.Empty() || len(candidateIDs) == 0 {
		return candidateIDs, nil
	}

	matching, err := s.candidatesMatchingCriteria(criteria)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(candidateIDs))
	for _, id := range candidateIDs {
		if _, ok := matching[id]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

// candidatesMatchingCriteria returns the set of doc_ids satisfying every
// non-empty field of criteria, using one indexed query per field
// intersected in Go.
func (s *MetadataStore) candidatesMatchingCriteria(criteria FilterCriteria) (map[string]struct{}, error) {
	var sets []map[string]struct{}

	if len(criteria.People) > 0 {
		set, err := s.docsWithAnyName("people", criteria.People)
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}
	if len(criteria.Organizations) > 0 {
		set, err := s.docsWithAnyName("organizations", criteria.Organizations)
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}
	if len(criteria.Locations) > 0 {
		set, err := s.docsWithAnyName("locations", criteria.Locations)
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}
	if criteria.DateRange != nil {
		set, err := s.docsInDateRange(*criteria.DateRange)
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}

	return intersect(sets), nil
}

func (s *MetadataStore) docsWithAnyName(table string, names []string) (map[string]struct{}, error) {
	placeholders := make([]string, len(names))
	args := make([]interface{}, len(names))
	for i, n := range names {
		placeholders[i] = "?"
		args[i] = n
	}
	query := fmt.Sprintf(`SELECT DISTINCT doc_id FROM %s WHERE name IN (%s)`, table, strings.Join(placeholders, ","))
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("metadata store: filter %s: %w", table, err)
	}
	defer rows.Close()
	out := map[string]struct{}{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("metadata store: scan %s: %w", table, err)
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

func (s *MetadataStore) docsInDateRange(r DateRange) (map[string]struct{}, error) {
	rows, err := s.db.Query(`SELECT DISTINCT doc_id FROM dates WHERE date_str >= ? AND date_str <= ?`, r.Low, r.High)
	if err != nil {
		return nil, fmt.Errorf("metadata store: filter dates: %w", err)
	}
	defer rows.Close()
	out := map[string]struct{}{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("metadata store: scan dates: %w", err)
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

func intersect(sets []map[string]struct{}) map[string]struct{} {
	if len(sets) == 0 {
		return map[string]struct{}{}
	}
	result := sets[0]
	for _, s := range sets[1:] {
		next := map[string]struct{}{}
		for id := range result {
			if _, ok := s[id]; ok {
				next[id] = struct{}{}
			}
		}
		result = next
	}
	return result
}

// FilterFuzzy applies the same AND/OR semantics as Filter but using
// matcher's fuzzy comparison instead of equality. Per §4.6, indexed
// lookup is not feasible for fuzzy matching, so this performs a
// per-document scan, memoizing each document's metadata in a bounded
// LRU cache to amortize repeated calls over the same candidate set.
func (s *MetadataStore) FilterFuzzy(candidateIDs []string, criteria FilterCriteria, matcher *entity.Matcher) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if criteria.Empty() || len(candidateIDs) == 0 {
		return candidateIDs, nil
	}

	var out []string
	for _, id := range candidateIDs {
		meta, ok, err := s.cachedGet(id)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue // missing metadata treated as empty sets (§4.10 failure semantics) -> rejects strict/loose
		}
		if matchesFuzzy(meta, criteria, matcher) {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *MetadataStore) cachedGet(docID string) (*model.DocumentMetadata, bool, error) {
	if meta, ok := s.fuzzyCache.Get(docID); ok {
		return meta, true, nil
	}
	meta, ok, err := s.get(docID)
	if err != nil || !ok {
		return nil, ok, err
	}
	s.fuzzyCache.Add(docID, meta)
	return meta, true, nil
}

func matchesFuzzy(meta *model.DocumentMetadata, criteria FilterCriteria, matcher *entity.Matcher) bool {
	if len(criteria.People) > 0 && !anyFuzzyMatch(criteria.People, meta.People, matcher) {
		return false
	}
	if len(criteria.Organizations) > 0 && !anyFuzzyMatch(criteria.Organizations, meta.Organizations, matcher) {
		return false
	}
	if len(criteria.Locations) > 0 && !anyFuzzyMatch(criteria.Locations, meta.Locations, matcher) {
		return false
	}
	if criteria.DateRange != nil && !anyDateInRange(meta.Dates, *criteria.DateRange) {
		return false
	}
	return true
}

func anyFuzzyMatch(queryNames []string, docSet map[string]struct{}, matcher *entity.Matcher) bool {
	for _, q := range queryNames {
		for d := range docSet {
			if matcher.FuzzyMatch(q, d) {
				return true
			}
		}
	}
	return false
}

func anyDateInRange(dates map[string]struct{}, r DateRange) bool {
	for d := range dates {
		if d >= r.Low && d <= r.High {
			return true
		}
	}
	return false
}

// AllEntities returns the set of canonical names stored for each entity
// type.
func (s *MetadataStore) AllEntities() (map[model.EntityType]map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := map[model.EntityType]map[string]struct{}{}
	for _, t := range []model.EntityType{model.EntityPerson, model.EntityOrg, model.EntityLoc} {
		table, _ := entityTable(t)
		set, err := s.allNames(table)
		if err != nil {
			return nil, err
		}
		out[t] = set
	}
	return out, nil
}

// DocsByEntity returns, for entity type t, each canonical name mapped to
// the set of document IDs containing it — the grouping the "documents"
// CSV export layout (§6) needs.
func (s *MetadataStore) DocsByEntity(t model.EntityType) (map[string]map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	table, ok := entityTable(t)
	if !ok {
		return nil, fmt.Errorf("metadata store: docs by entity: unsupported type %q", t)
	}
	rows, err := s.db.Query(fmt.Sprintf(`SELECT name, doc_id FROM %s`, table))
	if err != nil {
		return nil, fmt.Errorf("metadata store: docs by entity: %w", err)
	}
	defer rows.Close()

	out := map[string]map[string]struct{}{}
	for rows.Next() {
		var name, docID string
		if err := rows.Scan(&name, &docID); err != nil {
			return nil, err
		}
		if out[name] == nil {
			out[name] = map[string]struct{}{}
		}
		out[name][docID] = struct{}{}
	}
	return out, rows.Err()
}

func (s *MetadataStore) allNames(table string) (map[string]struct{}, error) {
	rows, err := s.db.Query(fmt.Sprintf(`SELECT DISTINCT name FROM %s`, table))
	if err != nil {
		return nil, fmt.Errorf("metadata store: all names %s: %w", table, err)
	}
	defer rows.Close()
	out := map[string]struct{}{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out[v] = struct{}{}
	}
	return out, rows.Err()
}

// Frequencies returns, for entity type t, each canonical name mapped to
// the number of distinct documents containing it.
func (s *MetadataStore) Frequencies(t model.EntityType) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	table, ok := entityTable(t)
	if !ok {
		return nil, fmt.Errorf("metadata store: frequencies: unsupported type %q", t)
	}
	rows, err := s.db.Query(fmt.Sprintf(`SELECT name, COUNT(DISTINCT doc_id) FROM %s GROUP BY name`, table))
	if err != nil {
		return nil, fmt.Errorf("metadata store: frequencies: %w", err)
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var name string
		var count int
		if err := rows.Scan(&name, &count); err != nil {
			return nil, err
		}
		out[name] = count
	}
	return out, rows.Err()
}

// Cooccurrences returns, for canonical within entity type t, the other
// canonical names (of the same type) that co-occur in at least one
// shared document, ordered by descending shared-document count and
// bounded to limit entries.
func (s *MetadataStore) Cooccurrences(canonical string, t model.EntityType, limit int) ([]CooccurrencePair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	table, ok := entityTable(t)
	if !ok {
		return nil, fmt.Errorf("metadata store: cooccurrences: unsupported type %q", t)
	}

	rows, err := s.db.Query(fmt.Sprintf(
		`SELECT b.name, COUNT(DISTINCT b.doc_id) AS cnt
		 FROM %[1]s a JOIN %[1]s b ON a.doc_id = b.doc_id AND a.name != b.name
		 WHERE a.name = ?
		 GROUP BY b.name
		 ORDER BY cnt DESC, b.name ASC`, table), canonical)
	if err != nil {
		return nil, fmt.Errorf("metadata store: cooccurrences: %w", err)
	}
	defer rows.Close()

	var pairs []CooccurrencePair
	for rows.Next() {
		var p CooccurrencePair
		if err := rows.Scan(&p.Canonical, &p.Count); err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		if pairs[i].Count != pairs[j].Count {
			return pairs[i].Count > pairs[j].Count
		}
		return pairs[i].Canonical < pairs[j].Canonical
	})
	if limit >= 0 && len(pairs) > limit {
		pairs = pairs[:limit]
	}
	return pairs, nil
}

// AllDocIDs returns every doc_id present in the documents table, used by
// the ConsistencyFault check (§7) to cross-reference against the BM25
// index.
func (s *MetadataStore) AllDocIDs() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT doc_id FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("metadata store: all doc ids: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close releases the underlying database handle and writer lock.
func (s *MetadataStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lock != nil {
		_ = s.lock.Close()
	}
	return s.db.Close()
}
