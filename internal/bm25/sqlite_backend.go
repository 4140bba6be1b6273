package bm25

import (
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/tarunchinta/epsteinai/internal/model"
	"github.com/tarunchinta/epsteinai/internal/normalize"
)

// SQLiteIndex persists the BM25 postings to a SQLite database using an
// FTS5 virtual table for document storage and retrieval, with a
// dedicated terms table carrying the exact per-term frequencies needed
// to reproduce the §4.7 Okapi formula exactly (FTS5's own bm25() ranking
// function hardcodes different parameters, so scoring is computed in Go
// against the persisted df/tf/dl rather than delegated to FTS5).
type SQLiteIndex struct {
	cfg  Config
	path string

	mu    sync.RWMutex
	db    *sql.DB
	n     int
	avgdl float64
}

// NewSQLiteIndex opens (creating if needed) a SQLite-backed index at
// path. An empty path opens an in-memory database, useful for tests.
func NewSQLiteIndex(path string, cfg Config) (*SQLiteIndex, error) {
	if cfg.K1 == 0 && cfg.B == 0 {
		cfg = DefaultConfig()
	}
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("bm25 sqlite: create dir: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("bm25 sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	idx := &SQLiteIndex{cfg: cfg, path: path, db: db}
	if err := idx.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	if err := idx.loadStats(); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

func (idx *SQLiteIndex) migrate() error {
	stmts := []string{
		`CREATE VIRTUAL TABLE IF NOT EXISTS bm25_fts USING fts5(doc_id UNINDEXED, raw_text)`,
		`CREATE TABLE IF NOT EXISTS bm25_docs (doc_id TEXT PRIMARY KEY, dl INTEGER NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS bm25_terms (term TEXT NOT NULL, doc_id TEXT NOT NULL, tf INTEGER NOT NULL, PRIMARY KEY (term, doc_id))`,
		`CREATE INDEX IF NOT EXISTS idx_bm25_terms_term ON bm25_terms(term)`,
	}
	for _, s := range stmts {
		if _, err := idx.db.Exec(s); err != nil {
			return fmt.Errorf("bm25 sqlite: migrate: %w", err)
		}
	}
	return nil
}

func (idx *SQLiteIndex) loadStats() error {
	var n int
	var totalLen sql.NullFloat64
	if err := idx.db.QueryRow(`SELECT COUNT(*), SUM(dl) FROM bm25_docs`).Scan(&n, &totalLen); err != nil {
		return fmt.Errorf("bm25 sqlite: load stats: %w", err)
	}
	idx.n = n
	if n > 0 && totalLen.Valid {
		idx.avgdl = totalLen.Float64 / float64(n)
	}
	return nil
}

// Build implements Index: it replaces the database's contents in a
// single transaction.
func (idx *SQLiteIndex) Build(docs []model.Document) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	tx, err := idx.db.Begin()
	if err != nil {
		return fmt.Errorf("bm25 sqlite: begin: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{`DELETE FROM bm25_fts`, `DELETE FROM bm25_docs`, `DELETE FROM bm25_terms`} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("bm25 sqlite: clear: %w", err)
		}
	}

	var totalLen int
	for _, d := range docs {
		tokens := normalize.Tokenize(d.RawText)
		termFreq := map[string]int{}
		for _, t := range tokens {
			termFreq[t]++
		}

		if _, err := tx.Exec(`INSERT INTO bm25_fts(doc_id, raw_text) VALUES (?, ?)`, d.ID, d.RawText); err != nil {
			return fmt.Errorf("bm25 sqlite: insert fts: %w", err)
		}
		if _, err := tx.Exec(`INSERT INTO bm25_docs(doc_id, dl) VALUES (?, ?)`, d.ID, len(tokens)); err != nil {
			return fmt.Errorf("bm25 sqlite: insert doc: %w", err)
		}
		for term, tf := range termFreq {
			if _, err := tx.Exec(`INSERT INTO bm25_terms(term, doc_id, tf) VALUES (?, ?, ?)`, term, d.ID, tf); err != nil {
				return fmt.Errorf("bm25 sqlite: insert term: %w", err)
			}
		}
		totalLen += len(tokens)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("bm25 sqlite: commit: %w", err)
	}

	idx.n = len(docs)
	if idx.n > 0 {
		idx.avgdl = float64(totalLen) / float64(idx.n)
	} else {
		idx.avgdl = 0
	}
	return nil
}

// Search implements Index, reproducing the exact Okapi formula from §4.7
// against the persisted df/tf/dl rows.
func (idx *SQLiteIndex) Search(query string, topK int) ([]model.BM25Result, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	terms := normalize.Tokenize(query)
	if len(terms) == 0 {
		return nil, nil
	}

	scores := map[string]float64{}
	for _, term := range terms {
		df, err := idx.documentFrequency(term)
		if err != nil {
			return nil, err
		}
		if df == 0 {
			continue
		}
		idf := math.Log((float64(idx.n)-float64(df)+0.5)/(float64(df)+0.5) + 1)

		rows, err := idx.db.Query(
			`SELECT t.doc_id, t.tf, d.dl FROM bm25_terms t JOIN bm25_docs d ON d.doc_id = t.doc_id WHERE t.term = ?`,
			term)
		if err != nil {
			return nil, fmt.Errorf("bm25 sqlite: search: %w", err)
		}
		for rows.Next() {
			var docID string
			var tf, dl int
			if err := rows.Scan(&docID, &tf, &dl); err != nil {
				rows.Close()
				return nil, fmt.Errorf("bm25 sqlite: scan: %w", err)
			}
			scores[docID] += idf * termScore(float64(tf), float64(dl), idx.avgdl, idx.cfg.K1, idx.cfg.B)
		}
		rows.Close()
	}

	results := make([]model.BM25Result, 0, len(scores))
	for docID, score := range scores {
		if score > 0 {
			results = append(results, model.BM25Result{DocID: docID, Score: score})
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].DocID < results[j].DocID
	})
	if topK >= 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (idx *SQLiteIndex) documentFrequency(term string) (int, error) {
	var df int
	err := idx.db.QueryRow(`SELECT COUNT(DISTINCT doc_id) FROM bm25_terms WHERE term = ?`, term).Scan(&df)
	if err != nil {
		return 0, fmt.Errorf("bm25 sqlite: df: %w", err)
	}
	return df, nil
}

// AllIDs implements Index.
func (idx *SQLiteIndex) AllIDs() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	rows, err := idx.db.Query(`SELECT doc_id FROM bm25_docs`)
	if err != nil {
		return nil
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// Preview implements Index.
func (idx *SQLiteIndex) Preview(docID string) (string, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	var raw string
	err := idx.db.QueryRow(`SELECT raw_text FROM bm25_fts WHERE doc_id = ?`, docID).Scan(&raw)
	if err != nil {
		return "", false
	}
	return Preview(raw), true
}

// Stats implements Index.
func (idx *SQLiteIndex) Stats() model.IndexStats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	var termCount int
	_ = idx.db.QueryRow(`SELECT COUNT(DISTINCT term) FROM bm25_terms`).Scan(&termCount)
	return model.IndexStats{DocumentCount: idx.n, TermCount: termCount, AvgDocLength: idx.avgdl}
}

// Save is a no-op: the database at path is already persisted on every
// Build/commit.
func (idx *SQLiteIndex) Save(string) error { return nil }

// Load is a no-op: the constructor already opened the database at path.
func (idx *SQLiteIndex) Load(string) error { return nil }

// Close closes the underlying database handle.
func (idx *SQLiteIndex) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.db.Close()
}

var _ Index = (*SQLiteIndex)(nil)
