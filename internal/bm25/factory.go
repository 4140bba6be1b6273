package bm25

import "fmt"

// Backend selects which BM25Index implementation to construct.
type Backend string

const (
	// BackendNative is the in-memory, rebuild-on-start reference engine.
	BackendNative Backend = "native"
	// BackendSQLite persists postings to a SQLite FTS5-backed database.
	BackendSQLite Backend = "sqlite"
	// BackendBleve persists postings through a Bleve full-text index.
	BackendBleve Backend = "bleve"
)

// New constructs an Index for the requested backend. basePath is ignored
// for BackendNative; for the other backends it is the base path the
// backend derives its on-disk file/directory name from.
func New(backend Backend, basePath string, cfg Config) (Index, error) {
	switch backend {
	case BackendNative, "":
		return NewEngine(cfg), nil
	case BackendSQLite:
		path := ""
		if basePath != "" {
			path = basePath + ".bm25.db"
		}
		return NewSQLiteIndex(path, cfg)
	case BackendBleve:
		path := ""
		if basePath != "" {
			path = basePath + ".bm25.bleve"
		}
		return NewBleveIndex(path, cfg)
	default:
		return nil, fmt.Errorf("bm25: unknown backend %q (valid: native, sqlite, bleve)", backend)
	}
}
