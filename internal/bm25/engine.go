package bm25

import (
	"errors"
	"math"
	"sort"
	"sync"

	"github.com/tarunchinta/epsteinai/internal/model"
	"github.com/tarunchinta/epsteinai/internal/normalize"
)

// Engine is the native, in-memory Okapi BM25 implementation. It is the
// reference implementation all scoring invariants are proven against;
// the sqlite and bleve backends exist for alternate persistence/scale
// trade-offs but must agree on ranking semantics.
type Engine struct {
	cfg Config

	mu      sync.RWMutex
	docs    map[string]string // doc_id -> raw text, for Preview
	dl      map[string]int    // doc_id -> document length in tokens
	tf      map[string]map[string]int
	df      map[string]int
	ids     []string // insertion order, iterated by Search and returned by AllIDs
	n       int
	avgdl   float64
	built   bool
}

// NewEngine returns an Engine using cfg. A zero Config is replaced with
// DefaultConfig.
func NewEngine(cfg Config) *Engine {
	if cfg.K1 == 0 && cfg.B == 0 {
		cfg = DefaultConfig()
	}
	return &Engine{
		cfg:  cfg,
		docs: map[string]string{},
		dl:   map[string]int{},
		tf:   map[string]map[string]int{},
		df:   map[string]int{},
	}
}

// Build implements Index.
func (e *Engine) Build(documents []model.Document) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.docs = map[string]string{}
	e.dl = map[string]int{}
	e.tf = map[string]map[string]int{}
	e.df = map[string]int{}
	e.ids = nil

	var totalLen int
	for _, d := range documents {
		tokens := normalize.Tokenize(d.RawText)
		termFreq := map[string]int{}
		for _, t := range tokens {
			termFreq[t]++
		}
		e.docs[d.ID] = d.RawText
		e.dl[d.ID] = len(tokens)
		e.tf[d.ID] = termFreq
		e.ids = append(e.ids, d.ID)
		totalLen += len(tokens)

		for term := range termFreq {
			e.df[term]++
		}
	}

	e.n = len(documents)
	if e.n > 0 {
		e.avgdl = float64(totalLen) / float64(e.n)
	} else {
		e.avgdl = 0
	}
	e.built = true
	return nil
}

// Search implements Index.
func (e *Engine) Search(query string, topK int) ([]model.BM25Result, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	queryTerms := normalize.Tokenize(query)
	if len(queryTerms) == 0 {
		return nil, nil
	}

	scores := make(map[string]float64, len(e.ids))
	for _, docID := range e.ids {
		var score float64
		dl := float64(e.dl[docID])
		termFreq := e.tf[docID]
		for _, term := range queryTerms {
			tf, ok := termFreq[term]
			if !ok {
				continue
			}
			score += e.idf(term) * termScore(float64(tf), dl, e.avgdl, e.cfg.K1, e.cfg.B)
		}
		if score > 0 {
			scores[docID] = score
		}
	}

	results := make([]model.BM25Result, 0, len(scores))
	for docID, score := range scores {
		results = append(results, model.BM25Result{DocID: docID, Score: score})
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

// idf implements the constant-add IDF form from §4.7, which keeps IDF
// non-negative regardless of df.
func (e *Engine) idf(term string) float64 {
	df := float64(e.df[term])
	return math.Log((float64(e.n)-df+0.5)/(df+0.5) + 1)
}

// termScore is the Okapi BM25 saturation term for a single query term
// against one document.
func termScore(tf, dl, avgdl, k1, b float64) float64 {
	if avgdl == 0 {
		avgdl = 1
	}
	denom := tf + k1*(1-b+b*dl/avgdl)
	if denom == 0 {
		return 0
	}
	return tf * (k1 + 1) / denom
}

// AllIDs implements Index.
func (e *Engine) AllIDs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, len(e.ids))
	copy(out, e.ids)
	return out
}

// Preview implements Index.
func (e *Engine) Preview(docID string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	raw, ok := e.docs[docID]
	if !ok {
		return "", false
	}
	return Preview(raw), true
}

// Stats implements Index.
func (e *Engine) Stats() model.IndexStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return model.IndexStats{
		DocumentCount: e.n,
		TermCount:     len(e.df),
		AvgDocLength:  e.avgdl,
	}
}

// Save and Load are intentionally unsupported on the native engine: it is
// rebuilt from the document set on every start (§3's "typically rebuilt
// from documents on start"). Callers needing on-disk BM25 persistence
// should select the sqlite backend via the factory.
func (e *Engine) Save(string) error { return errors.New("bm25: native engine does not persist; rebuild from documents") }
func (e *Engine) Load(string) error { return errors.New("bm25: native engine does not persist; rebuild from documents") }

// Close releases no resources for the native engine.
func (e *Engine) Close() error { return nil }

var _ Index = (*Engine)(nil)
