package bm25

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/tarunchinta/epsteinai/internal/model"
	"github.com/tarunchinta/epsteinai/internal/normalize"
)

// bleveField is the name of the stored field holding raw document text.
const bleveField = "content"

// BleveIndex persists documents through a Bleve v2 full-text index.
// Bleve supplies storage, retrieval, and broad-recall candidate
// generation; final scoring is computed in Go against the exact §4.7
// Okapi formula so ranking is identical across every backend (Bleve's
// own TF-IDF scorer uses different weighting than Okapi BM25).
type BleveIndex struct {
	cfg  Config
	path string

	mu      sync.RWMutex
	index   bleve.Index
	rawText map[string]string
	dl      map[string]int
	tf      map[string]map[string]int
	df      map[string]int
	ids     []string
	n       int
	avgdl   float64
}

// NewBleveIndex opens or creates a Bleve index at path. An empty path
// uses an in-memory index.
func NewBleveIndex(path string, cfg Config) (*BleveIndex, error) {
	if cfg.K1 == 0 && cfg.B == 0 {
		cfg = DefaultConfig()
	}

	m := bleve.NewIndexMapping()

	var idx bleve.Index
	var err error
	if path == "" {
		idx, err = bleve.NewMemOnly(m)
	} else {
		idx, err = bleve.Open(path)
		if err != nil {
			idx, err = bleve.New(path, m)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("bm25 bleve: open: %w", err)
	}

	return &BleveIndex{
		cfg:     cfg,
		path:    path,
		index:   idx,
		rawText: map[string]string{},
		dl:      map[string]int{},
		tf:      map[string]map[string]int{},
		df:      map[string]int{},
	}, nil
}

// Build implements Index.
func (b *BleveIndex) Build(docs []model.Document) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	batch := b.index.NewBatch()
	b.rawText = map[string]string{}
	b.dl = map[string]int{}
	b.tf = map[string]map[string]int{}
	b.df = map[string]int{}
	b.ids = nil

	var totalLen int
	for _, d := range docs {
		if err := batch.Index(d.ID, map[string]any{bleveField: d.RawText}); err != nil {
			return fmt.Errorf("bm25 bleve: batch index: %w", err)
		}

		b.rawText[d.ID] = d.RawText
		tokens := normalize.Tokenize(d.RawText)
		termFreq := map[string]int{}
		for _, t := range tokens {
			termFreq[t]++
		}
		b.dl[d.ID] = len(tokens)
		b.tf[d.ID] = termFreq
		b.ids = append(b.ids, d.ID)
		totalLen += len(tokens)
		for term := range termFreq {
			b.df[term]++
		}
	}

	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("bm25 bleve: commit batch: %w", err)
	}

	b.n = len(docs)
	if b.n > 0 {
		b.avgdl = float64(totalLen) / float64(b.n)
	} else {
		b.avgdl = 0
	}
	return nil
}

// Search implements Index: Bleve supplies the candidate set, scoring is
// the exact Okapi formula from §4.7.
func (b *BleveIndex) Search(query string, topK int) ([]model.BM25Result, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	terms := normalize.Tokenize(query)
	if len(terms) == 0 {
		return nil, nil
	}

	bq := bleve.NewDisjunctionQuery()
	for _, t := range terms {
		bq.AddQuery(bleve.NewMatchQuery(t))
	}
	req := bleve.NewSearchRequest(bq)
	req.Size = b.n
	res, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("bm25 bleve: search: %w", err)
	}

	results := make([]model.BM25Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		docID := hit.ID
		dl := float64(b.dl[docID])
		termFreq := b.tf[docID]

		var score float64
		for _, term := range terms {
			tf, ok := termFreq[term]
			if !ok {
				continue
			}
			score += b.idf(term) * termScore(float64(tf), dl, b.avgdl, b.cfg.K1, b.cfg.B)
		}
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

func (b *BleveIndex) idf(term string) float64 {
	df := float64(b.df[term])
	return math.Log((float64(b.n)-df+0.5)/(df+0.5) + 1)
}

// AllIDs implements Index.
func (b *BleveIndex) AllIDs() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, len(b.ids))
	copy(out, b.ids)
	return out
}

// Preview implements Index.
func (b *BleveIndex) Preview(docID string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	raw, ok := b.rawText[docID]
	if !ok {
		return "", false
	}
	return Preview(raw), true
}

// Stats implements Index.
func (b *BleveIndex) Stats() model.IndexStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return model.IndexStats{DocumentCount: b.n, TermCount: len(b.df), AvgDocLength: b.avgdl}
}

// Save is a no-op for a disk-backed Bleve index (already persisted); for
// an in-memory index there is nothing to flush to path.
func (b *BleveIndex) Save(string) error { return nil }

// Load is a no-op: the constructor already opened the index at path.
func (b *BleveIndex) Load(string) error { return nil }

// Close closes the underlying Bleve index.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.index.Close()
}

var _ Index = (*BleveIndex)(nil)
