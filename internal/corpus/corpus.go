// Package corpus implements the build_index programmatic entry point
// (§6): scanning a document directory, normalizing encodings, extracting
// and consolidating entity metadata in parallel, and assembling the two
// persisted artifacts a running engine needs — a BM25Index and a
// MetadataStore.
package corpus

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/unicode/norm"

	"github.com/tarunchinta/epsteinai/internal/bm25"
	"github.com/tarunchinta/epsteinai/internal/consolidate"
	"github.com/tarunchinta/epsteinai/internal/errors"
	"github.com/tarunchinta/epsteinai/internal/extract"
	"github.com/tarunchinta/epsteinai/internal/model"
	"github.com/tarunchinta/epsteinai/internal/ner"
	"github.com/tarunchinta/epsteinai/internal/store"
)

// BuildResult bundles the artifacts produced by Build: the queryable
// indexes plus a lookup index for tier-2 query extraction and per-type
// canonical name lists for the substring tier (§4.8).
type BuildResult struct {
	Index        bm25.Index
	Store        *store.MetadataStore
	Lookup       *model.EntityLookupIndex
	CanonicalByType map[model.EntityType][]string
	DocumentCount   int
	FaultCount      int
}

// Options configures a Build call.
type Options struct {
	CorpusDir    string
	Index        bm25.Index
	Store        *store.MetadataStore
	Recognizer   ner.Recognizer
	AliasMap     consolidate.AliasMap
	OnFault      func(docID string, err error) // per-document InputFault hook; may be nil
}

// Build scans dir for .txt documents, normalizes their encoding, runs
// extraction in parallel across runtime.NumCPU() goroutines (§5),
// consolidates entities corpus-wide, and populates index and st.
//
// A per-document read/decode failure is an InputFault: it is reported via
// opts.OnFault and excluded from the corpus, never escalated to a hard
// failure of the whole build (§7's propagation policy).
func Build(ctx context.Context, opts Options) (*BuildResult, error) {
	paths, err := scanDir(opts.CorpusDir)
	if err != nil {
		return nil, fmt.Errorf("corpus: scan: %w", err)
	}

	docs := make([]model.Document, 0, len(paths))
	var faultCount int
	for _, p := range paths {
		doc, err := loadDocument(p)
		if err != nil {
			faultCount++
			if opts.OnFault != nil {
				opts.OnFault(filepath.Base(p), errors.InputFault("failed to load document", err))
			}
			continue
		}
		docs = append(docs, doc)
	}

	if err := opts.Index.Build(docs); err != nil {
		return nil, fmt.Errorf("corpus: bm25 build: %w", err)
	}

	metas, err := extractAll(ctx, docs, opts.Recognizer)
	if err != nil {
		return nil, err
	}

	aliases := opts.AliasMap
	if aliases == nil {
		aliases = consolidate.DefaultAliasMap
	}
	consolidated, finalMetas := consolidateAll(metas, aliases)

	for _, meta := range finalMetas {
		if err := opts.Store.Put(meta); err != nil {
			return nil, fmt.Errorf("corpus: metadata store put %s: %w", meta.DocID, err)
		}
	}

	lookup := consolidate.BuildLookupIndex(allGroups(consolidated))
	canonicalByType := frequencySortedCanonicals(consolidated)

	return &BuildResult{
		Index:           opts.Index,
		Store:           opts.Store,
		Lookup:          lookup,
		CanonicalByType: canonicalByType,
		DocumentCount:   len(docs),
		FaultCount:      faultCount,
	}, nil
}

// scanDir returns every .txt file path directly under dir, sorted for
// determinism.
func scanDir(dir string) ([]string, error) {
	var paths []string
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".txt") {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// loadDocument reads path, auto-detects its charset, and normalizes to
// NFC UTF-8 text (§6's "charset auto-detection, fallback UTF-8 with
// replacement").
func loadDocument(path string) (model.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return model.Document{}, err
	}

	text, enc := decodeText(raw)
	text = norm.NFC.String(text)

	id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return model.Document{
		ID:           id,
		Filename:     filepath.Base(path),
		RawText:      text,
		ByteEncoding: enc,
	}, nil
}

// decodeText tries UTF-8 first; if the bytes are not valid UTF-8, it
// falls back to Windows-1252 (the common legacy encoding for scanned
// English-language document corpora), replacing any byte that still
// fails to decode.
func decodeText(raw []byte) (string, string) {
	if isValidUTF8(raw) {
		return string(raw), "utf-8"
	}
	decoder := charmap.Windows1252.NewDecoder()
	decoded, err := decoder.Bytes(raw)
	if err != nil {
		utf8Decoder := unicode.UTF8.NewDecoder()
		decoded, _ = utf8Decoder.Bytes(raw) // replaces invalid sequences with U+FFFD
		return string(decoded), "utf-8 (replacement)"
	}
	return string(decoded), "windows-1252"
}

func isValidUTF8(b []byte) bool {
	return utf8.Valid(b)
}

// extractAll runs the Metadata Extractor across docs concurrently,
// bounded to the host's CPU count (§5).
func extractAll(ctx context.Context, docs []model.Document, recognizer ner.Recognizer) ([]*model.DocumentMetadata, error) {
	extractor := extract.New(recognizer)
	metas := make([]*model.DocumentMetadata, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	var mu sync.Mutex
	for i, doc := range docs {
		i, doc := i, doc
		g.Go(func() error {
			meta, err := extractor.Extract(gctx, doc)
			if err != nil {
				return fmt.Errorf("extracting %s: %w", doc.ID, err)
			}
			mu.Lock()
			metas[i] = meta
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return metas, nil
}

// consolidateAll runs the Consolidation Engine once per entity type over
// the whole corpus and rewrites each document's metadata sets to their
// canonical forms — the consolidated-canonical form is storage's source
// of truth (§9).
func consolidateAll(metas []*model.DocumentMetadata, aliases consolidate.AliasMap) (map[model.EntityType][]*model.ConsolidationGroup, []*model.DocumentMetadata) {
	byType := map[model.EntityType][]consolidate.SurfaceEntry{
		model.EntityPerson: {},
		model.EntityOrg:    {},
		model.EntityLoc:    {},
	}

	surfaceDocs := map[model.EntityType]map[string]map[string]struct{}{
		model.EntityPerson: {},
		model.EntityOrg:    {},
		model.EntityLoc:    {},
	}

	for _, meta := range metas {
		for t := range byType {
			for surface := range meta.SetFor(t) {
				if surfaceDocs[t][surface] == nil {
					surfaceDocs[t][surface] = map[string]struct{}{}
				}
				surfaceDocs[t][surface][meta.DocID] = struct{}{}
			}
		}
	}
	for t, docsBySurface := range surfaceDocs {
		for surface, docIDs := range docsBySurface {
			byType[t] = append(byType[t], consolidate.SurfaceEntry{Surface: surface, Type: t, DocIDs: docIDs})
		}
	}

	groups := map[model.EntityType][]*model.ConsolidationGroup{}
	canonicalFor := map[model.EntityType]map[string]string{} // surface -> canonical
	for t, entries := range byType {
		groups[t] = consolidate.Consolidate(entries, aliases)
		canonicalFor[t] = map[string]string{}
		for _, g := range groups[t] {
			canonicalFor[t][g.Canonical] = g.Canonical
			for v := range g.Variants {
				canonicalFor[t][v] = g.Canonical
			}
		}
	}

	final := make([]*model.DocumentMetadata, len(metas))
	for i, meta := range metas {
		rewritten := model.NewDocumentMetadata(meta.DocID)
		rewritten.WordCount = meta.WordCount
		rewritten.Dates = meta.Dates
		rewritten.Emails = meta.Emails
		for t := range byType {
			dst := rewritten.SetFor(t)
			for surface := range meta.SetFor(t) {
				if canonical, ok := canonicalFor[t][surface]; ok {
					dst[canonical] = struct{}{}
				}
			}
		}
		final[i] = rewritten
	}

	return groups, final
}

func allGroups(byType map[model.EntityType][]*model.ConsolidationGroup) []*model.ConsolidationGroup {
	var out []*model.ConsolidationGroup
	for _, groups := range byType {
		out = append(out, groups...)
	}
	return out
}

// frequencySortedCanonicals returns, per type, canonical names ordered by
// descending document count (ties broken lexicographically), the order
// the substring tier (§4.8) scans under its per-type cap.
func frequencySortedCanonicals(byType map[model.EntityType][]*model.ConsolidationGroup) map[model.EntityType][]string {
	out := map[model.EntityType][]string{}
	for t, groups := range byType {
		sorted := make([]*model.ConsolidationGroup, len(groups))
		copy(sorted, groups)
		sort.SliceStable(sorted, func(i, j int) bool {
			ci, cj := len(sorted[i].DocIDs), len(sorted[j].DocIDs)
			if ci != cj {
				return ci > cj
			}
			return sorted[i].Canonical < sorted[j].Canonical
		})
		names := make([]string, len(sorted))
		for i, g := range sorted {
			names[i] = g.Canonical
		}
		out[t] = names
	}
	return out
}
