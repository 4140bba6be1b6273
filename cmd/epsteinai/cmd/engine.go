package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/tarunchinta/epsteinai/internal/bm25"
	"github.com/tarunchinta/epsteinai/internal/config"
	"github.com/tarunchinta/epsteinai/internal/corpus"
	"github.com/tarunchinta/epsteinai/internal/entity"
	"github.com/tarunchinta/epsteinai/internal/model"
	"github.com/tarunchinta/epsteinai/internal/ner"
	"github.com/tarunchinta/epsteinai/internal/orchestrator"
	"github.com/tarunchinta/epsteinai/internal/queryextract"
	"github.com/tarunchinta/epsteinai/internal/scoring"
	"github.com/tarunchinta/epsteinai/internal/store"
)

// missingIndexExitCode is returned when a command that reads the index
// cannot find persisted state to read (§6 CLI exit-code contract).
const missingIndexExitCode = 2

// usageErrorExitCode is returned for malformed CLI invocations.
const usageErrorExitCode = 64

// exitError carries a process exit code alongside a human-readable
// message, surfaced by main's error handling.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func newExitError(code int, format string, args ...interface{}) error {
	return &exitError{code: code, err: fmt.Errorf(format, args...)}
}

// ExitCode extracts the process exit code intended for err, defaulting to
// 1 for unclassified errors.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if ee, ok := err.(*exitError); ok {
		return ee.code
	}
	return 1
}

// engineHandle bundles the live components a query-time command needs.
type engineHandle struct {
	Index           bm25.Index
	Store           *store.MetadataStore
	Lookup          *model.EntityLookupIndex
	CanonicalByType map[model.EntityType][]string
	close           func() error
}

func (h *engineHandle) Close() error {
	if h.close != nil {
		return h.close()
	}
	return nil
}

// openEngine assembles the BM25 index, metadata store, and query-time
// lookup tables for a configured corpus.
//
// The native BM25 backend does not persist (internal/bm25.Engine.Save and
// Load both error by design), so with that backend openEngine rebuilds
// an ephemeral index and metadata store from the corpus directory on
// every invocation. Persistent backends (sqlite, bleve) load their
// on-disk files instead, and the lookup tables are reconstructed from the
// persisted Metadata Store's canonical names (consolidation variants are
// not persisted; only canonical forms are, per §9's storage decision).
func openEngine(ctx context.Context, cfg *config.Config) (*engineHandle, error) {
	backend := bm25.Backend(cfg.BM25.Backend)
	idxCfg := bm25.Config{K1: cfg.BM25.K1, B: cfg.BM25.B}

	if backend == bm25.BackendNative || backend == "" {
		return openNativeEngine(ctx, cfg, idxCfg)
	}
	return openPersistedEngine(cfg, backend, idxCfg)
}

func openNativeEngine(ctx context.Context, cfg *config.Config, idxCfg bm25.Config) (*engineHandle, error) {
	if _, err := os.Stat(cfg.CorpusDir); err != nil {
		return nil, newExitError(missingIndexExitCode, "corpus directory %s not found", cfg.CorpusDir)
	}

	idx := bm25.NewEngine(idxCfg)
	st, err := store.NewMetadataStore("")
	if err != nil {
		return nil, fmt.Errorf("opening ephemeral metadata store: %w", err)
	}

	result, err := corpus.Build(ctx, corpus.Options{
		CorpusDir:  cfg.CorpusDir,
		Index:      idx,
		Store:      st,
		Recognizer: ner.NewPatternRecognizer(),
		OnFault: func(docID string, faultErr error) {
			slog.Warn("document load failed", slog.String("doc_id", docID), slog.String("error", faultErr.Error()))
		},
	})
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("building index from %s: %w", cfg.CorpusDir, err)
	}

	return &engineHandle{
		Index:           idx,
		Store:           st,
		Lookup:          result.Lookup,
		CanonicalByType: result.CanonicalByType,
		close:           st.Close,
	}, nil
}

func openPersistedEngine(cfg *config.Config, backend bm25.Backend, idxCfg bm25.Config) (*engineHandle, error) {
	if cfg.StorePath != "" {
		if _, err := os.Stat(cfg.StorePath); err != nil {
			return nil, newExitError(missingIndexExitCode, "no metadata store found at %s: run build-index first", cfg.StorePath)
		}
	}
	st, err := store.NewMetadataStore(cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("opening metadata store: %w", err)
	}

	idx, err := bm25.New(backend, cfg.StorePath, idxCfg)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("constructing %s bm25 index: %w", backend, err)
	}
	if err := idx.Load(cfg.StorePath); err != nil {
		_ = st.Close()
		return nil, newExitError(missingIndexExitCode, "loading %s bm25 index: %v", backend, err)
	}

	lookup, canonicalByType, err := lookupFromStore(st)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("rebuilding lookup tables from metadata store: %w", err)
	}

	return &engineHandle{
		Index:           idx,
		Store:           st,
		Lookup:          lookup,
		CanonicalByType: canonicalByType,
		close: func() error {
			_ = idx.Close()
			return st.Close()
		},
	}, nil
}

// lookupFromStore reconstructs the EntityLookupIndex and frequency-sorted
// canonical-name lists the Query Entity Extractor needs purely from a
// Metadata Store's persisted canonical names.
func lookupFromStore(st *store.MetadataStore) (*model.EntityLookupIndex, map[model.EntityType][]string, error) {
	all, err := st.AllEntities()
	if err != nil {
		return nil, nil, err
	}

	lookup := model.NewEntityLookupIndex()
	canonicalByType := map[model.EntityType][]string{}
	for t, names := range all {
		freq, err := st.Frequencies(t)
		if err != nil {
			return nil, nil, err
		}
		sorted := make([]string, 0, len(names))
		for name := range names {
			sorted = append(sorted, name)
			lookup.Add(entity.Normalize(name), model.LookupKey{Canonical: name, Type: t})
		}
		sortByFrequencyDesc(sorted, freq)
		canonicalByType[t] = sorted
	}
	return lookup, canonicalByType, nil
}

func sortByFrequencyDesc(names []string, freq map[string]int) {
	for i := 1; i < len(names); i++ {
		for j := i; j > 0; j-- {
			if freq[names[j]] > freq[names[j-1]] || (freq[names[j]] == freq[names[j-1]] && names[j] < names[j-1]) {
				names[j], names[j-1] = names[j-1], names[j]
			} else {
				break
			}
		}
	}
}

// buildOrchestrator assembles the §4.10 orchestrator over an open engine
// handle.
func buildOrchestrator(cfg *config.Config, h *engineHandle) *orchestrator.Orchestrator {
	matcher := &entity.Matcher{Threshold: cfg.Search.FuzzyThreshold}
	weights := scoring.Weights{
		Person: cfg.Scoring.PersonWeight,
		Loc:    cfg.Scoring.LocWeight,
		Org:    cfg.Scoring.OrgWeight,
		Date:   cfg.Scoring.DateWeight,
	}
	scorer := scoring.New(weights, matcher)
	extractor := queryextract.New(
		ner.NewPatternRecognizer(),
		h.Lookup,
		queryextract.CanonicalNames{ByType: h.CanonicalByType},
		cfg.Search.SubstringTierCap,
	)
	return orchestrator.New(h.Index, h.Store, extractor, scorer, matcher)
}
