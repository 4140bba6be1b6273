package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/tarunchinta/epsteinai/internal/bm25"
	"github.com/tarunchinta/epsteinai/internal/corpus"
	"github.com/tarunchinta/epsteinai/internal/ner"
	"github.com/tarunchinta/epsteinai/internal/store"
)

func newBuildIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build-index",
		Short: "Scan the corpus directory and build a fresh retrieval index",
		Long: `build-index scans the configured corpus directory for .txt documents,
normalizes their encoding, extracts entity metadata, consolidates
duplicate surface forms across the corpus, and persists the result to
the configured BM25 backend and metadata store.

With the native BM25 backend, the lexical index itself is not
persisted to disk; only the metadata store is. Set bm25.backend in the
config file (or EPSTEINAI_BM25_BACKEND) to sqlite or bleve for a
persisted lexical index.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuildIndex(cmd)
		},
	}
	return cmd
}

func runBuildIndex(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := store.NewMetadataStore(cfg.StorePath)
	if err != nil {
		return fmt.Errorf("opening metadata store: %w", err)
	}
	defer func() { _ = st.Close() }()

	idx, err := bm25.New(bm25.Backend(cfg.BM25.Backend), cfg.StorePath, bm25.Config{K1: cfg.BM25.K1, B: cfg.BM25.B})
	if err != nil {
		return fmt.Errorf("constructing %s bm25 index: %w", cfg.BM25.Backend, err)
	}
	defer func() { _ = idx.Close() }()

	start := time.Now()
	result, err := corpus.Build(cmd.Context(), corpus.Options{
		CorpusDir:  cfg.CorpusDir,
		Index:      idx,
		Store:      st,
		Recognizer: ner.NewPatternRecognizer(),
		OnFault: func(docID string, faultErr error) {
			slog.Warn("skipping document", slog.String("doc_id", docID), slog.String("error", faultErr.Error()))
			cmd.PrintErrf("warning: skipped %s: %v\n", docID, faultErr)
		},
	})
	if err != nil {
		return fmt.Errorf("building index: %w", err)
	}

	if err := idx.Save(cfg.StorePath); err != nil && cfg.BM25.Backend != string(bm25.BackendNative) {
		return fmt.Errorf("persisting bm25 index: %w", err)
	}

	elapsed := time.Since(start)
	cmd.Printf("indexed %d documents (%d skipped) from %s in %s\n", result.DocumentCount, result.FaultCount, cfg.CorpusDir, elapsed.Round(time.Millisecond))
	cmd.Printf("metadata store: %s\n", storeLabel(cfg.StorePath))
	return nil
}

func storeLabel(path string) string {
	if path == "" {
		return "(in-memory)"
	}
	return path
}
