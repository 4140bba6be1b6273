package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check for ConsistencyFaults between the BM25 index and metadata store",
		Long: `doctor cross-checks the BM25 index's document IDs against the
metadata store's documents table (§7 ConsistencyFault: a document
indexed by BM25 but missing from the store, or vice versa) and
reports any orphans found. It mutates nothing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd)
		},
	}
	return cmd
}

func runDoctor(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	h, err := openEngine(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() { _ = h.Close() }()

	indexed := h.Index.AllIDs()
	stored, err := h.Store.AllDocIDs()
	if err != nil {
		return fmt.Errorf("reading document ids from store: %w", err)
	}

	indexedSet := make(map[string]struct{}, len(indexed))
	for _, id := range indexed {
		indexedSet[id] = struct{}{}
	}
	storedSet := make(map[string]struct{}, len(stored))
	for _, id := range stored {
		storedSet[id] = struct{}{}
	}

	var missingMetadata, missingIndex []string
	for id := range indexedSet {
		if _, ok := storedSet[id]; !ok {
			missingMetadata = append(missingMetadata, id)
		}
	}
	for id := range storedSet {
		if _, ok := indexedSet[id]; !ok {
			missingIndex = append(missingIndex, id)
		}
	}
	sort.Strings(missingMetadata)
	sort.Strings(missingIndex)

	cmd.Printf("bm25 index:     %d documents\n", len(indexed))
	cmd.Printf("metadata store: %d documents\n", len(stored))

	if len(missingMetadata) == 0 && len(missingIndex) == 0 {
		cmd.Println("no ConsistencyFaults found")
		return nil
	}

	if len(missingMetadata) > 0 {
		cmd.Printf("\nindexed but missing metadata (%d):\n", len(missingMetadata))
		for _, id := range missingMetadata {
			cmd.Printf("  %s\n", id)
		}
	}
	if len(missingIndex) > 0 {
		cmd.Printf("\nhas metadata but not indexed (%d):\n", len(missingIndex))
		for _, id := range missingIndex {
			cmd.Printf("  %s\n", id)
		}
	}
	return nil
}
