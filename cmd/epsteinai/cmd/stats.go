package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tarunchinta/epsteinai/internal/model"
)

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show corpus and index statistics",
		Long:  `stats reports BM25 index size and per-type entity counts from the metadata store.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd)
		},
	}
	return cmd
}

func runStats(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	h, err := openEngine(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() { _ = h.Close() }()

	idxStats := h.Index.Stats()
	cmd.Printf("documents indexed:  %d\n", idxStats.DocumentCount)
	cmd.Printf("vocabulary size:    %d\n", idxStats.TermCount)
	cmd.Printf("average doc length: %.1f tokens\n\n", idxStats.AvgDocLength)

	allEntities, err := h.Store.AllEntities()
	if err != nil {
		return fmt.Errorf("reading entity counts: %w", err)
	}
	docIDs, err := h.Store.AllDocIDs()
	if err != nil {
		return fmt.Errorf("reading document ids: %w", err)
	}

	for _, t := range []model.EntityType{model.EntityPerson, model.EntityOrg, model.EntityLoc} {
		cmd.Printf("%-8s %d distinct\n", string(t)+":", len(allEntities[t]))
	}
	cmd.Printf("documents with extracted metadata: %d\n", len(docIDs))
	return nil
}
