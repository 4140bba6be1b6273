package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tarunchinta/epsteinai/internal/csvexport"
	"github.com/tarunchinta/epsteinai/internal/model"
)

func newExportCmd() *cobra.Command {
	var (
		layout     string
		entityType string
		outPath    string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export entity metadata to one of the three CSV layouts",
		Long: `export writes the entity metadata collected at index time to CSV,
in one of the three layouts from §6:

  frequencies   Entity Type, Entity, Document Count (all types, sorted
                by type then descending count)
  documents     Entity, Document Count, Document IDs (one entity type,
                selected with --type)
  cooccurrence  a square matrix of entity names on both axes, cell value
                the count of documents containing both (one entity type,
                selected with --type)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, layout, entityType, outPath, limit)
		},
	}

	cmd.Flags().StringVar(&layout, "layout", "frequencies", "CSV layout: frequencies, documents, cooccurrence")
	cmd.Flags().StringVar(&entityType, "type", "people", "entity type for documents/cooccurrence layouts: people, organizations, locations")
	cmd.Flags().StringVar(&outPath, "out", "", "output file path (default: stdout)")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum entities to include in the cooccurrence matrix (most frequent first)")

	return cmd
}

func runExport(cmd *cobra.Command, layout, entityTypeFlag, outPath string, limit int) error {
	t, err := parseEntityType(entityTypeFlag)
	if err != nil {
		return newExitError(usageErrorExitCode, "%v", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	h, err := openEngine(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() { _ = h.Close() }()

	out := cmd.OutOrStdout()
	if outPath != "" {
		f, ferr := os.Create(outPath)
		if ferr != nil {
			return fmt.Errorf("creating %s: %w", outPath, ferr)
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	switch layout {
	case "frequencies":
		return csvexport.WriteFrequencies(out, h.Store)
	case "documents":
		docIDs, derr := h.Store.DocsByEntity(t)
		if derr != nil {
			return fmt.Errorf("reading document associations: %w", derr)
		}
		return csvexport.WriteDocuments(out, docIDs)
	case "cooccurrence":
		names, ferr := topFrequentNames(h, t, limit)
		if ferr != nil {
			return fmt.Errorf("reading frequencies: %w", ferr)
		}
		return csvexport.WriteCooccurrenceMatrix(out, h.Store, t, names)
	default:
		return newExitError(usageErrorExitCode, "unknown layout %q", layout)
	}
}

func parseEntityType(s string) (model.EntityType, error) {
	switch s {
	case "people", "person":
		return model.EntityPerson, nil
	case "organizations", "org", "orgs":
		return model.EntityOrg, nil
	case "locations", "loc", "location":
		return model.EntityLoc, nil
	default:
		return "", fmt.Errorf("unknown entity type %q", s)
	}
}

func topFrequentNames(h *engineHandle, t model.EntityType, limit int) ([]string, error) {
	freq, err := h.Store.Frequencies(t)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(freq))
	for name := range freq {
		names = append(names, name)
	}
	sortByFrequencyDesc(names, freq)
	if limit > 0 && len(names) > limit {
		names = names[:limit]
	}
	return names, nil
}
