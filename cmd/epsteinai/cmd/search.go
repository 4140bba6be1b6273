package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/tarunchinta/epsteinai/internal/config"
	"github.com/tarunchinta/epsteinai/internal/model"
	"github.com/tarunchinta/epsteinai/internal/orchestrator"
)

func newSearchCmd() *cobra.Command {
	var (
		topK     int
		strategy string
		watch    bool
		jsonOut  bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the corpus with blended BM25 and entity matching",
		Long: `search runs the query through the three-tier retrieval pipeline:
BM25 lexical ranking over the top 500 candidates, entity extraction
from the query text, and one of five filtering/boosting strategies
(strict, loose, boost, adaptive, none) applied to the candidate set.

With --watch, the native BM25 backend is rebuilt whenever the corpus
directory changes and the same query is re-run against the fresh
index.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, args[0], topK, strategy, watch, jsonOut)
		},
	}

	cmd.Flags().IntVar(&topK, "top-k", 10, "maximum number of results to return")
	cmd.Flags().StringVar(&strategy, "strategy", "adaptive", "filtering strategy: strict, loose, boost, adaptive, none")
	cmd.Flags().BoolVar(&watch, "watch", false, "rebuild the index and re-query whenever the corpus directory changes")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output results as JSON")

	return cmd
}

func runSearch(cmd *cobra.Command, query string, topK int, strategyFlag string, watch, jsonOut bool) error {
	strat := orchestrator.Strategy(strings.ToLower(strategyFlag))
	switch strat {
	case orchestrator.StrategyStrict, orchestrator.StrategyLoose, orchestrator.StrategyBoost, orchestrator.StrategyAdaptive, orchestrator.StrategyNone:
	default:
		return newExitError(usageErrorExitCode, "unknown strategy %q", strategyFlag)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("strategy") {
		strat = orchestrator.Strategy(strings.ToLower(cfg.Search.DefaultStrategy))
	}
	if !cmd.Flags().Changed("top-k") && cfg.Search.DefaultTopK > 0 {
		topK = cfg.Search.DefaultTopK
	}

	opts := orchestrator.Options{
		TopK:          topK,
		Strategy:      strat,
		MinCandidates: cfg.Search.MinCandidates,
		MaxCandidates: cfg.Search.MaxCandidates,
	}

	if !watch {
		return searchOnce(cmd.Context(), cmd, cfg, query, opts, jsonOut)
	}
	return searchWatch(cmd.Context(), cmd, cfg, query, opts, jsonOut)
}

func searchOnce(ctx context.Context, cmd *cobra.Command, cfg *config.Config, query string, opts orchestrator.Options, jsonOut bool) error {
	h, err := openEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = h.Close() }()

	orch := buildOrchestrator(cfg, h)
	result, err := orch.Search(ctx, query, opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	printSearchResult(cmd, result, jsonOut)
	if len(result.Results) == 0 {
		return newExitError(0, "no results")
	}
	return nil
}

// searchWatch re-opens the engine whenever the corpus directory changes
// and re-runs the query against the fresh state. With the native backend
// each re-open rebuilds the index from the corpus directory. Persistent
// backends reload their saved index and metadata store (openEngine
// re-derives the lookup tables from the store), so corpus changes do not
// reach them until build-index is run again.
func searchWatch(ctx context.Context, cmd *cobra.Command, cfg *config.Config, query string, opts orchestrator.Options, jsonOut bool) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating filesystem watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(cfg.CorpusDir); err != nil {
		return fmt.Errorf("watching %s: %w", cfg.CorpusDir, err)
	}

	runOnce := func() error {
		h, err := openEngine(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = h.Close() }()
		orch := buildOrchestrator(cfg, h)
		result, err := orch.Search(ctx, query, opts)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		printSearchResult(cmd, result, jsonOut)
		return nil
	}

	if err := runOnce(); err != nil {
		var ee *exitError
		if !isNoResultsError(err, &ee) {
			return err
		}
	}

	cmd.PrintErrf("watching %s for changes (ctrl-c to stop)\n", cfg.CorpusDir)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			slog.Info("corpus change detected, rebuilding", slog.String("file", event.Name))
			if err := runOnce(); err != nil {
				var ee *exitError
				if !isNoResultsError(err, &ee) {
					cmd.PrintErrf("rebuild failed: %v\n", err)
				}
			}
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			cmd.PrintErrf("watch error: %v\n", werr)
		}
	}
}

func isNoResultsError(err error, out **exitError) bool {
	ee, ok := err.(*exitError)
	if ok && ee.code == 0 {
		*out = ee
		return true
	}
	return false
}

func printSearchResult(cmd *cobra.Command, result orchestrator.Result, jsonOut bool) {
	if jsonOut {
		_ = json.NewEncoder(cmd.OutOrStdout()).Encode(result)
		return
	}
	if len(result.Results) == 0 {
		cmd.Println("no results")
		return
	}
	cmd.Printf("strategy used: %s\n\n", result.UsedStrategy)
	for i, r := range result.Results {
		cmd.Printf("%d. %s  (bm25=%.3f boost=%.3f final=%.3f)\n", i+1, r.DocID, r.BM25Score, r.MetadataBoost, r.FinalScore)
		if entities := formatMatchedEntities(r.MatchedEntities); entities != "" {
			cmd.Printf("   matched: %s\n", entities)
		}
		if r.Preview != "" {
			cmd.Printf("   %s\n", r.Preview)
		}
	}
}

func formatMatchedEntities(q model.QueryEntities) string {
	var parts []string
	addAll := func(label string, set map[string]struct{}) {
		if len(set) == 0 {
			return
		}
		names := make([]string, 0, len(set))
		for name := range set {
			names = append(names, name)
		}
		parts = append(parts, fmt.Sprintf("%s=%s", label, strings.Join(names, "|")))
	}
	addAll("people", q.People)
	addAll("orgs", q.Organizations)
	addAll("locations", q.Locations)
	addAll("dates", q.Dates)
	return strings.Join(parts, " ")
}
