package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, "native", cfg.BM25.Backend)
	assert.Equal(t, 1.5, cfg.BM25.K1)
	assert.Equal(t, 0.75, cfg.BM25.B)
	assert.Equal(t, string(StrategyAdaptive), cfg.Search.DefaultStrategy)
	assert.Equal(t, 50, cfg.Search.MinCandidates)
	assert.Equal(t, 100, cfg.Search.MaxCandidates)
	assert.Equal(t, 2000, cfg.Search.SubstringTierCap)
	assert.Equal(t, 0.85, cfg.Search.FuzzyThreshold)
	assert.Equal(t, 2.0, cfg.Scoring.PersonWeight)
	assert.Equal(t, 1.5, cfg.Scoring.LocWeight)
	assert.Equal(t, 1.5, cfg.Scoring.OrgWeight)
	assert.Equal(t, 1.0, cfg.Scoring.DateWeight)
	require.NoError(t, cfg.Validate())
}

func TestLoad_ProjectYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	yamlContent := `
corpus_dir: /data/corpus
search:
  default_strategy: strict
  default_top_k: 25
bm25:
  backend: sqlite
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".epsteinai.yaml"), []byte(yamlContent), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "/data/corpus", cfg.CorpusDir)
	assert.Equal(t, string(StrategyStrict), cfg.Search.DefaultStrategy)
	assert.Equal(t, 25, cfg.Search.DefaultTopK)
	assert.Equal(t, "sqlite", cfg.BM25.Backend)
	// Unset fields keep their defaults.
	assert.Equal(t, 1.5, cfg.BM25.K1)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".epsteinai.yaml"), []byte("search:\n  default_strategy: strict\n"), 0o644))

	t.Setenv("EPSTEINAI_STRATEGY", "loose")
	t.Setenv("EPSTEINAI_TOP_K", "42")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, string(StrategyLoose), cfg.Search.DefaultStrategy)
	assert.Equal(t, 42, cfg.Search.DefaultTopK)
}

func TestLoad_NoProjectConfigUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, string(StrategyAdaptive), cfg.Search.DefaultStrategy)
}

func TestValidate_RejectsUnknownStrategy(t *testing.T) {
	cfg := NewConfig()
	cfg.Search.DefaultStrategy = "bogus"
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsUnknownBM25Backend(t *testing.T) {
	cfg := NewConfig()
	cfg.BM25.Backend = "bogus"
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsNegativeTopK(t *testing.T) {
	cfg := NewConfig()
	cfg.Search.DefaultTopK = -1
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsInvertedCandidateBounds(t *testing.T) {
	cfg := NewConfig()
	cfg.Search.MinCandidates = 100
	cfg.Search.MaxCandidates = 50
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsOutOfRangeFuzzyThreshold(t *testing.T) {
	cfg := NewConfig()
	cfg.Search.FuzzyThreshold = 1.5
	assert.Error(t, cfg.Validate())
}

func TestWriteYAML_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "config.yaml")

	cfg := NewConfig()
	cfg.CorpusDir = "/tmp/docs"
	require.NoError(t, cfg.WriteYAML(path))

	assert.FileExists(t, path)
	loaded := NewConfig()
	require.NoError(t, loaded.mergeYAMLFile(path))
	assert.Equal(t, "/tmp/docs", loaded.CorpusDir)
}
