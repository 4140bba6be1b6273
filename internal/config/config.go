// Package config provides layered configuration for the retrieval engine:
// defaults embedded in code, overridden by a YAML file, overridden by
// EPSTEINAI_* environment variables, validated once at load time.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tarunchinta/epsteinai/internal/bm25"
)

// Strategy names the §4.10 orchestrator filtering strategy.
type Strategy string

const (
	StrategyStrict   Strategy = "strict"
	StrategyLoose    Strategy = "loose"
	StrategyBoost    Strategy = "boost"
	StrategyAdaptive Strategy = "adaptive"
	StrategyNone     Strategy = "none"
)

// Config is the complete, validated configuration for a running engine.
type Config struct {
	Version int `yaml:"version" json:"version"`

	// CorpusDir is the directory build_index scans for .txt documents.
	CorpusDir string `yaml:"corpus_dir" json:"corpus_dir"`

	// StorePath is the on-disk path for the Metadata Store's SQLite file.
	StorePath string `yaml:"store_path" json:"store_path"`

	BM25    BM25Config    `yaml:"bm25" json:"bm25"`
	Search  SearchConfig  `yaml:"search" json:"search"`
	Scoring ScoringConfig `yaml:"scoring" json:"scoring"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// BM25Config configures the lexical index.
type BM25Config struct {
	// Backend selects the Index implementation: "native", "sqlite", or "bleve".
	Backend string  `yaml:"backend" json:"backend"`
	K1      float64 `yaml:"k1" json:"k1"`
	B       float64 `yaml:"b" json:"b"`
}

// SearchConfig configures the Enhanced Search Orchestrator (§4.10).
type SearchConfig struct {
	// DefaultStrategy is used when a caller does not specify one.
	DefaultStrategy string `yaml:"default_strategy" json:"default_strategy"`
	// DefaultTopK is the result count returned when a caller does not specify one.
	DefaultTopK int `yaml:"default_top_k" json:"default_top_k"`
	// MinCandidates and MaxCandidates bound the adaptive strategy's fallback chain.
	MinCandidates int `yaml:"min_candidates" json:"min_candidates"`
	MaxCandidates int `yaml:"max_candidates" json:"max_candidates"`
	// SubstringTierCap bounds the §4.8 substring-scan tier's per-type entity scan.
	SubstringTierCap int `yaml:"substring_tier_cap" json:"substring_tier_cap"`
	// FuzzyThreshold is the Entity Matcher's similarity threshold (§4.3).
	FuzzyThreshold float64 `yaml:"fuzzy_threshold" json:"fuzzy_threshold"`
}

// ScoringConfig configures the Metadata Scorer's weights (§4.9).
type ScoringConfig struct {
	PersonWeight float64 `yaml:"person_weight" json:"person_weight"`
	LocWeight    float64 `yaml:"loc_weight" json:"loc_weight"`
	OrgWeight    float64 `yaml:"org_weight" json:"org_weight"`
	DateWeight   float64 `yaml:"date_weight" json:"date_weight"`
}

// LoggingConfig holds a log level and log file path, loaded and merged
// like the rest of Config. The CLI's logging setup does not read it: the
// CLI always logs to ~/.epsteinai/logs/engine.log at info level, or at
// debug level with --debug.
type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

// NewConfig returns a Config populated with the specification's defaults:
// BM25 k1=1.5/b=0.75 (§4.7), scorer weights 2.0/1.5/1.5/1.0 (§4.9), a
// 2,000-entity substring cap (§4.8/§9), and a 0.85 fuzzy threshold (§4.3).
func NewConfig() *Config {
	return &Config{
		Version:   1,
		CorpusDir: "./documents",
		StorePath: defaultStorePath(),
		BM25: BM25Config{
			Backend: string(bm25.BackendNative),
			K1:      bm25.DefaultK1,
			B:       bm25.DefaultB,
		},
		Search: SearchConfig{
			DefaultStrategy:  string(StrategyAdaptive),
			DefaultTopK:      10,
			MinCandidates:    50,
			MaxCandidates:    100,
			SubstringTierCap: 2000,
			FuzzyThreshold:   0.85,
		},
		Scoring: ScoringConfig{
			PersonWeight: 2.0,
			LocWeight:    1.5,
			OrgWeight:    1.5,
			DateWeight:   1.0,
		},
		Logging: LoggingConfig{
			Level:    "info",
			FilePath: defaultLogPath(),
		},
	}
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".epsteinai", "metadata.db")
	}
	return filepath.Join(home, ".epsteinai", "metadata.db")
}

func defaultLogPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".epsteinai", "logs", "engine.log")
	}
	return filepath.Join(home, ".epsteinai", "logs", "engine.log")
}

// GetUserConfigPath returns the path to the user-global config file,
// honoring XDG_CONFIG_HOME when set.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "epsteinai", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "epsteinai", "config.yaml")
	}
	return filepath.Join(home, ".config", "epsteinai", "config.yaml")
}

// Load builds the final Config for a run: defaults, then the user-global
// config file (if present), then a project-local ".epsteinai.yaml" in dir
// (if present), then EPSTEINAI_* environment variables, each layer
// overriding the last. The result is validated before being returned.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userPath := GetUserConfigPath(); fileExists(userPath) {
		if err := cfg.mergeYAMLFile(userPath); err != nil {
			return nil, fmt.Errorf("loading user config: %w", err)
		}
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadFromFile merges a project-local .epsteinai.yaml or .epsteinai.yml
// found in dir, if one exists. Absence of a project config is not an error.
func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{".epsteinai.yaml", ".epsteinai.yml"} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.mergeYAMLFile(path)
		}
	}
	return nil
}

func (c *Config) mergeYAMLFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	c.mergeWith(&parsed)
	return nil
}

// mergeWith overlays non-zero fields of other onto c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}
	if other.CorpusDir != "" {
		c.CorpusDir = other.CorpusDir
	}
	if other.StorePath != "" {
		c.StorePath = other.StorePath
	}
	if other.BM25.Backend != "" {
		c.BM25.Backend = other.BM25.Backend
	}
	if other.BM25.K1 != 0 {
		c.BM25.K1 = other.BM25.K1
	}
	if other.BM25.B != 0 {
		c.BM25.B = other.BM25.B
	}
	if other.Search.DefaultStrategy != "" {
		c.Search.DefaultStrategy = other.Search.DefaultStrategy
	}
	if other.Search.DefaultTopK != 0 {
		c.Search.DefaultTopK = other.Search.DefaultTopK
	}
	if other.Search.MinCandidates != 0 {
		c.Search.MinCandidates = other.Search.MinCandidates
	}
	if other.Search.MaxCandidates != 0 {
		c.Search.MaxCandidates = other.Search.MaxCandidates
	}
	if other.Search.SubstringTierCap != 0 {
		c.Search.SubstringTierCap = other.Search.SubstringTierCap
	}
	if other.Search.FuzzyThreshold != 0 {
		c.Search.FuzzyThreshold = other.Search.FuzzyThreshold
	}
	if other.Scoring.PersonWeight != 0 {
		c.Scoring.PersonWeight = other.Scoring.PersonWeight
	}
	if other.Scoring.LocWeight != 0 {
		c.Scoring.LocWeight = other.Scoring.LocWeight
	}
	if other.Scoring.OrgWeight != 0 {
		c.Scoring.OrgWeight = other.Scoring.OrgWeight
	}
	if other.Scoring.DateWeight != 0 {
		c.Scoring.DateWeight = other.Scoring.DateWeight
	}
	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.FilePath != "" {
		c.Logging.FilePath = other.Logging.FilePath
	}
}

// envOverride applies fn to the value of EPSTEINAI_<name> if it is set.
func envOverride(name string, fn func(string)) {
	if v := os.Getenv("EPSTEINAI_" + name); v != "" {
		fn(v)
	}
}

func envOverrideFloat(name string, fn func(float64)) {
	envOverride(name, func(v string) {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			fn(f)
		}
	})
}

func envOverrideInt(name string, fn func(int)) {
	envOverride(name, func(v string) {
		if n, err := strconv.Atoi(v); err == nil {
			fn(n)
		}
	})
}

// applyEnvOverrides applies EPSTEINAI_* environment variables, the
// highest-precedence configuration layer.
func (c *Config) applyEnvOverrides() {
	envOverride("CORPUS_DIR", func(v string) { c.CorpusDir = v })
	envOverride("STORE_PATH", func(v string) { c.StorePath = v })
	envOverride("BM25_BACKEND", func(v string) { c.BM25.Backend = v })
	envOverrideFloat("BM25_K1", func(f float64) { c.BM25.K1 = f })
	envOverrideFloat("BM25_B", func(f float64) { c.BM25.B = f })
	envOverride("STRATEGY", func(v string) { c.Search.DefaultStrategy = v })
	envOverrideInt("TOP_K", func(n int) { c.Search.DefaultTopK = n })
	envOverrideInt("MIN_CANDIDATES", func(n int) { c.Search.MinCandidates = n })
	envOverrideInt("MAX_CANDIDATES", func(n int) { c.Search.MaxCandidates = n })
	envOverrideInt("SUBSTRING_TIER_CAP", func(n int) { c.Search.SubstringTierCap = n })
	envOverrideFloat("FUZZY_THRESHOLD", func(f float64) { c.Search.FuzzyThreshold = f })
	envOverride("LOG_LEVEL", func(v string) { c.Logging.Level = v })
	envOverride("LOG_FILE", func(v string) { c.Logging.FilePath = v })
}

// Validate checks the configuration is internally consistent, returning
// the first violation found.
func (c *Config) Validate() error {
	switch Strategy(c.Search.DefaultStrategy) {
	case StrategyStrict, StrategyLoose, StrategyBoost, StrategyAdaptive, StrategyNone:
	default:
		return fmt.Errorf("search.default_strategy: unknown strategy %q", c.Search.DefaultStrategy)
	}
	switch strings.ToLower(c.BM25.Backend) {
	case "native", "sqlite", "bleve":
	default:
		return fmt.Errorf("bm25.backend: unknown backend %q", c.BM25.Backend)
	}
	if c.Search.DefaultTopK < 0 {
		return fmt.Errorf("search.default_top_k: must be >= 0, got %d", c.Search.DefaultTopK)
	}
	if c.Search.MinCandidates < 0 || c.Search.MaxCandidates < c.Search.MinCandidates {
		return fmt.Errorf("search.min_candidates/max_candidates: invalid bounds (%d, %d)",
			c.Search.MinCandidates, c.Search.MaxCandidates)
	}
	if c.Search.FuzzyThreshold <= 0 || c.Search.FuzzyThreshold > 1 {
		return fmt.Errorf("search.fuzzy_threshold: must be in (0, 1], got %v", c.Search.FuzzyThreshold)
	}
	if c.BM25.K1 <= 0 || c.BM25.B < 0 || c.BM25.B > 1 {
		return fmt.Errorf("bm25: k1 must be > 0 and b must be in [0, 1], got k1=%v b=%v", c.BM25.K1, c.BM25.B)
	}
	return nil
}

// WriteYAML writes the configuration to path as YAML, creating parent
// directories as needed.
func (c *Config) WriteYAML(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
