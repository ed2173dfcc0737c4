// Package config loads optimizer workloads and settings.
//
// Configuration can be loaded from:
//   - a YAML file (LoadConfig)
//   - environment variables (LoadFromEnv, ApplyEnv)
//   - programmatic defaults (DefaultConfig)
//
// Environment Variables:
//
//	RPQOPT_GRAPH        - graph file ("src dst label" per line)
//	RPQOPT_STORE        - badger edge store directory
//	RPQOPT_MODE         - view selection mode, name or number (default: bottom-up)
//	RPQOPT_BUDGET       - view storage budget, or "max" (default: 0)
//	RPQOPT_LOOKUP_COST  - cost of reading a materialized view (default: 1)
//
// Example file:
//
//	graph: testdata/graph.txt
//	queries:
//	  - text: <1>/<2>/<3>
//	    frequency: 3
//	  - text: (<1>/<2>)*
//	selection:
//	  mode: greedy-ratio
//	  budget: 500
//	cost:
//	  lookup_cost: 2
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wbrown/janus-rpq/rpq/planner"
)

// ErrInvalidConfig reports a configuration that fails validation
var ErrInvalidConfig = errors.New("invalid configuration")

// Config describes one optimizer run
type Config struct {
	// Graph is a graph text file; Store a badger edge store directory.
	// At most one of them is used, Store winning.
	Graph string `yaml:"graph"`
	Store string `yaml:"store"`
	// Stats is an optional statistics fixture replacing FillStats
	Stats string `yaml:"stats"`
	// Dag is an optional interchange file to start from
	Dag string `yaml:"dag"`

	Queries   []Query         `yaml:"queries"`
	Selection SelectionConfig `yaml:"selection"`
	Cost      CostConfig      `yaml:"cost"`
	Cache     CacheConfig     `yaml:"cache"`
}

// Query is one workload entry. A missing frequency counts as 1.
type Query struct {
	Text      string `yaml:"text"`
	Frequency uint64 `yaml:"frequency"`
}

// SelectionConfig controls materialized view selection
type SelectionConfig struct {
	Mode   string `yaml:"mode"`
	Budget uint64 `yaml:"budget"`
	// Budgets are the storage budgets swept by explore
	Budgets []uint64 `yaml:"budgets"`
}

// CostConfig mirrors planner.Options
type CostConfig struct {
	LeafScanCost    float64 `yaml:"leaf_scan_cost"`
	ConcatFactor    float64 `yaml:"concat_factor"`
	MergeOverhead   float64 `yaml:"merge_overhead"`
	KleeneMaxRounds int     `yaml:"kleene_max_rounds"`
	LookupCost      float64 `yaml:"lookup_cost"`
}

// CacheConfig sizes the exploration cache
type CacheConfig struct {
	MaxSize int           `yaml:"max_size"`
	TTL     time.Duration `yaml:"ttl"`
}

// DefaultConfig returns a configuration with the planner's default cost
// model, bottom-up selection and no budget
func DefaultConfig() *Config {
	opts := planner.DefaultOptions()
	return &Config{
		Selection: SelectionConfig{
			Mode: planner.ModeBottomUp.String(),
		},
		Cost: CostConfig{
			LeafScanCost:    opts.LeafScanCost,
			ConcatFactor:    opts.ConcatFactor,
			MergeOverhead:   opts.MergeOverhead,
			KleeneMaxRounds: opts.KleeneMaxRounds,
			LookupCost:      opts.LookupCost,
		},
		Cache: CacheConfig{
			MaxSize: 1000,
			TTL:     5 * time.Minute,
		},
	}
}

// LoadConfig reads a YAML file over DefaultConfig. Unknown keys are errors.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg := DefaultConfig()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for i := range cfg.Queries {
		if cfg.Queries[i].Frequency == 0 {
			cfg.Queries[i].Frequency = 1
		}
	}
	return cfg, nil
}

// LoadFromEnv returns DefaultConfig with environment overrides applied
func LoadFromEnv() (*Config, error) {
	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from RPQOPT_* environment variables
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("RPQOPT_GRAPH"); v != "" {
		c.Graph = v
	}
	if v := os.Getenv("RPQOPT_STORE"); v != "" {
		c.Store = v
	}
	if v := os.Getenv("RPQOPT_MODE"); v != "" {
		c.Selection.Mode = v
	}
	if v := os.Getenv("RPQOPT_BUDGET"); v != "" {
		b, err := ParseBudget(v)
		if err != nil {
			return fmt.Errorf("RPQOPT_BUDGET: %w", err)
		}
		c.Selection.Budget = b
	}
	if v := os.Getenv("RPQOPT_LOOKUP_COST"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RPQOPT_LOOKUP_COST: %w", err)
		}
		c.Cost.LookupCost = f
	}
	return nil
}

// ParseBudget accepts a non-negative integer, or "max" for no limit
func ParseBudget(s string) (uint64, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "max", "unlimited":
		return math.MaxUint64, nil
	}
	return strconv.ParseUint(strings.TrimSpace(s), 10, 64)
}

// Validate checks that the configuration can drive the optimizer
func (c *Config) Validate() error {
	if _, err := planner.ParseSelectionMode(c.Selection.Mode); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	for name, v := range map[string]float64{
		"leaf_scan_cost": c.Cost.LeafScanCost,
		"concat_factor":  c.Cost.ConcatFactor,
		"merge_overhead": c.Cost.MergeOverhead,
		"lookup_cost":    c.Cost.LookupCost,
	} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s must be a non-negative number, got %v", ErrInvalidConfig, name, v)
		}
	}
	if c.Cost.KleeneMaxRounds < 1 {
		return fmt.Errorf("%w: kleene_max_rounds must be at least 1, got %d", ErrInvalidConfig, c.Cost.KleeneMaxRounds)
	}

	for i, q := range c.Queries {
		if strings.TrimSpace(q.Text) == "" {
			return fmt.Errorf("%w: query %d has no text", ErrInvalidConfig, i)
		}
	}
	if c.Cache.MaxSize < 0 {
		return fmt.Errorf("%w: cache max_size must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Mode returns the parsed selection mode
func (c *Config) Mode() (planner.SelectionMode, error) {
	return planner.ParseSelectionMode(c.Selection.Mode)
}

// Options converts the cost section into planner options
func (c *Config) Options() planner.Options {
	return planner.Options{
		LeafScanCost:    c.Cost.LeafScanCost,
		ConcatFactor:    c.Cost.ConcatFactor,
		MergeOverhead:   c.Cost.MergeOverhead,
		KleeneMaxRounds: c.Cost.KleeneMaxRounds,
		LookupCost:      c.Cost.LookupCost,
	}
}
