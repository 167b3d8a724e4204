// Package config loads pushplan settings.
//
// Values come from four layers, highest priority first: command-line flags,
// PUSHPLAN_ environment variables, a pushplan.yaml file, and built-in
// defaults. Keys are flat snake_case names so every layer spells them the
// same way (max_candidates, PUSHPLAN_MAX_CANDIDATES, --max-candidates).
package config

import (
	"fmt"
	"slices"

	"github.com/roach88/pushplan/internal/engine"
	"github.com/roach88/pushplan/internal/rel"
)

// Defaults for keys whose zero value is not usable.
const (
	DefaultCatalog = "catalog"
	DefaultOutput  = "text"
)

// Outputs lists the accepted output formats.
var Outputs = []string{"text", "json"}

// Config is the resolved configuration.
type Config struct {
	// Catalog is a CUE file or a directory of CUE files.
	Catalog string `koanf:"catalog"`

	// Database is the SQLite history database. Empty disables recording.
	Database string `koanf:"database"`

	Output  string `koanf:"output"`
	Verbose bool   `koanf:"verbose"`

	// Workers bounds concurrent candidate compilation. Zero means
	// GOMAXPROCS.
	Workers       int `koanf:"workers"`
	MaxCandidates int `koanf:"max_candidates"`
	MaxRuleSteps  int `koanf:"max_rule_steps"`

	PhoenixFactor        float64 `koanf:"phoenix_factor"`
	ServerFactor         float64 `koanf:"server_factor"`
	ClientMergeFactor    float64 `koanf:"client_merge_factor"`
	OrderedGroupByFactor float64 `koanf:"ordered_group_by_factor"`

	// File is the config file that was read, empty when none was.
	File string `koanf:"-"`
}

// defaults returns the default layer as a flat key map.
func defaults() map[string]any {
	m := rel.DefaultCostModel()
	return map[string]any{
		"catalog":                 DefaultCatalog,
		"database":                "",
		"output":                  DefaultOutput,
		"verbose":                 false,
		"workers":                 0,
		"max_candidates":          engine.DefaultMaxCandidates,
		"max_rule_steps":          engine.DefaultMaxSteps,
		"phoenix_factor":          m.PhoenixFactor,
		"server_factor":           m.ServerFactor,
		"client_merge_factor":     m.ClientMergeFactor,
		"ordered_group_by_factor": m.OrderedGroupByFactor,
	}
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	if !slices.Contains(Outputs, c.Output) {
		return fmt.Errorf("output: must be one of %v, got %q", Outputs, c.Output)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers: must be non-negative, got %d", c.Workers)
	}
	if c.MaxCandidates < 1 {
		return fmt.Errorf("max_candidates: must be at least 1, got %d", c.MaxCandidates)
	}
	if c.MaxRuleSteps < 1 {
		return fmt.Errorf("max_rule_steps: must be at least 1, got %d", c.MaxRuleSteps)
	}
	for _, f := range []struct {
		key   string
		value float64
	}{
		{"phoenix_factor", c.PhoenixFactor},
		{"server_factor", c.ServerFactor},
		{"client_merge_factor", c.ClientMergeFactor},
		{"ordered_group_by_factor", c.OrderedGroupByFactor},
	} {
		if f.value <= 0 {
			return fmt.Errorf("%s: must be positive, got %g", f.key, f.value)
		}
	}
	return nil
}

// CostModel returns the configured cost weights.
func (c *Config) CostModel() rel.CostModel {
	return rel.CostModel{
		PhoenixFactor:        c.PhoenixFactor,
		ServerFactor:         c.ServerFactor,
		ClientMergeFactor:    c.ClientMergeFactor,
		OrderedGroupByFactor: c.OrderedGroupByFactor,
	}
}

// EngineOptions returns the engine settings this config controls. The
// store and clock are wired by the caller.
func (c *Config) EngineOptions() []engine.EngineOption {
	opts := []engine.EngineOption{
		engine.WithMaxCandidates(c.MaxCandidates),
		engine.WithMaxSteps(c.MaxRuleSteps),
		engine.WithCostModel(c.CostModel()),
	}
	if c.Workers > 0 {
		opts = append(opts, engine.WithWorkers(c.Workers))
	}
	return opts
}
