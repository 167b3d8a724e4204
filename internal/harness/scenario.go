package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/pushplan/internal/ir"
	"github.com/roach88/pushplan/internal/queryir"
	"github.com/roach88/pushplan/internal/rules"
)

// Scenario defines one planning test case: a catalog, an operator tree in
// explain form, and assertions about what the planner does with it.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Catalog is a CUE file or a directory holding a CUE package, relative
	// to the scenario file. Empty means the shared test catalog.
	Catalog string `yaml:"catalog,omitempty"`

	// Stats overrides table row counts before planning, as the stats
	// command does.
	Stats map[string]float64 `yaml:"stats,omitempty"`

	// Correlations declares the row types of correlated variables the plan
	// reads, for example
	//
	//	correlations:
	//	  $cor0:
	//	    - {name: ID, type: INTEGER}
	Correlations map[string][]CorrelationField `yaml:"correlations,omitempty"`

	// Plan is the operator tree in explain form.
	Plan string `yaml:"plan"`

	// Mode is "optimize" (the default) to explore with rules and pick the
	// cheapest candidate, or "compile" to lower Plan as written.
	Mode string `yaml:"mode,omitempty"`

	// Rules restricts exploration to the named rules. Empty means all.
	Rules []string `yaml:"rules,omitempty"`

	// Session is a fixed session ID. Empty means testutil.DefaultSessionID.
	Session string `yaml:"session,omitempty"`

	// Assertions validate the outcome.
	Assertions []Assertion `yaml:"assertions"`
}

// CorrelationField is one column of a correlated row.
type CorrelationField struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// Scenario modes.
const (
	ModeOptimize = "optimize"
	ModeCompile  = "compile"
)

// Assertion validates the outcome of a scenario.
type Assertion struct {
	// Type specifies the assertion type:
	// - "explain_is": the chosen tree renders exactly as Text
	// - "derivation": the chosen tree was reached by exactly Derivation
	// - "cost_infinite": the root tree's cost is (Expect) infinite
	// - "rows": the chosen tree's row estimate equals Rows
	// - "fragment_contains": the chosen fragment's rendering contains Text
	// - "error_contains": the session failed with an error containing Text
	// - "surface": the chosen fragment's surface matches Surface
	// - "replay_matches": replaying the stored session picks the same plan
	Type string `yaml:"type"`

	Text       string         `yaml:"text,omitempty"`
	Derivation []string       `yaml:"derivation,omitempty"`
	Expect     *bool          `yaml:"expect,omitempty"`
	Rows       *float64       `yaml:"rows,omitempty"`
	Surface    *SurfaceExpect `yaml:"surface,omitempty"`
}

// SurfaceExpect lists expected surface fields. Unset fields are not checked.
type SurfaceExpect struct {
	Table    string   `yaml:"table,omitempty"`
	Order    string   `yaml:"order,omitempty"`
	Limit    *int64   `yaml:"limit,omitempty"`
	Filter   string   `yaml:"filter,omitempty"`
	Families []string `yaml:"families,omitempty"`

	// Projected checks whether the fragment carries a projector.
	Projected *bool `yaml:"projected,omitempty"`
}

// Assertion type constants.
const (
	AssertExplainIs        = "explain_is"
	AssertDerivation       = "derivation"
	AssertCostInfinite     = "cost_infinite"
	AssertRows             = "rows"
	AssertFragmentContains = "fragment_contains"
	AssertErrorContains    = "error_contains"
	AssertSurface          = "surface"
	AssertReplayMatches    = "replay_matches"
)

// LoadScenario reads and parses a scenario YAML file. The catalog path is
// resolved relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file, resolving
// the catalog path relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, basePath)
}

// ParseScenario parses scenario YAML. Unknown fields are rejected so typos
// like "assertion:" do not silently skip checks.
func ParseScenario(data []byte, basePath string) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Catalog != "" && !filepath.IsAbs(scenario.Catalog) && basePath != "" {
		scenario.Catalog = filepath.Join(basePath, scenario.Catalog)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Plan == "" {
		return fmt.Errorf("plan is required")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	switch s.Mode {
	case "", ModeOptimize:
	case ModeCompile:
		if len(s.Rules) > 0 {
			return fmt.Errorf("rules cannot be set in compile mode")
		}
	default:
		return fmt.Errorf("unknown mode %q", s.Mode)
	}

	if s.Catalog != "" {
		if _, err := os.Stat(s.Catalog); os.IsNotExist(err) {
			return fmt.Errorf("catalog not found: %s", s.Catalog)
		}
	}

	if _, err := rules.ByName(s.Rules...); err != nil {
		return err
	}

	for table, rows := range s.Stats {
		if rows < 0 {
			return fmt.Errorf("stats[%s]: row count must be non-negative", table)
		}
	}

	if _, err := s.correlationTypes(); err != nil {
		return err
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertExplainIs, AssertFragmentContains, AssertErrorContains:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for %s", index, a.Type)
		}
	case AssertDerivation:
		if a.Derivation == nil {
			return fmt.Errorf("assertions[%d]: derivation is required for derivation", index)
		}
	case AssertCostInfinite, AssertReplayMatches:
		if a.Expect == nil {
			return fmt.Errorf("assertions[%d]: expect is required for %s", index, a.Type)
		}
	case AssertRows:
		if a.Rows == nil {
			return fmt.Errorf("assertions[%d]: rows is required for rows", index)
		}
		if *a.Rows < 0 {
			return fmt.Errorf("assertions[%d]: rows must be non-negative", index)
		}
	case AssertSurface:
		if a.Surface == nil {
			return fmt.Errorf("assertions[%d]: surface is required for surface", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

// correlationTypes converts the declared correlations into row types.
func (s *Scenario) correlationTypes() (map[string]queryir.RowType, error) {
	if len(s.Correlations) == 0 {
		return nil, nil
	}
	out := make(map[string]queryir.RowType, len(s.Correlations))
	for name, fields := range s.Correlations {
		row := make(queryir.RowType, len(fields))
		for i, f := range fields {
			if f.Name == "" {
				return nil, fmt.Errorf("correlations[%s][%d]: name is required", name, i)
			}
			t, err := ir.ParseDataType(f.Type)
			if err != nil {
				return nil, fmt.Errorf("correlations[%s][%d]: %w", name, i, err)
			}
			row[i] = queryir.Field{Name: f.Name, Type: t}
		}
		out[name] = row
	}
	return out, nil
}
