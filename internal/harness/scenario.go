package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/grimoire/internal/content"
	"github.com/roach88/grimoire/internal/doc"
)

// Scenario is one rules conformance case.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description"`

	// Content is the content root, relative to the scenario file.
	// Empty means no templates are available.
	Content string `yaml:"content,omitempty"`

	// Testing installs the fixture handlers (counter_below, increment, test).
	Testing bool `yaml:"testing,omitempty"`

	// Dice configures the dice service. Nil means seed 0.
	Dice *DiceSetup `yaml:"dice,omitempty"`

	// MaxPasses and MaxDepth override the engine ceilings when positive.
	MaxPasses int `yaml:"max_passes,omitempty"`
	MaxDepth  int `yaml:"max_depth,omitempty"`

	// Entities are placed in the directory in order. Their order is the
	// default roster.
	Entities []EntitySetup `yaml:"entities"`

	// Steps run in order. A step that fails unexpectedly ends the run.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace and final state.
	Assertions []Assertion `yaml:"assertions,omitempty"`

	dir string
}

// DiceSetup selects a seeded roller, or a fixed one when Draw is set.
type DiceSetup struct {
	Seed  int64    `yaml:"seed,omitempty"`
	Draw  *float64 `yaml:"draw,omitempty"`
	Faces []int    `yaml:"faces,omitempty"`
}

// EntitySetup places one entity.
type EntitySetup struct {
	ID        string       `yaml:"id"`
	Doc       Document     `yaml:"doc,omitempty"`
	Effects   []Attachment `yaml:"effects,omitempty"`
	Resources []Attachment `yaml:"resources,omitempty"`
}

// Attachment is an effect or resource instance attached to an entity,
// either instantiated from a template or given inline.
type Attachment struct {
	ID        string   `yaml:"id,omitempty"`
	Template  string   `yaml:"template,omitempty"`
	Overrides Document `yaml:"overrides,omitempty"`
	Doc       Document `yaml:"doc,omitempty"`
}

// Step is exactly one of Invoke or Spend.
type Step struct {
	// Invoke is a subevent document.
	Invoke Document `yaml:"invoke,omitempty"`

	// Roster overrides the default roster for Invoke.
	Roster []string `yaml:"roster,omitempty"`

	Spend *SpendStep `yaml:"spend,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// SpendStep pays cost with the listed resource ids, slot by slot.
type SpendStep struct {
	Resources []string   `yaml:"resources"`
	Cost      []CostSlot `yaml:"cost"`
}

// CostSlot is one slot of a cost.
type CostSlot struct {
	Tags       []string `yaml:"tags,omitempty"`
	MinPotency float64  `yaml:"min_potency,omitempty"`
}

// Expect states what a step must produce.
type Expect struct {
	// Error is an error code (PASS_LIMIT, resource_mismatch, ...) or a
	// substring of the error message. Empty means the step must succeed.
	Error string `yaml:"error,omitempty"`

	// Subevents lists, per settled subevent in target order, a document
	// the result must contain.
	Subevents []Document `yaml:"subevents,omitempty"`
}

// Assertion validates the trace or the final directory state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Subevent is a subevent kind (trace_contains, trace_count, applied).
	Subevent string `yaml:"subevent,omitempty"`

	// Subevents is the expected kind order (trace_order).
	Subevents []string `yaml:"subevents,omitempty"`

	// Count is the expected number of subevents (trace_count).
	Count int `yaml:"count,omitempty"`

	// Effects are effect ids the first subevent of the kind must have
	// applied, in order (applied).
	Effects []string `yaml:"effects,omitempty"`

	// ID and Kind select a directory document (state). Kind defaults to
	// entity.
	ID   string `yaml:"id,omitempty"`
	Kind string `yaml:"kind,omitempty"`

	// Path and Equals check one value (state).
	Path   string   `yaml:"path,omitempty"`
	Equals Document `yaml:"equals,omitempty"`

	// Expect is a subset the document must contain (state, trace_contains).
	Expect Document `yaml:"expect,omitempty"`
}

// Assertion types.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertApplied       = "applied"
	AssertState         = "state"
)

// Document is a YAML value decoded into a document, keeping mapping order.
type Document struct {
	Value doc.Value
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Document) UnmarshalYAML(n *yaml.Node) error {
	v, err := content.FromYAML(n)
	if err != nil {
		return err
	}
	d.Value = v
	return nil
}

// IsZero reports whether the document was absent.
func (d Document) IsZero() bool {
	return d.Value == nil
}

// Object returns the value as an object.
func (d Document) Object() (*doc.Object, bool) {
	obj, ok := d.Value.(*doc.Object)
	return obj, ok
}

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected so typos surface as errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	s.dir = filepath.Dir(path)
	return &s, nil
}

// LoadScenarios loads every .yaml scenario in dir, in name order.
func LoadScenarios(dir string) ([]*Scenario, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	out := make([]*Scenario, 0, len(matches))
	for _, path := range matches {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Dir returns the directory relative paths resolve against.
func (s *Scenario) Dir() string {
	return s.dir
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps must contain at least one step")
	}

	seen := make(map[string]bool)
	for i, e := range s.Entities {
		if e.ID == "" {
			return fmt.Errorf("entities[%d]: id is required", i)
		}
		if seen[e.ID] {
			return fmt.Errorf("entities[%d]: duplicate id %q", i, e.ID)
		}
		seen[e.ID] = true
		if !e.Doc.IsZero() {
			if _, ok := e.Doc.Object(); !ok {
				return fmt.Errorf("entities[%d].doc: must be a mapping", i)
			}
		}
		for j, a := range e.Effects {
			if err := validateAttachment(a); err != nil {
				return fmt.Errorf("entities[%d].effects[%d]: %w", i, j, err)
			}
		}
		for j, a := range e.Resources {
			if err := validateAttachment(a); err != nil {
				return fmt.Errorf("entities[%d].resources[%d]: %w", i, j, err)
			}
		}
	}

	for i, step := range s.Steps {
		hasInvoke, hasSpend := !step.Invoke.IsZero(), step.Spend != nil
		if hasInvoke == hasSpend {
			return fmt.Errorf("steps[%d]: exactly one of invoke or spend is required", i)
		}
		if hasInvoke {
			if _, ok := step.Invoke.Object(); !ok {
				return fmt.Errorf("steps[%d].invoke: must be a mapping", i)
			}
		}
		if hasSpend && len(step.Spend.Resources) != len(step.Spend.Cost) && step.Expect == nil {
			return fmt.Errorf("steps[%d].spend: %d resources for %d cost slots", i, len(step.Spend.Resources), len(step.Spend.Cost))
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateAttachment(a Attachment) error {
	hasTemplate, hasDoc := a.Template != "", !a.Doc.IsZero()
	if hasTemplate == hasDoc {
		return fmt.Errorf("exactly one of template or doc is required")
	}
	if hasTemplate {
		if _, _, err := content.ParseRef(a.Template); err != nil {
			return err
		}
	}
	if hasDoc {
		if _, ok := a.Doc.Object(); !ok {
			return fmt.Errorf("doc must be a mapping")
		}
	}
	if !a.Overrides.IsZero() {
		if !hasTemplate {
			return fmt.Errorf("overrides require a template")
		}
		if _, ok := a.Overrides.Object(); !ok {
			return fmt.Errorf("overrides must be a mapping")
		}
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("type is required")
	case AssertTraceContains:
		if a.Subevent == "" {
			return fmt.Errorf("subevent is required for %s", a.Type)
		}
		if _, ok := a.Expect.Object(); !ok {
			return fmt.Errorf("expect mapping is required for %s", a.Type)
		}
	case AssertTraceOrder:
		if len(a.Subevents) == 0 {
			return fmt.Errorf("subevents list is required for %s", a.Type)
		}
	case AssertTraceCount:
		if a.Subevent == "" {
			return fmt.Errorf("subevent is required for %s", a.Type)
		}
		if a.Count < 0 {
			return fmt.Errorf("count must be non-negative for %s", a.Type)
		}
	case AssertApplied:
		if a.Subevent == "" {
			return fmt.Errorf("subevent is required for %s", a.Type)
		}
	case AssertState:
		if a.ID == "" {
			return fmt.Errorf("id is required for %s", a.Type)
		}
		if a.Path == "" && a.Expect.IsZero() {
			return fmt.Errorf("path or expect is required for %s", a.Type)
		}
		if a.Path != "" {
			if _, err := doc.ParsePath(a.Path); err != nil {
				return err
			}
			if a.Equals.IsZero() {
				return fmt.Errorf("equals is required with path")
			}
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
