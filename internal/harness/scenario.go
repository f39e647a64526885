package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/axiom/internal/pipeline"
	"github.com/roach88/axiom/internal/verify"
)

// Scenario defines a conformance scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// HiddenSize is the engine state length. Zero selects
	// inference.DefaultHiddenSize.
	HiddenSize int `yaml:"hidden_size,omitempty"`

	// Verdict is the default canned verification outcome for verifying
	// steps. Empty means SKIPPED.
	Verdict string `yaml:"verdict,omitempty"`

	// Steps are executed in order through one orchestrator.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final store and audit log.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one pipeline execution.
type Step struct {
	Mode    string         `yaml:"mode"`
	Prompt  string         `yaml:"prompt"`
	Context map[string]any `yaml:"context,omitempty"`

	// Verdict overrides the scenario's default verdict for this step.
	Verdict string `yaml:"verdict,omitempty"`

	// Expect, when set, is checked against the step's result.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect lists the fields of a step result to check. Empty fields are not
// checked.
type Expect struct {
	Verification string   `yaml:"verification,omitempty"`
	Tasks        []string `yaml:"tasks,omitempty"`
	Seq          int64    `yaml:"seq,omitempty"`
	StateDigest  string   `yaml:"state_digest,omitempty"`
}

// Assertion validates the state left behind by a scenario.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Seq selects the run (task_order, final_state).
	Seq int64 `yaml:"seq,omitempty"`

	// Count is the expected number of runs or records
	// (run_count, audit_records).
	Count int `yaml:"count,omitempty"`

	// Status restricts run_count to runs with this verification status.
	Status string `yaml:"status,omitempty"`

	// Tasks is the expected task order (task_order).
	Tasks []string `yaml:"tasks,omitempty"`

	// Expect holds expected column values (final_state).
	// Subset match: only listed columns are compared.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertRunCount            = "run_count"
	AssertTaskOrder           = "task_order"
	AssertFinalState          = "final_state"
	AssertAuditRecords        = "audit_records"
	AssertReplayDeterministic = "replay_deterministic"
)

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.HiddenSize < 0 {
		return fmt.Errorf("hidden_size must be positive")
	}
	if err := validateVerdict(s.Verdict); err != nil {
		return fmt.Errorf("verdict: %w", err)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if _, err := pipeline.ParseMode(step.Mode); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
		if err := validateVerdict(step.Verdict); err != nil {
			return fmt.Errorf("steps[%d].verdict: %w", i, err)
		}
		if step.Expect != nil && step.Expect.Verification != "" {
			if err := validateVerdict(step.Expect.Verification); err != nil {
				return fmt.Errorf("steps[%d].expect.verification: %w", i, err)
			}
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateVerdict(v string) error {
	switch verify.Status(v) {
	case "", verify.StatusSkipped, verify.StatusPass, verify.StatusFail, verify.StatusTimeout:
		return nil
	}
	return fmt.Errorf("unknown status %q", v)
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertRunCount, AssertAuditRecords, AssertReplayDeterministic:
	case AssertTaskOrder:
		if a.Seq <= 0 {
			return fmt.Errorf("assertions[%d]: seq is required for task_order", index)
		}
		if len(a.Tasks) == 0 {
			return fmt.Errorf("assertions[%d]: tasks list is required for task_order", index)
		}
	case AssertFinalState:
		if a.Seq <= 0 {
			return fmt.Errorf("assertions[%d]: seq is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
