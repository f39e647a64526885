package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/axiom/internal/canon"
)

// TraceSnapshot is the golden form of a scenario execution.
type TraceSnapshot struct {
	ScenarioName string
	Trace        []StepTrace
}

// CanonicalValue implements canon.Valuer.
func (s TraceSnapshot) CanonicalValue() (canon.Value, error) {
	trace := make([]any, len(s.Trace))
	for i, step := range s.Trace {
		trace[i] = step
	}
	return canon.Normalize(map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         trace,
	})
}

// RunWithGolden executes a scenario, fails t if it does not pass, and
// compares its trace with testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) *Result {
	t.Helper()

	result, err := Run(context.Background(), scenario, Options{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("run scenario %s: %v", scenario.Name, err)
	}
	if !result.Pass {
		t.Errorf("scenario %s failed:\n%v", scenario.Name, result.Errors)
	}
	AssertGolden(t, scenario.Name, result)
	return result
}

// AssertGolden compares result's trace with the golden file for name.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	data, err := canon.Marshal(TraceSnapshot{ScenarioName: name, Trace: result.Trace})
	if err != nil {
		t.Fatalf("marshal trace: %v", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}
