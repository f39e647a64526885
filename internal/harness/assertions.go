package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/roach88/axiom/internal/audit"
	"github.com/roach88/axiom/internal/pipeline"
	"github.com/roach88/axiom/internal/store"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// AssertionContext provides what assertions inspect.
type AssertionContext struct {
	Store *store.Store
	Audit *audit.Logger
}

// EvaluateAssertions evaluates all assertions and returns a message per
// failed assertion.
func EvaluateAssertions(ctx context.Context, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertRunCount:
			err = assertRunCount(ctx, actx.Store, a)
		case AssertTaskOrder:
			err = assertTaskOrder(ctx, actx.Store, a)
		case AssertFinalState:
			err = assertFinalState(ctx, actx.Store, a)
		case AssertAuditRecords:
			err = assertAuditRecords(actx, a)
		case AssertReplayDeterministic:
			err = assertReplayDeterministic(ctx, actx.Store)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func assertRunCount(ctx context.Context, st *store.Store, a Assertion) error {
	runs, err := st.ListRuns(ctx, store.RunFilter{Status: a.Status})
	if err != nil {
		return err
	}
	if len(runs) != a.Count {
		what := "runs"
		if a.Status != "" {
			what = a.Status + " runs"
		}
		return &AssertionError{
			Type:     AssertRunCount,
			Expected: fmt.Sprintf("%d %s", a.Count, what),
			Actual:   fmt.Sprintf("%d %s", len(runs), what),
		}
	}
	return nil
}

func runAt(ctx context.Context, st *store.Store, seq int64) (store.Run, bool, error) {
	runs, err := st.ListRuns(ctx, store.RunFilter{AfterSeq: seq - 1, Limit: 1})
	if err != nil {
		return store.Run{}, false, err
	}
	if len(runs) == 0 || runs[0].Seq != seq {
		return store.Run{}, false, nil
	}
	return runs[0], true, nil
}

func assertTaskOrder(ctx context.Context, st *store.Store, a Assertion) error {
	run, ok, err := runAt(ctx, st, a.Seq)
	if err != nil {
		return err
	}
	if !ok {
		return &AssertionError{Type: AssertTaskOrder, Expected: fmt.Sprintf("run at seq %d", a.Seq), Actual: "no such run"}
	}
	names := make([]string, len(run.Tasks))
	for i, t := range run.Tasks {
		names[i] = t.Name
	}
	if !slices.Equal(names, a.Tasks) {
		return &AssertionError{
			Type:     AssertTaskOrder,
			Expected: strings.Join(a.Tasks, " -> "),
			Actual:   strings.Join(names, " -> "),
		}
	}
	return nil
}

// finalStateColumns maps the column names usable in final_state to their
// values in a stored run.
func finalStateColumns(run store.Run) map[string]any {
	return map[string]any{
		"id":                  run.ID,
		"seq":                 run.Seq,
		"mode":                run.Mode,
		"prompt":              run.Prompt,
		"context":             run.Context,
		"hidden_size":         run.HiddenSize,
		"state_digest":        run.StateDigest,
		"verification_status": run.VerificationStatus,
		"payload_hash":        run.PayloadHash,
		"signature":           run.Signature,
	}
}

func assertFinalState(ctx context.Context, st *store.Store, a Assertion) error {
	run, ok, err := runAt(ctx, st, a.Seq)
	if err != nil {
		return err
	}
	if !ok {
		return &AssertionError{Type: AssertFinalState, Expected: fmt.Sprintf("run at seq %d", a.Seq), Actual: "no such run"}
	}

	columns := finalStateColumns(run)
	keys := make([]string, 0, len(a.Expect))
	for k := range a.Expect {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		actual, known := columns[k]
		if !known {
			return fmt.Errorf("final_state: unknown column %q", k)
		}
		if !stateValuesEqual(a.Expect[k], actual) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s = %v", k, a.Expect[k]),
				Actual:   fmt.Sprintf("%s = %v", k, actual),
			}
		}
	}
	return nil
}

// stateValuesEqual compares a YAML-decoded expectation with a column value.
// YAML integers decode as int while columns are int or int64.
func stateValuesEqual(expected, actual any) bool {
	switch e := expected.(type) {
	case int:
		switch a := actual.(type) {
		case int:
			return e == a
		case int64:
			return int64(e) == a
		}
		return false
	case string:
		a, ok := actual.(string)
		return ok && e == a
	}
	return false
}

func assertAuditRecords(actx *AssertionContext, a Assertion) error {
	report, err := actx.Audit.VerifyDir(actx.Audit.Dir())
	if err != nil {
		return err
	}
	if report.Records != a.Count {
		return &AssertionError{
			Type:     AssertAuditRecords,
			Expected: fmt.Sprintf("%d records", a.Count),
			Actual:   fmt.Sprintf("%d records", report.Records),
		}
	}
	if !report.OK() {
		t := report.Tampered[0]
		return &AssertionError{
			Type:     AssertAuditRecords,
			Expected: "every record signature valid",
			Actual:   fmt.Sprintf("%s on %s", t.Reason, t.Path),
		}
	}
	// Every record this run reported as persisted must be on disk.
	for _, e := range actx.Audit.History() {
		if !e.Persisted {
			continue
		}
		path := filepath.Join(report.Dir, e.Record.FileName())
		if _, err := os.Stat(path); err != nil {
			return &AssertionError{
				Type:     AssertAuditRecords,
				Expected: "every logged record persisted",
				Actual:   fmt.Sprintf("%s missing", path),
			}
		}
	}
	return nil
}

func assertReplayDeterministic(ctx context.Context, st *store.Store) error {
	runs, err := st.ListRuns(ctx, store.RunFilter{})
	if err != nil {
		return err
	}
	report := pipeline.Replay(runs)
	if !report.Deterministic() {
		m := report.Mismatches[0]
		return &AssertionError{
			Type:     AssertReplayDeterministic,
			Expected: fmt.Sprintf("%d runs reproduce their digests", report.Runs),
			Actual:   fmt.Sprintf("%d mismatches, first at seq %d", len(report.Mismatches), m.Seq),
		}
	}
	return nil
}
