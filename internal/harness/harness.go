package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"

	"github.com/roach88/axiom/internal/audit"
	"github.com/roach88/axiom/internal/inference"
	"github.com/roach88/axiom/internal/logging"
	"github.com/roach88/axiom/internal/pipeline"
	"github.com/roach88/axiom/internal/store"
	"github.com/roach88/axiom/internal/testutil"
	"github.com/roach88/axiom/internal/verify"
)

// FixedKey is the audit key used when Options.Key is empty: bytes 0x00
// through 0x1f.
var FixedKey = func() audit.Key {
	k := make(audit.Key, audit.KeySize)
	for i := range k {
		k[i] = byte(i)
	}
	return k
}()

// Options configures Run.
type Options struct {
	// Dir receives the scenario's audit records. Required.
	Dir string

	// Key signs audit records. Defaults to FixedKey.
	Key audit.Key

	// Verifier replaces the canned verdicts when set.
	Verifier verify.DecisionVerifier

	// Logger defaults to a discarding logger.
	Logger *slog.Logger
}

// Harness holds the collaborators of one scenario execution.
type Harness struct {
	audit    *audit.Logger
	verifier *verdictSwitch
	pipeline *pipeline.Orchestrator
	fixed    bool
}

// Run executes a scenario against a fresh in-memory store and engine and
// evaluates its assertions.
//
// The returned error reports infrastructure problems (store, audit
// directory). Expectation and assertion failures are collected in the
// Result instead.
func Run(ctx context.Context, scenario *Scenario, opts Options) (*Result, error) {
	if opts.Dir == "" {
		return nil, errors.New("harness: Options.Dir is required")
	}
	if opts.Key == nil {
		opts.Key = FixedKey
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h, err := newHarness(scenario, opts, st)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, scenario, i, step, result); err != nil {
			return nil, fmt.Errorf("failed to execute steps[%d]: %w", i, err)
		}
	}

	actx := &AssertionContext{Store: st, Audit: h.audit}
	for _, msg := range EvaluateAssertions(ctx, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(scenario *Scenario, opts Options, st *store.Store) (*Harness, error) {
	size := scenario.HiddenSize
	if size == 0 {
		size = inference.DefaultHiddenSize
	}
	engine, err := inference.New(size)
	if err != nil {
		return nil, err
	}

	auditLogger, err := audit.New(audit.Options{
		Dir:    filepath.Join(opts.Dir, scenario.Name),
		Key:    opts.Key,
		Logger: opts.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create audit logger: %w", err)
	}

	h := &Harness{
		audit:    auditLogger,
		verifier: &verdictSwitch{current: opts.Verifier},
		fixed:    opts.Verifier != nil,
	}

	h.pipeline, err = pipeline.New(pipeline.Options{
		Generator: engine,
		Verifier:  h.verifier,
		Audit:     auditLogger,
		Recorder:  &pipeline.StoreRecorder{Store: st, State: engine},
		Clock:     testutil.NewDeterministicClock(),
		Logger:    opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}

// executeStep runs one step and checks its expect clause.
func (h *Harness) executeStep(ctx context.Context, scenario *Scenario, index int, step Step, result *Result) error {
	if !h.fixed {
		verdict := step.Verdict
		if verdict == "" {
			verdict = scenario.Verdict
		}
		h.verifier.current = cannedVerifier{status: verify.Status(verdict)}
	}

	mode, err := pipeline.ParseMode(step.Mode)
	if err != nil {
		return err
	}
	promptContext := step.Context
	if promptContext == nil {
		promptContext = map[string]any{}
	}

	res, err := h.pipeline.Execute(ctx, mode, step.Prompt, promptContext)
	if err != nil {
		result.AddError(fmt.Sprintf("steps[%d]: execute: %v", index, err))
		return nil
	}
	if !res.AuditPersisted {
		return fmt.Errorf("audit record for seq %d not persisted", res.Seq)
	}
	if !res.Recorded {
		return fmt.Errorf("run seq %d not recorded", res.Seq)
	}

	trace := StepTrace{
		Seq:          res.Seq,
		Mode:         string(res.Mode),
		StateDigest:  res.InferenceOutput.Summary.StateDigest,
		Verification: string(res.Verification.Status()),
		Tasks:        res.TaskNames(),
		RunID:        res.RunID,
		PayloadHash:  res.C0Signature.Hash,
		Signature:    res.C0Signature.Signature,
	}
	result.Trace = append(result.Trace, trace)

	if step.Expect != nil {
		for _, msg := range checkExpect(index, *step.Expect, trace) {
			result.AddError(msg)
		}
	}
	return nil
}

func checkExpect(index int, want Expect, got StepTrace) []string {
	var errs []string
	if want.Verification != "" && want.Verification != got.Verification {
		errs = append(errs, fmt.Sprintf("steps[%d]: verification = %s, want %s", index, got.Verification, want.Verification))
	}
	if want.Tasks != nil && !slices.Equal(want.Tasks, got.Tasks) {
		errs = append(errs, fmt.Sprintf("steps[%d]: tasks = %v, want %v", index, got.Tasks, want.Tasks))
	}
	if want.Seq != 0 && want.Seq != got.Seq {
		errs = append(errs, fmt.Sprintf("steps[%d]: seq = %d, want %d", index, got.Seq, want.Seq))
	}
	if want.StateDigest != "" && want.StateDigest != got.StateDigest {
		errs = append(errs, fmt.Sprintf("steps[%d]: state_digest = %s, want %s", index, got.StateDigest, want.StateDigest))
	}
	return errs
}
