package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/axiom/internal/audit"
	"github.com/roach88/axiom/internal/canon"
	"github.com/roach88/axiom/internal/inference"
	"github.com/roach88/axiom/internal/verify"
)

// DefaultLabel is the audit label of pipeline records.
const DefaultLabel = "axiom_pipeline"

// Generator produces inference output. *inference.Engine implements it.
type Generator interface {
	Generate(prompt string, promptContext map[string]any) (inference.Result, error)
}

// AuditSigner signs and persists payloads. *audit.Logger implements it.
type AuditSigner interface {
	SignAndLog(ctx context.Context, label string, payload any) (audit.Entry, error)
}

// Recorder stores completed runs. Failures are logged and reported through
// Result.Recorded; they never fail the run.
type Recorder interface {
	RecordRun(ctx context.Context, r Result) error
}

// Options configures an Orchestrator.
type Options struct {
	Generator Generator
	Verifier  verify.DecisionVerifier
	Audit     AuditSigner
	// Recorder is optional.
	Recorder Recorder
	// Clock defaults to NewClock().
	Clock Clock
	// Label defaults to DefaultLabel.
	Label  string
	Logger *slog.Logger
}

// Orchestrator executes pipeline runs. It holds no per-run state; its
// collaborators define what is safe to share across goroutines.
type Orchestrator struct {
	gen      Generator
	verifier verify.DecisionVerifier
	audit    AuditSigner
	recorder Recorder
	clock    Clock
	label    string
	logger   *slog.Logger
}

// New validates opts and builds an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Generator == nil {
		return nil, errors.New("pipeline: generator is required")
	}
	if opts.Verifier == nil {
		return nil, errors.New("pipeline: verifier is required")
	}
	if opts.Audit == nil {
		return nil, errors.New("pipeline: audit signer is required")
	}
	o := &Orchestrator{
		gen:      opts.Generator,
		verifier: opts.Verifier,
		audit:    opts.Audit,
		recorder: opts.Recorder,
		clock:    opts.Clock,
		label:    opts.Label,
		logger:   opts.Logger,
	}
	if o.clock == nil {
		o.clock = NewClock()
	}
	if o.label == "" {
		o.label = DefaultLabel
	}
	if err := audit.ValidateLabel(o.label); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o, nil
}

// Execute runs prompt and promptContext through the pipeline in the given mode.
//
// A nil promptContext is treated as an empty object. promptContext is deep
// copied on entry, so the Result is unaffected by later caller mutation. The returned error is
// non-nil only for an invalid mode or when inference or signing fails; in
// that case no seq is consumed.
func (o *Orchestrator) Execute(ctx context.Context, mode Mode, prompt string, promptContext map[string]any) (Result, error) {
	if !mode.Valid() {
		return Result{}, fmt.Errorf("pipeline: invalid mode %q", mode)
	}
	promptContext = canon.CloneObject(promptContext)
	o.transition(StageStart, "mode", mode)

	out, err := o.gen.Generate(prompt, promptContext)
	if err != nil {
		return Result{}, fmt.Errorf("pipeline: inference: %w", err)
	}
	inferenceTask, err := newTask(TaskInference, inferencePayload(mode, prompt, promptContext))
	if err != nil {
		return Result{}, fmt.Errorf("pipeline: inference task: %w", err)
	}
	tasks := []Task{inferenceTask}
	o.transition(StageInferred, "state_digest", out.Summary.StateDigest)

	verification := verify.NotRequested
	if mode.Verifies() {
		verification = o.verifier.VerifyDecision(ctx, out)
		verificationTask, err := newTask(TaskVerification, verification)
		if err != nil {
			return Result{}, fmt.Errorf("pipeline: verification task: %w", err)
		}
		tasks = append(tasks, verificationTask)
	}
	if verification.Status() == verify.StatusSkipped {
		o.transition(StageVerificationSkipped, "context_hash", verification.ContextHash())
	} else {
		o.transition(StageVerified, "status", verification.Status(), "context_hash", verification.ContextHash())
	}

	entry, err := o.audit.SignAndLog(ctx, o.label, signedPayload(mode, prompt, promptContext, out, verification))
	if err != nil {
		return Result{}, fmt.Errorf("pipeline: sign: %w", err)
	}
	signatureTask, err := newTask(TaskC0Signature, entry.Record)
	if err != nil {
		return Result{}, fmt.Errorf("pipeline: signature task: %w", err)
	}
	tasks = append(tasks, signatureTask)
	o.transition(StageLogged, "hash", entry.Record.Hash, "persisted", entry.Persisted)

	seq := o.clock.Next()
	result := Result{
		RunID:           RunID(entry.Record.Hash, seq),
		Seq:             seq,
		Mode:            mode,
		Prompt:          prompt,
		Context:         promptContext,
		Tasks:           tasks,
		InferenceOutput: out,
		Verification:    verification,
		C0Signature:     entry.Record,
		AuditPersisted:  entry.Persisted,
	}

	if o.recorder != nil {
		if err := o.recorder.RecordRun(ctx, result); err != nil {
			o.logger.Warn("run not recorded",
				"run_id", result.RunID,
				"seq", seq,
				"error", err)
		} else {
			result.Recorded = true
		}
	}

	o.transition(StageDone, "run_id", result.RunID, "seq", seq, "tasks", len(tasks))
	return result, nil
}

func (o *Orchestrator) transition(stage Stage, args ...any) {
	o.logger.Debug("pipeline stage", append([]any{"stage", stage}, args...)...)
}

// RunID derives a run identifier from the signed payload hash and the run's
// seq. Identical payloads executed at different seqs get different ids.
func RunID(payloadHash string, seq int64) string {
	data := canon.MustMarshal(map[string]any{
		"payload_hash": payloadHash,
		"seq":          seq,
	})
	return canon.HashWithDomain(canon.DomainRun, data)
}
