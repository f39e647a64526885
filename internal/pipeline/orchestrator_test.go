package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/axiom/internal/audit"
	"github.com/roach88/axiom/internal/canon"
	"github.com/roach88/axiom/internal/inference"
	"github.com/roach88/axiom/internal/testutil"
	"github.com/roach88/axiom/internal/verify"
)

const (
	mathPrompt          = "Verify: 2+2=4"
	mathDigest          = "49a0f106a623d07607ac0ee4ab52ed4672e1dc7f0aae4cfe45ba7afd8f6b3f83"
	fastInferenceHashed = "45144fc55cc797e31df0a998086ee51025b91f04d6ebb575ad1f0cfb236e4488"
)

func mathContext() map[string]any {
	return map[string]any{"task": "math-check"}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// countingVerifier records calls and returns a fixed verification.
type countingVerifier struct {
	mu     sync.Mutex
	calls  int
	result func(hash string) verify.Verification
}

func (v *countingVerifier) VerifyDecision(_ context.Context, decision any) verify.Verification {
	v.mu.Lock()
	v.calls++
	v.mu.Unlock()
	hash := canon.MustHash(decision)
	if v.result == nil {
		return verify.Pass{Hash: hash, Stdout: "ok"}
	}
	return v.result(hash)
}

type failingSigner struct{ err error }

func (s failingSigner) SignAndLog(context.Context, string, any) (audit.Entry, error) {
	return audit.Entry{}, s.err
}

type memoryRecorder struct {
	err     error
	results []Result
}

func (r *memoryRecorder) RecordRun(_ context.Context, res Result) error {
	if r.err != nil {
		return r.err
	}
	r.results = append(r.results, res)
	return nil
}

type fixture struct {
	engine   *inference.Engine
	verifier *countingVerifier
	logger   *audit.Logger
	clock    *testutil.DeterministicClock
	dir      string
	opts     Options
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	engine, err := inference.New(inference.DefaultHiddenSize)
	require.NoError(t, err)

	dir := t.TempDir()
	logger, err := audit.New(audit.Options{Dir: dir, Key: audit.Key("test-secret"), Logger: quietLogger()})
	require.NoError(t, err)

	f := &fixture{
		engine:   engine,
		verifier: &countingVerifier{},
		logger:   logger,
		clock:    testutil.NewDeterministicClock(),
		dir:      dir,
	}
	f.opts = Options{
		Generator: f.engine,
		Verifier:  f.verifier,
		Audit:     f.logger,
		Clock:     f.clock,
		Logger:    quietLogger(),
	}
	return f
}

func (f *fixture) orchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	o, err := New(f.opts)
	require.NoError(t, err)
	return o
}

func TestNewRequiresCollaborators(t *testing.T) {
	f := newFixture(t)

	for name, mutate := range map[string]func(*Options){
		"generator": func(o *Options) { o.Generator = nil },
		"verifier":  func(o *Options) { o.Verifier = nil },
		"audit":     func(o *Options) { o.Audit = nil },
		"label":     func(o *Options) { o.Label = "../x" },
	} {
		t.Run(name, func(t *testing.T) {
			opts := f.opts
			mutate(&opts)
			_, err := New(opts)
			assert.Error(t, err)
		})
	}
}

func TestExecuteFastTaskOrdering(t *testing.T) {
	f := newFixture(t)
	o := f.orchestrator(t)

	result, err := o.Execute(context.Background(), ModeFast, mathPrompt, mathContext())
	require.NoError(t, err)

	assert.Equal(t, []string{TaskInference, TaskC0Signature}, result.TaskNames())
	assert.Equal(t, fastInferenceHashed, result.Tasks[0].PayloadHash)
	assert.Equal(t, 0, f.verifier.calls, "fast mode must not call the verifier")

	data, err := canon.Marshal(result.Verification)
	require.NoError(t, err)
	assert.Equal(t, `{"status":"SKIPPED"}`, string(data))
}

func TestExecuteHybridTaskOrdering(t *testing.T) {
	for _, mode := range []Mode{ModeHybrid, ModeVerified} {
		t.Run(string(mode), func(t *testing.T) {
			f := newFixture(t)
			o := f.orchestrator(t)

			result, err := o.Execute(context.Background(), mode, mathPrompt, mathContext())
			require.NoError(t, err)

			assert.Equal(t, []string{TaskInference, TaskVerification, TaskC0Signature}, result.TaskNames())
			assert.Equal(t, 1, f.verifier.calls)
			assert.Equal(t, verify.StatusPass, result.Verification.Status())
			assert.Equal(t, canon.MustHash(result.Verification), result.Tasks[1].PayloadHash)
		})
	}
}

func TestExecuteVerifierReceivesInferenceOutput(t *testing.T) {
	f := newFixture(t)
	o := f.orchestrator(t)

	result, err := o.Execute(context.Background(), ModeHybrid, mathPrompt, mathContext())
	require.NoError(t, err)

	assert.Equal(t, canon.MustHash(result.InferenceOutput), result.Verification.ContextHash())
}

func TestExecuteResultFields(t *testing.T) {
	f := newFixture(t)
	o := f.orchestrator(t)

	result, err := o.Execute(context.Background(), ModeFast, mathPrompt, mathContext())
	require.NoError(t, err)

	assert.Equal(t, int64(1), result.Seq)
	assert.Equal(t, ModeFast, result.Mode)
	assert.Equal(t, mathDigest, result.InferenceOutput.Summary.StateDigest)
	assert.Equal(t, DefaultLabel, result.C0Signature.Label)
	assert.True(t, result.AuditPersisted)
	assert.False(t, result.Recorded)
	assert.Equal(t, RunID(result.C0Signature.Hash, 1), result.RunID)
	assert.Equal(t, canon.MustHash(result.C0Signature), result.Tasks[1].PayloadHash)

	path := filepath.Join(f.dir, result.C0Signature.FileName())
	stored, err := audit.ReadRecord(path)
	require.NoError(t, err)
	assert.Equal(t, result.C0Signature, stored)
}

func TestExecuteSignedPayloadMatchesRecord(t *testing.T) {
	f := newFixture(t)
	o := f.orchestrator(t)

	result, err := o.Execute(context.Background(), ModeHybrid, mathPrompt, mathContext())
	require.NoError(t, err)

	want := canon.MustHash(map[string]any{
		"mode":             "hybrid",
		"prompt":           mathPrompt,
		"context":          mathContext(),
		"inference_output": result.InferenceOutput,
		"verification":     result.Verification,
	})
	assert.Equal(t, want, result.C0Signature.Hash)
	assert.True(t, f.logger.Signer().VerifyRecord(result.C0Signature))
}

func TestExecuteNilContext(t *testing.T) {
	f := newFixture(t)
	o := f.orchestrator(t)

	result, err := o.Execute(context.Background(), ModeFast, "", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, result.Context)
	assert.Equal(t, "93e240efbcac5a4db8a01676c16a869b42f86d5248e5b5d362a407ed338fc00d", result.InferenceOutput.Summary.StateDigest)
}

func TestExecuteResultDoesNotAliasNestedContext(t *testing.T) {
	f := newFixture(t)
	o := f.orchestrator(t)
	ctx := map[string]any{"n": map[string]any{"x": "orig"}}

	result, err := o.Execute(context.Background(), ModeHybrid, mathPrompt, ctx)
	require.NoError(t, err)
	resultHash := canon.MustHash(result)
	contextHash := canon.MustHash(result.Context)

	ctx["n"].(map[string]any)["x"] = "mutated"

	assert.Equal(t, map[string]any{"x": "orig"}, result.Context["n"])
	assert.Equal(t, contextHash, canon.MustHash(result.Context))
	assert.Equal(t, resultHash, canon.MustHash(result))
}

func TestExecuteInvalidMode(t *testing.T) {
	f := newFixture(t)
	o := f.orchestrator(t)

	_, err := o.Execute(context.Background(), Mode("turbo"), mathPrompt, mathContext())
	assert.Error(t, err)
	assert.Equal(t, int64(0), f.clock.Current())
}

func TestExecuteInferenceErrorPropagates(t *testing.T) {
	f := newFixture(t)
	o := f.orchestrator(t)

	_, err := o.Execute(context.Background(), ModeHybrid, mathPrompt, map[string]any{"bad": make(chan int)})
	require.Error(t, err)
	assert.True(t, canon.IsSerializationError(err))
	assert.Equal(t, 0, f.verifier.calls)
	assert.Empty(t, f.logger.History())
	assert.Equal(t, int64(0), f.clock.Current(), "failed runs consume no seq")
}

func TestExecuteSigningErrorPropagates(t *testing.T) {
	f := newFixture(t)
	signErr := errors.New("signer unavailable")
	f.opts.Audit = failingSigner{err: signErr}
	o := f.orchestrator(t)

	_, err := o.Execute(context.Background(), ModeFast, mathPrompt, mathContext())
	assert.ErrorIs(t, err, signErr)
	assert.Equal(t, int64(0), f.clock.Current())
}

func TestExecuteVerificationOutcomesNeverFail(t *testing.T) {
	outcomes := map[string]func(string) verify.Verification{
		"fail":    func(h string) verify.Verification { return verify.Fail{Hash: h, ExitCode: 1} },
		"timeout": func(h string) verify.Verification { return verify.Timeout{Hash: h, TimeoutMS: 5000} },
		"skipped": func(h string) verify.Verification {
			return verify.Skipped{Reason: verify.ReasonToolNotFound, Hash: h}
		},
	}
	for name, outcome := range outcomes {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			f.verifier.result = outcome
			o := f.orchestrator(t)

			result, err := o.Execute(context.Background(), ModeVerified, mathPrompt, mathContext())
			require.NoError(t, err)
			assert.Len(t, result.Tasks, 3)
		})
	}
}

func TestExecuteAuditPersistenceFailureIsSoft(t *testing.T) {
	f := newFixture(t)
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	logger, err := audit.New(audit.Options{Dir: filepath.Join(blocker, "c0"), Key: audit.Key("test-secret"), Logger: quietLogger()})
	require.NoError(t, err)
	f.opts.Audit = logger
	o := f.orchestrator(t)

	result, err := o.Execute(context.Background(), ModeFast, mathPrompt, mathContext())
	require.NoError(t, err)
	assert.False(t, result.AuditPersisted)
	assert.Len(t, result.Tasks, 2)
	assert.NotEmpty(t, result.C0Signature.Signature)
}

func TestExecuteRecorder(t *testing.T) {
	f := newFixture(t)
	rec := &memoryRecorder{}
	f.opts.Recorder = rec
	o := f.orchestrator(t)

	result, err := o.Execute(context.Background(), ModeFast, mathPrompt, mathContext())
	require.NoError(t, err)
	assert.True(t, result.Recorded)
	require.Len(t, rec.results, 1)
	assert.Equal(t, result.RunID, rec.results[0].RunID)
}

func TestExecuteRecorderFailureIsSoft(t *testing.T) {
	f := newFixture(t)
	var logs bytes.Buffer
	f.opts.Recorder = &memoryRecorder{err: errors.New("database is locked")}
	f.opts.Logger = slog.New(slog.NewTextHandler(&logs, nil))
	o := f.orchestrator(t)

	result, err := o.Execute(context.Background(), ModeFast, mathPrompt, mathContext())
	require.NoError(t, err)
	assert.False(t, result.Recorded)
	assert.Contains(t, logs.String(), "run not recorded")
}

func TestExecuteSeqAndRunIDs(t *testing.T) {
	f := newFixture(t)
	f.opts.Clock = testutil.NewDeterministicClockAt(10)
	o := f.orchestrator(t)

	first, err := o.Execute(context.Background(), ModeFast, mathPrompt, mathContext())
	require.NoError(t, err)
	second, err := o.Execute(context.Background(), ModeFast, mathPrompt, mathContext())
	require.NoError(t, err)

	assert.Equal(t, int64(11), first.Seq)
	assert.Equal(t, int64(12), second.Seq)
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.NotEqual(t, first.InferenceOutput.Summary.StateDigest, second.InferenceOutput.Summary.StateDigest)
}

func TestExecuteLogsStageTransitions(t *testing.T) {
	f := newFixture(t)
	var logs bytes.Buffer
	f.opts.Logger = slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	o := f.orchestrator(t)

	_, err := o.Execute(context.Background(), ModeFast, mathPrompt, mathContext())
	require.NoError(t, err)

	out := logs.String()
	prev := -1
	for _, stage := range []Stage{StageStart, StageInferred, StageVerificationSkipped, StageLogged, StageDone} {
		idx := bytes.Index([]byte(out), []byte("stage="+string(stage)))
		require.GreaterOrEqual(t, idx, 0, "stage %s not logged", stage)
		assert.Greater(t, idx, prev, "stage %s out of order", stage)
		prev = idx
	}
	assert.NotContains(t, out, "stage="+string(StageVerified)+" ")
}

func TestResultJSON(t *testing.T) {
	f := newFixture(t)
	o := f.orchestrator(t)

	result, err := o.Execute(context.Background(), ModeFast, mathPrompt, mathContext())
	require.NoError(t, err)

	data, err := result.MarshalJSON()
	require.NoError(t, err)
	decoded, err := canon.DecodeObject(data)
	require.NoError(t, err)

	for _, key := range []string{"run_id", "seq", "mode", "tasks", "inference_output", "verification", "c0_signature", "audit_persisted", "recorded"} {
		assert.Contains(t, decoded, key)
	}
	tasks, ok := decoded["tasks"].([]any)
	require.True(t, ok)
	assert.Len(t, tasks, 2)
}

func TestParseMode(t *testing.T) {
	for _, m := range Modes {
		got, err := ParseMode(string(m))
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := ParseMode("FAST")
	assert.Error(t, err)
	_, err = ParseMode("")
	assert.Error(t, err)

	assert.False(t, ModeFast.Verifies())
	assert.True(t, ModeVerified.Verifies())
	assert.True(t, ModeHybrid.Verifies())
}
