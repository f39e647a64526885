package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/axiom/internal/canon"
	"github.com/roach88/axiom/internal/verify"
)

func TestScenarios_Golden(t *testing.T) {
	for _, name := range []string{"fast_then_verified", "timeout_default_verdict"} {
		t.Run(name, func(t *testing.T) {
			s, err := LoadScenario("testdata/scenarios/" + name + ".yaml")
			require.NoError(t, err)

			result := RunWithGolden(t, s)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Len(t, result.Trace, len(s.Steps))
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/fast_then_verified.yaml")
	require.NoError(t, err)

	first, err := Run(context.Background(), s, Options{Dir: t.TempDir()})
	require.NoError(t, err)
	second, err := Run(context.Background(), s, Options{Dir: t.TempDir()})
	require.NoError(t, err)

	// Run ids, payload hashes and signatures depend only on the fixed key
	// and the inputs.
	assert.Equal(t, first.Trace, second.Trace)
	for _, step := range first.Trace {
		assert.Len(t, step.RunID, 64)
		assert.Len(t, step.Signature, 64)
	}
}

func TestRun_KeyChangesSignaturesOnly(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/timeout_default_verdict.yaml")
	require.NoError(t, err)

	other := make([]byte, len(FixedKey))
	for i := range other {
		other[i] = 0xff
	}

	a, err := Run(context.Background(), s, Options{Dir: t.TempDir()})
	require.NoError(t, err)
	b, err := Run(context.Background(), s, Options{Dir: t.TempDir(), Key: other})
	require.NoError(t, err)
	require.True(t, b.Pass, "errors: %v", b.Errors)

	for i := range a.Trace {
		assert.Equal(t, a.Trace[i].StateDigest, b.Trace[i].StateDigest)
		assert.Equal(t, a.Trace[i].PayloadHash, b.Trace[i].PayloadHash)
		assert.Equal(t, a.Trace[i].RunID, b.Trace[i].RunID)
		assert.NotEqual(t, a.Trace[i].Signature, b.Trace[i].Signature)
	}
}

func TestRun_ExpectationFailuresAreCollected(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: wrong_expectations
description: "expectations that do not hold"
hidden_size: 8
steps:
  - mode: fast
    prompt: hi
    expect:
      seq: 7
      verification: PASS
      tasks: [inference]
      state_digest: deadbeef
assertions:
  - type: run_count
    count: 2
  - type: final_state
    seq: 1
    expect:
      mode: verified
`))
	require.NoError(t, err)

	result, err := Run(context.Background(), s, Options{Dir: t.TempDir()})
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 6)
	assert.Contains(t, result.Errors[0], "verification = SKIPPED, want PASS")
	assert.Contains(t, result.Errors[1], "tasks")
	assert.Contains(t, result.Errors[2], "seq = 1, want 7")
	assert.Contains(t, result.Errors[3], "state_digest")
	assert.Contains(t, result.Errors[4], "run_count")
	assert.Contains(t, result.Errors[5], "mode = fast")
}

type recordingVerifier struct {
	calls int
}

func (v *recordingVerifier) VerifyDecision(_ context.Context, decision any) verify.Verification {
	v.calls++
	return verify.Pass{Hash: canon.MustHash(decision)}
}

func TestRun_CustomVerifierOverridesVerdicts(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: custom_verifier
description: "Options.Verifier wins over canned verdicts"
hidden_size: 8
verdict: FAIL
steps:
  - mode: verified
    prompt: a
  - mode: hybrid
    prompt: b
    verdict: TIMEOUT
  - mode: fast
    prompt: c
assertions:
  - type: run_count
    status: PASS
    count: 2
`))
	require.NoError(t, err)

	v := &recordingVerifier{}
	result, err := Run(context.Background(), s, Options{Dir: t.TempDir(), Verifier: v})
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, 2, v.calls)
}

func TestRun_RequiresDir(t *testing.T) {
	s, err := ParseScenario([]byte("name: x\ndescription: d\nsteps: [{mode: fast, prompt: p}]\n"))
	require.NoError(t, err)

	_, err = Run(context.Background(), s, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Options.Dir")
}

func TestCannedVerifier(t *testing.T) {
	decision := map[string]any{"task": "math-check"}
	hash := canon.MustHash(decision)

	tests := []struct {
		status verify.Status
		want   verify.Verification
	}{
		{verify.StatusPass, verify.Pass{Hash: hash}},
		{verify.StatusFail, verify.Fail{Hash: hash, ExitCode: 1}},
		{verify.StatusTimeout, verify.Timeout{Hash: hash, TimeoutMS: 5000}},
		{verify.StatusSkipped, verify.Skipped{Reason: verify.ReasonToolNotFound, Hash: hash}},
		{"", verify.Skipped{Reason: verify.ReasonToolNotFound, Hash: hash}},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			got := cannedVerifier{status: tt.status}.VerifyDecision(context.Background(), decision)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCannedVerifier_Unserializable(t *testing.T) {
	got := cannedVerifier{status: verify.StatusPass}.VerifyDecision(context.Background(), map[string]any{"f": func() {}})
	skipped, ok := got.(verify.Skipped)
	require.True(t, ok)
	assert.Equal(t, verify.ReasonContextUnserializable, skipped.Reason)
}
