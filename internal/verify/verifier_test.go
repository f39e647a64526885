package verify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/axiom/internal/testutil"
)

const mathCheckHash = "47bb1adfac8c77fc1d639afaa765396427dd19cbaaa93db9e2b8430c891f9702"

var mathCheck = map[string]any{"task": "math-check"}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newVerifier(t *testing.T, tool string, timeout time.Duration) *ToolVerifier {
	t.Helper()
	spec, cfg := testutil.WriteSpec(t, t.TempDir())
	return NewToolVerifier(Options{
		Tool:       tool,
		SpecPath:   spec,
		ConfigPath: cfg,
		Timeout:    timeout,
		Logger:     quietLogger(),
	})
}

func TestNewToolVerifierDefaults(t *testing.T) {
	v := NewToolVerifier(Options{})
	assert.Equal(t, DefaultTool, v.tool)
	assert.Equal(t, DefaultSpecPath, v.specPath)
	assert.Equal(t, DefaultConfigPath, v.configPath)
	assert.Equal(t, DefaultTimeout, v.Timeout())
}

func TestNewToolVerifierTimeout(t *testing.T) {
	tests := []struct {
		name    string
		timeout time.Duration
		want    time.Duration
	}{
		{"zero selects default", 0, DefaultTimeout},
		{"negative selects default", -time.Second, DefaultTimeout},
		{"small positive kept", time.Millisecond, time.Millisecond},
		{"sub-millisecond kept", time.Microsecond, time.Microsecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewToolVerifier(Options{Timeout: tt.timeout})
			assert.Equal(t, tt.want, v.Timeout())
		})
	}
}

func TestVerifyDecisionSpecNotFound(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "spawned")
	tool := testutil.WriteTool(t, dir, "checker", "touch "+marker)

	v := NewToolVerifier(Options{
		Tool:     tool,
		SpecPath: filepath.Join(dir, "missing.tla"),
		Logger:   quietLogger(),
	})

	got := v.VerifyDecision(context.Background(), mathCheck)
	assert.Equal(t, Skipped{Reason: ReasonSpecNotFound, Hash: mathCheckHash}, got)
	assert.NoFileExists(t, marker, "no process may be spawned")

	data, err := got.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"SKIPPED","reason":"spec_not_found","context_hash":"`+mathCheckHash+`"}`, string(data))
}

func TestVerifyDecisionToolNotFound(t *testing.T) {
	v := newVerifier(t, filepath.Join(t.TempDir(), "no-such-checker"), time.Second)

	got := v.VerifyDecision(context.Background(), mathCheck)
	assert.Equal(t, Skipped{Reason: ReasonToolNotFound, Hash: mathCheckHash}, got)
}

func TestVerifyDecisionPass(t *testing.T) {
	tool := testutil.WriteTool(t, t.TempDir(), "checker", `echo "checked $*"; echo "hash $`+ContextHashEnv+`"`)
	v := newVerifier(t, tool, 5*time.Second)

	got := v.VerifyDecision(context.Background(), mathCheck)
	pass, ok := got.(Pass)
	require.True(t, ok, "got %#v", got)

	assert.Equal(t, StatusPass, pass.Status())
	assert.Equal(t, mathCheckHash, pass.ContextHash())
	assert.Contains(t, pass.Stdout, "checked -config "+v.configPath+" "+v.specPath)
	assert.Contains(t, pass.Stdout, "hash "+mathCheckHash)
	assert.Empty(t, pass.Stderr)
}

func TestVerifyDecisionFail(t *testing.T) {
	tool := testutil.WriteTool(t, t.TempDir(), "checker", `echo "invariant violated"; echo "trace" >&2; exit 12`)
	v := newVerifier(t, tool, 5*time.Second)

	got := v.VerifyDecision(context.Background(), mathCheck)
	assert.Equal(t, Fail{
		Hash:     mathCheckHash,
		ExitCode: 12,
		Stdout:   "invariant violated\n",
		Stderr:   "trace\n",
	}, got)
}

func TestVerifyDecisionTimeout(t *testing.T) {
	tool := testutil.WriteTool(t, t.TempDir(), "checker", "exec sleep 30")
	v := newVerifier(t, tool, 100*time.Millisecond)

	start := time.Now()
	got := v.VerifyDecision(context.Background(), mathCheck)

	assert.Equal(t, Timeout{Hash: mathCheckHash, TimeoutMS: 100}, got)
	assert.Less(t, time.Since(start), 5*time.Second)
}

// processGone reports whether pid has exited. A zombie awaiting reaping by
// init counts as gone.
func processGone(pid int) bool {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return true
	}
	fields := strings.Fields(string(data[strings.LastIndexByte(string(data), ')')+1:]))
	return len(fields) > 0 && fields[0] == "Z"
}

func TestVerifyDecisionTimeoutLeavesNoOrphans(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("inspects /proc")
	}
	dir := t.TempDir()
	pidFile := filepath.Join(dir, "child.pid")
	tool := testutil.WriteTool(t, dir, "checker",
		"sleep 30 &\necho $! > "+pidFile+"\nwait")
	v := newVerifier(t, tool, 200*time.Millisecond)

	got := v.VerifyDecision(context.Background(), mathCheck)
	require.Equal(t, StatusTimeout, got.Status())

	data, err := os.ReadFile(pidFile)
	require.NoError(t, err)
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return processGone(pid) },
		2*time.Second, 20*time.Millisecond, "grandchild %d still running", pid)
}

func TestVerifyDecisionIgnoresParentCancellation(t *testing.T) {
	tool := testutil.WriteTool(t, t.TempDir(), "checker", "sleep 0.2; exit 0")
	v := newVerifier(t, tool, 5*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := v.VerifyDecision(ctx, mathCheck)
	assert.Equal(t, StatusPass, got.Status())
}

func TestVerifyDecisionToolError(t *testing.T) {
	dir := t.TempDir()
	// Executable bit set but the interpreter does not exist.
	tool := filepath.Join(dir, "checker")
	require.NoError(t, os.WriteFile(tool, []byte("#!/nonexistent/interpreter\n"), 0o755))
	if runtime.GOOS == "windows" {
		t.Skip("shebang scripts are POSIX only")
	}
	v := newVerifier(t, tool, time.Second)

	got := v.VerifyDecision(context.Background(), mathCheck)
	skipped, ok := got.(Skipped)
	require.True(t, ok, "got %#v", got)
	assert.Equal(t, ReasonToolError, skipped.Reason)
	assert.NotEmpty(t, skipped.Detail)
	assert.Equal(t, mathCheckHash, skipped.Hash)
}

func TestVerifyDecisionUnserializable(t *testing.T) {
	v := newVerifier(t, "unused", time.Second)

	got := v.VerifyDecision(context.Background(), map[string]any{"f": func() {}})
	skipped, ok := got.(Skipped)
	require.True(t, ok)
	assert.Equal(t, ReasonContextUnserializable, skipped.Reason)
	assert.Empty(t, skipped.Hash)
}

func TestVerifyDecisionHashIsKeyOrderInvariant(t *testing.T) {
	v := NewToolVerifier(Options{SpecPath: filepath.Join(t.TempDir(), "none"), Logger: quietLogger()})

	a := v.VerifyDecision(context.Background(), map[string]any{"a": 1, "b": map[string]any{"y": 2, "x": 1}})
	b := v.VerifyDecision(context.Background(), map[string]any{"b": map[string]any{"x": 1, "y": 2}, "a": 1})
	assert.Equal(t, a.ContextHash(), b.ContextHash())
	assert.NotEmpty(t, a.ContextHash())
}
