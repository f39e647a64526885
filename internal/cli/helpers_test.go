package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/axiom/internal/config"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

// testEnv is an isolated config, audit directory and run store.
type testEnv struct {
	dir        string
	configPath string
	auditDir   string
	storePath  string
}

type envOption func(*envSettings)

type envSettings struct {
	key      string
	tool     string
	specPath string
	cfgPath  string
}

func withoutKey() envOption {
	return func(s *envSettings) { s.key = "" }
}

func withTool(tool, specPath, cfgPath string) envOption {
	return func(s *envSettings) {
		s.tool = tool
		s.specPath = specPath
		s.cfgPath = cfgPath
	}
}

// newTestEnv writes a config file into a temp dir. The verifier points at
// a missing checker unless withTool is given.
func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	t.Setenv(config.SecretKeyEnv, "")

	s := envSettings{key: testKey, tool: "axiom-test-missing-checker"}
	for _, o := range opts {
		o(&s)
	}

	dir := t.TempDir()
	var b strings.Builder
	b.WriteString("engine:\n  hidden_size: 16\n")
	b.WriteString("audit:\n  dir: audit\n")
	if s.key != "" {
		fmt.Fprintf(&b, "  secret_key: %q\n", s.key)
	}
	fmt.Fprintf(&b, "verifier:\n  tool: %q\n  timeout: 2s\n", s.tool)
	if s.specPath != "" {
		fmt.Fprintf(&b, "  spec_path: %q\n  config_path: %q\n", s.specPath, s.cfgPath)
	}
	b.WriteString("store:\n  path: runs.db\n")
	b.WriteString("logging:\n  level: warn\n")

	cfgPath := filepath.Join(dir, "axiom.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(b.String()), 0o644))

	return &testEnv{
		dir:        dir,
		configPath: cfgPath,
		auditDir:   filepath.Join(dir, "audit"),
		storePath:  filepath.Join(dir, "runs.db"),
	}
}

// run executes the CLI with the env's config and returns stdout.
func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

// runStderr is run returning stderr, where logs are written.
func (e *testEnv) runStderr(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.Execute()
	return stderr.String(), err
}

// runJSON executes the CLI with --format json and decodes the response.
func (e *testEnv) runJSON(t *testing.T, args ...string) (jsonResponse, error) {
	t.Helper()
	out, err := e.run(t, append(args, "--format", "json")...)
	var resp jsonResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp, err
}

type jsonResponse struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	TraceID string          `json:"trace_id"`
	Error   *struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

func (r jsonResponse) decode(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.Data, v))
}

// executeView is the subset of an execute result the tests inspect.
type executeView struct {
	RunID           string           `json:"run_id"`
	Seq             int64            `json:"seq"`
	Mode            string           `json:"mode"`
	Tasks           []taskView       `json:"tasks"`
	InferenceOutput inferenceView    `json:"inference_output"`
	Verification    verificationView `json:"verification"`
	C0Signature     signatureView    `json:"c0_signature"`
	AuditPersisted  bool             `json:"audit_persisted"`
	Recorded        bool             `json:"recorded"`
}

type taskView struct {
	Task        string `json:"task"`
	PayloadHash string `json:"payload_hash"`
}

type inferenceView struct {
	Summary struct {
		StateDigest string `json:"state_digest"`
	} `json:"summary"`
}

type verificationView struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

type signatureView struct {
	Label     string `json:"label"`
	Hash      string `json:"hash"`
	Signature string `json:"signature"`
}
