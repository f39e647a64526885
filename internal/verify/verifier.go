package verify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/roach88/axiom/internal/canon"
)

// Defaults for ToolVerifier.
const (
	DefaultTool       = "tlc"
	DefaultSpecPath   = "core/verify/axiom_hive_core.tla"
	DefaultConfigPath = "core/verify/axiom_hive_core.cfg"
	DefaultTimeout    = 5 * time.Second
)

// waitDelay bounds how long Wait blocks on output pipes after a kill.
const waitDelay = 500 * time.Millisecond

// ContextHashEnv is set in the checker's environment to the context hash of
// the decision under verification.
const ContextHashEnv = "AXIOM_CONTEXT_HASH"

// DecisionVerifier classifies a decision. It never returns an error:
// problems are reported as Skipped or Timeout.
type DecisionVerifier interface {
	VerifyDecision(ctx context.Context, decision any) Verification
}

// Options configures a ToolVerifier. Zero values select the defaults.
type Options struct {
	Tool       string
	SpecPath   string
	ConfigPath string
	// Timeout bounds one checker run. Zero or negative selects
	// DefaultTimeout; any positive value is used as given, so callers
	// wanting the shortest budget pass a small positive duration such as
	// time.Millisecond rather than zero.
	Timeout time.Duration
	Logger  *slog.Logger
}

// ToolVerifier runs `tool -config <ConfigPath> <SpecPath>` and maps its exit
// status to a Verification.
type ToolVerifier struct {
	tool       string
	specPath   string
	configPath string
	timeout    time.Duration
	logger     *slog.Logger
}

// NewToolVerifier applies defaults to opts.
func NewToolVerifier(opts Options) *ToolVerifier {
	v := &ToolVerifier{
		tool:       opts.Tool,
		specPath:   opts.SpecPath,
		configPath: opts.ConfigPath,
		timeout:    opts.Timeout,
		logger:     opts.Logger,
	}
	if v.tool == "" {
		v.tool = DefaultTool
	}
	if v.specPath == "" {
		v.specPath = DefaultSpecPath
	}
	if v.configPath == "" {
		v.configPath = DefaultConfigPath
	}
	if v.timeout <= 0 {
		v.timeout = DefaultTimeout
	}
	if v.logger == nil {
		v.logger = slog.Default()
	}
	return v
}

// Timeout returns the wall-clock budget for one checker run.
func (v *ToolVerifier) Timeout() time.Duration {
	return v.timeout
}

// VerifyDecision hashes decision and runs the checker against it.
//
// The run gets its own timeout derived from ctx without ctx's cancellation:
// once started, the checker is always either waited for or killed. On
// timeout the checker's whole process group is killed.
func (v *ToolVerifier) VerifyDecision(ctx context.Context, decision any) Verification {
	hash, err := canon.Hash(decision)
	if err != nil {
		v.logger.Warn("verification skipped: decision has no canonical form", "error", err)
		return Skipped{Reason: ReasonContextUnserializable, Detail: err.Error()}
	}

	if _, err := os.Stat(v.specPath); err != nil {
		v.logger.Debug("verification skipped: spec not found", "spec", v.specPath, "context_hash", hash)
		return Skipped{Reason: ReasonSpecNotFound, Hash: hash}
	}

	toolPath, err := exec.LookPath(v.tool)
	if err != nil {
		v.logger.Debug("verification skipped: tool not found", "tool", v.tool, "context_hash", hash)
		return Skipped{Reason: ReasonToolNotFound, Hash: hash}
	}

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), v.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, toolPath, "-config", v.configPath, v.specPath)
	cmd.Env = append(os.Environ(), ContextHashEnv+"="+hash)
	configureCommandProcess(cmd)
	cmd.Cancel = func() error {
		terminateCommandProcess(cmd)
		return nil
	}
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		v.logger.Warn("verification timed out",
			"tool", v.tool,
			"timeout", v.timeout,
			"context_hash", hash)
		return Timeout{Hash: hash, TimeoutMS: v.timeout.Milliseconds()}
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			v.logger.Warn("verification skipped: tool failed to run", "tool", v.tool, "error", runErr)
			return Skipped{Reason: ReasonToolError, Detail: runErr.Error(), Hash: hash}
		}
		v.logger.Info("verification failed",
			"tool", v.tool,
			"exit_code", exitErr.ExitCode(),
			"elapsed", elapsed,
			"context_hash", hash)
		return Fail{
			Hash:     hash,
			ExitCode: exitErr.ExitCode(),
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
		}
	}

	v.logger.Info("verification passed", "tool", v.tool, "elapsed", elapsed, "context_hash", hash)
	return Pass{Hash: hash, Stdout: stdout.String(), Stderr: stderr.String()}
}
