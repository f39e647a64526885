package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/axiom/internal/audit"
	"github.com/roach88/axiom/internal/canon"
	"github.com/roach88/axiom/internal/config"
	"github.com/roach88/axiom/internal/logging"
	"github.com/roach88/axiom/internal/store"
	"github.com/roach88/axiom/internal/verify"
)

// app holds what every command builds from the root flags: configuration,
// a logger tagged with this invocation's trace id, and the output formatter.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	out     *OutputFormatter
	traceID string
}

func newApp(opts *RootOptions, cmd *cobra.Command) (*app, error) {
	traceID := newTraceID()
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), TraceID: traceID}

	cfg := config.Default()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, out.fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
		}
		cfg = loaded
	}

	logCfg := logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format}
	if opts.Verbose {
		logCfg.Level = "debug"
	}
	logger, err := logging.New(logCfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, out.fail(ExitCommandError, ErrCodeConfig, "failed to build logger", err)
	}

	return &app{
		cfg:     cfg,
		logger:  logger.With("trace_id", traceID, "command", cmd.Name()),
		out:     out,
		traceID: traceID,
	}, nil
}

// newTraceID returns a time-ordered UUID correlating output with log lines.
func newTraceID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// signingKey returns the configured audit key. Without one, an ephemeral
// key is generated and a warning logged: signatures made with it cannot be
// checked after this process exits.
func (a *app) signingKey() (audit.Key, error) {
	key, ok, err := a.cfg.SecretKey()
	if err != nil {
		return nil, a.out.fail(ExitCommandError, ErrCodeKey, "invalid audit secret key", err)
	}
	if ok {
		return key, nil
	}
	key, err = audit.GenerateKey()
	if err != nil {
		return nil, a.out.fail(ExitCommandError, ErrCodeKey, "failed to generate ephemeral key", err)
	}
	a.logger.Warn("no audit secret key configured; using an ephemeral key",
		"env", config.SecretKeyEnv)
	return key, nil
}

// requiredSecret returns the configured audit key or fails. Commands that
// check existing signatures are meaningless with an ephemeral key.
func (a *app) requiredSecret() (audit.Key, error) {
	key, ok, err := a.cfg.SecretKey()
	if err != nil {
		return nil, a.out.fail(ExitCommandError, ErrCodeKey, "invalid audit secret key", err)
	}
	if !ok {
		return nil, a.out.fail(ExitCommandError, ErrCodeKey,
			fmt.Sprintf("no audit secret key configured (set audit.secret_key or %s)", config.SecretKeyEnv), nil)
	}
	return key, nil
}

// requiredKey is requiredSecret wrapped in a Signer.
func (a *app) requiredKey() (*audit.Signer, error) {
	key, err := a.requiredSecret()
	if err != nil {
		return nil, err
	}
	signer, err := audit.NewSigner(key)
	if err != nil {
		return nil, a.out.fail(ExitCommandError, ErrCodeKey, "invalid audit secret key", err)
	}
	return signer, nil
}

// auditLogger builds the audit logger, attaching the Redis mirror when an
// address is configured. An unreachable Redis disables the mirror with a
// warning.
func (a *app) auditLogger(ctx context.Context) (*audit.Logger, func(), error) {
	key, err := a.signingKey()
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {}
	var mirror audit.Mirror
	if r := a.cfg.Audit.Mirror.Redis; r.Address != "" {
		m, err := audit.NewRedisMirror(ctx, audit.RedisMirrorConfig{
			Address:  r.Address,
			Password: r.Password,
			DB:       r.DB,
			List:     r.List,
		})
		if err != nil {
			a.logger.Warn("audit mirror disabled", "address", r.Address, "error", err)
		} else {
			mirror = m
			cleanup = func() { _ = m.Close() }
		}
	}

	logger, err := audit.New(audit.Options{
		Dir:    a.cfg.Audit.Dir,
		Key:    key,
		Logger: a.logger,
		Mirror: mirror,
	})
	if err != nil {
		cleanup()
		return nil, nil, a.out.fail(ExitCommandError, ErrCodeKey, "failed to build audit logger", err)
	}
	return logger, cleanup, nil
}

func (a *app) verifier() *verify.ToolVerifier {
	return verify.NewToolVerifier(verify.Options{
		Tool:       a.cfg.Verifier.Tool,
		SpecPath:   a.cfg.Verifier.SpecPath,
		ConfigPath: a.cfg.Verifier.ConfigPath,
		Timeout:    a.cfg.Verifier.Timeout.Std(),
		Logger:     a.logger,
	})
}

// decodeContext parses a JSON object flag. Empty means {}.
func (a *app) decodeContext(raw string) (map[string]any, error) {
	obj, err := canon.DecodeObject([]byte(raw))
	if err != nil {
		return nil, a.out.fail(ExitCommandError, ErrCodeInput, "invalid --context", err)
	}
	return obj, nil
}

// readInput returns literal when set, otherwise the contents of path
// ("-" reads stdin).
func readInput(cmd *cobra.Command, literal, path string) ([]byte, error) {
	switch {
	case literal != "" && path != "":
		return nil, errors.New("use only one of the inline flag and the file flag")
	case literal != "":
		return []byte(literal), nil
	case path == "-":
		return io.ReadAll(cmd.InOrStdin())
	case path != "":
		return os.ReadFile(path)
	}
	return nil, nil
}

// openStore opens the run store at path, or the configured one when path is
// empty. The store must already exist: reading commands never create one.
func (a *app) openStore(path string) (*store.Store, error) {
	if path == "" {
		path = a.cfg.Store.Path
	}
	if _, err := os.Stat(path); err != nil {
		return nil, a.out.fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("run store not found: %s", path), err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, a.out.fail(ExitCommandError, ErrCodeStore, "failed to open run store", err)
	}
	return st, nil
}
