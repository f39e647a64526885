package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/axiom/internal/inference"
	"github.com/roach88/axiom/internal/pipeline"
	"github.com/roach88/axiom/internal/store"
)

// ExecuteOptions holds flags for the execute command.
type ExecuteOptions struct {
	*RootOptions
	Mode       string
	Prompt     string
	PromptFile string
	Context    string
	Database   string
	NoRecord   bool
}

// NewExecuteCommand creates the execute command.
func NewExecuteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecuteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "execute",
		Short: "Run a prompt through the full pipeline",
		Long: `Run a prompt through inference, optional verification and signed audit
logging.

The engine resumes from the state saved by the last recorded run. The run is
recorded in the run store and the new engine state saved, unless --no-record
is given.

Modes:
  fast      inference and signature only
  verified  inference, model-checker verification, signature
  hybrid    same stages as verified

Exit codes:
  0 - Run completed (verification outcome is reported, not enforced)
  2 - Command error (bad input, inference or signing failure)

Examples:
  axiom execute --prompt "Verify: 2+2=4" --context '{"task":"math-check"}'
  axiom execute --mode hybrid --prompt-file prompt.txt --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExecute(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Mode, "mode", "m", "", "pipeline mode: fast|verified|hybrid (default from config)")
	cmd.Flags().StringVarP(&opts.Prompt, "prompt", "p", "", "prompt text")
	cmd.Flags().StringVar(&opts.PromptFile, "prompt-file", "", "read the prompt from a file (- for stdin)")
	cmd.Flags().StringVar(&opts.Context, "context", "{}", "decision context as a JSON object")
	cmd.Flags().StringVar(&opts.Database, "db", "", "run store path (default from config)")
	cmd.Flags().BoolVar(&opts.NoRecord, "no-record", false, "do not record the run or update the saved engine state")

	return cmd
}

func runExecute(opts *ExecuteOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}

	modeName := opts.Mode
	if modeName == "" {
		modeName = a.cfg.Pipeline.DefaultMode
	}
	mode, err := pipeline.ParseMode(modeName)
	if err != nil {
		return a.out.fail(ExitCommandError, ErrCodeInput, "invalid --mode", err)
	}

	promptBytes, err := readInput(cmd, opts.Prompt, opts.PromptFile)
	if err != nil {
		return a.out.fail(ExitCommandError, ErrCodeInput, "failed to read prompt", err)
	}
	promptContext, err := a.decodeContext(opts.Context)
	if err != nil {
		return err
	}

	engine, err := inference.New(a.cfg.Engine.HiddenSize)
	if err != nil {
		return a.out.fail(ExitCommandError, ErrCodeConfig, "invalid engine configuration", err)
	}

	auditLogger, cleanup, err := a.auditLogger(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	pipeOpts := pipeline.Options{
		Generator: engine,
		Verifier:  a.verifier(),
		Audit:     auditLogger,
		Label:     a.cfg.Audit.Label,
		Logger:    a.logger,
	}

	if !opts.NoRecord {
		dbPath := opts.Database
		if dbPath == "" {
			dbPath = a.cfg.Store.Path
		}
		st, err := store.Open(dbPath)
		if err != nil {
			return a.out.fail(ExitCommandError, ErrCodeStore, "failed to open run store", err)
		}
		defer st.Close()

		if err := resumeEngine(ctx, a, st, engine); err != nil {
			return err
		}
		lastSeq, err := st.LastSeq(ctx)
		if err != nil {
			return a.out.fail(ExitCommandError, ErrCodeStore, "failed to read last seq", err)
		}
		clock := pipeline.NewClockAt(lastSeq)
		a.logger.Debug("seq clock resumed", "last_seq", clock.Current())
		pipeOpts.Clock = clock
		pipeOpts.Recorder = &pipeline.StoreRecorder{Store: st, State: engine}
	}

	orchestrator, err := pipeline.New(pipeOpts)
	if err != nil {
		return a.out.fail(ExitCommandError, ErrCodeConfig, "invalid pipeline configuration", err)
	}

	result, err := orchestrator.Execute(ctx, mode, string(promptBytes), promptContext)
	if err != nil {
		return a.out.fail(ExitCommandError, ErrCodePipeline, "pipeline failed", err)
	}

	return a.out.Success(result, func(w io.Writer) { writeResultText(w, result) })
}

// resumeEngine restores the most recent saved state. A snapshot taken with a
// different hidden size is ignored with a warning.
func resumeEngine(ctx context.Context, a *app, st *store.Store, engine *inference.Engine) error {
	snap, ok, err := st.LatestSnapshot(ctx)
	if err != nil {
		return a.out.fail(ExitCommandError, ErrCodeStore, "failed to read engine snapshot", err)
	}
	if !ok {
		return nil
	}
	if snap.HiddenSize != engine.HiddenSize() {
		a.logger.Warn("saved engine state ignored: hidden size changed",
			"snapshot_seq", snap.Seq,
			"snapshot_hidden_size", snap.HiddenSize,
			"hidden_size", engine.HiddenSize())
		return nil
	}
	if err := engine.Restore(snap.Vector); err != nil {
		return a.out.fail(ExitCommandError, ErrCodeStore, "failed to restore engine state", err)
	}
	a.logger.Debug("engine state restored", "snapshot_seq", snap.Seq)
	return nil
}

func writeResultText(w io.Writer, r pipeline.Result) {
	fmt.Fprintf(w, "Run %s (seq %d, mode %s)\n", r.RunID, r.Seq, r.Mode)
	fmt.Fprintf(w, "  state digest:  %s\n", r.InferenceOutput.Summary.StateDigest)
	fmt.Fprintf(w, "  verification:  %s\n", r.Verification.Status())
	fmt.Fprintf(w, "  tasks:         %s\n", strings.Join(r.TaskNames(), " -> "))
	for _, t := range r.Tasks {
		fmt.Fprintf(w, "    %-13s %s\n", t.Name, t.PayloadHash)
	}
	fmt.Fprintf(w, "  payload hash:  %s\n", r.C0Signature.Hash)
	fmt.Fprintf(w, "  signature:     %s\n", r.C0Signature.Signature)
	fmt.Fprintf(w, "  persisted:     %t\n", r.AuditPersisted)
	fmt.Fprintf(w, "  recorded:      %t\n", r.Recorded)
}
