package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/axiom/internal/config"
	"github.com/roach88/axiom/internal/verify"
)

// VerifyDecisionOptions holds flags for the verify-decision command.
type VerifyDecisionOptions struct {
	*RootOptions
	Decision string
	Input    string
	Timeout  time.Duration
}

// NewVerifyDecisionCommand creates the verify-decision command.
func NewVerifyDecisionCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyDecisionOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify-decision",
		Short: "Run the model checker against a decision",
		Long: `Hash a decision, pass the hash to the configured model checker and report
the outcome.

Exit codes:
  0 - PASS or SKIPPED (checker or spec unavailable)
  1 - FAIL or TIMEOUT
  2 - Command error

Examples:
  axiom verify-decision --decision '{"task":"math-check"}'
  axiom verify-decision --input decision.json --timeout 10s --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerifyDecision(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Decision, "decision", "d", "", "decision as a JSON object")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "read the decision from a file (- for stdin)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "checker timeout (default from config)")

	return cmd
}

func runVerifyDecision(opts *VerifyDecisionOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}

	raw, err := readInput(cmd, opts.Decision, opts.Input)
	if err != nil {
		return a.out.fail(ExitCommandError, ErrCodeInput, "failed to read decision", err)
	}
	if len(raw) == 0 {
		return a.out.fail(ExitCommandError, ErrCodeInput, "a decision is required (--decision or --input)", nil)
	}
	decision, err := a.decodeContext(string(raw))
	if err != nil {
		return err
	}

	if opts.Timeout > 0 {
		a.cfg.Verifier.Timeout = config.Duration(opts.Timeout)
	}
	result := a.verifier().VerifyDecision(ctx, decision)

	switch result.Status() {
	case verify.StatusFail, verify.StatusTimeout:
		msg := fmt.Sprintf("verification %s", result.Status())
		var details any = result
		if a.out.Format != "json" {
			writeVerificationText(a.out.Writer, result)
			details = nil
		}
		if err := a.out.Error(ErrCodeCheck, msg, details); err != nil {
			return WrapExitError(ExitCommandError, "write output", err)
		}
		return NewExitError(ExitFailure, msg)
	}

	return a.out.Success(result, func(w io.Writer) {
		writeVerificationText(w, result)
	})
}

func writeVerificationText(w io.Writer, v verify.Verification) {
	fmt.Fprintf(w, "status:       %s\n", v.Status())
	if h := v.ContextHash(); h != "" {
		fmt.Fprintf(w, "context hash: %s\n", h)
	}
	switch r := v.(type) {
	case verify.Skipped:
		fmt.Fprintf(w, "reason:       %s\n", r.Reason)
		if r.Detail != "" {
			fmt.Fprintf(w, "detail:       %s\n", r.Detail)
		}
	case verify.Pass:
		if r.Stdout != "" {
			fmt.Fprintf(w, "stdout:\n%s\n", r.Stdout)
		}
	case verify.Fail:
		fmt.Fprintf(w, "exit code:    %d\n", r.ExitCode)
		if r.Stderr != "" {
			fmt.Fprintf(w, "stderr:\n%s\n", r.Stderr)
		}
	case verify.Timeout:
		fmt.Fprintf(w, "timeout:      %dms\n", r.TimeoutMS)
	}
}
