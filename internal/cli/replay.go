package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/axiom/internal/pipeline"
	"github.com/roach88/axiom/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-run recorded runs and check the engine is deterministic",
		Long: `Re-run the inference inputs of every recorded run, in seq order, on a fresh
engine and compare each state digest with the recorded one.

Exit codes:
  0 - Every run reproduced its recorded digest
  1 - At least one run diverged
  2 - Command error (database not found, etc.)

Examples:
  axiom replay
  axiom replay --db ./axiom.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "run store path (default from config)")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	st, err := a.openStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListRuns(ctx, store.RunFilter{})
	if err != nil {
		return a.out.fail(ExitCommandError, ErrCodeStore, "failed to list runs", err)
	}

	report := pipeline.Replay(runs)
	a.logger.Debug("replay finished", "runs", report.Runs, "matched", report.Matched)

	if !report.Deterministic() {
		msg := fmt.Sprintf("%d of %d runs diverged on replay", len(report.Mismatches), report.Runs)
		var details any = report
		if a.out.Format != "json" {
			for _, m := range report.Mismatches {
				writeMismatch(a.out.Writer, m)
			}
			details = nil
		}
		if err := a.out.Error(ErrCodeCheck, msg, details); err != nil {
			return WrapExitError(ExitCommandError, "write output", err)
		}
		return NewExitError(ExitFailure, msg)
	}

	return a.out.Success(report, func(w io.Writer) {
		fmt.Fprintf(w, "%d runs replayed, all deterministic\n", report.Runs)
	})
}

func writeMismatch(w io.Writer, m pipeline.Mismatch) {
	if m.Err != "" {
		fmt.Fprintf(w, "seq %d (%s): %s\n", m.Seq, short(m.RunID), m.Err)
		return
	}
	fmt.Fprintf(w, "seq %d (%s): recorded %s, replayed %s\n",
		m.Seq, short(m.RunID), short(m.Recorded), short(m.Replayed))
}
