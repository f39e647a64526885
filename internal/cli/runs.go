package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/axiom/internal/store"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Database string
	Status   string
	After    int64
	Limit    int
}

// RunView is one row of runs output.
type RunView struct {
	ID                 string   `json:"id"`
	Seq                int64    `json:"seq"`
	Mode               string   `json:"mode"`
	StateDigest        string   `json:"state_digest"`
	VerificationStatus string   `json:"verification_status"`
	PayloadHash        string   `json:"payload_hash"`
	Tasks              []string `json:"tasks"`
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded pipeline runs",
		Long: `List runs from the run store in seq order.

Examples:
  axiom runs
  axiom runs --status FAIL --format json
  axiom runs --after 10 --limit 5`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "run store path (default from config)")
	cmd.Flags().StringVar(&opts.Status, "status", "", "only runs with this verification status")
	cmd.Flags().Int64Var(&opts.After, "after", 0, "only runs with seq greater than this")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of runs (0 = all)")

	return cmd
}

func runRuns(opts *RunsOptions, cmd *cobra.Command) error {
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

	runs, err := st.ListRuns(ctx, store.RunFilter{
		Status:   opts.Status,
		AfterSeq: opts.After,
		Limit:    opts.Limit,
	})
	if err != nil {
		return a.out.fail(ExitCommandError, ErrCodeStore, "failed to list runs", err)
	}

	views := make([]RunView, len(runs))
	for i, r := range runs {
		names := make([]string, len(r.Tasks))
		for j, t := range r.Tasks {
			names[j] = t.Name
		}
		views[i] = RunView{
			ID:                 r.ID,
			Seq:                r.Seq,
			Mode:               r.Mode,
			StateDigest:        r.StateDigest,
			VerificationStatus: r.VerificationStatus,
			PayloadHash:        r.PayloadHash,
			Tasks:              names,
		}
	}

	return a.out.Success(views, func(w io.Writer) {
		if len(views) == 0 {
			fmt.Fprintln(w, "no runs recorded")
			return
		}
		fmt.Fprintf(w, "%-6s %-9s %-8s %-16s %s\n", "SEQ", "MODE", "VERIFY", "RUN", "DIGEST")
		for _, v := range views {
			fmt.Fprintf(w, "%-6d %-9s %-8s %-16s %s\n",
				v.Seq, v.Mode, v.VerificationStatus, short(v.ID), short(v.StateDigest))
		}
	})
}

func short(hash string) string {
	if len(hash) > 16 {
		return hash[:16]
	}
	return hash
}
