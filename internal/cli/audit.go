package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/axiom/internal/audit"
)

// AuditOptions holds flags shared by the audit subcommands.
type AuditOptions struct {
	*RootOptions
	Dir string
}

// AuditRecordView is one record in audit list and audit verify output.
type AuditRecordView struct {
	Path      string `json:"path"`
	Label     string `json:"label"`
	Hash      string `json:"hash"`
	Signature string `json:"signature"`
	// Reason is set on tampered records only.
	Reason string `json:"reason,omitempty"`
}

// AuditVerifyResult is the output of audit verify.
type AuditVerifyResult struct {
	Dir      string            `json:"dir"`
	Records  int               `json:"records"`
	Valid    int               `json:"valid"`
	Tampered []AuditRecordView `json:"tampered"`
}

// AuditRootResult is the output of audit root.
type AuditRootResult struct {
	Dir     string `json:"dir"`
	Records int    `json:"records"`
	Root    string `json:"root"`
}

// NewAuditCommand creates the audit command group.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AuditOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the signed audit log",
		Long: `Inspect the records written by execute.

Subcommands:
  list    print every record
  verify  re-check every record signature with the configured key
  root    print the Merkle root over all records`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Dir, "dir", "", "audit log directory (default from config)")

	cmd.AddCommand(&cobra.Command{
		Use:           "list",
		Short:         "List audit records",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuditList(opts, cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "verify",
		Short: "Check every record signature",
		Long: `Re-read every audit record and check its signature against its payload
hash.

Exit codes:
  0 - All records valid
  1 - At least one record was tampered with
  2 - Command error (no key configured, unreadable directory)`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuditVerify(opts, cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "root",
		Short:         "Print the Merkle root of the audit log",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuditRoot(opts, cmd)
		},
	})

	return cmd
}

func (o *AuditOptions) dir(a *app) string {
	if o.Dir != "" {
		return o.Dir
	}
	return a.cfg.Audit.Dir
}

func recordView(r audit.StoredRecord) AuditRecordView {
	return AuditRecordView{
		Path:      r.Path,
		Label:     r.Label,
		Hash:      r.Hash,
		Signature: r.Signature,
	}
}

func runAuditList(opts *AuditOptions, cmd *cobra.Command) error {
	a, err := newApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	records, err := audit.ListRecords(opts.dir(a))
	if err != nil {
		return a.out.fail(ExitCommandError, ErrCodeAudit, "failed to read audit log", err)
	}

	views := make([]AuditRecordView, len(records))
	for i, r := range records {
		views[i] = recordView(r)
	}
	return a.out.Success(views, func(w io.Writer) {
		if len(views) == 0 {
			fmt.Fprintln(w, "no audit records")
			return
		}
		for _, v := range views {
			fmt.Fprintf(w, "%s  %s  %s\n", v.Hash, v.Label, v.Path)
		}
	})
}

func runAuditVerify(opts *AuditOptions, cmd *cobra.Command) error {
	a, err := newApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	key, err := a.requiredSecret()
	if err != nil {
		return err
	}
	dir := opts.dir(a)
	logger, err := audit.New(audit.Options{Dir: dir, Key: key, Logger: a.logger})
	if err != nil {
		return a.out.fail(ExitCommandError, ErrCodeKey, "invalid audit secret key", err)
	}
	report, err := logger.VerifyDir(dir)
	if err != nil {
		return a.out.fail(ExitCommandError, ErrCodeAudit, "failed to read audit log", err)
	}

	res := AuditVerifyResult{
		Dir:      report.Dir,
		Records:  report.Records,
		Valid:    report.Valid,
		Tampered: make([]AuditRecordView, len(report.Tampered)),
	}
	for i, t := range report.Tampered {
		a.logger.Warn("audit record failed verification", "path", t.Path, "reason", t.Reason)
		res.Tampered[i] = AuditRecordView{
			Path:      t.Path,
			Label:     t.Label,
			Hash:      t.Hash,
			Signature: t.Signature,
			Reason:    t.Reason,
		}
	}

	if !report.OK() {
		msg := fmt.Sprintf("%d of %d audit records failed verification", len(res.Tampered), res.Records)
		var details any = res
		if a.out.Format != "json" {
			for _, v := range res.Tampered {
				fmt.Fprintf(a.out.Writer, "TAMPERED  %s  (%s)\n", v.Path, v.Reason)
			}
			details = nil
		}
		if err := a.out.Error(ErrCodeCheck, msg, details); err != nil {
			return WrapExitError(ExitCommandError, "write output", err)
		}
		return NewExitError(ExitFailure, msg)
	}

	return a.out.Success(res, func(w io.Writer) {
		fmt.Fprintf(w, "%d audit records verified in %s\n", res.Valid, res.Dir)
	})
}

func runAuditRoot(opts *AuditOptions, cmd *cobra.Command) error {
	a, err := newApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	dir := opts.dir(a)
	root, n, err := audit.Root(dir)
	if errors.Is(err, audit.ErrNoRecords) {
		return a.out.fail(ExitCommandError, ErrCodeAudit, fmt.Sprintf("no audit records in %s", dir), nil)
	}
	if err != nil {
		return a.out.fail(ExitCommandError, ErrCodeAudit, "failed to compute audit root", err)
	}

	res := AuditRootResult{Dir: dir, Records: n, Root: root}
	return a.out.Success(res, func(w io.Writer) {
		fmt.Fprintf(w, "%s  (%d records)\n", res.Root, res.Records)
	})
}
