package cli

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/axiom/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Filter string // scenario filter (glob pattern)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run pipeline conformance scenarios",
		Long: `Run scenario files through the pipeline harness.

Each scenario runs against a fresh in-memory run store, a fresh engine, a
fixed audit key and canned verification verdicts, then its assertions are
checked.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  axiom test ./scenarios
  axiom test ./scenarios --filter "fast-*"
  axiom test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}

	if _, err := os.Stat(scenariosDir); err != nil {
		return a.out.fail(ExitCommandError, ErrCodeInput, fmt.Sprintf("scenarios directory not found: %s", scenariosDir), err)
	}
	files, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return a.out.fail(ExitCommandError, ErrCodeInput, "failed to find scenarios", err)
	}

	workDir, err := os.MkdirTemp("", "axiom-test-")
	if err != nil {
		return a.out.fail(ExitCommandError, ErrCodeGeneric, "failed to create work directory", err)
	}
	defer os.RemoveAll(workDir)

	result := TestResult{Scenarios: make([]ScenarioResult, 0, len(files)), Total: len(files)}
	for _, file := range files {
		sr := runScenario(ctx, a, file, workDir)
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if result.Failed > 0 {
		msg := fmt.Sprintf("%d of %d scenarios failed", result.Failed, result.Total)
		var details any = result
		if a.out.Format != "json" {
			writeTestText(a.out.Writer, result)
			details = nil
		}
		if err := a.out.Error(ErrCodeCheck, msg, details); err != nil {
			return WrapExitError(ExitCommandError, "write output", err)
		}
		return NewExitError(ExitFailure, msg)
	}

	return a.out.Success(result, func(w io.Writer) { writeTestText(w, result) })
}

// findScenarioFiles finds all YAML scenario files under dir in lexical order.
func findScenarioFiles(dir, filter string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

func runScenario(ctx context.Context, a *app, file, workDir string) ScenarioResult {
	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return ScenarioResult{
			Name:   filepath.Base(file),
			Errors: []string{fmt.Sprintf("failed to load scenario: %v", err)},
		}
	}

	result, err := harness.Run(ctx, scenario, harness.Options{
		Dir:    filepath.Join(workDir, filepath.Base(file)),
		Logger: a.logger,
	})
	if err != nil {
		return ScenarioResult{
			Name:   scenario.Name,
			Errors: []string{fmt.Sprintf("execution failed: %v", err)},
		}
	}
	a.logger.Debug("scenario finished", "scenario", scenario.Name, "pass", result.Pass)

	sr := ScenarioResult{Name: scenario.Name, Pass: result.Pass}
	if !result.Pass {
		sr.Errors = result.Errors
	}
	return sr
}

func writeTestText(w io.Writer, result TestResult) {
	if result.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return
	}
	for _, s := range result.Scenarios {
		if s.Pass {
			fmt.Fprintf(w, "✓ %s\n", s.Name)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", s.Name)
		for _, e := range s.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	fmt.Fprintf(w, "\n%d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
}
