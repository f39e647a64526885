package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/axiom/internal/inference"
)

// GenerateOptions holds flags for the generate command.
type GenerateOptions struct {
	*RootOptions
	Prompt     string
	PromptFile string
	Context    string
	HiddenSize int
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GenerateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run the inference engine once on a fresh state",
		Long: `Run the state-vector engine once from a zero state and print the result.
Nothing is signed, logged or recorded.

Examples:
  axiom generate --prompt "Verify: 2+2=4" --context '{"task":"math-check"}'
  axiom generate --prompt hello --hidden-size 8 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Prompt, "prompt", "p", "", "prompt text")
	cmd.Flags().StringVar(&opts.PromptFile, "prompt-file", "", "read the prompt from a file (- for stdin)")
	cmd.Flags().StringVar(&opts.Context, "context", "{}", "context as a JSON object")
	cmd.Flags().IntVar(&opts.HiddenSize, "hidden-size", 0, "state length (default from config)")

	return cmd
}

func runGenerate(opts *GenerateOptions, cmd *cobra.Command) error {
	a, err := newApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}

	prompt, err := readInput(cmd, opts.Prompt, opts.PromptFile)
	if err != nil {
		return a.out.fail(ExitCommandError, ErrCodeInput, "failed to read prompt", err)
	}
	promptContext, err := a.decodeContext(opts.Context)
	if err != nil {
		return err
	}

	size := opts.HiddenSize
	if size == 0 {
		size = a.cfg.Engine.HiddenSize
	}
	engine, err := inference.New(size)
	if err != nil {
		return a.out.fail(ExitCommandError, ErrCodeInput, "invalid --hidden-size", err)
	}

	result, err := engine.Generate(string(prompt), promptContext)
	if err != nil {
		return a.out.fail(ExitCommandError, ErrCodeInput, "inference failed", err)
	}

	return a.out.Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "state digest:  %s\n", result.Summary.StateDigest)
		fmt.Fprintf(w, "prompt length: %d\n", result.Summary.PromptLength)
		fmt.Fprintf(w, "context keys:  %s\n", strings.Join(result.Summary.ContextKeys, ", "))
		fmt.Fprintf(w, "engine:        %s (hidden size %d)\n", result.Engine.Type, result.Engine.HiddenSize)
	})
}
