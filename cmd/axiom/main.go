// Command axiom runs prompts through the deterministic inference pipeline
// and manages its signed audit log and run store.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/axiom/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()

	code := cli.GetExitCode(err)
	var exitErr *cli.ExitError
	// ExitErrors were already reported through the output formatter. Anything
	// else comes from cobra itself: unknown flags, missing arguments.
	if err != nil && !errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, "axiom:", err)
		code = cli.ExitCommandError
	}
	os.Exit(code)
}
