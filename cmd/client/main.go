package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/iudanet/authflow/internal/client/cli"
	"github.com/iudanet/authflow/internal/client/iocli"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand(fmt.Sprintf("%s (built %s, commit %s)", Version, BuildDate, GitCommit), iocli.NewStdio())

	if err := root.ExecuteContext(ctx); err != nil {
		verbose := slices.Contains(os.Args[1:], "--verbose") || slices.Contains(os.Args[1:], "-v")
		fmt.Fprintf(os.Stderr, "Error: %s\n", cli.ErrorMessage(err, verbose))
		stop()
		os.Exit(1)
	}
}
