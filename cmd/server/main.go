package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
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

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var flags serverFlags

	cmd := &cobra.Command{
		Use:           "authflow-server",
		Short:         "Email + one-time code auth server",
		Version:       fmt.Sprintf("%s (built %s, commit %s)", Version, BuildDate, GitCommit),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.addr, "addr", "", "Listen address (env HTTP_ADDR)")
	cmd.Flags().StringVar(&flags.storage, "storage", "", "Storage backend: memory, sqlite or redis (env STORAGE)")
	cmd.Flags().StringVar(&flags.sqlitePath, "sqlite-path", "", "SQLite database file (env SQLITE_PATH)")
	cmd.Flags().StringVar(&flags.redisAddr, "redis-addr", "", "Redis address (env REDIS_ADDR)")
	cmd.Flags().BoolVar(&flags.dev, "dev", false, "Development mode: text logs, generated secret (env DEV)")

	return cmd
}
