package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/authflow/internal/client/iocli"
	"github.com/iudanet/authflow/internal/config"
)

// DefaultRetries is the default number of register attempts
const DefaultRetries = 3

// rootFlags are the persistent flags; they override the environment
type rootFlags struct {
	server  string
	db      string
	timeout time.Duration
	verbose bool
}

// NewRootCommand создает дерево команд authflow.
// stdio is used for prompts and output; logs go to stderr.
func NewRootCommand(version string, stdio iocli.IO) *cobra.Command {
	var (
		flags rootFlags
		c     *Cli
	)

	root := &cobra.Command{
		Use:           "authflow",
		Short:         "Email + one-time code login client",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadClient()
			if err != nil {
				return err
			}
			applyFlags(cmd, &cfg, flags)

			level := config.ParseLevel(cfg.LogLevel)
			if flags.verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			c = Open(cmd.Context(), cfg, stdio, logger)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&flags.server, "server", "", "Server URL (env AUTHFLOW_SERVER)")
	root.PersistentFlags().StringVar(&flags.db, "db", "", "Path to the token file (env AUTHFLOW_DB)")
	root.PersistentFlags().DurationVar(&flags.timeout, "timeout", config.DefaultClientTimeout, "Per-request timeout (env AUTHFLOW_TIMEOUT)")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Debug logging and full error details")

	// run откладывает доступ к c до PersistentPreRunE и закрывает хранилище
	// даже при ошибке команды: PersistentPostRun в этом случае не вызывается
	run := func(fn func(c *Cli, ctx context.Context) error) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, args []string) (err error) {
			defer func() {
				if closeErr := c.Close(); closeErr != nil && err == nil {
					err = fmt.Errorf("failed to close token storage: %w", closeErr)
				}
			}()
			return fn(c, cmd.Context())
		}
	}

	root.AddCommand(
		newRegisterCommand(run),
		newLoginCommand(run),
		newVerifyCommand(run),
		&cobra.Command{
			Use:   "logout",
			Short: "Log out and delete the local session",
			Args:  cobra.NoArgs,
			RunE:  run(func(c *Cli, ctx context.Context) error { return c.runLogout(ctx) }),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show authentication status",
			Args:  cobra.NoArgs,
			RunE:  run(func(c *Cli, ctx context.Context) error { return c.runStatus(ctx) }),
		},
		&cobra.Command{
			Use:   "tokens",
			Short: "Show CSRF and session token diagnostics",
			Args:  cobra.NoArgs,
			RunE:  run(func(c *Cli, ctx context.Context) error { return c.runTokens(ctx) }),
		},
		&cobra.Command{
			Use:   "health",
			Short: "Check that the server is reachable",
			Args:  cobra.NoArgs,
			RunE:  run(func(c *Cli, ctx context.Context) error { return c.runHealth(ctx) }),
		},
	)

	return root
}

type runner func(fn func(c *Cli, ctx context.Context) error) func(cmd *cobra.Command, args []string) error

func applyFlags(cmd *cobra.Command, cfg *config.ClientConfig, flags rootFlags) {
	if cmd.Flags().Changed("server") {
		cfg.ServerURL = flags.server
	}
	if cmd.Flags().Changed("db") {
		cfg.DBPath = flags.db
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Timeout = flags.timeout
	}
	cfg.Sanitize()
}

func addCredentialFlags(cmd *cobra.Command, opts *FlowOptions) {
	cmd.Flags().StringVar(&opts.Email, "email", "", "Email address (prompted if empty)")
	cmd.Flags().StringVar(&opts.Password, "password", "", "Password (prompted if empty; env AUTHFLOW_PASSWORD)")
	cmd.Flags().StringVar(&opts.Code, "code", "", "Verification code (prompted if empty)")
	cmd.Flags().BoolVar(&opts.NoVerify, "no-verify", false, "Stop after the code is sent")
}

func passwordFromEnv(opts *FlowOptions) {
	if opts.Password == "" {
		opts.Password = os.Getenv("AUTHFLOW_PASSWORD")
	}
}

func newRegisterCommand(run runner) *cobra.Command {
	var opts FlowOptions

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new account",
		Args:  cobra.NoArgs,
		RunE: run(func(c *Cli, ctx context.Context) error {
			passwordFromEnv(&opts)
			if opts.Retries < 1 {
				return fmt.Errorf("--retries must be at least 1")
			}
			return c.runRegister(ctx, opts)
		}),
	}
	addCredentialFlags(cmd, &opts)
	cmd.Flags().IntVar(&opts.Retries, "retries", DefaultRetries, "Register attempts on network errors")

	return cmd
}

func newLoginCommand(run runner) *cobra.Command {
	var opts FlowOptions

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with email and a one-time code",
		Args:  cobra.NoArgs,
		RunE: run(func(c *Cli, ctx context.Context) error {
			passwordFromEnv(&opts)
			return c.runLogin(ctx, opts)
		}),
	}
	addCredentialFlags(cmd, &opts)

	return cmd
}

func newVerifyCommand(run runner) *cobra.Command {
	var opts FlowOptions

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Enter the one-time code sent by register or login",
		Args:  cobra.NoArgs,
		RunE: run(func(c *Cli, ctx context.Context) error {
			if opts.Email == "" {
				return fmt.Errorf("--email is required")
			}
			return c.runVerify(ctx, opts)
		}),
	}
	cmd.Flags().StringVar(&opts.Email, "email", "", "Email address used for register or login")
	cmd.Flags().StringVar(&opts.Code, "code", "", "Verification code (prompted if empty)")

	return cmd
}
