package cli

import (
	"context"
	"time"

	"github.com/iudanet/authflow/internal/client/auth"
)

// FlowOptions управляет register/login/verify
type FlowOptions struct {
	Email    string
	Password string
	Code     string
	// Retries is the total number of register attempts on network errors
	Retries int
	// NoVerify stops after the code was sent
	NoVerify bool
}

func (c *Cli) runRegister(ctx context.Context, opts FlowOptions) error {
	c.io.Println("=== Registration ===")
	c.io.Println()

	email, err := c.prompt(opts.Email, "Email: ")
	if err != nil {
		return err
	}
	password, err := c.promptSecret(opts.Password, "Password: ")
	if err != nil {
		return err
	}

	c.io.Println("Registering...")

	result, err := c.auth.RegisterWithRetry(ctx, email, password, opts.Retries)
	if err != nil {
		return err
	}

	c.io.Println("✓ Registration accepted")
	return c.continueFlow(ctx, email, result, opts)
}

func (c *Cli) runLogin(ctx context.Context, opts FlowOptions) error {
	c.io.Println("=== Login ===")
	c.io.Println()

	email, err := c.prompt(opts.Email, "Email: ")
	if err != nil {
		return err
	}
	password, err := c.promptSecret(opts.Password, "Password: ")
	if err != nil {
		return err
	}

	c.io.Println("Authenticating...")

	result, err := c.auth.Login(ctx, email, password)
	if err != nil {
		return err
	}

	return c.continueFlow(ctx, email, result, opts)
}

// continueFlow запрашивает OTP, если сервер его требует
func (c *Cli) continueFlow(ctx context.Context, email string, result *auth.Result, opts FlowOptions) error {
	if result.Message != "" {
		c.io.Println(result.Message)
	}

	switch result.Stage {
	case auth.StageAuthenticated:
		c.printAuthenticated(ctx)
		return nil
	case auth.StageCredentialed:
	default:
		return nil
	}

	if opts.NoVerify {
		c.io.Println()
		c.io.Printf("Run 'authflow verify --email %s' to enter the code.\n", email)
		return nil
	}

	return c.runVerify(ctx, FlowOptions{Email: email, Code: opts.Code})
}

func (c *Cli) runVerify(ctx context.Context, opts FlowOptions) error {
	email, err := c.prompt(opts.Email, "Email: ")
	if err != nil {
		return err
	}
	code, err := c.promptSecret(opts.Code, "Verification code: ")
	if err != nil {
		return err
	}

	if _, err := c.auth.VerifyOTP(ctx, email, code); err != nil {
		return err
	}

	c.io.Println()
	c.io.Println("✓ Login successful!")
	c.printAuthenticated(ctx)
	return nil
}

func (c *Cli) printAuthenticated(ctx context.Context) {
	status := c.auth.Status(ctx)
	if user := status.Session.User; user != nil {
		c.io.Printf("User: %s\n", user.Email)
	}
	if !status.Session.ExpiresAt.IsZero() {
		c.io.Printf("Session expires: %s\n", status.Session.ExpiresAt.Local().Format(time.RFC3339))
	}
}
