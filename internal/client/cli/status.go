package cli

import (
	"context"
	"time"

	"github.com/iudanet/authflow/internal/client/auth"
)

func (c *Cli) runStatus(ctx context.Context) error {
	c.io.Println("=== Authentication Status ===")
	c.io.Println()

	status := c.auth.Status(ctx)

	switch status.Stage {
	case auth.StageAuthenticated:
		c.io.Println("Status: Authenticated")
	case auth.StageCredentialed:
		c.io.Println("Status: Waiting for verification code")
		c.io.Println("Run 'authflow verify --email <email>' to finish login.")
		return nil
	default:
		c.io.Println("Status: Not authenticated")
		c.io.Println()
		c.io.Println("Run 'authflow login' to authenticate.")
		return nil
	}

	if user := status.Session.User; user != nil {
		c.io.Printf("User: %s\n", user.Email)
	}

	expiresAt := status.Session.ExpiresAt
	c.io.Printf("Session expires: %s\n", expiresAt.Local().Format(time.RFC3339))
	c.io.Printf("Time remaining: %s\n", expiresAt.Sub(c.now()).Round(time.Second))

	if status.Session.ExpiringSoon {
		c.io.Println("⚠️  Session expires soon. Please login again.")
	}

	return nil
}

// runTokens печатает диагностику токенов без их значений
func (c *Cli) runTokens(ctx context.Context) error {
	status := c.auth.Status(ctx)

	c.io.Println("=== CSRF Token ===")
	c.io.Printf("Present: %t\n", status.CSRF.HasToken)
	c.io.Printf("Valid:   %t\n", status.CSRF.IsValid)
	if status.CSRF.Preview != "" {
		c.io.Printf("Token:   %s\n", status.CSRF.Preview)
	}

	c.io.Println()
	c.io.Println("=== Session ===")
	c.io.Printf("Present: %t\n", status.Session.HasSession)
	c.io.Printf("Valid:   %t\n", status.Session.IsValid)
	if status.Session.HasSession {
		c.io.Printf("Expires: %s\n", status.Session.ExpiresAt.Local().Format(time.RFC3339))
		c.io.Printf("Expiring soon: %t\n", status.Session.ExpiringSoon)
	}
	if user := status.Session.User; user != nil {
		c.io.Printf("User ID: %s\n", user.ID)
		c.io.Printf("Email:   %s\n", user.Email)
	}

	c.io.Println()
	c.io.Printf("Stage: %s\n", status.Stage)
	return nil
}

func (c *Cli) runHealth(ctx context.Context) error {
	if err := c.api.Health(ctx); err != nil {
		return err
	}
	c.io.Println("✓ Server is healthy")
	return nil
}
