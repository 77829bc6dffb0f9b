package cli

import "context"

func (c *Cli) runLogout(ctx context.Context) error {
	c.io.Println("=== Logout ===")

	// Сервер уведомляется по возможности, локальная сессия удаляется всегда
	c.auth.Logout(ctx)

	c.io.Println("✓ Logout successful!")
	c.io.Println("Your local session has been deleted.")

	return nil
}
