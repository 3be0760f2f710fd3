package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func (c *Cli) signupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "signup <public-key>",
		Short: "Create an account; the server generates and encrypts a seed phrase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := c.readPassword("Password: ")
			if err != nil {
				return err
			}

			result, err := c.authService.Signup(cmd.Context(), args[0], password)
			if err != nil {
				return err
			}

			c.io.Println("✓ Account created")
			c.io.Printf("Account ID: %s\n", result.AccountID)
			c.io.Printf("Token expires: %s\n", result.ExpiresAt.Format(time.RFC3339))
			c.io.Println("Encrypted seed saved locally. Run 'nodekeeper seed show' to back it up.")
			return nil
		},
	}
}

func (c *Cli) loginCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "login [public-key]",
		Short: "Login and store a new session token",
		Long:  "Login and store a new session token. Without an argument the public key of the saved session is used.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			publicKey := ""
			if len(args) == 1 {
				publicKey = args[0]
			} else {
				session, err := c.authService.Status(cmd.Context())
				if err != nil {
					return err
				}
				if session == nil {
					return errors.New("public key required: no saved session")
				}
				publicKey = session.PublicKey
			}

			password, err := c.readPassword("Password: ")
			if err != nil {
				return err
			}

			expiresAt, err := c.authService.Login(cmd.Context(), publicKey, password)
			if err != nil {
				return err
			}

			c.io.Println("✓ Login successful")
			c.io.Printf("Token expires: %s\n", expiresAt.Format(time.RFC3339))
			return nil
		},
	}
}

func (c *Cli) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Delete the local session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.authService.Logout(cmd.Context()); err != nil {
				return fmt.Errorf("logout failed: %w", err)
			}
			c.io.Println("✓ Logout successful")
			return nil
		},
	}
}

func (c *Cli) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the local session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := c.authService.Status(cmd.Context())
			if err != nil {
				return err
			}

			if session == nil {
				c.io.Println("Status: Not authenticated")
				c.io.Println("Run 'nodekeeper signup' or 'nodekeeper login' to authenticate.")
				return nil
			}

			expiresAt := time.Unix(session.ExpiresAt, 0)
			if c.authService.IsExpired(session) {
				c.io.Println("Status: Session expired")
			} else {
				c.io.Println("Status: Authenticated")
			}
			c.io.Printf("Public key: %s\n", session.PublicKey)
			if session.AccountID != "" {
				c.io.Printf("Account ID: %s\n", session.AccountID)
			}
			c.io.Printf("Token expires: %s\n", expiresAt.Format(time.RFC3339))
			c.io.Printf("Seed stored locally: %s\n", yesNo(session.EncryptedSeed != ""))
			c.io.Printf("Node registered: %s\n", yesNo(session.HasNode()))
			return nil
		},
	}
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
