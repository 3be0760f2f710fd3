package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iudanet/nodekeeper/internal/crypto"
)

func (c *Cli) seedCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Work with the locally stored encrypted seed phrase",
	}
	cmd.AddCommand(c.seedShowCommand())
	return cmd
}

func (c *Cli) seedShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Decrypt and print the seed phrase for backup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := c.authService.Status(cmd.Context())
			if err != nil {
				return err
			}
			if session == nil || session.EncryptedSeed == "" {
				return errors.New("no encrypted seed stored: it is saved only by signup on this client")
			}

			password, err := c.readPassword("Password: ")
			if err != nil {
				return err
			}

			phrase, err := crypto.DecryptFromBase64(session.EncryptedSeed, password)
			if err != nil {
				return fmt.Errorf("failed to decrypt seed: %w", err)
			}

			c.io.Println("Write these words down and keep them offline:")
			for i, word := range strings.Fields(string(phrase)) {
				c.io.Printf("%2d. %s\n", i+1, word)
			}
			return nil
		},
	}
}
