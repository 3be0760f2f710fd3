package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tyler-smith/go-bip39"

	"github.com/iudanet/nodekeeper/internal/client/storage"
	"github.com/iudanet/nodekeeper/internal/crypto"
	"github.com/iudanet/nodekeeper/pkg/api"
)

func (c *Cli) nodeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Manage the node bound to the account",
	}

	cmd.AddCommand(
		c.nodeEnrollCommand("register", "Register a new node for the account seed"),
		c.nodeEnrollCommand("recover", "Recover credentials of an already registered node"),
		c.nodeInfoCommand(),
		c.nodeBalanceCommand(),
		c.nodeOfferCommand(),
		c.nodeExportCommand(),
	)
	return cmd
}

func (c *Cli) nodeEnrollCommand(use, short string) *cobra.Command {
	var seedFile string

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			session, err := c.authService.ActiveSession(ctx)
			if err != nil {
				return err
			}

			password, err := c.readPassword("Password: ")
			if err != nil {
				return err
			}

			req := api.NodeRegisterRequest{
				Password:      password,
				EncryptedSeed: session.EncryptedSeed,
			}
			if seedFile != "" {
				req.EncryptedSeed, err = encryptSeedFile(seedFile, password)
				if err != nil {
					return err
				}
			}

			var resp *api.NodeCredentialsResponse
			if use == "recover" {
				resp, err = c.apiClient.RecoverNode(ctx, session.Token, req)
			} else {
				resp, err = c.apiClient.RegisterNode(ctx, session.Token, req)
			}
			if err != nil {
				return err
			}

			if err := c.authService.SaveDeviceCreds(ctx, resp.EncryptedDeviceCreds); err != nil {
				return err
			}

			if use == "recover" {
				c.io.Println("✓ Node recovered")
			} else {
				c.io.Println("✓ Node registered")
			}
			c.io.Println("Encrypted device credentials saved locally.")
			return nil
		},
	}

	cmd.Flags().StringVar(&seedFile, "seed-file", "", "file with your own BIP39 seed phrase (encrypted locally before sending)")
	return cmd
}

func (c *Cli) nodeInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show node information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, password, err := c.sessionWithPassword(cmd.Context())
			if err != nil {
				return err
			}

			info, err := c.apiClient.NodeInfo(cmd.Context(), session.Token, password)
			if err != nil {
				return err
			}

			c.io.Printf("Node ID:      %s\n", info.NodeID)
			c.io.Printf("Alias:        %s\n", info.Alias)
			c.io.Printf("Color:        %s\n", info.Color)
			c.io.Printf("Network:      %s\n", info.Network)
			c.io.Printf("Block height: %d\n", info.BlockHeight)
			c.io.Printf("Peers:        %d\n", info.NumPeers)
			c.io.Printf("Channels:     %d active, %d inactive, %d pending\n",
				info.NumActiveChannels, info.NumInactiveChannels, info.NumPendingChannels)
			c.io.Printf("Fees:         %d msat\n", info.FeesCollectedMsat)
			return nil
		},
	}
}

func (c *Cli) nodeBalanceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show node balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, password, err := c.sessionWithPassword(cmd.Context())
			if err != nil {
				return err
			}

			balance, err := c.apiClient.Balance(cmd.Context(), session.Token, password)
			if err != nil {
				return err
			}

			c.io.Printf("On-chain: %d sat (%d msat)\n", balance.OnchainBalanceSat, balance.OnchainBalanceMsat)
			c.io.Printf("Channels: %d sat (%d msat)\n", balance.ChannelBalanceSat, balance.ChannelBalanceMsat)
			c.io.Printf("Total:    %d sat (%d msat)\n", balance.TotalBalanceSat, balance.TotalBalanceMsat)
			return nil
		},
	}
}

func (c *Cli) nodeOfferCommand() *cobra.Command {
	var (
		amountMsat  uint64
		description string
	)

	cmd := &cobra.Command{
		Use:   "offer",
		Short: "Create a BOLT12 offer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, password, err := c.sessionWithPassword(cmd.Context())
			if err != nil {
				return err
			}

			req := api.CreateOfferRequest{
				Password:    password,
				Description: description,
			}
			// 0 - оффер на любую сумму
			if amountMsat > 0 {
				req.AmountMsat = &amountMsat
			}

			offer, err := c.apiClient.CreateOffer(cmd.Context(), session.Token, req)
			if err != nil {
				return err
			}

			c.io.Printf("Offer ID: %s\n", offer.OfferID)
			if offer.AmountMsat != nil {
				c.io.Printf("Amount:   %d msat\n", *offer.AmountMsat)
			} else {
				c.io.Println("Amount:   any")
			}
			if offer.Description != "" {
				c.io.Printf("Description: %s\n", offer.Description)
			}
			c.io.Println(offer.Bolt12)
			return nil
		},
	}

	cmd.Flags().Uint64Var(&amountMsat, "amount-msat", 0, "offer amount in millisatoshi (0 = any amount)")
	cmd.Flags().StringVar(&description, "description", "", "offer description")
	return cmd
}

func (c *Cli) nodeExportCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export-creds",
		Short: "Decrypt the saved device credentials into a file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := c.authService.Status(cmd.Context())
			if err != nil {
				return err
			}
			if session == nil || !session.HasNode() {
				return errors.New("no device credentials saved: run 'nodekeeper node register' first")
			}

			password, err := c.readPassword("Password: ")
			if err != nil {
				return err
			}

			creds, err := crypto.DecryptFromBase64(session.EncryptedDeviceCreds, password)
			if err != nil {
				return fmt.Errorf("failed to decrypt device credentials: %w", err)
			}

			if err := os.WriteFile(output, creds, 0600); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			c.io.Printf("✓ Device credentials written to %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "device-creds.bin", "output file")
	return cmd
}

func (c *Cli) sessionWithPassword(ctx context.Context) (*storage.Session, string, error) {
	session, err := c.authService.ActiveSession(ctx)
	if err != nil {
		return nil, "", err
	}
	password, err := c.readPassword("Password: ")
	if err != nil {
		return nil, "", err
	}
	return session, password, nil
}

// encryptSeedFile читает свою seed-фразу и шифрует ее паролем аккаунта
func encryptSeedFile(path, password string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read seed file: %w", err)
	}

	phrase := strings.Join(strings.Fields(string(content)), " ")
	if !bip39.IsMnemonicValid(phrase) {
		return "", errors.New("seed file does not contain a valid BIP39 phrase")
	}

	encrypted, err := crypto.EncryptToBase64([]byte(phrase), password)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt seed: %w", err)
	}
	return encrypted, nil
}
