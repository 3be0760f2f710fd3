package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/iudanet/nodekeeper/internal/client/api"
	"github.com/iudanet/nodekeeper/internal/client/auth"
	"github.com/iudanet/nodekeeper/internal/client/iocli"
	"github.com/iudanet/nodekeeper/internal/client/storage/boltdb"
)

// PasswordEnv - переменная окружения с паролем аккаунта для неинтерактивного запуска
const PasswordEnv = "NODEKEEPER_PASSWORD"

const (
	defaultServerURL = "http://localhost:8080"
	defaultDBPath    = "nodekeeper-client.db"
)

type Cli struct {
	io     iocli.IO
	logger *slog.Logger

	serverURL string
	dbPath    string
	verbose   bool

	store       *boltdb.Storage
	apiClient   *api.Client
	authService *auth.Service
}

func New(io iocli.IO) *Cli {
	return &Cli{io: io}
}

// RootCommand собирает дерево команд клиента
func (c *Cli) RootCommand(version string) *cobra.Command {
	root := &cobra.Command{
		Use:           "nodekeeper",
		Short:         "NodeKeeper client: account, seed and node management",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init(cmd)
		},
	}
	root.SetOut(c.io)
	root.SetErr(c.io)

	root.PersistentFlags().StringVar(&c.serverURL, "server", defaultServerURL, "server URL")
	root.PersistentFlags().StringVar(&c.dbPath, "db", defaultDBPath, "path to local session database")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		c.versionCommand(version),
		c.signupCommand(),
		c.loginCommand(),
		c.logoutCommand(),
		c.statusCommand(),
		c.nodeCommand(),
		c.seedCommand(),
	)

	return root
}

// Close освобождает локальную базу. Безопасно вызывать повторно.
func (c *Cli) Close() error {
	if c.store == nil {
		return nil
	}
	err := c.store.Close()
	c.store = nil
	return err
}

func (c *Cli) init(cmd *cobra.Command) error {
	level := slog.LevelWarn
	if c.verbose {
		level = slog.LevelDebug
	}
	c.logger = slog.New(slog.NewTextHandler(c.io, &slog.HandlerOptions{Level: level}))

	if c.store != nil {
		return nil
	}

	store, err := boltdb.New(cmd.Context(), c.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open local database %s: %w", c.dbPath, err)
	}
	c.store = store
	c.apiClient = api.NewClient(c.serverURL)
	c.authService = auth.NewService(c.apiClient, c.store, c.logger)

	c.logger.Debug("client initialized",
		slog.String("server", c.serverURL),
		slog.String("db", c.dbPath),
	)
	return nil
}

// readPassword берет пароль из NODEKEEPER_PASSWORD, иначе спрашивает без эха
func (c *Cli) readPassword(prompt string) (string, error) {
	if envPassword := os.Getenv(PasswordEnv); envPassword != "" {
		return envPassword, nil
	}

	password, err := c.io.ReadPassword(prompt)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if password == "" {
		return "", errors.New("password cannot be empty")
	}
	return password, nil
}

func (c *Cli) versionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		// База не нужна
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			c.io.Printf("NodeKeeper Client\nVersion: %s\n", version)
		},
	}
}
