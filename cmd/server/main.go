package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iudanet/nodekeeper/internal/server"
	"github.com/iudanet/nodekeeper/internal/server/config"
	"github.com/iudanet/nodekeeper/internal/server/jwt"
	"github.com/iudanet/nodekeeper/internal/server/lifecycle"
	"github.com/iudanet/nodekeeper/internal/server/provisioning"
	"github.com/iudanet/nodekeeper/internal/server/storage"
	"github.com/iudanet/nodekeeper/internal/server/storage/postgres"
	"github.com/iudanet/nodekeeper/internal/server/storage/sqlite"
	"github.com/iudanet/nodekeeper/internal/vault"
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

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:           "nodekeeper-server",
		Short:         "Account vault and node identity server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags(), cfgFile)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, os.Stderr)
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./nodekeeper.yaml, $XDG_CONFIG_HOME/nodekeeper, /etc/nodekeeper)")
	cmd.Flags().String("host", "0.0.0.0", "listen host")
	cmd.Flags().Int("port", 8080, "listen port")
	cmd.Flags().String("db-driver", config.DriverSQLite, "storage driver (sqlite, postgres)")
	cmd.Flags().String("db-dsn", "nodekeeper.db", "database path or connection string")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	cmd.AddCommand(newVersionCmd(), newConfigCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration helpers",
	}

	var output string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write default configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if err := config.WriteFile(&cfg, output); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", output)
			return nil
		},
	}
	initCmd.Flags().StringVarP(&output, "output", "o", "nodekeeper.yaml", "destination file")

	cmd.AddCommand(initCmd)
	return cmd
}

func run(ctx context.Context, cfg *config.Config, logOut io.Writer) error {
	logger, err := cfg.Log.NewLogger(logOut)
	if err != nil {
		return err
	}

	if cfg.UsesDefaultSecret() {
		logger.Warn("jwt.secret is not set, using the development secret")
	}

	store, err := openStorage(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close storage", slog.Any("error", err))
		}
	}()

	prov, err := provisioning.NewGRPCClient(provisioning.GRPCConfig{
		Address:  cfg.Provisioning.Address,
		CertPath: cfg.Provisioning.CertPath,
		KeyPath:  cfg.Provisioning.KeyPath,
		CAPath:   cfg.Provisioning.CAPath,
		Network:  cfg.Provisioning.Network,
	})
	if err != nil {
		return fmt.Errorf("failed to create provisioning client: %w", err)
	}
	defer func() {
		if err := prov.Close(); err != nil {
			logger.Error("failed to close provisioning client", slog.Any("error", err))
		}
	}()

	v, err := vault.New()
	if err != nil {
		return err
	}

	tokens := jwt.NewService(cfg.JWT.Secret, cfg.JWT.TTL)

	svc, err := lifecycle.NewService(lifecycle.Deps{
		Accounts:    store,
		Vault:       v,
		Provisioner: prov,
		Tokens:      tokens,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	handler, stopLimiter := server.NewRouter(server.RouterConfig{
		Logger:       logger,
		Lifecycle:    svc,
		Tokens:       tokens,
		DB:           store,
		Version:      Version,
		AuthRequests: cfg.RateLimit.AuthRequests,
		AuthWindow:   cfg.RateLimit.AuthWindow,
	})
	defer stopLimiter()

	logger.Info("nodekeeper server starting",
		slog.String("version", Version),
		slog.String("addr", cfg.Server.Addr()),
		slog.String("db_driver", cfg.Database.Driver),
		slog.String("network", cfg.Provisioning.Network),
	)

	return server.New(logger, cfg.Server.Addr(), handler, cfg.Server.ShutdownTimeout).Run(ctx)
}

// storageBackend - хранилище аккаунтов с health check и закрытием
type storageBackend interface {
	storage.AccountStorage
	storage.Pinger
	Close() error
}

func openStorage(ctx context.Context, cfg config.DatabaseConfig) (storageBackend, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		s, err := postgres.New(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres storage: %w", err)
		}
		return s, nil
	default:
		s, err := sqlite.New(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite storage: %w", err)
		}
		return s, nil
	}
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "NodeKeeper Server\n")
	fmt.Fprintf(w, "Version:    %s\n", Version)
	fmt.Fprintf(w, "Build Date: %s\n", BuildDate)
	fmt.Fprintf(w, "Git Commit: %s\n", GitCommit)
}
