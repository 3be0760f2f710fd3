package storage

import (
	"context"
	"time"

	"github.com/iudanet/nodekeeper/internal/models"
)

// AccountStorage defines interface for account persistence
type AccountStorage interface {
	// CreateAccount creates a new account
	// Returns ErrAccountAlreadyExists if public key is taken
	CreateAccount(ctx context.Context, account *models.Account) error

	// GetAccountByPublicKey retrieves account by identity key
	// Returns ErrAccountNotFound if account doesn't exist
	GetAccountByPublicKey(ctx context.Context, publicKey string) (*models.Account, error)

	// GetAccountByID retrieves account by ID
	// Returns ErrAccountNotFound if account doesn't exist
	GetAccountByID(ctx context.Context, accountID string) (*models.Account, error)

	// AccountExists reports whether an account with this identity key exists
	AccountExists(ctx context.Context, publicKey string) (bool, error)

	// SetNodeCredentialIfEmpty stores the credential only if none is set yet.
	// The check and the write are a single statement.
	// Returns ErrNodeAlreadyRegistered if a credential is present,
	// ErrAccountNotFound if account doesn't exist
	SetNodeCredentialIfEmpty(ctx context.Context, accountID, credential string, updatedAt time.Time) error

	// SetNodeCredential overwrites the credential unconditionally
	// Returns ErrAccountNotFound if account doesn't exist
	SetNodeCredential(ctx context.Context, accountID, credential string, updatedAt time.Time) error
}

// Pinger is implemented by storages that can report connectivity
type Pinger interface {
	Ping(ctx context.Context) error
}
