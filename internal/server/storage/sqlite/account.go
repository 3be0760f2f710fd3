package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/iudanet/nodekeeper/internal/models"
	"github.com/iudanet/nodekeeper/internal/server/storage"
)

const accountColumns = `id, public_key, password_hash, encrypted_seed, node_credential, created_at, updated_at`

// CreateAccount creates a new account in the storage
func (s *Storage) CreateAccount(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		account.ID,
		account.PublicKey,
		account.PasswordHash,
		account.EncryptedSeed,
		account.NodeCredential,
		account.CreatedAt.UTC(),
		account.UpdatedAt.UTC(),
	)

	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAccountAlreadyExists
		}
		return fmt.Errorf("failed to insert account: %w", err)
	}

	return nil
}

// GetAccountByPublicKey retrieves account by identity key
func (s *Storage) GetAccountByPublicKey(ctx context.Context, publicKey string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE public_key = ?`
	return scanAccount(s.db.QueryRowContext(ctx, query, publicKey))
}

// GetAccountByID retrieves account by ID
func (s *Storage) GetAccountByID(ctx context.Context, accountID string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = ?`
	return scanAccount(s.db.QueryRowContext(ctx, query, accountID))
}

// AccountExists reports whether the identity key is taken
func (s *Storage) AccountExists(ctx context.Context, publicKey string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM accounts WHERE public_key = ?)`, publicKey,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check account: %w", err)
	}
	return exists, nil
}

// SetNodeCredentialIfEmpty stores the credential only if the column is empty
func (s *Storage) SetNodeCredentialIfEmpty(ctx context.Context, accountID, credential string, updatedAt time.Time) error {
	query := `
		UPDATE accounts
		SET node_credential = ?, updated_at = ?
		WHERE id = ? AND (node_credential IS NULL OR node_credential = '')
	`

	result, err := s.db.ExecContext(ctx, query, credential, updatedAt.UTC(), accountID)
	if err != nil {
		return fmt.Errorf("failed to set node credential: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 1 {
		return nil
	}

	// Ничего не обновили: либо аккаунта нет, либо нода уже привязана
	var exists bool
	err = s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE id = ?)`, accountID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check account: %w", err)
	}
	if !exists {
		return storage.ErrAccountNotFound
	}

	return storage.ErrNodeAlreadyRegistered
}

// SetNodeCredential overwrites the credential
func (s *Storage) SetNodeCredential(ctx context.Context, accountID, credential string, updatedAt time.Time) error {
	query := `UPDATE accounts SET node_credential = ?, updated_at = ? WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, credential, updatedAt.UTC(), accountID)
	if err != nil {
		return fmt.Errorf("failed to set node credential: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return storage.ErrAccountNotFound
	}

	return nil
}

func scanAccount(row *sql.Row) (*models.Account, error) {
	account := &models.Account{}
	var encryptedSeed, nodeCredential sql.NullString

	err := row.Scan(
		&account.ID,
		&account.PublicKey,
		&account.PasswordHash,
		&encryptedSeed,
		&nodeCredential,
		&account.CreatedAt,
		&account.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	if encryptedSeed.Valid {
		account.EncryptedSeed = &encryptedSeed.String
	}
	if nodeCredential.Valid {
		account.NodeCredential = &nodeCredential.String
	}

	return account, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}
