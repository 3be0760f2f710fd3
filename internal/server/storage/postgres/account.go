package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iudanet/nodekeeper/internal/models"
	"github.com/iudanet/nodekeeper/internal/server/storage"
)

const (
	uniqueViolation           = "23505"
	invalidTextRepresentation = "22P02"
)

func (s *Storage) CreateAccount(ctx context.Context, account *models.Account) error {
	query :=
		`INSERT INTO accounts (id, public_key, password_hash, encrypted_seed, node_credential, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.db.ExecContext(ctx, query,
		account.ID,
		account.PublicKey,
		account.PasswordHash,
		account.EncryptedSeed,
		account.NodeCredential,
		account.CreatedAt,
		account.UpdatedAt,
	)

	if err != nil {
		if hasCode(err, uniqueViolation) {
			return storage.ErrAccountAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (s *Storage) GetAccountByPublicKey(ctx context.Context, publicKey string) (*models.Account, error) {
	query :=
		`SELECT id, public_key, password_hash, encrypted_seed, node_credential, created_at, updated_at
		 FROM accounts
		 WHERE public_key = $1`

	return scanAccount(s.db.QueryRowContext(ctx, query, publicKey))
}

func (s *Storage) GetAccountByID(ctx context.Context, accountID string) (*models.Account, error) {
	query :=
		`SELECT id, public_key, password_hash, encrypted_seed, node_credential, created_at, updated_at
		 FROM accounts
		 WHERE id = $1`

	return scanAccount(s.db.QueryRowContext(ctx, query, accountID))
}

func (s *Storage) AccountExists(ctx context.Context, publicKey string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM accounts WHERE public_key = $1)`, publicKey,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

// SetNodeCredentialIfEmpty is a single conditional UPDATE; under concurrent
// callers exactly one sees a row affected.
func (s *Storage) SetNodeCredentialIfEmpty(ctx context.Context, accountID, credential string, updatedAt time.Time) error {
	query :=
		`UPDATE accounts
		 SET node_credential = $1, updated_at = $2
		 WHERE id = $3 AND (node_credential IS NULL OR node_credential = '')`

	result, err := s.db.ExecContext(ctx, query, credential, updatedAt, accountID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if rows == 1 {
		return nil
	}

	var exists bool
	err = s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1)`, accountID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if !exists {
		return storage.ErrAccountNotFound
	}

	return storage.ErrNodeAlreadyRegistered
}

func (s *Storage) SetNodeCredential(ctx context.Context, accountID, credential string, updatedAt time.Time) error {
	query :=
		`UPDATE accounts
		 SET node_credential = $1, updated_at = $2
		 WHERE id = $3`

	result, err := s.db.ExecContext(ctx, query, credential, updatedAt, accountID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
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
		// id не UUID - такого аккаунта быть не может
		if errors.Is(err, sql.ErrNoRows) || hasCode(err, invalidTextRepresentation) {
			return nil, storage.ErrAccountNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if encryptedSeed.Valid {
		account.EncryptedSeed = &encryptedSeed.String
	}
	if nodeCredential.Valid {
		account.NodeCredential = &nodeCredential.String
	}

	return account, nil
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
