package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/nodekeeper/internal/models"
	"github.com/iudanet/nodekeeper/internal/server/storage"
)

const (
	insertQuery      = `(?s)^INSERT\s+INTO\s+accounts\s*\(id,\s*public_key,\s*password_hash,\s*encrypted_seed,\s*node_credential,\s*created_at,\s*updated_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6,\s*\$7\)\s*$`
	selectByKeyQuery = `(?s)^SELECT\s+id,\s*public_key,.*FROM\s+accounts\s+WHERE\s+public_key\s*=\s*\$1\s*$`
	selectByIDQuery  = `(?s)^SELECT\s+id,\s*public_key,.*FROM\s+accounts\s+WHERE\s+id\s*=\s*\$1\s*$`
	existsByKeyQuery = `(?s)^SELECT\s+EXISTS\(SELECT\s+1\s+FROM\s+accounts\s+WHERE\s+public_key\s*=\s*\$1\)$`
	existsByIDQuery  = `(?s)^SELECT\s+EXISTS\(SELECT\s+1\s+FROM\s+accounts\s+WHERE\s+id\s*=\s*\$1\)$`
	conditionalQuery = `(?s)^UPDATE\s+accounts\s+SET\s+node_credential\s*=\s*\$1,\s*updated_at\s*=\s*\$2\s+WHERE\s+id\s*=\s*\$3\s+AND\s+\(node_credential\s+IS\s+NULL\s+OR\s+node_credential\s*=\s*''\)$`
	overwriteQuery   = `(?s)^UPDATE\s+accounts\s+SET\s+node_credential\s*=\s*\$1,\s*updated_at\s*=\s*\$2\s+WHERE\s+id\s*=\s*\$3$`
)

var accountCols = []string{"id", "public_key", "password_hash", "encrypted_seed", "node_credential", "created_at", "updated_at"}

func newStorageWithMock(t *testing.T) (*Storage, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewWithDB(db), mock, db
}

func testAccount() *models.Account {
	seed := "c2VlZA=="
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	return &models.Account{
		ID:            "0b7c9a36-4bde-4c6e-9d1c-5a1f6c3a9f10",
		PublicKey:     "pk1",
		PasswordHash:  "$argon2id$hash",
		EncryptedSeed: &seed,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestCreateAccount(t *testing.T) {
	acc := testAccount()

	tests := []struct {
		name    string
		dbErr   error
		wantErr error
		errMsg  string
	}{
		{name: "success"},
		{name: "duplicate key", dbErr: &pgconn.PgError{Code: "23505"}, wantErr: storage.ErrAccountAlreadyExists},
		{name: "db down", dbErr: errors.New("db down"), errMsg: `db error: .*db down`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock, db := newStorageWithMock(t)
			defer db.Close()

			exp := mock.ExpectExec(insertQuery).
				WithArgs(acc.ID, acc.PublicKey, acc.PasswordHash, acc.EncryptedSeed, acc.NodeCredential, acc.CreatedAt, acc.UpdatedAt)
			if tt.dbErr != nil {
				exp.WillReturnError(tt.dbErr)
			} else {
				exp.WillReturnResult(sqlmock.NewResult(0, 1))
			}

			err := s.CreateAccount(context.Background(), acc)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.errMsg != "":
				require.Error(t, err)
				assert.Regexp(t, regexp.MustCompile(tt.errMsg), err.Error())
			default:
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGetAccountByPublicKey(t *testing.T) {
	s, mock, db := newStorageWithMock(t)
	defer db.Close()

	acc := testAccount()
	rows := sqlmock.NewRows(accountCols).
		AddRow(acc.ID, acc.PublicKey, acc.PasswordHash, *acc.EncryptedSeed, nil, acc.CreatedAt, acc.UpdatedAt)
	mock.ExpectQuery(selectByKeyQuery).WithArgs("pk1").WillReturnRows(rows)

	got, err := s.GetAccountByPublicKey(context.Background(), "pk1")
	require.NoError(t, err)
	assert.Equal(t, acc.ID, got.ID)
	assert.Equal(t, acc.EncryptedSeed, got.EncryptedSeed)
	assert.Nil(t, got.NodeCredential)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAccountByPublicKey_NotFound(t *testing.T) {
	s, mock, db := newStorageWithMock(t)
	defer db.Close()

	mock.ExpectQuery(selectByKeyQuery).WithArgs("pk-missing").WillReturnError(sql.ErrNoRows)

	_, err := s.GetAccountByPublicKey(context.Background(), "pk-missing")
	assert.ErrorIs(t, err, storage.ErrAccountNotFound)
}

func TestGetAccountByID(t *testing.T) {
	acc := testAccount()
	cred := "Y3JlZA=="

	tests := []struct {
		name    string
		rows    *sqlmock.Rows
		dbErr   error
		wantErr error
	}{
		{
			name: "registered account",
			rows: sqlmock.NewRows(accountCols).
				AddRow(acc.ID, acc.PublicKey, acc.PasswordHash, nil, cred, acc.CreatedAt, acc.UpdatedAt),
		},
		{name: "not found", dbErr: sql.ErrNoRows, wantErr: storage.ErrAccountNotFound},
		{name: "not a uuid", dbErr: &pgconn.PgError{Code: "22P02"}, wantErr: storage.ErrAccountNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock, db := newStorageWithMock(t)
			defer db.Close()

			exp := mock.ExpectQuery(selectByIDQuery).WithArgs(acc.ID)
			if tt.dbErr != nil {
				exp.WillReturnError(tt.dbErr)
			} else {
				exp.WillReturnRows(tt.rows)
			}

			got, err := s.GetAccountByID(context.Background(), acc.ID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Nil(t, got.EncryptedSeed)
			require.NotNil(t, got.NodeCredential)
			assert.Equal(t, cred, *got.NodeCredential)
			assert.Equal(t, models.StateRegistered, got.State())
		})
	}
}

func TestAccountExists(t *testing.T) {
	s, mock, db := newStorageWithMock(t)
	defer db.Close()

	mock.ExpectQuery(existsByKeyQuery).WithArgs("pk1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := s.AccountExists(context.Background(), "pk1")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetNodeCredentialIfEmpty(t *testing.T) {
	acc := testAccount()
	updatedAt := acc.UpdatedAt.Add(time.Hour)

	tests := []struct {
		wantErr  error
		name     string
		affected int64
		exists   bool
	}{
		{name: "stored", affected: 1},
		{name: "already registered", affected: 0, exists: true, wantErr: storage.ErrNodeAlreadyRegistered},
		{name: "missing account", affected: 0, exists: false, wantErr: storage.ErrAccountNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock, db := newStorageWithMock(t)
			defer db.Close()

			mock.ExpectExec(conditionalQuery).
				WithArgs("cred", updatedAt, acc.ID).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))
			if tt.affected == 0 {
				mock.ExpectQuery(existsByIDQuery).WithArgs(acc.ID).
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(tt.exists))
			}

			err := s.SetNodeCredentialIfEmpty(context.Background(), acc.ID, "cred", updatedAt)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSetNodeCredential(t *testing.T) {
	acc := testAccount()

	s, mock, db := newStorageWithMock(t)
	defer db.Close()

	mock.ExpectExec(overwriteQuery).
		WithArgs("cred", acc.UpdatedAt, acc.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(overwriteQuery).
		WithArgs("cred", acc.UpdatedAt, "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.SetNodeCredential(context.Background(), acc.ID, "cred", acc.UpdatedAt))
	assert.ErrorIs(t, s.SetNodeCredential(context.Background(), "missing", "cred", acc.UpdatedAt), storage.ErrAccountNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
