// Package lifecycle управляет жизненным циклом аккаунта и привязанной к нему ноды:
// регистрация аккаунта, логин, регистрация и восстановление ноды, операции с нодой.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/nodekeeper/internal/models"
	"github.com/iudanet/nodekeeper/internal/server/provisioning"
	"github.com/iudanet/nodekeeper/internal/server/storage"
	"github.com/iudanet/nodekeeper/internal/validation"
	"github.com/iudanet/nodekeeper/internal/vault"
)

// TokenIssuer выпускает токены сессии
type TokenIssuer interface {
	Issue(accountID string) (string, int64, error)
}

// Deps - зависимости сервиса. Все поля, кроме Now, обязательны.
type Deps struct {
	Accounts    storage.AccountStorage
	Vault       *vault.Vault
	Provisioner provisioning.Service
	Tokens      TokenIssuer
	Logger      *slog.Logger
	Now         func() time.Time
}

// Service - NodeIdentityLifecycle
type Service struct {
	accounts    storage.AccountStorage
	vault       *vault.Vault
	provisioner provisioning.Service
	tokens      TokenIssuer
	logger      *slog.Logger
	now         func() time.Time
}

// NewService создает сервис жизненного цикла
func NewService(d Deps) (*Service, error) {
	switch {
	case d.Accounts == nil:
		return nil, fmt.Errorf("accounts storage is required")
	case d.Vault == nil:
		return nil, fmt.Errorf("vault is required")
	case d.Provisioner == nil:
		return nil, fmt.Errorf("provisioner is required")
	case d.Tokens == nil:
		return nil, fmt.Errorf("token issuer is required")
	case d.Logger == nil:
		return nil, fmt.Errorf("logger is required")
	}

	now := d.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		accounts:    d.Accounts,
		vault:       d.Vault,
		provisioner: d.Provisioner,
		tokens:      d.Tokens,
		logger:      d.Logger,
		now:         now,
	}, nil
}

// SignupResult - результат регистрации аккаунта
type SignupResult struct {
	AccountID     string
	EncryptedSeed string
	Token         string
	ExpiresIn     int64
}

// LoginResult - результат логина
type LoginResult struct {
	AccountID string
	Token     string
	ExpiresIn int64
}

// NodeCredentials - учетные данные ноды, зашифрованные паролем аккаунта
type NodeCredentials struct {
	EncryptedCredential string
}

// Signup создает аккаунт: генерирует seed-фразу, шифрует ее паролем,
// сохраняет хеш пароля и выпускает токен.
// Ввод проверяется до любой криптографии.
func (s *Service) Signup(ctx context.Context, publicKey, password string) (*SignupResult, error) {
	if err := validation.ValidatePublicKey(publicKey); err != nil {
		return nil, newError(ErrValidation, err.Error(), err)
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, newError(ErrValidation, err.Error(), err)
	}

	exists, err := s.accounts.AccountExists(ctx, publicKey)
	if err != nil {
		return nil, internalError(err)
	}
	if exists {
		return nil, newError(ErrConflict, "account already exists", storage.ErrAccountAlreadyExists)
	}

	phrase, err := s.vault.GenerateSeedPhrase()
	if err != nil {
		return nil, internalError(err)
	}

	encryptedSeed, err := s.vault.EncryptSecret([]byte(phrase), password)
	if err != nil {
		return nil, internalError(err)
	}

	passwordHash, err := s.vault.HashPassword(password)
	if err != nil {
		return nil, internalError(err)
	}

	now := s.now()
	account := &models.Account{
		ID:            uuid.New().String(),
		PublicKey:     publicKey,
		PasswordHash:  passwordHash,
		EncryptedSeed: &encryptedSeed,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.accounts.CreateAccount(ctx, account); err != nil {
		// Параллельный signup с тем же ключом
		if errors.Is(err, storage.ErrAccountAlreadyExists) {
			return nil, newError(ErrConflict, "account already exists", err)
		}
		return nil, internalError(err)
	}

	token, expiresIn, err := s.tokens.Issue(account.ID)
	if err != nil {
		return nil, internalError(err)
	}

	s.logger.InfoContext(ctx, "account created", slog.String("account_id", account.ID))

	return &SignupResult{
		AccountID:     account.ID,
		EncryptedSeed: encryptedSeed,
		Token:         token,
		ExpiresIn:     expiresIn,
	}, nil
}

// Login проверяет пароль и выпускает токен.
// Нет аккаунта и неверный пароль дают одну и ту же ошибку за сопоставимое время.
func (s *Service) Login(ctx context.Context, publicKey, password string) (*LoginResult, error) {
	if publicKey == "" || password == "" {
		return nil, newError(ErrValidation, "public_key and password are required", nil)
	}

	account, err := s.accounts.GetAccountByPublicKey(ctx, publicKey)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			s.vault.DummyVerify(password)
			s.logger.WarnContext(ctx, "login failed")
			return nil, authError()
		}
		return nil, internalError(err)
	}

	ok, err := s.vault.VerifyPassword(password, account.PasswordHash)
	if err != nil {
		s.logger.ErrorContext(ctx, "stored password hash is corrupt",
			slog.String("account_id", account.ID), slog.Any("error", err))
		return nil, authError()
	}
	if !ok {
		s.logger.WarnContext(ctx, "login failed")
		return nil, authError()
	}

	token, expiresIn, err := s.tokens.Issue(account.ID)
	if err != nil {
		return nil, internalError(err)
	}

	s.logger.InfoContext(ctx, "account logged in", slog.String("account_id", account.ID))

	return &LoginResult{AccountID: account.ID, Token: token, ExpiresIn: expiresIn}, nil
}

// RegisterNode переводит аккаунт из New в Registered.
// encryptedSeed можно не передавать, тогда берется seed, сохраненный при signup.
func (s *Service) RegisterNode(ctx context.Context, accountID, encryptedSeed, password string) (*NodeCredentials, error) {
	account, seed, err := s.unlockSeed(ctx, accountID, encryptedSeed, password, true)
	if err != nil {
		return nil, err
	}

	credential, err := s.provisioner.Register(ctx, seed)
	if err != nil {
		s.logger.ErrorContext(ctx, "node registration failed",
			slog.String("account_id", account.ID), slog.Any("error", err))
		return nil, newError(ErrProvisioning, "node registration failed", err)
	}

	encrypted, err := s.vault.EncryptSecret(credential, password)
	if err != nil {
		return nil, internalError(err)
	}

	// Проверка "кредов еще нет" и запись - один условный UPDATE
	if err := s.accounts.SetNodeCredentialIfEmpty(ctx, account.ID, encrypted, s.now()); err != nil {
		switch {
		case errors.Is(err, storage.ErrNodeAlreadyRegistered):
			return nil, newError(ErrConflict, "node already registered", err)
		case errors.Is(err, storage.ErrAccountNotFound):
			return nil, newError(ErrNotFound, "account not found", err)
		}
		return nil, internalError(err)
	}

	s.logger.InfoContext(ctx, "node registered", slog.String("account_id", account.ID))

	return &NodeCredentials{EncryptedCredential: encrypted}, nil
}

// RecoverNode получает новые учетные данные для существующей ноды и перезаписывает сохраненные.
// Может вызываться повторно.
func (s *Service) RecoverNode(ctx context.Context, accountID, encryptedSeed, password string) (*NodeCredentials, error) {
	account, seed, err := s.unlockSeed(ctx, accountID, encryptedSeed, password, false)
	if err != nil {
		return nil, err
	}

	credential, err := s.provisioner.Recover(ctx, seed)
	if err != nil {
		s.logger.ErrorContext(ctx, "node recovery failed",
			slog.String("account_id", account.ID), slog.Any("error", err))
		return nil, newError(ErrProvisioning, "node recovery failed", err)
	}

	encrypted, err := s.vault.EncryptSecret(credential, password)
	if err != nil {
		return nil, internalError(err)
	}

	if err := s.accounts.SetNodeCredential(ctx, account.ID, encrypted, s.now()); err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			return nil, newError(ErrNotFound, "account not found", err)
		}
		return nil, internalError(err)
	}

	s.logger.InfoContext(ctx, "node recovered", slog.String("account_id", account.ID))

	return &NodeCredentials{EncryptedCredential: encrypted}, nil
}

// unlockSeed проверяет пароль, расшифровывает seed-фразу и получает из нее бинарный seed
func (s *Service) unlockSeed(ctx context.Context, accountID, encryptedSeed, password string, requireNew bool) (*models.Account, []byte, error) {
	if password == "" {
		return nil, nil, newError(ErrValidation, "password is required", nil)
	}

	account, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}

	// Быстрый отказ; окончательно решает условная запись
	if requireNew && account.HasNodeCredential() {
		return nil, nil, newError(ErrConflict, "node already registered", storage.ErrNodeAlreadyRegistered)
	}

	if encryptedSeed == "" {
		if account.EncryptedSeed == nil || *account.EncryptedSeed == "" {
			return nil, nil, newError(ErrValidation, "encryptedSeed is required", nil)
		}
		encryptedSeed = *account.EncryptedSeed
	}

	if err := s.checkPassword(ctx, account, password); err != nil {
		return nil, nil, err
	}

	phrase, err := s.vault.DecryptSecret(encryptedSeed, password)
	if err != nil {
		return nil, nil, newError(ErrCrypto, "failed to decrypt seed", err)
	}

	if !s.vault.ValidateSeedPhrase(string(phrase)) {
		return nil, nil, newError(ErrValidation, "invalid seed phrase", nil)
	}

	seed, err := s.vault.SeedPhraseToBinarySeed(string(phrase))
	if err != nil {
		return nil, nil, newError(ErrCrypto, "invalid seed phrase", err)
	}

	return account, seed, nil
}

// CheckPassword проверяет пароль уже аутентифицированного аккаунта
func (s *Service) CheckPassword(ctx context.Context, accountID, password string) error {
	if password == "" {
		return newError(ErrValidation, "password is required", nil)
	}

	account, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return err
	}

	return s.checkPassword(ctx, account, password)
}

// NodeInfo возвращает информацию о ноде аккаунта
func (s *Service) NodeInfo(ctx context.Context, accountID, password string) (*provisioning.NodeInfo, error) {
	session, err := s.openSession(ctx, accountID, password)
	if err != nil {
		return nil, err
	}

	info, err := session.GetInfo(ctx)
	if err != nil {
		return nil, newError(ErrProvisioning, "failed to get node info", err)
	}
	return info, nil
}

// Balance возвращает баланс ноды аккаунта
func (s *Service) Balance(ctx context.Context, accountID, password string) (*provisioning.Balance, error) {
	session, err := s.openSession(ctx, accountID, password)
	if err != nil {
		return nil, err
	}

	balance, err := session.GetBalance(ctx)
	if err != nil {
		return nil, newError(ErrProvisioning, "failed to get balance", err)
	}
	return balance, nil
}

// CreateOffer создает BOLT12 оффер на ноде аккаунта
func (s *Service) CreateOffer(ctx context.Context, accountID, password string, req provisioning.OfferRequest) (*provisioning.Offer, error) {
	if err := validation.ValidateDescription(req.Description); err != nil {
		return nil, newError(ErrValidation, err.Error(), err)
	}
	if req.Description == "" {
		req.Description = provisioning.DefaultOfferDescription
	}

	session, err := s.openSession(ctx, accountID, password)
	if err != nil {
		return nil, err
	}

	offer, err := session.CreateOffer(ctx, req)
	if err != nil {
		return nil, newError(ErrProvisioning, "failed to create offer", err)
	}

	s.logger.InfoContext(ctx, "offer created",
		slog.String("account_id", accountID), slog.String("offer_id", offer.OfferID))

	return offer, nil
}

// openSession расшифровывает учетные данные ноды и аутентифицируется у провайдера
func (s *Service) openSession(ctx context.Context, accountID, password string) (provisioning.Session, error) {
	if password == "" {
		return nil, newError(ErrValidation, "password is required", nil)
	}

	account, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if !account.HasNodeCredential() {
		return nil, newError(ErrBadRequest, "no node registered for this account", nil)
	}

	if err := s.checkPassword(ctx, account, password); err != nil {
		return nil, err
	}

	credential, err := s.vault.DecryptSecret(*account.NodeCredential, password)
	if err != nil {
		return nil, newError(ErrCrypto, "failed to decrypt node credentials", err)
	}

	session, err := s.provisioner.Authenticate(ctx, credential)
	if err != nil {
		s.logger.ErrorContext(ctx, "node authentication failed",
			slog.String("account_id", account.ID), slog.Any("error", err))
		return nil, newError(ErrProvisioning, "node authentication failed", err)
	}

	return session, nil
}

func (s *Service) loadAccount(ctx context.Context, accountID string) (*models.Account, error) {
	account, err := s.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			return nil, newError(ErrNotFound, "account not found", err)
		}
		return nil, internalError(err)
	}
	return account, nil
}

func (s *Service) checkPassword(ctx context.Context, account *models.Account, password string) error {
	ok, err := s.vault.VerifyPassword(password, account.PasswordHash)
	if err != nil {
		s.logger.ErrorContext(ctx, "stored password hash is corrupt",
			slog.String("account_id", account.ID), slog.Any("error", err))
		return newError(ErrCrypto, "stored password hash is unreadable", err)
	}
	if !ok {
		return authError()
	}
	return nil
}
