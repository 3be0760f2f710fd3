package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iudanet/nodekeeper/internal/client/storage"
	"github.com/iudanet/nodekeeper/internal/validation"
	pkgapi "github.com/iudanet/nodekeeper/pkg/api"
)

// ErrNotAuthenticated - локальной сессии нет или токен истек
var ErrNotAuthenticated = errors.New("not authenticated: run login first")

// Service предоставляет функции авторизации и хранит сессию клиента
type Service struct {
	apiClient APIClient
	store     storage.SessionStorage
	logger    *slog.Logger
	now       func() time.Time
}

// NewService создает новый сервис авторизации
func NewService(apiClient APIClient, store storage.SessionStorage, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		apiClient: apiClient,
		store:     store,
		logger:    logger,
		now:       time.Now,
	}
}

// SignupResult содержит результат регистрации
type SignupResult struct {
	AccountID     string
	EncryptedSeed string // seed-фраза, зашифрованная паролем аккаунта
	ExpiresAt     time.Time
}

// Signup регистрирует аккаунт и сохраняет сессию вместе с зашифрованным seed
func (s *Service) Signup(ctx context.Context, publicKey, password string) (*SignupResult, error) {
	if err := validateCredentials(publicKey, password); err != nil {
		return nil, err
	}

	resp, err := s.apiClient.Signup(ctx, pkgapi.SignupRequest{
		PublicKey: publicKey,
		Password:  password,
	})
	if err != nil {
		return nil, fmt.Errorf("signup failed: %w", err)
	}

	session := &storage.Session{
		PublicKey:     publicKey,
		AccountID:     resp.AccountID,
		Token:         resp.Token,
		EncryptedSeed: resp.EncryptedSeed,
		ExpiresAt:     s.expiresAt(resp.ExpiresIn),
	}
	if err := s.store.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	s.logger.Debug("signup completed", slog.String("account_id", resp.AccountID))

	return &SignupResult{
		AccountID:     resp.AccountID,
		EncryptedSeed: resp.EncryptedSeed,
		ExpiresAt:     time.Unix(session.ExpiresAt, 0),
	}, nil
}

// Login получает новый токен. Данные прежней сессии того же ключа (seed, креды ноды) сохраняются.
func (s *Service) Login(ctx context.Context, publicKey, password string) (time.Time, error) {
	if err := validateCredentials(publicKey, password); err != nil {
		return time.Time{}, err
	}

	resp, err := s.apiClient.Login(ctx, pkgapi.LoginRequest{
		PublicKey: publicKey,
		Password:  password,
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("login failed: %w", err)
	}

	session := &storage.Session{PublicKey: publicKey}

	prev, err := s.store.GetSession(ctx)
	switch {
	case err == nil && prev.PublicKey == publicKey:
		session.AccountID = prev.AccountID
		session.EncryptedSeed = prev.EncryptedSeed
		session.EncryptedDeviceCreds = prev.EncryptedDeviceCreds
	case err != nil && !errors.Is(err, storage.ErrSessionNotFound):
		return time.Time{}, fmt.Errorf("failed to read session: %w", err)
	}

	session.Token = resp.Token
	session.ExpiresAt = s.expiresAt(resp.ExpiresIn)

	if err := s.store.SaveSession(ctx, session); err != nil {
		return time.Time{}, fmt.Errorf("failed to save session: %w", err)
	}

	return time.Unix(session.ExpiresAt, 0), nil
}

// Logout удаляет локальную сессию. На сервере токены не отзываются.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.store.DeleteSession(ctx); err != nil {
		return fmt.Errorf("failed to delete local session: %w", err)
	}
	return nil
}

// Status возвращает сохраненную сессию, даже если она истекла.
// Если сессии нет - (nil, nil).
func (s *Service) Status(ctx context.Context) (*storage.Session, error) {
	session, err := s.store.GetSession(ctx)
	if errors.Is(err, storage.ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	return session, nil
}

// ActiveSession возвращает сессию с действующим токеном
func (s *Service) ActiveSession(ctx context.Context) (*storage.Session, error) {
	session, err := s.Status(ctx)
	if err != nil {
		return nil, err
	}
	if session == nil || session.Token == "" || session.Expired(s.now()) {
		return nil, ErrNotAuthenticated
	}
	return session, nil
}

// SaveDeviceCreds запоминает зашифрованные учетные данные ноды в текущей сессии
func (s *Service) SaveDeviceCreds(ctx context.Context, encrypted string) error {
	session, err := s.ActiveSession(ctx)
	if err != nil {
		return err
	}
	session.EncryptedDeviceCreds = encrypted
	if err := s.store.SaveSession(ctx, session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// IsExpired сообщает, истекла ли сессия к текущему моменту
func (s *Service) IsExpired(session *storage.Session) bool {
	return session.Expired(s.now())
}

func (s *Service) expiresAt(expiresIn int64) int64 {
	return s.now().Add(time.Duration(expiresIn) * time.Second).Unix()
}

func validateCredentials(publicKey, password string) error {
	if err := validation.ValidatePublicKey(publicKey); err != nil {
		return fmt.Errorf("invalid public key: %w", err)
	}
	if err := validation.ValidatePassword(password); err != nil {
		return fmt.Errorf("invalid password: %w", err)
	}
	return nil
}
