package storage

import (
	"context"
	"time"
)

// SessionStorage хранит текущую сессию клиента.
// Работает с данными как есть: seed и креды ноды уже зашифрованы паролем аккаунта на сервере.
type SessionStorage interface {
	// SaveSession stores the session, replacing the previous one
	SaveSession(ctx context.Context, session *Session) error

	// GetSession returns ErrSessionNotFound if nothing is stored
	GetSession(ctx context.Context) (*Session, error)

	// DeleteSession removes the session (logout). Missing session is not an error.
	DeleteSession(ctx context.Context) error
}

// Session - данные сессии клиента
type Session struct {
	PublicKey            string `json:"public_key"`
	AccountID            string `json:"account_id,omitempty"`
	Token                string `json:"token"`
	EncryptedSeed        string `json:"encrypted_seed,omitempty"`
	EncryptedDeviceCreds string `json:"encrypted_device_creds,omitempty"`
	ExpiresAt            int64  `json:"expires_at"`
}

// Expired сообщает, что токен сессии истек к моменту now
func (s *Session) Expired(now time.Time) bool {
	return now.Unix() >= s.ExpiresAt
}

// HasNode сообщает, что нода уже зарегистрирована из этого клиента
func (s *Session) HasNode() bool {
	return s.EncryptedDeviceCreds != ""
}
