package models

import "time"

// AccountState - состояние аккаунта относительно привязанной ноды
type AccountState string

const (
	// StateNew - аккаунт создан, нода еще не зарегистрирована
	StateNew AccountState = "new"
	// StateRegistered - у аккаунта есть учетные данные ноды
	StateRegistered AccountState = "registered"
)

// Account представляет аккаунт пользователя
type Account struct {
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	EncryptedSeed  *string   `json:"encrypted_seed,omitempty"`  // base64 блоб seed-фразы
	NodeCredential *string   `json:"node_credential,omitempty"` // base64 блоб учетных данных ноды, зашифрован паролем
	ID             string    `json:"id"`                        // UUID аккаунта
	PublicKey      string    `json:"public_key"`                // уникальный ключ идентичности
	PasswordHash   string    `json:"-"`                         // Argon2id хеш в PHC формате
}

// HasNodeCredential сообщает, привязана ли к аккаунту нода
func (a *Account) HasNodeCredential() bool {
	return a.NodeCredential != nil && *a.NodeCredential != ""
}

// State возвращает текущее состояние аккаунта
func (a *Account) State() AccountState {
	if a.HasNodeCredential() {
		return StateRegistered
	}
	return StateNew
}
