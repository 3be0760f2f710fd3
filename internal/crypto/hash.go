package crypto

import (
	"errors"
	"fmt"

	"github.com/alexedwards/argon2id"
)

// ErrInvalidHash означает, что сохраненная строка хеша повреждена или в неизвестном формате
var ErrInvalidHash = errors.New("invalid password hash")

// DefaultHashParams - параметры Argon2id для хеширования паролей
var DefaultHashParams = &argon2id.Params{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

// HashPassword хеширует пароль Argon2id со случайной солью.
// Результат в PHC формате: $argon2id$v=19$m=...,t=...,p=...$salt$hash
func HashPassword(password string, params *argon2id.Params) (string, error) {
	if params == nil {
		params = DefaultHashParams
	}

	hash, err := argon2id.CreateHash(password, params)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return hash, nil
}

// VerifyPassword сравнивает пароль с PHC хешем за постоянное время.
// Несовпадение - (false, nil), поврежденный хеш - ErrInvalidHash.
func VerifyPassword(password, hash string) (bool, error) {
	if err := checkHash(hash); err != nil {
		return false, err
	}

	match, err := argon2id.ComparePasswordAndHash(password, hash)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	return match, nil
}

// checkHash отсекает параметры, на которых argon2 паникует
func checkHash(hash string) error {
	params, _, key, err := argon2id.DecodeHash(hash)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}

	switch {
	case params.Iterations < 1:
		return fmt.Errorf("%w: iterations must be positive", ErrInvalidHash)
	case params.Parallelism < 1:
		return fmt.Errorf("%w: parallelism must be positive", ErrInvalidHash)
	case params.Memory < 8*uint32(params.Parallelism):
		return fmt.Errorf("%w: memory too low for parallelism", ErrInvalidHash)
	case len(key) == 0:
		return fmt.Errorf("%w: empty key", ErrInvalidHash)
	}
	return nil
}
