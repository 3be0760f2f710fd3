package validation

import (
	"fmt"
	"regexp"
	"unicode/utf8"
)

// PublicKeyPattern определяет допустимый формат ключа идентичности:
// hex, base64/base64url или bech32-подобные строки без пробелов
var PublicKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_+/=:.\-]+$`)

const (
	// MaxPublicKeyLen максимальная длина ключа идентичности
	MaxPublicKeyLen = 512
	// MinPasswordLen минимальная длина пароля в символах
	MinPasswordLen = 8
	// MaxPasswordLen ограничивает работу Argon2id на заведомо мусорном вводе
	MaxPasswordLen = 1024
	// MaxDescriptionLen максимальная длина описания оффера в байтах
	MaxDescriptionLen = 640
)

// ValidatePublicKey проверяет ключ идентичности аккаунта
func ValidatePublicKey(publicKey string) error {
	if publicKey == "" {
		return fmt.Errorf("public_key cannot be empty")
	}

	if len(publicKey) > MaxPublicKeyLen {
		return fmt.Errorf("public_key must not exceed %d characters", MaxPublicKeyLen)
	}

	if !PublicKeyPattern.MatchString(publicKey) {
		return fmt.Errorf("public_key contains invalid characters")
	}

	return nil
}

// ValidatePassword проверяет минимальные требования к паролю.
// Длина считается в символах UTF-8, а не в байтах.
func ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("password cannot be empty")
	}

	if !utf8.ValidString(password) {
		return fmt.Errorf("password must be valid UTF-8")
	}

	n := utf8.RuneCountInString(password)
	if n < MinPasswordLen {
		return fmt.Errorf("password must be at least %d characters long", MinPasswordLen)
	}
	if n > MaxPasswordLen {
		return fmt.Errorf("password must not exceed %d characters", MaxPasswordLen)
	}

	return nil
}

// ValidateDescription проверяет описание оффера
func ValidateDescription(description string) error {
	if !utf8.ValidString(description) {
		return fmt.Errorf("description must be valid UTF-8")
	}
	if len(description) > MaxDescriptionLen {
		return fmt.Errorf("description must not exceed %d bytes", MaxDescriptionLen)
	}
	return nil
}
