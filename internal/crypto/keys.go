package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// Параметры PBKDF2 для получения ключа шифрования из пароля
const (
	// PBKDF2Iterations - количество итераций HMAC-SHA256
	PBKDF2Iterations = 100_000
	// KeySize - длина выходного ключа в байтах (AES-256)
	KeySize = 32
	// SaltSize - размер соли в байтах
	SaltSize = 32
)

// GenerateSalt генерирует криптографически случайную соль размером SaltSize
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	_, err := rand.Read(salt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// GenerateSaltBase64 генерирует соль и возвращает ее в Base64
func GenerateSaltBase64() (string, error) {
	salt, err := GenerateSalt()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(salt), nil
}

// DeriveKey получает 32-байтовый ключ из пароля и соли (PBKDF2-HMAC-SHA256).
// Детерминирована: одинаковые пароль и соль всегда дают одинаковый ключ.
func DeriveKey(password, salt []byte) []byte {
	return pbkdf2.Key(password, salt, PBKDF2Iterations, KeySize, sha256.New)
}
