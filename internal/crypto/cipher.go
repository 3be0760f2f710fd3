package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

const (
	// NonceSize - размер nonce для AES-GCM (12 bytes стандартный размер)
	NonceSize = 12
	// TagSize - размер authentication tag GCM
	TagSize = 16
	// HeaderSize - salt + nonce в начале каждого блоба
	HeaderSize = SaltSize + NonceSize
)

// ErrCrypto возвращается при любой ошибке расшифровки.
// Причина (короткий блоб, битый base64, неверный пароль, подмена данных) наружу не сообщается.
var ErrCrypto = errors.New("decryption failed")

// Encrypt шифрует данные ключом, полученным из пароля (AES-256-GCM).
// Формат результата: salt (32 bytes) + nonce (12 bytes) + ciphertext + auth_tag (16 bytes)
// Соль и nonce генерируются заново на каждый вызов, поэтому ключ тоже каждый раз новый.
func Encrypt(plaintext []byte, password string) ([]byte, error) {
	salt, err := GenerateSalt()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	aesGCM, err := newGCM(DeriveKey([]byte(password), salt))
	if err != nil {
		return nil, err
	}

	// GCM добавляет authentication tag в конец
	ciphertext := aesGCM.Seal(nil, nonce, plaintext, nil)

	result := make([]byte, 0, HeaderSize+len(ciphertext))
	result = append(result, salt...)
	result = append(result, nonce...)
	result = append(result, ciphertext...)

	return result, nil
}

// EncryptToBase64 шифрует данные и возвращает блоб в Base64
func EncryptToBase64(plaintext []byte, password string) (string, error) {
	encrypted, err := Encrypt(plaintext, password)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(encrypted), nil
}

// Decrypt дешифрует блоб, созданный Encrypt.
// Любая ошибка возвращается как ErrCrypto.
func Decrypt(encrypted []byte, password string) ([]byte, error) {
	// Короткий блоб отбрасываем до вычисления ключа
	if len(encrypted) < HeaderSize {
		return nil, ErrCrypto
	}

	salt := encrypted[:SaltSize]
	nonce := encrypted[SaltSize:HeaderSize]
	ciphertext := encrypted[HeaderSize:]

	aesGCM, err := newGCM(DeriveKey([]byte(password), salt))
	if err != nil {
		return nil, ErrCrypto
	}

	plaintext, err := aesGCM.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrCrypto
	}

	// Open возвращает nil для пустого plaintext
	if plaintext == nil {
		plaintext = []byte{}
	}

	return plaintext, nil
}

// DecryptFromBase64 дешифрует блоб из Base64
func DecryptFromBase64(encryptedBase64, password string) ([]byte, error) {
	encrypted, err := base64.StdEncoding.DecodeString(encryptedBase64)
	if err != nil {
		return nil, ErrCrypto
	}
	return Decrypt(encrypted, password)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return aesGCM, nil
}
