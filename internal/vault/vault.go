// Package vault собирает криптографические примитивы в одно хранилище секретов:
// хеши паролей для логина, seed-фразы кошелька и зашифрованные блобы.
package vault

import (
	"fmt"
	"strings"

	"github.com/alexedwards/argon2id"
	"github.com/tyler-smith/go-bip39"

	"github.com/iudanet/nodekeeper/internal/crypto"
)

// SeedEntropyBits - энтропия seed-фразы (24 слова)
const SeedEntropyBits = 256

// dummyPassword используется для выравнивания времени ответа, когда аккаунта нет
const dummyPassword = "nodekeeper-dummy-password"

// Vault - stateless набор операций над секретами. Безопасен для конкурентного использования.
type Vault struct {
	params    *argon2id.Params
	dummyHash string
}

// New создает Vault с параметрами Argon2id по умолчанию
func New() (*Vault, error) {
	return NewWithParams(crypto.DefaultHashParams)
}

// NewWithParams создает Vault с заданными параметрами Argon2id
func NewWithParams(params *argon2id.Params) (*Vault, error) {
	dummyHash, err := crypto.HashPassword(dummyPassword, params)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}

	return &Vault{
		params:    params,
		dummyHash: dummyHash,
	}, nil
}

// HashPassword хеширует пароль для последующей проверки при логине
func (v *Vault) HashPassword(password string) (string, error) {
	return crypto.HashPassword(password, v.params)
}

// VerifyPassword проверяет пароль по хешу.
// Несовпадение - false без ошибки; поврежденный хеш - ошибка crypto.ErrInvalidHash.
func (v *Vault) VerifyPassword(password, hash string) (bool, error) {
	return crypto.VerifyPassword(password, hash)
}

// DummyVerify тратит столько же времени, сколько настоящая проверка пароля.
// Вызывается, когда аккаунт не найден.
func (v *Vault) DummyVerify(password string) {
	_, _ = crypto.VerifyPassword(password, v.dummyHash)
}

// GenerateSeedPhrase генерирует новую BIP39 мнемонику из 24 слов
func (v *Vault) GenerateSeedPhrase() (string, error) {
	entropy, err := bip39.NewEntropy(SeedEntropyBits)
	if err != nil {
		return "", fmt.Errorf("failed to generate entropy: %w", err)
	}

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("failed to encode mnemonic: %w", err)
	}

	return mnemonic, nil
}

// ValidateSeedPhrase проверяет слова и контрольную сумму. Никогда не паникует.
func (v *Vault) ValidateSeedPhrase(phrase string) bool {
	return bip39.IsMnemonicValid(normalizePhrase(phrase))
}

// SeedPhraseToBinarySeed получает 64-байтовый seed из мнемоники с пустой passphrase.
// Фраза проверяется повторно, невалидная дает crypto.ErrCrypto.
func (v *Vault) SeedPhraseToBinarySeed(phrase string) ([]byte, error) {
	seed, err := bip39.NewSeedWithErrorChecking(normalizePhrase(phrase), "")
	if err != nil {
		return nil, fmt.Errorf("%w: invalid seed phrase", crypto.ErrCrypto)
	}
	return seed, nil
}

// EncryptSecret шифрует секрет паролем и возвращает base64 блоб
func (v *Vault) EncryptSecret(plaintext []byte, password string) (string, error) {
	return crypto.EncryptToBase64(plaintext, password)
}

// DecryptSecret расшифровывает base64 блоб
func (v *Vault) DecryptSecret(blob, password string) ([]byte, error) {
	return crypto.DecryptFromBase64(blob, password)
}

func normalizePhrase(phrase string) string {
	return strings.Join(strings.Fields(phrase), " ")
}
