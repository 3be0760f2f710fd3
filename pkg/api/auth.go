package api

// SignupRequest представляет запрос на создание аккаунта
type SignupRequest struct {
	PublicKey string `json:"public_key"` // ключ идентичности
	Password  string `json:"password"`   // пароль, минимум 8 символов
}

// SignupResponse представляет ответ на успешную регистрацию
type SignupResponse struct {
	AccountID     string `json:"account_id"`    // UUID аккаунта
	EncryptedSeed string `json:"encryptedSeed"` // seed-фраза, зашифрованная паролем (base64)
	Token         string `json:"token"`         // JWT токен сессии
	ExpiresIn     int64  `json:"expires_in"`    // время жизни токена в секундах
}

// LoginRequest представляет запрос на аутентификацию
type LoginRequest struct {
	PublicKey string `json:"public_key"`
	Password  string `json:"password"`
}

// LoginResponse представляет ответ с токеном сессии
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Message string `json:"message,omitempty"` // дополнительное сообщение
}
