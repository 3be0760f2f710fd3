package handlers

import "context"

// contextKey тип для ключей контекста
type contextKey string

// AccountIDKey ключ для хранения account_id в контексте
const AccountIDKey contextKey = "account_id"

// WithAccountID кладет account_id в контекст
func WithAccountID(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, AccountIDKey, accountID)
}

// GetAccountID извлекает account_id из контекста запроса
func GetAccountID(ctx context.Context) (string, bool) {
	accountID, ok := ctx.Value(AccountIDKey).(string)
	return accountID, ok && accountID != ""
}
