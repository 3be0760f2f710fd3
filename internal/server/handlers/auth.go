package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/iudanet/nodekeeper/internal/server/lifecycle"
	"github.com/iudanet/nodekeeper/pkg/api"
)

// AccountService - операции с аккаунтом без сессии
type AccountService interface {
	Signup(ctx context.Context, publicKey, password string) (*lifecycle.SignupResult, error)
	Login(ctx context.Context, publicKey, password string) (*lifecycle.LoginResult, error)
}

// AuthHandler обрабатывает запросы авторизации
type AuthHandler struct {
	responder
	accounts AccountService
}

// NewAuthHandler создает новый handler для авторизации
func NewAuthHandler(logger *slog.Logger, accounts AccountService) *AuthHandler {
	return &AuthHandler{
		responder: responder{logger: logger},
		accounts:  accounts,
	}
}

// Register обрабатывает POST /api/v1/auth/register
// Создание аккаунта и seed-фразы
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.SignupRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode signup request", slog.Any("error", err))
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.accounts.Signup(ctx, req.PublicKey, req.Password)
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}

	resp := api.SignupResponse{
		AccountID:     res.AccountID,
		EncryptedSeed: res.EncryptedSeed,
		Token:         res.Token,
		ExpiresIn:     res.ExpiresIn,
	}

	h.sendJSON(w, resp, http.StatusCreated)
}

// Login обрабатывает POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.LoginRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode login request", slog.Any("error", err))
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.accounts.Login(ctx, req.PublicKey, req.Password)
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}

	h.sendJSON(w, api.LoginResponse{Token: res.Token, ExpiresIn: res.ExpiresIn}, http.StatusOK)
}
