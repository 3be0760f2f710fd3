package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/iudanet/nodekeeper/internal/server/lifecycle"
	"github.com/iudanet/nodekeeper/pkg/api"
)

// maxBodySize ограничивает размер JSON тела запроса
const maxBodySize = 1 << 20

// responder - общие методы ответа для всех handlers
type responder struct {
	logger *slog.Logger
}

// sendJSON отправляет JSON ответ
func (h responder) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response", slog.Any("error", err))
	}
}

// sendError отправляет JSON ответ с ошибкой
func (h responder) sendError(w http.ResponseWriter, message string, statusCode int) {
	resp := api.ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	}
	h.sendJSON(w, resp, statusCode)
}

// sendServiceError переводит ошибку lifecycle в HTTP ответ
func (h responder) sendServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusForError(err)

	var le *lifecycle.Error
	if status == http.StatusInternalServerError || !errors.As(err, &le) {
		h.logger.ErrorContext(r.Context(), "request failed", slog.Any("error", err))
		h.sendError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.sendError(w, le.Message, status)
}

// decodeJSON читает тело запроса в v. Неизвестные поля - ошибка.
func (h responder) decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if dec.More() {
		return fmt.Errorf("invalid request body: trailing data")
	}
	return nil
}

// StatusForError возвращает HTTP статус для ошибки lifecycle
func StatusForError(err error) int {
	switch lifecycle.KindOf(err) {
	case lifecycle.ErrValidation, lifecycle.ErrBadRequest, lifecycle.ErrCrypto:
		return http.StatusBadRequest
	case lifecycle.ErrAuthentication:
		return http.StatusUnauthorized
	case lifecycle.ErrNotFound:
		return http.StatusNotFound
	case lifecycle.ErrConflict:
		return http.StatusConflict
	case lifecycle.ErrProvisioning:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
