package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iudanet/nodekeeper/internal/server/lifecycle"
	"github.com/iudanet/nodekeeper/internal/server/provisioning"
	"github.com/iudanet/nodekeeper/pkg/api"
)

const (
	wsAuthTimeout  = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
	wsReadLimit    = 64 << 10
)

// TokenVerifier проверяет токен сессии и возвращает account_id
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// WSHandler обслуживает WebSocket канал /api/v1/ws.
// Токен передается в query параметре token, пароль - первым сообщением.
type WSHandler struct {
	responder
	nodes    NodeService
	tokens   TokenVerifier
	upgrader websocket.Upgrader
}

// NewWSHandler создает handler WebSocket канала
func NewWSHandler(logger *slog.Logger, nodes NodeService, tokens TokenVerifier) *WSHandler {
	return &WSHandler{
		responder: responder{logger: logger},
		nodes:     nodes,
		tokens:    tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Токен приходит в query, а не в cookie
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Serve обрабатывает GET /api/v1/ws
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		h.sendError(w, "missing token", http.StatusUnauthorized)
		return
	}

	accountID, err := h.tokens.Verify(token)
	if err != nil {
		h.logger.WarnContext(r.Context(), "invalid websocket token", slog.Any("error", err))
		h.sendError(w, "invalid or expired token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade сам отвечает клиенту
		h.logger.WarnContext(r.Context(), "websocket upgrade failed", slog.Any("error", err))
		return
	}
	defer func() {
		if err := conn.Close(); err != nil {
			h.logger.Debug("failed to close websocket", slog.Any("error", err))
		}
	}()
	conn.SetReadLimit(wsReadLimit)

	logger := h.logger.With(slog.String("account_id", accountID))
	ctx := r.Context()

	password, ok := h.authenticate(ctx, conn, logger, accountID)
	if !ok {
		return
	}

	for {
		var req api.WSRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("websocket read failed", slog.Any("error", err))
			}
			return
		}

		resp := h.dispatch(ctx, accountID, password, req)
		if err := h.write(conn, resp); err != nil {
			logger.Warn("websocket write failed", slog.Any("error", err))
			return
		}
	}
}

// authenticate читает первое сообщение с паролем и проверяет его
func (h *WSHandler) authenticate(ctx context.Context, conn *websocket.Conn, logger *slog.Logger, accountID string) (string, bool) {
	if err := conn.SetReadDeadline(time.Now().Add(wsAuthTimeout)); err != nil {
		return "", false
	}

	var msg api.WSAuthMessage
	if err := conn.ReadJSON(&msg); err != nil {
		logger.Warn("failed to read websocket auth message", slog.Any("error", err))
		_ = h.write(conn, api.WSResponse{Command: api.WSCommandAuth, Error: "invalid auth message"})
		return "", false
	}

	if err := h.nodes.CheckPassword(ctx, accountID, msg.Password); err != nil {
		_ = h.write(conn, api.WSResponse{Command: api.WSCommandAuth, Error: h.errorMessage(logger, err)})
		return "", false
	}

	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		return "", false
	}
	if err := h.write(conn, api.WSResponse{Command: api.WSCommandAuth, Success: true}); err != nil {
		return "", false
	}

	return msg.Password, true
}

func (h *WSHandler) dispatch(ctx context.Context, accountID, password string, req api.WSRequest) api.WSResponse {
	resp := api.WSResponse{Command: req.Command}

	var (
		data any
		err  error
	)
	switch req.Command {
	case api.WSCommandGetInfo:
		var info *provisioning.NodeInfo
		if info, err = h.nodes.NodeInfo(ctx, accountID, password); err == nil {
			data = NodeInfoResponse(info)
		}
	case api.WSCommandGetBalance:
		var balance *provisioning.Balance
		if balance, err = h.nodes.Balance(ctx, accountID, password); err == nil {
			data = BalanceResponse(balance)
		}
	case api.WSCommandCreateOffer:
		var payload api.WSOfferPayload
		if len(req.Payload) > 0 {
			if err := json.Unmarshal(req.Payload, &payload); err != nil {
				resp.Error = "invalid payload"
				return resp
			}
		}
		var offer *provisioning.Offer
		offer, err = h.nodes.CreateOffer(ctx, accountID, password, provisioning.OfferRequest{
			AmountMsat:  payload.AmountMsat,
			Description: payload.Description,
		})
		if err == nil {
			data = OfferResponse(offer)
		}
	default:
		resp.Error = "unknown command"
		return resp
	}

	if err != nil {
		resp.Error = h.errorMessage(h.logger, err)
		return resp
	}

	resp.Data = data
	resp.Success = true
	return resp
}

// errorMessage возвращает безопасное для клиента сообщение об ошибке
func (h *WSHandler) errorMessage(logger *slog.Logger, err error) string {
	var le *lifecycle.Error
	if !errors.As(err, &le) || StatusForError(err) == http.StatusInternalServerError {
		logger.Error("websocket command failed", slog.Any("error", err))
		return "internal server error"
	}
	return le.Message
}

func (h *WSHandler) write(conn *websocket.Conn, resp api.WSResponse) error {
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(resp)
}
