package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/iudanet/nodekeeper/internal/server/lifecycle"
	"github.com/iudanet/nodekeeper/internal/server/provisioning"
	"github.com/iudanet/nodekeeper/pkg/api"
)

// NodeService - операции с нодой аутентифицированного аккаунта
type NodeService interface {
	CheckPassword(ctx context.Context, accountID, password string) error
	RegisterNode(ctx context.Context, accountID, encryptedSeed, password string) (*lifecycle.NodeCredentials, error)
	RecoverNode(ctx context.Context, accountID, encryptedSeed, password string) (*lifecycle.NodeCredentials, error)
	NodeInfo(ctx context.Context, accountID, password string) (*provisioning.NodeInfo, error)
	Balance(ctx context.Context, accountID, password string) (*provisioning.Balance, error)
	CreateOffer(ctx context.Context, accountID, password string, req provisioning.OfferRequest) (*provisioning.Offer, error)
}

// NodeHandler обрабатывает запросы к ноде. Все маршруты за AuthMiddleware.
type NodeHandler struct {
	responder
	nodes NodeService
}

// NewNodeHandler создает handler для операций с нодой
func NewNodeHandler(logger *slog.Logger, nodes NodeService) *NodeHandler {
	return &NodeHandler{
		responder: responder{logger: logger},
		nodes:     nodes,
	}
}

// Register обрабатывает POST /api/v1/node/register
func (h *NodeHandler) Register(w http.ResponseWriter, r *http.Request) {
	h.enroll(w, r, h.nodes.RegisterNode)
}

// Recover обрабатывает POST /api/v1/node/recover
func (h *NodeHandler) Recover(w http.ResponseWriter, r *http.Request) {
	h.enroll(w, r, h.nodes.RecoverNode)
}

type enrollFunc func(ctx context.Context, accountID, encryptedSeed, password string) (*lifecycle.NodeCredentials, error)

func (h *NodeHandler) enroll(w http.ResponseWriter, r *http.Request, fn enrollFunc) {
	ctx := r.Context()

	accountID, ok := GetAccountID(ctx)
	if !ok {
		h.sendError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req api.NodeRegisterRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode node request", slog.Any("error", err))
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	creds, err := fn(ctx, accountID, req.EncryptedSeed, req.Password)
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}

	h.sendJSON(w, api.NodeCredentialsResponse{EncryptedDeviceCreds: creds.EncryptedCredential}, http.StatusOK)
}

// Info обрабатывает GET /api/v1/node/info
// Пароль передается в заголовке X-Wallet-Password
func (h *NodeHandler) Info(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accountID, ok := GetAccountID(ctx)
	if !ok {
		h.sendError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	info, err := h.nodes.NodeInfo(ctx, accountID, r.Header.Get(api.PasswordHeader))
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}

	h.sendJSON(w, NodeInfoResponse(info), http.StatusOK)
}

// Balance обрабатывает GET /api/v1/node/balance
func (h *NodeHandler) Balance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accountID, ok := GetAccountID(ctx)
	if !ok {
		h.sendError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	balance, err := h.nodes.Balance(ctx, accountID, r.Header.Get(api.PasswordHeader))
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}

	h.sendJSON(w, BalanceResponse(balance), http.StatusOK)
}

// CreateOffer обрабатывает POST /api/v1/node/offer
func (h *NodeHandler) CreateOffer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accountID, ok := GetAccountID(ctx)
	if !ok {
		h.sendError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req api.CreateOfferRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode offer request", slog.Any("error", err))
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	offer, err := h.nodes.CreateOffer(ctx, accountID, req.Password, provisioning.OfferRequest{
		AmountMsat:  req.AmountMsat,
		Description: req.Description,
	})
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}

	h.sendJSON(w, OfferResponse(offer), http.StatusCreated)
}

// NodeInfoResponse конвертирует NodeInfo в DTO
func NodeInfoResponse(info *provisioning.NodeInfo) api.NodeInfoResponse {
	return api.NodeInfoResponse{
		NodeID:              info.NodeID,
		Alias:               info.Alias,
		Color:               info.Color,
		Network:             info.Network,
		NumPeers:            info.NumPeers,
		NumPendingChannels:  info.NumPendingChannels,
		NumActiveChannels:   info.NumActiveChannels,
		NumInactiveChannels: info.NumInactiveChannels,
		BlockHeight:         info.BlockHeight,
		FeesCollectedMsat:   info.FeesCollectedMsat,
	}
}

// BalanceResponse конвертирует Balance в DTO с суммами в sat и msat
func BalanceResponse(b *provisioning.Balance) api.BalanceResponse {
	return api.BalanceResponse{
		OnchainBalanceSat:  b.OnchainMsat / 1000,
		OnchainBalanceMsat: b.OnchainMsat,
		ChannelBalanceSat:  b.ChannelMsat / 1000,
		ChannelBalanceMsat: b.ChannelMsat,
		TotalBalanceSat:    b.TotalMsat() / 1000,
		TotalBalanceMsat:   b.TotalMsat(),
	}
}

// OfferResponse конвертирует Offer в DTO
func OfferResponse(o *provisioning.Offer) api.OfferResponse {
	return api.OfferResponse{
		AmountMsat:  o.AmountMsat,
		Bolt12:      o.Bolt12,
		OfferID:     o.OfferID,
		Description: o.Description,
		Active:      o.Active,
	}
}
