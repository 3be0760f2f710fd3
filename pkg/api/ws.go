package api

import "encoding/json"

// Команды WebSocket канала
const (
	WSCommandAuth        = "auth"
	WSCommandGetInfo     = "get_info"
	WSCommandGetBalance  = "get_balance"
	WSCommandCreateOffer = "create_offer"
)

// WSAuthMessage - первое сообщение после подключения
type WSAuthMessage struct {
	Password string `json:"password"`
}

// WSRequest - команда клиента
type WSRequest struct {
	Command string          `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// WSOfferPayload - параметры create_offer
type WSOfferPayload struct {
	AmountMsat  *uint64 `json:"amount_msat,omitempty"`
	Description string  `json:"description,omitempty"`
}

// WSResponse - ответ сервера на команду
type WSResponse struct {
	Data    any    `json:"data,omitempty"`
	Command string `json:"command"`
	Error   string `json:"error,omitempty"`
	Success bool   `json:"success"`
}
