package api

// PasswordHeader передает пароль аккаунта в GET запросах к ноде
const PasswordHeader = "X-Wallet-Password"

// NodeRegisterRequest - запрос на регистрацию или восстановление ноды.
// EncryptedSeed можно опустить, тогда сервер использует seed, сохраненный при signup.
type NodeRegisterRequest struct {
	EncryptedSeed string `json:"encryptedSeed,omitempty"`
	Password      string `json:"password"`
}

// NodeCredentialsResponse - учетные данные ноды, зашифрованные паролем аккаунта
type NodeCredentialsResponse struct {
	EncryptedDeviceCreds string `json:"encryptedDeviceCreds"`
}

// NodeInfoResponse - информация о ноде
type NodeInfoResponse struct {
	NodeID              string `json:"node_id"`
	Alias               string `json:"alias"`
	Color               string `json:"color"`
	Network             string `json:"network"`
	NumPeers            uint32 `json:"num_peers"`
	NumPendingChannels  uint32 `json:"num_pending_channels"`
	NumActiveChannels   uint32 `json:"num_active_channels"`
	NumInactiveChannels uint32 `json:"num_inactive_channels"`
	BlockHeight         uint32 `json:"blockheight"`
	FeesCollectedMsat   uint64 `json:"fees_collected_msat"`
}

// BalanceResponse - баланс ноды
type BalanceResponse struct {
	OnchainBalanceSat  uint64 `json:"onchain_balance_sat"`
	OnchainBalanceMsat uint64 `json:"onchain_balance_msat"`
	ChannelBalanceSat  uint64 `json:"channel_balance_sat"`
	ChannelBalanceMsat uint64 `json:"channel_balance_msat"`
	TotalBalanceSat    uint64 `json:"total_balance_sat"`
	TotalBalanceMsat   uint64 `json:"total_balance_msat"`
}

// CreateOfferRequest - запрос на создание BOLT12 оффера.
// AmountMsat не задан или 0 - оффер на любую сумму.
type CreateOfferRequest struct {
	AmountMsat  *uint64 `json:"amount_msat,omitempty"`
	Password    string  `json:"password"`
	Description string  `json:"description,omitempty"`
}

// OfferResponse - созданный оффер
type OfferResponse struct {
	AmountMsat  *uint64 `json:"amount_msat"`
	Bolt12      string  `json:"bolt12"`
	OfferID     string  `json:"offer_id"`
	Description string  `json:"description"`
	Active      bool    `json:"active"`
}
