package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/iudanet/nodekeeper/internal/server/lifecycle"
	"github.com/iudanet/nodekeeper/internal/server/provisioning"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

const testPassword = "password123"

func authFailure() error {
	return &lifecycle.Error{Kind: lifecycle.ErrAuthentication, Message: lifecycle.InvalidCredentialsMessage}
}

type mockAccountService struct {
	signupFn func(ctx context.Context, publicKey, password string) (*lifecycle.SignupResult, error)
	loginFn  func(ctx context.Context, publicKey, password string) (*lifecycle.LoginResult, error)
}

func (m *mockAccountService) Signup(ctx context.Context, publicKey, password string) (*lifecycle.SignupResult, error) {
	return m.signupFn(ctx, publicKey, password)
}

func (m *mockAccountService) Login(ctx context.Context, publicKey, password string) (*lifecycle.LoginResult, error) {
	return m.loginFn(ctx, publicKey, password)
}

// mockNodeService принимает только testPassword
type mockNodeService struct {
	registerErr error
	infoErr     error
	lastOffer   provisioning.OfferRequest
	lastSeed    string
}

func (m *mockNodeService) CheckPassword(ctx context.Context, accountID, password string) error {
	if password != testPassword {
		return authFailure()
	}
	return nil
}

func (m *mockNodeService) RegisterNode(ctx context.Context, accountID, encryptedSeed, password string) (*lifecycle.NodeCredentials, error) {
	if err := m.CheckPassword(ctx, accountID, password); err != nil {
		return nil, err
	}
	if m.registerErr != nil {
		return nil, m.registerErr
	}
	m.lastSeed = encryptedSeed
	return &lifecycle.NodeCredentials{EncryptedCredential: "creds-" + accountID}, nil
}

func (m *mockNodeService) RecoverNode(ctx context.Context, accountID, encryptedSeed, password string) (*lifecycle.NodeCredentials, error) {
	if err := m.CheckPassword(ctx, accountID, password); err != nil {
		return nil, err
	}
	m.lastSeed = encryptedSeed
	return &lifecycle.NodeCredentials{EncryptedCredential: "recovered-" + accountID}, nil
}

func (m *mockNodeService) NodeInfo(ctx context.Context, accountID, password string) (*provisioning.NodeInfo, error) {
	if err := m.CheckPassword(ctx, accountID, password); err != nil {
		return nil, err
	}
	if m.infoErr != nil {
		return nil, m.infoErr
	}
	return &provisioning.NodeInfo{NodeID: "02abc", Alias: "alice", Network: "bitcoin", NumPeers: 3, BlockHeight: 800000}, nil
}

func (m *mockNodeService) Balance(ctx context.Context, accountID, password string) (*provisioning.Balance, error) {
	if err := m.CheckPassword(ctx, accountID, password); err != nil {
		return nil, err
	}
	return &provisioning.Balance{OnchainMsat: 150_000, ChannelMsat: 2_500_000}, nil
}

func (m *mockNodeService) CreateOffer(ctx context.Context, accountID, password string, req provisioning.OfferRequest) (*provisioning.Offer, error) {
	if err := m.CheckPassword(ctx, accountID, password); err != nil {
		return nil, err
	}
	m.lastOffer = req
	desc := req.Description
	if desc == "" {
		desc = provisioning.DefaultOfferDescription
	}
	return &provisioning.Offer{AmountMsat: req.AmountMsat, Bolt12: "lno1qqq", OfferID: "offer-1", Description: desc, Active: true}, nil
}

type mockTokenVerifier struct {
	tokens map[string]string
}

func (m *mockTokenVerifier) Verify(token string) (string, error) {
	if id, ok := m.tokens[token]; ok {
		return id, nil
	}
	return "", errors.New("invalid token")
}

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(ctx context.Context) error {
	return m.err
}
