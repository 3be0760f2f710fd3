package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/iudanet/nodekeeper/pkg/api"
)

const (
	pathSignup       = "/api/v1/auth/register"
	pathLogin        = "/api/v1/auth/login"
	pathNodeRegister = "/api/v1/node/register"
	pathNodeRecover  = "/api/v1/node/recover"
	pathNodeInfo     = "/api/v1/node/info"
	pathNodeBalance  = "/api/v1/node/balance"
	pathNodeOffer    = "/api/v1/node/offer"
	pathHealth       = "/api/v1/health"
)

// APIError - ответ сервера с кодом вне 2xx
type APIError struct {
	Message    string
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
}

// StatusCode возвращает HTTP статус из ошибки сервера, 0 если ошибка другая
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// Client представляет HTTP клиент для взаимодействия с сервером
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient создает новый API клиент
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				// Копируем заголовки Authorization при редиректе
				if len(via) > 0 && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
	}
}

// Signup создает аккаунт для публичного ключа
func (c *Client) Signup(ctx context.Context, req api.SignupRequest) (*api.SignupResponse, error) {
	var resp api.SignupResponse
	if err := c.doRequest(ctx, http.MethodPost, pathSignup, "", nil, req, &resp); err != nil {
		return nil, fmt.Errorf("signup request failed: %w", err)
	}
	return &resp, nil
}

// Login выполняет аутентификацию и возвращает токен сессии
func (c *Client) Login(ctx context.Context, req api.LoginRequest) (*api.LoginResponse, error) {
	var resp api.LoginResponse
	if err := c.doRequest(ctx, http.MethodPost, pathLogin, "", nil, req, &resp); err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	return &resp, nil
}

// RegisterNode регистрирует ноду для аккаунта
func (c *Client) RegisterNode(ctx context.Context, token string, req api.NodeRegisterRequest) (*api.NodeCredentialsResponse, error) {
	var resp api.NodeCredentialsResponse
	if err := c.doRequest(ctx, http.MethodPost, pathNodeRegister, token, nil, req, &resp); err != nil {
		return nil, fmt.Errorf("register node request failed: %w", err)
	}
	return &resp, nil
}

// RecoverNode восстанавливает учетные данные уже зарегистрированной ноды
func (c *Client) RecoverNode(ctx context.Context, token string, req api.NodeRegisterRequest) (*api.NodeCredentialsResponse, error) {
	var resp api.NodeCredentialsResponse
	if err := c.doRequest(ctx, http.MethodPost, pathNodeRecover, token, nil, req, &resp); err != nil {
		return nil, fmt.Errorf("recover node request failed: %w", err)
	}
	return &resp, nil
}

// NodeInfo получает информацию о ноде
func (c *Client) NodeInfo(ctx context.Context, token, password string) (*api.NodeInfoResponse, error) {
	var resp api.NodeInfoResponse
	headers := map[string]string{api.PasswordHeader: password}
	if err := c.doRequest(ctx, http.MethodGet, pathNodeInfo, token, headers, nil, &resp); err != nil {
		return nil, fmt.Errorf("node info request failed: %w", err)
	}
	return &resp, nil
}

// Balance получает баланс ноды
func (c *Client) Balance(ctx context.Context, token, password string) (*api.BalanceResponse, error) {
	var resp api.BalanceResponse
	headers := map[string]string{api.PasswordHeader: password}
	if err := c.doRequest(ctx, http.MethodGet, pathNodeBalance, token, headers, nil, &resp); err != nil {
		return nil, fmt.Errorf("balance request failed: %w", err)
	}
	return &resp, nil
}

// CreateOffer создает BOLT12 оффер
func (c *Client) CreateOffer(ctx context.Context, token string, req api.CreateOfferRequest) (*api.OfferResponse, error) {
	var resp api.OfferResponse
	if err := c.doRequest(ctx, http.MethodPost, pathNodeOffer, token, nil, req, &resp); err != nil {
		return nil, fmt.Errorf("create offer request failed: %w", err)
	}
	return &resp, nil
}

// Health проверяет доступность сервера
func (c *Client) Health(ctx context.Context) (map[string]string, error) {
	resp := map[string]string{}
	if err := c.doRequest(ctx, http.MethodGet, pathHealth, "", nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("health request failed: %w", err)
	}
	return resp, nil
}

// doRequest выполняет HTTP запрос
func (c *Client) doRequest(
	ctx context.Context,
	method, path, token string,
	headers map[string]string,
	body, result any,
) error {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil {
			switch {
			case errResp.Message != "":
				apiErr.Message = errResp.Message
			case errResp.Error != "":
				apiErr.Message = errResp.Error
			}
		}
		return apiErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
