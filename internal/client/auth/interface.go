package auth

import (
	"context"

	pkgapi "github.com/iudanet/nodekeeper/pkg/api"
)

// APIClient - часть HTTP клиента, нужная для аутентификации
type APIClient interface {
	Signup(ctx context.Context, req pkgapi.SignupRequest) (*pkgapi.SignupResponse, error)
	Login(ctx context.Context, req pkgapi.LoginRequest) (*pkgapi.LoginResponse, error)
}
