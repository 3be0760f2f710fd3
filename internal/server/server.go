// Package server собирает HTTP маршруты и управляет жизненным циклом http.Server.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/iudanet/nodekeeper/internal/server/handlers"
	"github.com/iudanet/nodekeeper/internal/server/middleware"
	"github.com/iudanet/nodekeeper/internal/server/storage"
)

// Пути API
const (
	PathHealth       = "/api/v1/health"
	PathSignup       = "/api/v1/auth/register"
	PathLogin        = "/api/v1/auth/login"
	PathNodeRegister = "/api/v1/node/register"
	PathNodeRecover  = "/api/v1/node/recover"
	PathNodeInfo     = "/api/v1/node/info"
	PathNodeBalance  = "/api/v1/node/balance"
	PathNodeOffer    = "/api/v1/node/offer"
	PathWS           = "/api/v1/ws"
)

// Lifecycle - операции, которые сервер отдает наружу
type Lifecycle interface {
	handlers.AccountService
	handlers.NodeService
}

// RouterConfig - зависимости маршрутизатора
type RouterConfig struct {
	Logger       *slog.Logger
	Lifecycle    Lifecycle
	Tokens       handlers.TokenVerifier
	DB           storage.Pinger
	Version      string
	AuthRequests int
	AuthWindow   time.Duration
}

// NewRouter создает http.Handler со всеми маршрутами и middleware.
// Возвращаемая функция останавливает фоновые горутины rate limiter.
func NewRouter(cfg RouterConfig) (http.Handler, func()) {
	authHandler := handlers.NewAuthHandler(cfg.Logger, cfg.Lifecycle)
	nodeHandler := handlers.NewNodeHandler(cfg.Logger, cfg.Lifecycle)
	wsHandler := handlers.NewWSHandler(cfg.Logger, cfg.Lifecycle, cfg.Tokens)
	healthHandler := handlers.NewHealthHandler(cfg.Logger, cfg.DB, cfg.Version)

	requireAuth := middleware.AuthMiddleware(cfg.Logger, cfg.Tokens)

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+PathHealth, healthHandler.Health)
	mux.HandleFunc("POST "+PathSignup, authHandler.Register)
	mux.HandleFunc("POST "+PathLogin, authHandler.Login)
	mux.Handle("POST "+PathNodeRegister, requireAuth(http.HandlerFunc(nodeHandler.Register)))
	mux.Handle("POST "+PathNodeRecover, requireAuth(http.HandlerFunc(nodeHandler.Recover)))
	mux.Handle("GET "+PathNodeInfo, requireAuth(http.HandlerFunc(nodeHandler.Info)))
	mux.Handle("GET "+PathNodeBalance, requireAuth(http.HandlerFunc(nodeHandler.Balance)))
	mux.Handle("POST "+PathNodeOffer, requireAuth(http.HandlerFunc(nodeHandler.CreateOffer)))
	// токен WebSocket проверяется в самом handler, он приходит в query
	mux.HandleFunc("GET "+PathWS, wsHandler.Serve)

	limiter := middleware.NewPathLimiter([]middleware.PathRateLimit{
		{Path: PathSignup, Rate: cfg.AuthRequests, Window: cfg.AuthWindow},
		{Path: PathLogin, Rate: cfg.AuthRequests, Window: cfg.AuthWindow},
	}, cfg.Logger)

	// recovery -> logging -> rate limit -> mux
	var h http.Handler = mux
	h = limiter.Middleware(h)
	h = middleware.LoggingWithSkip(cfg.Logger, []string{PathHealth})(h)
	h = middleware.RecoveryMiddleware(cfg.Logger)(h)

	return h, limiter.Stop
}

// Server - HTTP сервер с graceful shutdown
type Server struct {
	logger          *slog.Logger
	httpServer      *http.Server
	shutdownTimeout time.Duration
}

// New создает сервер на адресе addr
func New(logger *slog.Logger, addr string, handler http.Handler, shutdownTimeout time.Duration) *Server {
	return &Server{
		logger: logger,
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		shutdownTimeout: shutdownTimeout,
	}
}

// Run обслуживает запросы до отмены ctx, затем дожидается завершения активных запросов
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve - как Run, но на готовом listener
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server started", slog.String("addr", ln.Addr().String()))
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
