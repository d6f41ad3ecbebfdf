// internal/api/server.go
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-launchpad/internal/dex"
	"github.com/rovshanmuradov/solana-launchpad/internal/portfolio"
	"github.com/rovshanmuradov/solana-launchpad/internal/token"
	"github.com/rovshanmuradov/solana-launchpad/internal/types"
)

// Dashboard - состояние списка токенов пользователя.
type Dashboard interface {
	Owner() solana.PublicKey
	Refresh(ctx context.Context) ([]portfolio.TokenRecord, error)
	Snapshot() portfolio.Snapshot
	Lookup(ctx context.Context, mint solana.PublicKey) (portfolio.TokenRecord, bool, error)
}

// TokenService - операции с токенами.
type TokenService interface {
	CreateToken(ctx context.Context, info types.TokenInfo) (*token.CreateResult, error)
	AttachMetadata(ctx context.Context, mint solana.PublicKey, name, symbol, uri string) (solana.Signature, error)
	MintTokens(ctx context.Context, mint solana.PublicKey, amount string) (solana.Signature, error)
	TransferTokens(ctx context.Context, mint, to solana.PublicKey, amount string) (solana.Signature, error)
}

// Deps - сервисы, которые обслуживает API.
type Deps struct {
	Dashboard Dashboard
	Tokens    TokenService
	AMM       dex.Service
	// Metrics - обработчик /metrics, обычно promhttp.HandlerFor.
	Metrics http.Handler
	Logger  *zap.Logger
}

type Config struct {
	Addr        string
	CORSOrigins []string
}

// NewRouter собирает gin-роутер с маршрутами /api/v1.
func NewRouter(deps Deps, cfg Config) *gin.Engine {
	logger := deps.Logger.Named("api")
	h := &handler{deps: deps, logger: logger}

	router := gin.New()
	router.Use(corsMiddleware(cfg.CORSOrigins))
	router.Use(zapLoggerMiddleware(logger))
	router.Use(recoveryMiddleware(logger))

	router.GET("/healthz", h.health)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/tokens", h.listTokens)
		v1.POST("/tokens/refresh", h.refreshTokens)
		v1.POST("/tokens/lookup", h.lookupToken)
		v1.POST("/tokens", h.createToken)
		v1.POST("/tokens/:mint/metadata", h.attachMetadata)
		v1.POST("/tokens/:mint/mint", h.mintTokens)
		v1.POST("/tokens/:mint/transfer", h.transferTokens)

		v1.GET("/amm", h.ammInfo)
		v1.POST("/launch", h.launch)
		v1.GET("/pools", h.listPools)
		v1.GET("/pools/check/:mint", h.checkPool)
		v1.POST("/pools", h.createPool)
		v1.POST("/pools/:id/liquidity", h.addLiquidity)
		v1.DELETE("/pools/:id/liquidity", h.removeLiquidity)
		v1.POST("/swap/quote", h.quote)
		v1.POST("/swap", h.swap)
	}
	return router
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	return cors.New(corsConfig)
}

// Server - HTTP-сервер API.
type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

func NewServer(deps Deps, cfg Config) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           NewRouter(deps, cfg),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: deps.Logger.Named("api"),
	}
}

// Run обслуживает запросы до отмены ctx, затем корректно останавливается.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server starting", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}
