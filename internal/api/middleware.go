// internal/api/middleware.go
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-launchpad/internal/blockchain"
	"github.com/rovshanmuradov/solana-launchpad/internal/dex"
	"github.com/rovshanmuradov/solana-launchpad/internal/metadata"
	"github.com/rovshanmuradov/solana-launchpad/internal/types"
)

// Сообщение для клиента при ошибках сети и цепочки.
const genericFailure = "request failed, please try again"

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.Error("Request failed", fields...)
		case c.Writer.Status() >= http.StatusBadRequest:
			logger.Warn("Request rejected", fields...)
		default:
			logger.Debug("Request served", fields...)
		}
	}
}

func recoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		logger.Error("Panic in handler", zap.Any("panic", recovered), zap.String("path", c.Request.URL.Path))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	})
}

// statusFor сопоставляет ошибку с HTTP-статусом.
func statusFor(err error) int {
	switch {
	case types.IsValidationError(err):
		return http.StatusBadRequest
	case errors.Is(err, blockchain.ErrAccountNotFound),
		errors.Is(err, blockchain.ErrNotMint),
		errors.Is(err, metadata.ErrNotFound),
		errors.Is(err, dex.ErrPoolNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

// respondError пишет ошибку. Детали 502 остаются только в логе.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	_ = c.Error(err)
	msg := err.Error()
	if status == http.StatusBadGateway {
		msg = genericFailure
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
