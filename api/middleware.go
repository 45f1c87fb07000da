package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Domenick1991/concertseats/internal/domain"
	"github.com/Domenick1991/concertseats/internal/metrics"
	"github.com/gin-gonic/gin"
)

const tokenOwnerKey = "queueTokenOwner"

type TokenStatusReader interface {
	GetStatus(ctx context.Context, token string) (*domain.QueueToken, error)
}

// TokenGate admits requests that carry an ACTIVE admission token in
// "Authorization: Bearer <token>" and records the token's owner.
func TokenGate(tokens TokenStatusReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			return
		}

		status, err := tokens.GetStatus(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrExpired) {
				abort(c, http.StatusForbidden, "inactive_token", "queue token is not active")
				return
			}
			writeError(c, err)
			return
		}
		if status.Status != domain.QueueStatusActive {
			abort(c, http.StatusForbidden, "inactive_token", "queue token is not active")
			return
		}

		c.Set(tokenOwnerKey, status.UserID)
		c.Next()
	}
}

// bearerToken reads "Authorization: Bearer <token>". It aborts the request
// and reports false when the header is missing or malformed.
func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		abort(c, http.StatusUnauthorized, "missing_token", "queue token is required")
		return "", false
	}

	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		abort(c, http.StatusBadRequest, "malformed_token", "expected Authorization: Bearer <token>")
		return "", false
	}
	return token, true
}

// tokenOwner returns the user the admitted token belongs to.
func tokenOwner(c *gin.Context) string {
	return c.GetString(tokenOwnerKey)
}

// requireOwner rejects the request unless userID is the token's owner.
func requireOwner(c *gin.Context, userID string) bool {
	if userID != tokenOwner(c) {
		abort(c, http.StatusForbidden, "unauthorized", "queue token belongs to another user")
		return false
	}
	return true
}

// RequestLogger logs one line per request and feeds the HTTP metrics.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		latency := time.Since(start)

		metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		metrics.HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(latency.Seconds())

		attrs := []any{
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", status),
			slog.Duration("latency", latency),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("error", c.Errors.String()))
		}

		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("http request", attrs...)
		case status >= http.StatusBadRequest:
			logger.Warn("http request", attrs...)
		default:
			logger.Info("http request", attrs...)
		}
	}
}
