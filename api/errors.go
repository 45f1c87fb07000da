package api

import (
	"errors"
	"net/http"

	"github.com/Domenick1991/concertseats/internal/domain"
	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Error    string `json:"error"`
	Code     string `json:"code"`
	Current  string `json:"current,omitempty"`
	Required string `json:"required,omitempty"`
}

// writeError maps a service error onto a status code and a stable error code.
// Unclassified errors become 500 without details; the cause stays on the
// gin context for the request logger.
func writeError(c *gin.Context, err error) {
	_ = c.Error(err)

	var insufficient *domain.InsufficientBalanceError
	switch {
	case errors.As(err, &insufficient):
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{
			Error:    err.Error(),
			Code:     "insufficient_balance",
			Current:  insufficient.Current.String(),
			Required: insufficient.Required.String(),
		})
	case errors.Is(err, domain.ErrNotFound):
		abort(c, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrExpired):
		abort(c, http.StatusGone, "expired", err.Error())
	case errors.Is(err, domain.ErrBusy):
		c.Header("Retry-After", "1")
		abort(c, http.StatusServiceUnavailable, "busy", err.Error())
	case errors.Is(err, domain.ErrSeatTaken):
		abort(c, http.StatusConflict, "seat_taken", err.Error())
	case errors.Is(err, domain.ErrInsufficientBalance):
		abort(c, http.StatusBadRequest, "insufficient_balance", err.Error())
	case errors.Is(err, domain.ErrInvalidAmount):
		abort(c, http.StatusBadRequest, "invalid_amount", err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		abort(c, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		abort(c, http.StatusForbidden, "unauthorized", err.Error())
	case errors.Is(err, domain.ErrAccessDenied):
		abort(c, http.StatusTooManyRequests, "queue_access_denied", err.Error())
	case errors.Is(err, domain.ErrIllegalState):
		abort(c, http.StatusConflict, "illegal_state", err.Error())
	default:
		abort(c, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, errorResponse{Error: msg, Code: code})
}

func badRequest(c *gin.Context, err error) {
	abort(c, http.StatusBadRequest, "invalid_input", err.Error())
}
