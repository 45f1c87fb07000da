package api

import (
	"net/http"
	"time"

	"github.com/Domenick1991/concertseats/internal/domain"
	"github.com/Domenick1991/concertseats/internal/queue"
	"github.com/gin-gonic/gin"
)

type QueueHandler struct {
	queue queue.AdmissionQueue
}

type issueTokenRequest struct {
	UserID            string `json:"userId" binding:"required"`
	SessionID         string `json:"sessionId"`
	DeviceFingerprint string `json:"deviceFingerprint"`
}

type validateTokenResponse struct {
	Valid bool `json:"valid"`
}

type tokenResponse struct {
	Token                string `json:"token"`
	UserID               string `json:"userId"`
	Status               string `json:"status"`
	QueuePosition        *int   `json:"queuePosition,omitempty"`
	EstimatedWaitMinutes int    `json:"estimatedWaitMinutes"`
	IssuedAt             string `json:"issuedAt"`
	ExpiresAt            string `json:"expiresAt"`
}

func NewQueueHandler(queue queue.AdmissionQueue) *QueueHandler {
	return &QueueHandler{queue: queue}
}

func (h *QueueHandler) Register(router *gin.RouterGroup) {
	router.POST("/tokens", h.issue)
	router.GET("/tokens/:token", h.status)
	router.POST("/validate", h.validate)
}

func (h *QueueHandler) issue(c *gin.Context) {
	var req issueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	token, err := h.queue.IssueTokenWithSession(c.Request.Context(), req.UserID, queue.ClientInfo{
		SessionID:         req.SessionID,
		DeviceFingerprint: req.DeviceFingerprint,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newTokenResponse(token))
}

func (h *QueueHandler) status(c *gin.Context) {
	token, err := h.queue.GetStatus(c.Request.Context(), c.Param("token"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, newTokenResponse(token))
}

func (h *QueueHandler) validate(c *gin.Context) {
	token, ok := bearerToken(c)
	if !ok {
		return
	}

	valid, err := h.queue.ValidateActiveToken(c.Request.Context(), token)
	if err != nil {
		writeError(c, err)
		return
	}
	if !valid {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{
			Error: "queue token is not active",
			Code:  "inactive_token",
		})
		return
	}

	c.JSON(http.StatusOK, validateTokenResponse{Valid: true})
}

func newTokenResponse(t *domain.QueueToken) tokenResponse {
	return tokenResponse{
		Token:                t.Token,
		UserID:               t.UserID,
		Status:               string(t.Status),
		QueuePosition:        t.QueuePosition,
		EstimatedWaitMinutes: t.EstimatedWaitMinutes,
		IssuedAt:             t.IssuedAt.Format(time.RFC3339),
		ExpiresAt:            t.ExpiresAt.Format(time.RFC3339),
	}
}
