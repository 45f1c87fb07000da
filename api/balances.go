package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Domenick1991/concertseats/internal/domain"
	"github.com/Domenick1991/concertseats/internal/service/balance"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type BalanceHandler struct {
	service balance.LedgerUseCase
}

type chargeRequest struct {
	UserID string          `json:"userId" binding:"required"`
	Amount decimal.Decimal `json:"amount"`
}

type balanceResponse struct {
	UserID    string `json:"userId"`
	Amount    string `json:"amount"`
	UpdatedAt string `json:"updatedAt"`
}

type transactionResponse struct {
	TransactionID string `json:"transactionId"`
	Type          string `json:"type"`
	Amount        string `json:"amount"`
	BalanceAfter  string `json:"balanceAfter"`
	Description   string `json:"description"`
	CreatedAt     string `json:"createdAt"`
}

func NewBalanceHandler(service balance.LedgerUseCase) *BalanceHandler {
	return &BalanceHandler{service: service}
}

func (h *BalanceHandler) Register(router *gin.RouterGroup) {
	router.POST("/charge", h.charge)
	router.GET("/:userId", h.get)
	router.GET("/:userId/transactions", h.transactions)
}

func (h *BalanceHandler) charge(c *gin.Context) {
	var req chargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if !requireOwner(c, req.UserID) {
		return
	}

	entry, err := h.service.ChargeBalance(c.Request.Context(), req.UserID, req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, newTransactionResponse(entry))
}

func (h *BalanceHandler) get(c *gin.Context) {
	userID := c.Param("userId")
	if !requireOwner(c, userID) {
		return
	}

	b, err := h.service.GetBalance(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, balanceResponse{
		UserID:    b.UserID,
		Amount:    b.Amount.String(),
		UpdatedAt: b.UpdatedAt.Format(time.RFC3339),
	})
}

func (h *BalanceHandler) transactions(c *gin.Context) {
	userID := c.Param("userId")
	if !requireOwner(c, userID) {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			abort(c, http.StatusBadRequest, "invalid_input", "invalid limit")
			return
		}
		limit = n
	}

	entries, err := h.service.ListTransactions(c.Request.Context(), userID, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]transactionResponse, 0, len(entries))
	for i := range entries {
		out = append(out, newTransactionResponse(&entries[i]))
	}
	c.JSON(http.StatusOK, gin.H{"userId": userID, "transactions": out})
}

func newTransactionResponse(t *domain.BalanceTransaction) transactionResponse {
	return transactionResponse{
		TransactionID: t.ID,
		Type:          string(t.Type),
		Amount:        t.Amount.String(),
		BalanceAfter:  t.BalanceAfter.String(),
		Description:   t.Description,
		CreatedAt:     t.CreatedAt.Format(time.RFC3339),
	}
}
