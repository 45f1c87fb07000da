package api

import (
	"log/slog"
	"net/http"

	"github.com/Domenick1991/concertseats/internal/queue"
	"github.com/Domenick1991/concertseats/internal/service/balance"
	"github.com/Domenick1991/concertseats/internal/service/payment"
	"github.com/Domenick1991/concertseats/internal/service/reservation"
	"github.com/Domenick1991/concertseats/internal/service/seats"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Services struct {
	Queue        queue.AdmissionQueue
	Seats        seats.SeatUseCase
	Reservations reservation.ReservationUseCase
	Payments     payment.PaymentUseCase
	Ledger       balance.LedgerUseCase
}

// NewRouter wires every handler under /api/v1. Everything except the queue
// endpoints sits behind the admission token gate.
func NewRouter(svc Services, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	NewQueueHandler(svc.Queue).Register(v1.Group("/queue"))

	gated := v1.Group("", TokenGate(svc.Queue))
	NewSeatHandler(svc.Seats).Register(gated.Group("/concerts"))
	NewReservationHandler(svc.Reservations).Register(gated.Group("/reservations"))
	payments := NewPaymentHandler(svc.Payments)
	payments.Register(gated.Group("/payments"))
	payments.RegisterByReservation(gated.Group("/reservations"))
	NewBalanceHandler(svc.Ledger).Register(gated.Group("/balances"))

	return router
}
