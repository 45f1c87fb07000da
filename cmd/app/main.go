package main

import (
	"context"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/concertseats/api"
	"github.com/Domenick1991/concertseats/config"
	"github.com/Domenick1991/concertseats/internal/bootstrap"
	"github.com/Domenick1991/concertseats/internal/cache"
	"github.com/Domenick1991/concertseats/internal/events"
	"github.com/Domenick1991/concertseats/internal/kafka"
	"github.com/Domenick1991/concertseats/internal/lock"
	"github.com/Domenick1991/concertseats/internal/queue"
	"github.com/Domenick1991/concertseats/internal/rabbitmq"
	"github.com/Domenick1991/concertseats/internal/repository"
	"github.com/Domenick1991/concertseats/internal/service/balance"
	"github.com/Domenick1991/concertseats/internal/service/payment"
	"github.com/Domenick1991/concertseats/internal/service/reservation"
	"github.com/Domenick1991/concertseats/internal/service/seats"
	"github.com/Domenick1991/concertseats/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := bootstrap.LoadConfig("concertseats-api", os.Args[1:])
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := bootstrap.NewLogger(cfg.Log, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("ping postgres: %v", err)
	}

	if cfg.Database.MigrateOnStart {
		if err := migrations.Apply(ctx, pool); err != nil {
			log.Fatalf("apply migrations: %v", err)
		}
	}

	redisClient := lock.NewRedisClient(cfg.Redis)
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	admission := queue.NewRedisQueue(redisClient,
		queue.WithMaxActive(cfg.Queue.MaxActiveUsers),
		queue.WithTokenTTL(cfg.Queue.TokenTTL()),
		queue.WithWaitPerUser(cfg.Queue.WaitPerUser()),
		queue.WithLogger(logger),
	)

	seatRepo := repository.NewSeatRepository(pool)
	reservationRepo := repository.NewReservationRepository(pool)
	paymentRepo := repository.NewPaymentRepository(pool)
	balanceRepo := repository.NewBalanceRepository(pool)
	tx := repository.NewTransactor(pool)

	ledger := balance.NewLedgerService(balanceRepo, tx, balance.WithLogger(logger))

	reservationOpts := []reservation.ReservationServiceOption{
		reservation.WithHoldDuration(cfg.Reservation.HoldDuration()),
		reservation.WithLockTTL(cfg.Reservation.LockTTL()),
		reservation.WithLogger(logger),
	}
	seatOpts := []seats.SeatServiceOption{seats.WithLogger(logger)}
	paymentOpts := []payment.PaymentServiceOption{payment.WithLogger(logger)}
	if ttl := cfg.Cache.SeatMapTTL(); ttl > 0 {
		seatMaps := cache.NewRedisCache(redisClient, ttl)
		seatOpts = append(seatOpts, seats.WithCache(seatMaps))
		reservationOpts = append(reservationOpts, reservation.WithSeatMapInvalidator(seatMaps))
		paymentOpts = append(paymentOpts, payment.WithSeatMapInvalidator(seatMaps))
	}

	reservationService := reservation.NewReservationService(
		reservationRepo,
		seatRepo,
		tx,
		lock.NewRedisLock(redisClient, lock.WithLogger(logger)),
		reservationOpts...,
	)
	seatService := seats.NewSeatService(seatRepo, seatOpts...)

	transport, closeTransport, err := newPublisher(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("events transport: %v", err)
	}
	defer closeTransport.Close()

	async := events.NewAsync(transport, cfg.Events.Timeout(), logger)
	defer async.Wait()

	paymentOpts = append(paymentOpts, payment.WithPublisher(async, cfg.Kafka.ReservationTopic))
	paymentService := payment.NewPaymentService(
		paymentRepo,
		reservationRepo,
		seatRepo,
		ledger,
		tx,
		paymentOpts...,
	)

	router := api.NewRouter(api.Services{
		Queue:        admission,
		Seats:        seatService,
		Reservations: reservationService,
		Payments:     paymentService,
		Ledger:       ledger,
	}, logger)

	if err := bootstrap.Run(ctx, cfg, router, logger); err != nil {
		logger.Error("http server stopped", "error", err)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func newPublisher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (events.Publisher, io.Closer, error) {
	switch cfg.Events.Transport {
	case "kafka":
		producer := kafka.NewProducer(cfg.Kafka.Brokers, logger, kafka.WithRetryBackoff(cfg.Events.RetryBackoff()))
		if err := producer.CheckConnection(ctx); err != nil {
			logger.Warn("kafka unreachable at startup", "error", err)
		}
		retrying := producer.Retrying(cfg.Events.PublishAttempts)
		return retrying, retrying, nil
	case "rabbitmq":
		publisher, err := rabbitmq.NewPublisher(cfg.Events.RabbitMQURL, cfg.Events.Exchange, logger)
		if err != nil {
			return nil, nil, err
		}
		return publisher, publisher, nil
	default:
		logger.Warn("events transport disabled, purchase events are dropped")
		return events.Noop{}, nopCloser{}, nil
	}
}
