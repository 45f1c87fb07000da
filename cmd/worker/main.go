package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/concertseats/internal/bootstrap"
	"github.com/Domenick1991/concertseats/internal/cache"
	"github.com/Domenick1991/concertseats/internal/kafka"
	"github.com/Domenick1991/concertseats/internal/lock"
	"github.com/Domenick1991/concertseats/internal/notify"
	"github.com/Domenick1991/concertseats/internal/queue"
	"github.com/Domenick1991/concertseats/internal/repository"
	"github.com/Domenick1991/concertseats/internal/service/reservation"
	"github.com/Domenick1991/concertseats/internal/worker"
	"github.com/jackc/pgx/v5/pgxpool"
	kafkaGo "github.com/segmentio/kafka-go"
)

func main() {
	cfg, err := bootstrap.LoadConfig("concertseats-worker", os.Args[1:])
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

	redisClient := lock.NewRedisClient(cfg.Redis)
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	reservationOpts := []reservation.ReservationServiceOption{
		reservation.WithHoldDuration(cfg.Reservation.HoldDuration()),
		reservation.WithLockTTL(cfg.Reservation.LockTTL()),
		reservation.WithLogger(logger),
	}
	if ttl := cfg.Cache.SeatMapTTL(); ttl > 0 {
		reservationOpts = append(reservationOpts, reservation.WithSeatMapInvalidator(cache.NewRedisCache(redisClient, ttl)))
	}
	reservationService := reservation.NewReservationService(
		repository.NewReservationRepository(pool),
		repository.NewSeatRepository(pool),
		repository.NewTransactor(pool),
		lock.NewRedisLock(redisClient, lock.WithLogger(logger)),
		reservationOpts...,
	)

	admission := queue.NewRedisQueue(redisClient,
		queue.WithMaxActive(cfg.Queue.MaxActiveUsers),
		queue.WithTokenTTL(cfg.Queue.TokenTTL()),
		queue.WithWaitPerUser(cfg.Queue.WaitPerUser()),
		queue.WithLogger(logger),
	)

	if cfg.Events.Transport == "kafka" {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.ReservationTopic, logger)
		defer consumer.Close()

		sender := notify.NewSender(logger)
		go func() {
			if err := consumer.Consume(ctx, func(ctx context.Context, msg kafkaGo.Message) error {
				return sender.Handle(ctx, msg.Value)
			}); err != nil {
				logger.Error("notification consumer stopped", "error", err)
			}
		}()
	}

	w := worker.New(reservationService,
		worker.WithQueue(admission),
		worker.WithSweepInterval(cfg.Worker.ExpirationSweep()),
		worker.WithActivationInterval(cfg.Queue.ActivationInterval()),
		worker.WithLogger(logger),
	)

	if err := w.Run(ctx); err != nil {
		logger.Error("worker failed", "error", err)
	}
}
