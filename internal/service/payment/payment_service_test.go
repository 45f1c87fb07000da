package payment

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Domenick1991/concertseats/internal/clock"
	"github.com/Domenick1991/concertseats/internal/domain"
	"github.com/Domenick1991/concertseats/internal/events"
	"github.com/Domenick1991/concertseats/internal/service/balance"
	"github.com/Domenick1991/concertseats/internal/service/reservation"
	"github.com/Domenick1991/concertseats/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	err    error
	events []domain.ReservationCompleted
	keys   []string
}

func (p *recordingPublisher) Publish(_ context.Context, _, key string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	if event, ok := payload.(domain.ReservationCompleted); ok {
		p.events = append(p.events, event)
	}
	return p.err
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys)
}

type fixture struct {
	db           *testutil.MemoryDB
	clock        *clock.Manual
	publisher    *recordingPublisher
	reservations *reservation.ReservationService
	service      *PaymentService
}

func newFixture(publisher events.Publisher) *fixture {
	db := testutil.NewMemoryDB()
	clk := clock.NewManual(testNow)
	recorder := &recordingPublisher{}
	if publisher == nil {
		publisher = recorder
	}

	ledger := balance.NewLedgerService(db.Balances(), db, balance.WithClock(clk))
	return &fixture{
		db:           db,
		clock:        clk,
		publisher:    recorder,
		reservations: reservation.NewReservationService(db.Reservations(), db.Seats(), db, testutil.NewMemoryLocker(), reservation.WithClock(clk)),
		service: NewPaymentService(db.Payments(), db.Reservations(), db.Seats(), ledger, db,
			WithClock(clk),
			WithPublisher(publisher, "reservation-events"),
		),
	}
}

// hold places user's hold on a fresh 50,000 seat.
func (f *fixture) hold(t *testing.T, userID string, seatNumber int) (*domain.Reservation, domain.Seat) {
	t.Helper()
	seat := f.db.AddSeat(1, seatNumber, 50_000)
	res, err := f.reservations.ReserveSeat(context.Background(), reservation.ReserveSeatInput{
		UserID:     userID,
		ConcertID:  1,
		SeatNumber: seatNumber,
	})
	require.NoError(t, err)
	return res, seat
}

func TestPaymentService_ProcessPayment(t *testing.T) {
	f := newFixture(nil)
	f.db.SetBalance("user-1", 100_000, testNow)
	res, seat := f.hold(t, "user-1", 10)
	f.clock.Advance(time.Minute)

	payment, err := f.service.ProcessPayment(context.Background(), ProcessPaymentInput{ReservationID: res.ID, UserID: "user-1"})
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentStatusCompleted, payment.Status)
	assert.True(t, payment.Amount.Equal(decimal.NewFromInt(50_000)))
	assert.Equal(t, res.ID, payment.ReservationID)

	stored := f.db.Reservation(res.ID)
	assert.Equal(t, domain.ReservationStatusConfirmed, stored.Status)
	require.NotNil(t, stored.ConfirmedAt)

	storedSeat := f.db.Seat(seat.ID)
	assert.Equal(t, domain.SeatStatusReserved, storedSeat.Status)
	assert.Nil(t, storedSeat.AssignedUserID)
	assert.Nil(t, storedSeat.AssignedUntil)

	assert.True(t, f.db.Balance("user-1").Equal(decimal.NewFromInt(50_000)))
	entries := f.db.LedgerEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, domain.TransactionTypePayment, entries[0].Type)

	require.Len(t, f.publisher.events, 1)
	event := f.publisher.events[0]
	assert.Equal(t, res.ID, f.publisher.keys[0])
	assert.Equal(t, domain.ReservationCompletedEvent, event.Type)
	assert.Equal(t, "user-1", event.UserID)
	assert.Equal(t, 10, event.SeatNumber)
	assert.Equal(t, testNow.Add(time.Minute), event.ReservedAt)

	found, err := f.service.GetPaymentByReservation(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.ID, found.ID)

	info, err := f.service.GetPaymentInfo(context.Background(), payment.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.ID, info.ID)
}

func TestPaymentService_ProcessPayment_InsufficientBalance(t *testing.T) {
	f := newFixture(nil)
	f.db.SetBalance("user-1", 30_000, testNow)
	res, seat := f.hold(t, "user-1", 10)

	_, err := f.service.ProcessPayment(context.Background(), ProcessPaymentInput{ReservationID: res.ID, UserID: "user-1"})

	var insufficient *domain.InsufficientBalanceError
	require.True(t, errors.As(err, &insufficient))
	assert.True(t, insufficient.Current.Equal(decimal.NewFromInt(30_000)))
	assert.True(t, insufficient.Required.Equal(decimal.NewFromInt(50_000)))

	assert.Equal(t, domain.ReservationStatusTemporarilyAssigned, f.db.Reservation(res.ID).Status)
	assert.Equal(t, domain.SeatStatusTemporarilyAssigned, f.db.Seat(seat.ID).Status)
	assert.True(t, f.db.Balance("user-1").Equal(decimal.NewFromInt(30_000)))
	assert.Empty(t, f.db.LedgerEntries())
	assert.Zero(t, f.db.PaymentCount())
	assert.Zero(t, f.publisher.count())
}

func TestPaymentService_ProcessPayment_Rejections(t *testing.T) {
	testCases := []struct {
		name    string
		prepare func(t *testing.T, f *fixture, res *domain.Reservation) ProcessPaymentInput
		want    error
	}{
		{
			name: "other user",
			prepare: func(t *testing.T, f *fixture, res *domain.Reservation) ProcessPaymentInput {
				return ProcessPaymentInput{ReservationID: res.ID, UserID: "user-2"}
			},
			want: domain.ErrUnauthorized,
		},
		{
			name: "unknown reservation",
			prepare: func(t *testing.T, f *fixture, res *domain.Reservation) ProcessPaymentInput {
				return ProcessPaymentInput{ReservationID: "missing", UserID: "user-1"}
			},
			want: domain.ErrNotFound,
		},
		{
			name: "missing input",
			prepare: func(t *testing.T, f *fixture, res *domain.Reservation) ProcessPaymentInput {
				return ProcessPaymentInput{ReservationID: res.ID}
			},
			want: domain.ErrInvalidInput,
		},
		{
			name: "hold expired",
			prepare: func(t *testing.T, f *fixture, res *domain.Reservation) ProcessPaymentInput {
				f.clock.Advance(5*time.Minute + time.Second)
				return ProcessPaymentInput{ReservationID: res.ID, UserID: "user-1"}
			},
			want: domain.ErrExpired,
		},
		{
			name: "cancelled reservation",
			prepare: func(t *testing.T, f *fixture, res *domain.Reservation) ProcessPaymentInput {
				_, err := f.reservations.CancelReservation(context.Background(), res.ID, "user-1")
				require.NoError(t, err)
				return ProcessPaymentInput{ReservationID: res.ID, UserID: "user-1"}
			},
			want: domain.ErrIllegalState,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(nil)
			f.db.SetBalance("user-1", 100_000, testNow)
			res, _ := f.hold(t, "user-1", 10)

			_, err := f.service.ProcessPayment(context.Background(), tc.prepare(t, f, res))
			assert.ErrorIs(t, err, tc.want)
			assert.True(t, f.db.Balance("user-1").Equal(decimal.NewFromInt(100_000)))
			assert.Zero(t, f.db.PaymentCount())
		})
	}
}

func TestPaymentService_ProcessPayment_PaidOnce(t *testing.T) {
	f := newFixture(nil)
	f.db.SetBalance("user-1", 500_000, testNow)
	res, _ := f.hold(t, "user-1", 10)

	const attempts = 10
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
	)
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.ProcessPayment(context.Background(), ProcessPaymentInput{ReservationID: res.ID, UserID: "user-1"})
			if err == nil {
				successes.Add(1)
				return
			}
			assert.ErrorIs(t, err, domain.ErrIllegalState)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, 1, f.db.PaymentCount())
	assert.True(t, f.db.Balance("user-1").Equal(decimal.NewFromInt(450_000)))
}

func TestPaymentService_ProcessPayment_PublishFailureKeepsPayment(t *testing.T) {
	failing := &recordingPublisher{err: errors.New("broker unavailable")}
	f := newFixture(events.NewAsync(failing, time.Second, nil))
	f.db.SetBalance("user-1", 100_000, testNow)
	res, _ := f.hold(t, "user-1", 10)

	payment, err := f.service.ProcessPayment(context.Background(), ProcessPaymentInput{ReservationID: res.ID, UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, payment.Status)

	assert.Eventually(t, func() bool { return failing.count() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, domain.ReservationStatusConfirmed, f.db.Reservation(res.ID).Status)
}

func TestPaymentService_RefundPayment(t *testing.T) {
	f := newFixture(nil)
	f.db.SetBalance("user-1", 100_000, testNow)
	res, seat := f.hold(t, "user-1", 10)
	ctx := context.Background()

	payment, err := f.service.ProcessPayment(ctx, ProcessPaymentInput{ReservationID: res.ID, UserID: "user-1"})
	require.NoError(t, err)

	_, err = f.service.RefundPayment(ctx, RefundPaymentInput{PaymentID: payment.ID, UserID: "user-2"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	refunded, err := f.service.RefundPayment(ctx, RefundPaymentInput{PaymentID: payment.ID, UserID: "user-1", Reason: "show moved"})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCancelled, refunded.Status)

	assert.True(t, f.db.Balance("user-1").Equal(decimal.NewFromInt(100_000)))
	assert.Equal(t, domain.ReservationStatusCancelled, f.db.Reservation(res.ID).Status)
	assert.Equal(t, domain.SeatStatusReserved, f.db.Seat(seat.ID).Status)

	entries := f.db.LedgerEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, domain.TransactionTypeRefund, entries[1].Type)
	assert.Equal(t, "show moved", entries[1].Description)

	_, err = f.service.RefundPayment(ctx, RefundPaymentInput{PaymentID: payment.ID, UserID: "user-1"})
	assert.ErrorIs(t, err, domain.ErrIllegalState)

	_, err = f.service.RefundPayment(ctx, RefundPaymentInput{PaymentID: "missing", UserID: "user-1"})
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)
}

func TestPaymentService_ProcessPayment_InvalidatesSeatMap(t *testing.T) {
	f := newFixture(nil)
	seatCache := testutil.NewMemorySeatCache()
	f.service.seatMaps = seatCache
	f.db.SetBalance("user-1", 100_000, testNow)
	res, seat := f.hold(t, "user-1", 10)
	ctx := context.Background()

	require.NoError(t, seatCache.SetSeats(ctx, seat.ConcertID, []domain.Seat{seat}))
	_, err := f.service.ProcessPayment(ctx, ProcessPaymentInput{ReservationID: res.ID, UserID: "user-2"})
	require.Error(t, err)
	assert.True(t, seatCache.Cached(seat.ConcertID))

	_, err = f.service.ProcessPayment(ctx, ProcessPaymentInput{ReservationID: res.ID, UserID: "user-1"})
	require.NoError(t, err)
	assert.False(t, seatCache.Cached(seat.ConcertID))
}
