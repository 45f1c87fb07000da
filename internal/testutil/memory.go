package testutil

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/Domenick1991/concertseats/internal/domain"
	"github.com/Domenick1991/concertseats/internal/repository"
	"github.com/shopspring/decimal"
)

// MemoryDB is an in-memory stand-in for the Postgres repositories. WithTx
// serializes transactions, joins nested calls and rolls back on error, which
// is enough to reproduce the row-lock behaviour services depend on.
type MemoryDB struct {
	txMu sync.Mutex
	mu   sync.Mutex

	nextSeatID   int64
	seats        map[int64]domain.Seat
	reservations map[string]domain.Reservation
	balances     map[string]domain.Balance
	ledger       []domain.BalanceTransaction
	payments     map[string]domain.Payment
}

type memTxKey struct{}

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		seats:        make(map[int64]domain.Seat),
		reservations: make(map[string]domain.Reservation),
		balances:     make(map[string]domain.Balance),
		payments:     make(map[string]domain.Payment),
	}
}

func (db *MemoryDB) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}

	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mu.Lock()
	snapshot := db.snapshot()
	db.mu.Unlock()

	txCtx, committed := repository.TrackCommit(context.WithValue(ctx, memTxKey{}, true))
	if err := fn(txCtx); err != nil {
		db.mu.Lock()
		db.restore(snapshot)
		db.mu.Unlock()
		return err
	}
	committed()
	return nil
}

type memSnapshot struct {
	seats        map[int64]domain.Seat
	reservations map[string]domain.Reservation
	balances     map[string]domain.Balance
	ledger       []domain.BalanceTransaction
	payments     map[string]domain.Payment
}

func (db *MemoryDB) snapshot() memSnapshot {
	return memSnapshot{
		seats:        maps.Clone(db.seats),
		reservations: maps.Clone(db.reservations),
		balances:     maps.Clone(db.balances),
		ledger:       slices.Clone(db.ledger),
		payments:     maps.Clone(db.payments),
	}
}

func (db *MemoryDB) restore(s memSnapshot) {
	db.seats = s.seats
	db.reservations = s.reservations
	db.balances = s.balances
	db.ledger = s.ledger
	db.payments = s.payments
}

// AddSeat stores an available seat and returns it with its assigned ID.
func (db *MemoryDB) AddSeat(concertID int64, seatNumber int, price int64) domain.Seat {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.nextSeatID++
	seat := domain.Seat{
		ID:         db.nextSeatID,
		ConcertID:  concertID,
		SeatNumber: seatNumber,
		Price:      decimal.NewFromInt(price),
		Status:     domain.SeatStatusAvailable,
	}
	db.seats[seat.ID] = seat
	return seat
}

// SetBalance overwrites a user's balance without writing a ledger entry.
func (db *MemoryDB) SetBalance(userID string, amount int64, now time.Time) {
	db.mu.Lock()
	defer db.mu.Unlock()
	b := domain.NewBalance(userID, now)
	b.Amount = decimal.NewFromInt(amount)
	db.balances[userID] = *b
}

func (db *MemoryDB) Seat(id int64) domain.Seat {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.seats[id]
}

func (db *MemoryDB) Reservation(id string) domain.Reservation {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.reservations[id]
}

func (db *MemoryDB) ReservationsBySeat(seatID int64) []domain.Reservation {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []domain.Reservation
	for _, r := range db.reservations {
		if r.SeatID == seatID {
			out = append(out, r)
		}
	}
	return out
}

func (db *MemoryDB) Balance(userID string) decimal.Decimal {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.balances[userID].Amount
}

func (db *MemoryDB) LedgerEntries() []domain.BalanceTransaction {
	db.mu.Lock()
	defer db.mu.Unlock()
	return slices.Clone(db.ledger)
}

func (db *MemoryDB) PaymentCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.payments)
}

func (db *MemoryDB) Seats() repository.SeatRepository {
	return memSeats{db}
}

func (db *MemoryDB) Reservations() repository.ReservationRepository {
	return memReservations{db}
}

func (db *MemoryDB) Balances() repository.BalanceRepository {
	return memBalances{db}
}

func (db *MemoryDB) Payments() repository.PaymentRepository {
	return memPayments{db}
}

type memSeats struct{ db *MemoryDB }

func (r memSeats) GetByID(_ context.Context, id int64) (*domain.Seat, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	seat, ok := r.db.seats[id]
	if !ok {
		return nil, domain.ErrSeatNotFound
	}
	return &seat, nil
}

func (r memSeats) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Seat, error) {
	return r.GetByID(ctx, id)
}

func (r memSeats) GetByConcertAndNumberForUpdate(_ context.Context, concertID int64, seatNumber int) (*domain.Seat, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, seat := range r.db.seats {
		if seat.ConcertID == concertID && seat.SeatNumber == seatNumber {
			return &seat, nil
		}
	}
	return nil, domain.ErrSeatNotFound
}

func (r memSeats) ListByConcert(_ context.Context, concertID int64) ([]domain.Seat, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []domain.Seat
	for _, seat := range r.db.seats {
		if seat.ConcertID == concertID {
			out = append(out, seat)
		}
	}
	slices.SortFunc(out, func(a, b domain.Seat) int { return a.SeatNumber - b.SeatNumber })
	return out, nil
}

func (r memSeats) Update(_ context.Context, seat *domain.Seat) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.seats[seat.ID]; !ok {
		return domain.ErrSeatNotFound
	}
	r.db.seats[seat.ID] = *seat
	return nil
}

type memReservations struct{ db *MemoryDB }

func (r memReservations) Create(_ context.Context, res *domain.Reservation) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.reservations {
		if existing.SeatID == res.SeatID && existing.IsTemporarilyAssigned() {
			return domain.ErrSeatTaken
		}
	}
	r.db.reservations[res.ID] = *res
	return nil
}

func (r memReservations) GetByID(_ context.Context, id string) (*domain.Reservation, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	res, ok := r.db.reservations[id]
	if !ok {
		return nil, domain.ErrReservationNotFound
	}
	return &res, nil
}

func (r memReservations) GetByIDForUpdate(ctx context.Context, id string) (*domain.Reservation, error) {
	return r.GetByID(ctx, id)
}

func (r memReservations) UpdateStatus(_ context.Context, res *domain.Reservation, from domain.ReservationStatus) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	current, ok := r.db.reservations[res.ID]
	if !ok || current.Status != from {
		return false, nil
	}
	current.Status = res.Status
	current.ConfirmedAt = res.ConfirmedAt
	r.db.reservations[res.ID] = current
	return true, nil
}

func (r memReservations) ListExpiredHolds(_ context.Context, now time.Time, limit int) ([]domain.Reservation, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []domain.Reservation
	for _, res := range r.db.reservations {
		if res.IsTemporarilyAssigned() && res.ExpiresAt.Before(now) {
			out = append(out, res)
		}
	}
	slices.SortFunc(out, func(a, b domain.Reservation) int { return a.ExpiresAt.Compare(b.ExpiresAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memReservations) ExpireHoldsForSeat(_ context.Context, seatID int64, now time.Time) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for id, res := range r.db.reservations {
		if res.SeatID == seatID && res.IsTemporarilyAssigned() && res.ExpiresAt.Before(now) {
			res.Status = domain.ReservationStatusExpired
			r.db.reservations[id] = res
			n++
		}
	}
	return n, nil
}

type memBalances struct{ db *MemoryDB }

func (r memBalances) GetForUpdate(_ context.Context, userID string, now time.Time) (*domain.Balance, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	b, ok := r.db.balances[userID]
	if !ok {
		b = *domain.NewBalance(userID, now)
		r.db.balances[userID] = b
	}
	return &b, nil
}

func (r memBalances) Get(_ context.Context, userID string) (*domain.Balance, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	b, ok := r.db.balances[userID]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (r memBalances) Update(_ context.Context, b *domain.Balance) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.balances[b.UserID] = *b
	return nil
}

func (r memBalances) AppendTransaction(_ context.Context, tx *domain.BalanceTransaction) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.ledger = append(r.db.ledger, *tx)
	return nil
}

func (r memBalances) ListTransactions(_ context.Context, userID string, limit int) ([]domain.BalanceTransaction, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []domain.BalanceTransaction
	for i := len(r.db.ledger) - 1; i >= 0 && len(out) < limit; i-- {
		if r.db.ledger[i].UserID == userID {
			out = append(out, r.db.ledger[i])
		}
	}
	return out, nil
}

type memPayments struct{ db *MemoryDB }

func (r memPayments) Create(_ context.Context, p *domain.Payment) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.payments {
		if existing.ReservationID == p.ReservationID {
			return fmt.Errorf("%w: reservation %s already paid", domain.ErrIllegalState, p.ReservationID)
		}
	}
	r.db.payments[p.ID] = *p
	return nil
}

func (r memPayments) GetByID(_ context.Context, id string) (*domain.Payment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.payments[id]
	if !ok {
		return nil, domain.ErrPaymentNotFound
	}
	return &p, nil
}

func (r memPayments) GetByIDForUpdate(ctx context.Context, id string) (*domain.Payment, error) {
	return r.GetByID(ctx, id)
}

func (r memPayments) GetByReservationID(_ context.Context, reservationID string) (*domain.Payment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, p := range r.db.payments {
		if p.ReservationID == reservationID {
			return &p, nil
		}
	}
	return nil, domain.ErrPaymentNotFound
}

func (r memPayments) UpdateStatus(_ context.Context, p *domain.Payment) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.payments[p.ID]; !ok {
		return domain.ErrPaymentNotFound
	}
	r.db.payments[p.ID] = *p
	return nil
}

// MemoryLocker is an in-process seat lock keyed like the Redis one.
type MemoryLocker struct {
	mu     sync.Mutex
	owners map[string]string
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{owners: make(map[string]string)}
}

func (l *MemoryLocker) TryLock(_ context.Context, key, ownerID string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, held := l.owners[key]; held {
		return false, nil
	}
	l.owners[key] = ownerID
	return true, nil
}

func (l *MemoryLocker) Unlock(_ context.Context, key, ownerID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.owners[key] == ownerID {
		delete(l.owners, key)
	}
}

func (l *MemoryLocker) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, held := l.owners[key]
	return held
}
