package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func heldSeat(t *testing.T, userID string) *Seat {
	t.Helper()
	seat := newTestSeat(t)
	require.NoError(t, seat.AssignTemporarily(userID, now.Add(5*time.Minute), now))
	return seat
}

func TestNewReservation(t *testing.T) {
	seat := heldSeat(t, "user-a")

	r, err := NewReservation("user-a", seat, now)
	require.NoError(t, err)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, ReservationStatusTemporarilyAssigned, r.Status)
	assert.Equal(t, *seat.AssignedUntil, r.ExpiresAt)
	assert.Equal(t, seat.ID, r.SeatID)
	assert.Equal(t, 15, r.SeatNumber)
	assert.True(t, r.Price.Equal(decimal.NewFromInt(50_000)))

	_, err = NewReservation("user-b", seat, now)
	assert.ErrorIs(t, err, ErrIllegalState)

	_, err = NewReservation("user-a", newTestSeat(t), now)
	assert.ErrorIs(t, err, ErrIllegalState)
}

func TestReservation_Transitions(t *testing.T) {
	testCases := []struct {
		name    string
		apply   func(r *Reservation) error
		want    ReservationStatus
		wantErr error
	}{
		{name: "confirm", apply: func(r *Reservation) error { return r.Confirm(now.Add(time.Minute)) }, want: ReservationStatusConfirmed},
		{name: "confirm after expiry", apply: func(r *Reservation) error { return r.Confirm(now.Add(10 * time.Minute)) }, want: ReservationStatusTemporarilyAssigned, wantErr: ErrExpired},
		{name: "cancel", apply: func(r *Reservation) error { return r.Cancel() }, want: ReservationStatusCancelled},
		{name: "expire", apply: func(r *Reservation) error { return r.Expire() }, want: ReservationStatusExpired},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := NewReservation("user-a", heldSeat(t, "user-a"), now)
			require.NoError(t, err)

			err = tc.apply(r)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tc.want, r.Status)
		})
	}
}

func TestReservation_TerminalStatesRejectTransitions(t *testing.T) {
	r, err := NewReservation("user-a", heldSeat(t, "user-a"), now)
	require.NoError(t, err)
	require.NoError(t, r.Cancel())

	assert.True(t, r.IsTerminal())
	assert.ErrorIs(t, r.Confirm(now), ErrIllegalState)
	assert.ErrorIs(t, r.Cancel(), ErrIllegalState)
	assert.ErrorIs(t, r.Expire(), ErrIllegalState)
}

func TestReservation_Revoke(t *testing.T) {
	r, err := NewReservation("user-a", heldSeat(t, "user-a"), now)
	require.NoError(t, err)

	assert.ErrorIs(t, r.Revoke(), ErrIllegalState)

	require.NoError(t, r.Confirm(now))
	require.NoError(t, r.Revoke())
	assert.Equal(t, ReservationStatusCancelled, r.Status)
}
