package service

import (
	"context"
	"time"

	"github.com/askhatbv/circulation-service/internal/errs"
	"github.com/askhatbv/circulation-service/internal/model"
	"github.com/askhatbv/circulation-service/internal/repository"
	"github.com/pkg/errors"
)

// ReservationQueue records reservation requests and resolves them
// opportunistically: a PENDING reservation is fulfilled only when its own
// holder checks the book out. Copies freed by returns do not advance other
// members' reservations; any member whose reservation was accepted is
// equally entitled to the next copy.
type ReservationQueue struct {
	repo repository.Repository
	ttl  time.Duration
}

func NewReservationQueue(repo repository.Repository, ttl time.Duration) *ReservationQueue {
	return &ReservationQueue{repo: repo, ttl: ttl}
}

// CreateReservation admits a new PENDING reservation if the book still has
// headroom: activeLoans + pendingReservations < totalCopies. The book row
// is locked first so concurrent attempts for the same book evaluate the
// formula against a consistent snapshot.
func (q *ReservationQueue) CreateReservation(ctx context.Context, bookID, memberID int64, now time.Time) (model.Reservation, error) {
	if err := q.repo.LockBook(ctx, bookID); err != nil {
		return model.Reservation{}, err
	}
	if _, err := q.repo.SweepExpiredReservations(ctx, now); err != nil {
		return model.Reservation{}, err
	}

	// The duplicate check runs before the capacity formula: a member whose
	// own PENDING reservation fills the book's headroom must be told
	// "duplicate", not "no capacity". The partial unique index remains the
	// backstop for concurrent inserts.
	dup, err := q.repo.HasPendingReservation(ctx, bookID, memberID)
	if err != nil {
		return model.Reservation{}, err
	}
	if dup {
		return model.Reservation{}, errors.Wrapf(errs.ErrDuplicateReservation,
			"book %d, member %d", bookID, memberID)
	}

	total, err := q.repo.TotalCopies(ctx, bookID)
	if err != nil {
		return model.Reservation{}, err
	}
	active, err := q.repo.CountActiveLoansByBook(ctx, bookID)
	if err != nil {
		return model.Reservation{}, err
	}
	pending, err := q.repo.CountPendingReservations(ctx, bookID)
	if err != nil {
		return model.Reservation{}, err
	}
	if active+pending >= total {
		return model.Reservation{}, errors.Wrapf(errs.ErrNoCapacityForReservation,
			"book %d: %d active + %d pending >= %d copies", bookID, active, pending, total)
	}

	return q.repo.CreateReservation(ctx, bookID, memberID, now, now.Add(q.ttl))
}

func (q *ReservationQueue) TryFulfillOnCheckout(ctx context.Context, bookID, memberID int64) (bool, error) {
	return q.repo.FulfillReservation(ctx, bookID, memberID)
}

func (q *ReservationQueue) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	return q.repo.SweepExpiredReservations(ctx, now)
}

// Cancel sweeps first: a reservation whose expiry has already passed is
// EXPIRED by the time the cancel is evaluated, and the cancel is rejected.
func (q *ReservationQueue) Cancel(ctx context.Context, reservationUid string, now time.Time) (model.Reservation, error) {
	if _, err := q.repo.SweepExpiredReservations(ctx, now); err != nil {
		return model.Reservation{}, err
	}
	return q.repo.CancelReservation(ctx, reservationUid)
}
