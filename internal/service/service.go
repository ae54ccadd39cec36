package service

import (
	"context"
	"time"

	"github.com/askhatbv/circulation-service/config"
	"github.com/askhatbv/circulation-service/internal/errs"
	"github.com/askhatbv/circulation-service/internal/model"
	"github.com/askhatbv/circulation-service/internal/repository"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Service is the circulation coordinator. It owns the transaction boundary:
// every public operation runs as one atomic unit against shared state, so a
// failure partway never leaves copy status inconsistent with the loan and
// reservation rows.
type Service struct {
	log       *zap.Logger
	repo      repository.Repository
	allocator *InventoryAllocator
	ledger    *LoanLedger
	queue     *ReservationQueue
	penalties *PenaltyCalculator
	now       func() time.Time
}

type Option func(*Service)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(repo repository.Repository, cfg config.Circulation, log *zap.Logger, ops ...Option) *Service {
	s := &Service{
		log:       log,
		repo:      repo,
		allocator: NewInventoryAllocator(repo),
		ledger:    NewLoanLedger(repo, cfg.LoanPeriod),
		queue:     NewReservationQueue(repo, cfg.ReservationTTL),
		penalties: NewPenaltyCalculator(cfg.DailyPenaltyRate),
		now:       time.Now,
	}
	for _, op := range ops {
		op(s)
	}
	return s
}

// Checkout claims an available copy of the book for the member and opens a
// loan on it. A quota rejection rolls the copy claim back with the rest of
// the transaction.
func (s *Service) Checkout(ctx context.Context, bookID, memberID int64) (model.CheckoutResponse, error) {
	var resp model.CheckoutResponse
	err := s.repo.WithinTx(ctx, func(ctx context.Context) error {
		exists, err := s.repo.BookExists(ctx, bookID)
		if err != nil {
			return err
		}
		if !exists {
			return errors.Wrapf(errs.ErrNotFound, "book %d", bookID)
		}

		member, err := s.repo.GetMemberForUpdate(ctx, memberID)
		if err != nil {
			return err
		}

		cp, err := s.allocator.ClaimCopy(ctx, bookID)
		if err != nil {
			return err
		}

		loan, err := s.ledger.OpenLoan(ctx, cp.ID, member, s.now())
		if err != nil {
			return err
		}

		fulfilled, err := s.queue.TryFulfillOnCheckout(ctx, bookID, memberID)
		if err != nil {
			return err
		}

		resp = model.CheckoutResponse{
			LoanUid:              loan.LoanUid,
			DueDate:              loan.DueDate,
			ReservationFulfilled: fulfilled,
		}
		return nil
	})
	if err != nil {
		return model.CheckoutResponse{}, err
	}

	s.log.Info("checkout",
		zap.Int64("bookId", bookID),
		zap.Int64("memberId", memberID),
		zap.String("loanUid", resp.LoanUid),
		zap.Bool("reservationFulfilled", resp.ReservationFulfilled))
	return resp, nil
}

// Return closes the member's active loan on the book, frees the copy and
// assesses an overdue penalty if the due date has passed.
func (s *Service) Return(ctx context.Context, bookID, memberID int64) (model.ReturnResponse, error) {
	var resp model.ReturnResponse
	err := s.repo.WithinTx(ctx, func(ctx context.Context) error {
		loan, err := s.ledger.FindActiveLoan(ctx, bookID, memberID)
		if err != nil {
			return err
		}

		returnedAt := s.now()
		if err := s.ledger.CloseLoan(ctx, loan.ID, returnedAt); err != nil {
			return err
		}
		if err := s.allocator.ReleaseCopy(ctx, loan.CopyID); err != nil {
			return err
		}

		resp = model.ReturnResponse{LoanUid: loan.LoanUid}
		if penalty, ok := s.penalties.Assess(loan, returnedAt); ok {
			created, err := s.repo.CreatePenalty(ctx, penalty)
			if err != nil {
				return err
			}
			resp.Penalty = &model.PenaltyInfo{
				PenaltyID: created.ID,
				Amount:    created.Amount,
				Reason:    created.Reason,
			}
		}
		return nil
	})
	if err != nil {
		return model.ReturnResponse{}, err
	}

	s.log.Info("return",
		zap.Int64("bookId", bookID),
		zap.Int64("memberId", memberID),
		zap.String("loanUid", resp.LoanUid),
		zap.Bool("penalty", resp.Penalty != nil))
	return resp, nil
}

// Reserve records a PENDING reservation for the member if the book has
// reservation headroom left.
func (s *Service) Reserve(ctx context.Context, bookID, memberID int64) (model.ReserveResponse, error) {
	var resp model.ReserveResponse
	err := s.repo.WithinTx(ctx, func(ctx context.Context) error {
		exists, err := s.repo.BookExists(ctx, bookID)
		if err != nil {
			return err
		}
		if !exists {
			return errors.Wrapf(errs.ErrNotFound, "book %d", bookID)
		}
		if _, err := s.repo.GetMember(ctx, memberID); err != nil {
			return err
		}

		res, err := s.queue.CreateReservation(ctx, bookID, memberID, s.now())
		if err != nil {
			return err
		}
		resp = model.ReserveResponse{
			ReservationUid: res.ReservationUid,
			ExpiresAt:      res.ExpiresAt,
		}
		return nil
	})
	if err != nil {
		return model.ReserveResponse{}, err
	}

	s.log.Info("reserve",
		zap.Int64("bookId", bookID),
		zap.Int64("memberId", memberID),
		zap.String("reservationUid", resp.ReservationUid))
	return resp, nil
}

// CancelReservation cancels a PENDING reservation. Cancelling anything
// else, including one that has just expired, is rejected.
func (s *Service) CancelReservation(ctx context.Context, reservationUid string) (model.CancelReservationResponse, error) {
	var resp model.CancelReservationResponse
	err := s.repo.WithinTx(ctx, func(ctx context.Context) error {
		res, err := s.queue.Cancel(ctx, reservationUid, s.now())
		if err != nil {
			return err
		}
		resp = model.CancelReservationResponse{ReservationUid: res.ReservationUid}
		return nil
	})
	if err != nil {
		return model.CancelReservationResponse{}, err
	}
	return resp, nil
}

func (s *Service) ListLoans(ctx context.Context, memberID int64) ([]model.Loan, error) {
	if _, err := s.repo.GetMember(ctx, memberID); err != nil {
		return nil, err
	}
	return s.repo.ListLoans(ctx, memberID)
}

// ListReservations sweeps expired reservations first so a stale PENDING row
// is never observed past its expiry.
func (s *Service) ListReservations(ctx context.Context, memberID int64) ([]model.Reservation, error) {
	var items []model.Reservation
	err := s.repo.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.repo.GetMember(ctx, memberID); err != nil {
			return err
		}
		if _, err := s.queue.SweepExpired(ctx, s.now()); err != nil {
			return err
		}
		var err error
		items, err = s.repo.ListReservations(ctx, memberID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Service) ListPenalties(ctx context.Context, memberID int64) ([]model.Penalty, error) {
	if _, err := s.repo.GetMember(ctx, memberID); err != nil {
		return nil, err
	}
	return s.repo.ListPenalties(ctx, memberID)
}
