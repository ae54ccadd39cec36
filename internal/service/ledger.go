package service

import (
	"context"
	"time"

	"github.com/askhatbv/circulation-service/internal/errs"
	"github.com/askhatbv/circulation-service/internal/model"
	"github.com/askhatbv/circulation-service/internal/repository"
	"github.com/pkg/errors"
)

// LoanLedger records loan transitions and enforces the per-member quota.
// The quota check and the insert must run in the same transaction, with the
// member row locked, so concurrent checkouts cannot both observe
// "under quota".
type LoanLedger struct {
	repo       repository.Repository
	loanPeriod time.Duration
}

func NewLoanLedger(repo repository.Repository, loanPeriod time.Duration) *LoanLedger {
	return &LoanLedger{repo: repo, loanPeriod: loanPeriod}
}

func (l *LoanLedger) CountActive(ctx context.Context, memberID int64) (int, error) {
	return l.repo.CountActiveLoans(ctx, memberID)
}

func (l *LoanLedger) OpenLoan(ctx context.Context, copyID int64, member model.Member, now time.Time) (model.Loan, error) {
	active, err := l.repo.CountActiveLoans(ctx, member.ID)
	if err != nil {
		return model.Loan{}, err
	}
	if active >= member.MaxActiveLoans {
		return model.Loan{}, errors.Wrapf(errs.ErrQuotaExceeded,
			"member %d has %d of %d active loans", member.ID, active, member.MaxActiveLoans)
	}
	return l.repo.CreateLoan(ctx, copyID, member.ID, now, now.Add(l.loanPeriod))
}

func (l *LoanLedger) CloseLoan(ctx context.Context, loanID int64, returnedAt time.Time) error {
	return l.repo.CloseLoan(ctx, loanID, returnedAt)
}

func (l *LoanLedger) FindActiveLoan(ctx context.Context, bookID, memberID int64) (model.Loan, error) {
	return l.repo.FindActiveLoan(ctx, bookID, memberID)
}
