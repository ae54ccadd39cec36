package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/askhatbv/circulation-service/internal/errs"
	"github.com/askhatbv/circulation-service/internal/model"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	sq "github.com/Masterminds/squirrel"
)

const loanColumns = `id, loan_uid, copy_id, member_id, loan_date, due_date, return_date, status, created_at, updated_at`

func (r *repository) CountActiveLoans(ctx context.Context, memberID int64) (int, error) {
	q := `select count(*) from loans where member_id = $1 and status = 'ACTIVE'`

	var count int
	if err := sqlx.GetContext(ctx, r.q(ctx), &count, q, memberID); err != nil {
		return 0, errors.Wrap(err, "count active loans")
	}
	return count, nil
}

func (r *repository) CountActiveLoansByBook(ctx context.Context, bookID int64) (int, error) {
	q := `
	select count(*) from loans l
	join copies c on c.id = l.copy_id
	where c.book_id = $1 and l.status = 'ACTIVE'`

	var count int
	if err := sqlx.GetContext(ctx, r.q(ctx), &count, q, bookID); err != nil {
		return 0, errors.Wrap(err, "count active loans by book")
	}
	return count, nil
}

func (r *repository) CreateLoan(ctx context.Context, copyID, memberID int64, loanAt, dueAt time.Time) (model.Loan, error) {
	query, args, err := qb.Insert(loansTableName).
		Columns("loan_uid", "copy_id", "member_id", "loan_date", "due_date", "status").
		Values(uuid.New(), copyID, memberID, loanAt, dueAt, model.LoanActive).
		Suffix("returning " + loanColumns).
		ToSql()
	if err != nil {
		return model.Loan{}, err
	}

	var loan model.Loan
	if err := sqlx.GetContext(ctx, r.q(ctx), &loan, query, args...); err != nil {
		r.log.Error("CreateLoan", zap.String("q", query), zap.Any("args", args))
		return model.Loan{}, errors.Wrap(err, "create loan")
	}
	return loan, nil
}

// FindActiveLoan locates the single ACTIVE loan for the (book, member)
// pair and locks it. Two or more matches mean the at-most-one invariant is
// already broken in storage; that is reported, not papered over.
func (r *repository) FindActiveLoan(ctx context.Context, bookID, memberID int64) (model.Loan, error) {
	q := `
	select l.id, l.loan_uid, l.copy_id, l.member_id, l.loan_date, l.due_date, l.return_date, l.status, l.created_at, l.updated_at
	from loans l
	join copies c on c.id = l.copy_id
	where c.book_id = $1 and l.member_id = $2 and l.status = 'ACTIVE'
	limit 2
	for update of l`

	var loans []model.Loan
	if err := sqlx.SelectContext(ctx, r.q(ctx), &loans, q, bookID, memberID); err != nil {
		return model.Loan{}, errors.Wrap(err, "find active loan")
	}
	switch len(loans) {
	case 0:
		return model.Loan{}, errors.Wrapf(errs.ErrNotFound, "no active loan for book %d and member %d", bookID, memberID)
	case 1:
		return loans[0], nil
	default:
		return model.Loan{}, errors.Wrapf(errs.ErrInconsistentState,
			"multiple active loans for book %d and member %d", bookID, memberID)
	}
}

func (r *repository) CloseLoan(ctx context.Context, loanID int64, returnedAt time.Time) error {
	q := `
	update loans
	set status = 'RETURNED', return_date = $2, updated_at = now()
	where id = $1 and status = 'ACTIVE'`

	res, err := r.q(ctx).ExecContext(ctx, q, loanID, returnedAt)
	if err != nil {
		return errors.Wrap(err, "close loan")
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		var status model.LoanStatus
		err := sqlx.GetContext(ctx, r.q(ctx), &status, `select status from loans where id = $1`, loanID)
		if errors.Is(err, sql.ErrNoRows) {
			return errors.Wrapf(errs.ErrNotFound, "loan %d", loanID)
		}
		if err != nil {
			return errors.Wrap(err, "close loan status")
		}
		return errors.Wrapf(errs.ErrInvalidStateTransition, "loan %d is %s, not ACTIVE", loanID, status)
	}
	return nil
}

func (r *repository) ListLoans(ctx context.Context, memberID int64) ([]model.Loan, error) {
	query, args, err := qb.Select("id", "loan_uid", "copy_id", "member_id", "loan_date", "due_date", "return_date", "status", "created_at", "updated_at").
		From(loansTableName).
		Where(sq.Eq{"member_id": memberID}).
		OrderBy("loan_date desc").
		ToSql()
	if err != nil {
		return nil, err
	}

	var loans []model.Loan
	if err := sqlx.SelectContext(ctx, r.q(ctx), &loans, query, args...); err != nil {
		return nil, errors.Wrap(err, "list loans")
	}
	return loans, nil
}
