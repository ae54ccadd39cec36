package repository

import (
	"context"
	"time"

	"github.com/askhatbv/circulation-service/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	sq "github.com/Masterminds/squirrel"
)

//go:generate go run github.com/golang/mock/mockgen -source=repository.go -destination=mocks/mock.go

type Repository interface {
	// WithinTx runs fn inside a single database transaction. Every
	// repository call made with the ctx passed to fn executes on that
	// transaction; an error from fn rolls everything back.
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error

	BookExists(ctx context.Context, bookID int64) (bool, error)
	LockBook(ctx context.Context, bookID int64) error
	TotalCopies(ctx context.Context, bookID int64) (int, error)

	GetMember(ctx context.Context, memberID int64) (model.Member, error)
	GetMemberForUpdate(ctx context.Context, memberID int64) (model.Member, error)

	ClaimCopy(ctx context.Context, bookID int64) (model.Copy, error)
	ReleaseCopy(ctx context.Context, copyID int64) error

	CountActiveLoans(ctx context.Context, memberID int64) (int, error)
	CountActiveLoansByBook(ctx context.Context, bookID int64) (int, error)
	CreateLoan(ctx context.Context, copyID, memberID int64, loanAt, dueAt time.Time) (model.Loan, error)
	FindActiveLoan(ctx context.Context, bookID, memberID int64) (model.Loan, error)
	CloseLoan(ctx context.Context, loanID int64, returnedAt time.Time) error
	ListLoans(ctx context.Context, memberID int64) ([]model.Loan, error)

	CreateReservation(ctx context.Context, bookID, memberID int64, reservedAt, expiresAt time.Time) (model.Reservation, error)
	HasPendingReservation(ctx context.Context, bookID, memberID int64) (bool, error)
	CountPendingReservations(ctx context.Context, bookID int64) (int, error)
	FulfillReservation(ctx context.Context, bookID, memberID int64) (bool, error)
	SweepExpiredReservations(ctx context.Context, now time.Time) (int64, error)
	CancelReservation(ctx context.Context, reservationUid string) (model.Reservation, error)
	ListReservations(ctx context.Context, memberID int64) ([]model.Reservation, error)

	CreatePenalty(ctx context.Context, penalty model.Penalty) (model.Penalty, error)
	ListPenalties(ctx context.Context, memberID int64) ([]model.Penalty, error)
}

type repository struct {
	db  *sqlx.DB
	log *zap.Logger
}

func NewRepository(db *sqlx.DB, log *zap.Logger) (*repository, error) {
	return &repository{
		db:  db,
		log: log.Named("repo"),
	}, nil
}

const (
	copiesTableName       = `copies`
	membersTableName      = `members`
	loansTableName        = `loans`
	reservationsTableName = `reservations`
	penaltiesTableName    = `penalties`
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type txKey struct{}

func (r *repository) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "commit tx")
}

// q resolves the active querier: the transaction carried in ctx, else the
// pooled connection.
func (r *repository) q(ctx context.Context) sqlx.ExtContext {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return r.db
}
