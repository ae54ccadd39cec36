package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/askhatbv/circulation-service/internal/errs"
	"github.com/askhatbv/circulation-service/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	sq "github.com/Masterminds/squirrel"
)

const reservationColumns = `id, reservation_uid, book_id, member_id, reserved_at, expires_at, status`

func (r *repository) CreateReservation(ctx context.Context, bookID, memberID int64, reservedAt, expiresAt time.Time) (model.Reservation, error) {
	query, args, err := qb.Insert(reservationsTableName).
		Columns("reservation_uid", "book_id", "member_id", "reserved_at", "expires_at", "status").
		Values(uuid.New(), bookID, memberID, reservedAt, expiresAt, model.ReservationPending).
		Suffix("returning " + reservationColumns).
		ToSql()
	if err != nil {
		return model.Reservation{}, err
	}

	var res model.Reservation
	if err := sqlx.GetContext(ctx, r.q(ctx), &res, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return model.Reservation{}, errors.Wrapf(errs.ErrDuplicateReservation,
				"book %d, member %d", bookID, memberID)
		}
		r.log.Error("CreateReservation", zap.String("q", query), zap.Any("args", args))
		return model.Reservation{}, errors.Wrap(err, "create reservation")
	}
	return res, nil
}

func (r *repository) HasPendingReservation(ctx context.Context, bookID, memberID int64) (bool, error) {
	q := `select exists(select 1 from reservations where book_id = $1 and member_id = $2 and status = 'PENDING')`

	var exists bool
	if err := sqlx.GetContext(ctx, r.q(ctx), &exists, q, bookID, memberID); err != nil {
		return false, errors.Wrap(err, "has pending reservation")
	}
	return exists, nil
}

func (r *repository) CountPendingReservations(ctx context.Context, bookID int64) (int, error) {
	q := `select count(*) from reservations where book_id = $1 and status = 'PENDING'`

	var count int
	if err := sqlx.GetContext(ctx, r.q(ctx), &count, q, bookID); err != nil {
		return 0, errors.Wrap(err, "count pending reservations")
	}
	return count, nil
}

// FulfillReservation resolves the pair's PENDING reservation, if one
// exists. Reports whether a row actually transitioned.
func (r *repository) FulfillReservation(ctx context.Context, bookID, memberID int64) (bool, error) {
	q := `
	update reservations
	set status = 'FULFILLED'
	where book_id = $1 and member_id = $2 and status = 'PENDING'`

	res, err := r.q(ctx).ExecContext(ctx, q, bookID, memberID)
	if err != nil {
		return false, errors.Wrap(err, "fulfill reservation")
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *repository) SweepExpiredReservations(ctx context.Context, now time.Time) (int64, error) {
	q := `
	update reservations
	set status = 'EXPIRED'
	where status = 'PENDING' and expires_at < $1`

	res, err := r.q(ctx).ExecContext(ctx, q, now)
	if err != nil {
		return 0, errors.Wrap(err, "sweep expired reservations")
	}
	return res.RowsAffected()
}

// CancelReservation is a compare-and-set from PENDING; the current status
// is re-read only to name the reason for a rejection.
func (r *repository) CancelReservation(ctx context.Context, reservationUid string) (model.Reservation, error) {
	q := `
	update reservations
	set status = 'CANCELLED'
	where reservation_uid = $1 and status = 'PENDING'
	returning ` + reservationColumns

	var res model.Reservation
	err := sqlx.GetContext(ctx, r.q(ctx), &res, q, reservationUid)
	if err == nil {
		return res, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return model.Reservation{}, errors.Wrap(err, "cancel reservation")
	}

	var status model.ReservationStatus
	err = sqlx.GetContext(ctx, r.q(ctx), &status,
		`select status from reservations where reservation_uid = $1`, reservationUid)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Reservation{}, errors.Wrapf(errs.ErrNotFound, "reservation %s", reservationUid)
	}
	if err != nil {
		return model.Reservation{}, errors.Wrap(err, "cancel reservation status")
	}
	return model.Reservation{}, errors.Wrapf(errs.ErrInvalidStateTransition,
		"cannot cancel reservation with status %s", status)
}

func (r *repository) ListReservations(ctx context.Context, memberID int64) ([]model.Reservation, error) {
	query, args, err := qb.Select("id", "reservation_uid", "book_id", "member_id", "reserved_at", "expires_at", "status").
		From(reservationsTableName).
		Where(sq.Eq{"member_id": memberID}).
		OrderBy("reserved_at desc").
		ToSql()
	if err != nil {
		return nil, err
	}

	var items []model.Reservation
	if err := sqlx.SelectContext(ctx, r.q(ctx), &items, query, args...); err != nil {
		return nil, errors.Wrap(err, "list reservations")
	}
	return items, nil
}
