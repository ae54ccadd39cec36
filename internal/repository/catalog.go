package repository

import (
	"context"
	"database/sql"

	"github.com/askhatbv/circulation-service/internal/errs"
	"github.com/askhatbv/circulation-service/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	sq "github.com/Masterminds/squirrel"
)

// Books and members are owned by the catalog and member-directory services;
// the circulation core only reads them.

func (r *repository) BookExists(ctx context.Context, bookID int64) (bool, error) {
	q := `select exists(select 1 from books where id = $1)`

	var exists bool
	if err := sqlx.GetContext(ctx, r.q(ctx), &exists, q, bookID); err != nil {
		return false, errors.Wrap(err, "book exists")
	}
	return exists, nil
}

// LockBook takes a row lock on the book, serializing concurrent reservation
// capacity checks for it.
func (r *repository) LockBook(ctx context.Context, bookID int64) error {
	q := `select id from books where id = $1 for update`

	var id int64
	if err := sqlx.GetContext(ctx, r.q(ctx), &id, q, bookID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errors.Wrapf(errs.ErrNotFound, "book %d", bookID)
		}
		return errors.Wrap(err, "lock book")
	}
	return nil
}

func (r *repository) TotalCopies(ctx context.Context, bookID int64) (int, error) {
	query, args, err := qb.Select("count(*)").
		From(copiesTableName).
		Where(sq.Eq{"book_id": bookID}).
		ToSql()
	if err != nil {
		return 0, err
	}

	var count int
	if err := sqlx.GetContext(ctx, r.q(ctx), &count, query, args...); err != nil {
		return 0, errors.Wrap(err, "total copies")
	}
	return count, nil
}

func (r *repository) GetMember(ctx context.Context, memberID int64) (model.Member, error) {
	query, args, err := qb.Select("id", "library_id", "max_active_loans", "created_at").
		From(membersTableName).
		Where(sq.Eq{"id": memberID}).
		ToSql()
	if err != nil {
		return model.Member{}, err
	}

	var m model.Member
	if err := sqlx.GetContext(ctx, r.q(ctx), &m, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Member{}, errors.Wrapf(errs.ErrNotFound, "member %d", memberID)
		}
		return model.Member{}, errors.Wrap(err, "get member")
	}
	return m, nil
}

// GetMemberForUpdate locks the member row so that concurrent checkouts by
// the same member serialize on the quota check.
func (r *repository) GetMemberForUpdate(ctx context.Context, memberID int64) (model.Member, error) {
	q := `select id, library_id, max_active_loans, created_at from members where id = $1 for update`

	var m model.Member
	if err := sqlx.GetContext(ctx, r.q(ctx), &m, q, memberID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Member{}, errors.Wrapf(errs.ErrNotFound, "member %d", memberID)
		}
		return model.Member{}, errors.Wrap(err, "get member for update")
	}
	return m, nil
}
